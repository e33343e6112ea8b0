// Package models defines rate limit classes and results.
package models

import (
	"time"
)

// EndpointClass groups routes that share a per-IP limit.
type EndpointClass string

const (
	// ClassTrack: landing page visit pings.
	ClassTrack EndpointClass = "track"
	// ClassWizard: wizard reads and writes.
	ClassWizard EndpointClass = "wizard"
	// ClassOTP: OTP sends, which cost an SMS each.
	ClassOTP EndpointClass = "otp"
	// ClassLogin: partner and admin credential checks.
	ClassLogin EndpointClass = "login"
	// ClassAdmin: admin and partner dashboard reads.
	ClassAdmin EndpointClass = "admin"
)

func (c EndpointClass) IsValid() bool {
	switch c {
	case ClassTrack, ClassWizard, ClassOTP, ClassLogin, ClassAdmin:
		return true
	}
	return false
}

// Limit is the number of requests allowed per sliding window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// RateLimitResult is the outcome of one check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is whole seconds until a denied caller may retry.
	RetryAfter int
}

// RateLimitExceededResponse is the 429 body.
type RateLimitExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// Key scopes a bucket to a class and a client identifier.
func Key(class EndpointClass, identifier string) string {
	return string(class) + ":" + identifier
}

// RetryAfter rounds up so a caller never retries a moment too soon.
func RetryAfter(now, resetAt time.Time) int {
	d := resetAt.Sub(now)
	if d <= 0 {
		return 0
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
