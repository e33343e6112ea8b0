// Package models defines partner and admin login sessions.
package models

import (
	"strings"
	"time"
)

// Portal is the login page a session came from.
type Portal string

const (
	PortalPartner Portal = "partner"
	PortalAdmin   Portal = "admin"
)

const (
	RoleCoach      = "coach"
	RoleInfluencer = "influencer"
	RoleAdmin      = "admin"
)

// Session binds a gateway-issued token to the upstream backend token. The
// upstream token never leaves the server.
type Session struct {
	ID            string    `json:"id"`
	Portal        Portal    `json:"portal"`
	UserID        string    `json:"user_id"`
	Name          string    `json:"name,omitempty"`
	Role          string    `json:"role"`
	UpstreamToken string    `json:"upstream_token"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// RedirectFor is the dashboard a role lands on after login. Unknown roles go
// to the home page.
func RedirectFor(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleCoach:
		return "/coach/dashboard"
	case RoleInfluencer:
		return "/influencer/dashboard"
	case RoleAdmin:
		return "/admin/dashboard"
	default:
		return "/"
	}
}
