package models

import (
	"strings"
	"time"
)

// Visit is what is remembered about one landing-page visitor. ReferralCode
// and FBCLID keep their last non-empty value across visits.
type Visit struct {
	TrackingID   string    `json:"tracking_id"`
	ReferralCode string    `json:"referral_code,omitempty"`
	FBCLID       string    `json:"fbclid,omitempty"`
	Device       string    `json:"device"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
	Visits       int       `json:"visits"`
}

// NewVisit records a first visit.
func NewVisit(trackingID, device string, now time.Time) *Visit {
	return &Visit{
		TrackingID: trackingID,
		Device:     device,
		FirstSeen:  now,
		LastSeen:   now,
	}
}

// Touch applies a repeat visit. Empty attribution values never clear stored
// ones. It reports whether a new referral code was applied.
func (v *Visit) Touch(ref, fbclid, device string, now time.Time) (referralApplied bool) {
	ref = strings.TrimSpace(ref)
	fbclid = strings.TrimSpace(fbclid)
	if ref != "" {
		v.ReferralCode = ref
		referralApplied = true
	}
	if fbclid != "" {
		v.FBCLID = fbclid
	}
	if device != "" {
		v.Device = device
	}
	v.LastSeen = now
	v.Visits++
	return referralApplied
}
