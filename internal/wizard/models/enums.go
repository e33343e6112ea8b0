package models

import (
	"slices"

	dErrors "brpl/pkg/domain-errors"
)

// PlayerRole is the cricketing role a player registers for.
type PlayerRole string

const (
	RoleBatsman      PlayerRole = "Batsman"
	RoleBowler       PlayerRole = "Bowler"
	RoleWicketKeeper PlayerRole = "Wicket Keeper"
	RoleAllRounder   PlayerRole = "All-Rounder"
)

// PlayerRoles lists the selectable roles in display order.
var PlayerRoles = []PlayerRole{RoleBatsman, RoleBowler, RoleWicketKeeper, RoleAllRounder}

func (r PlayerRole) IsValid() bool {
	return slices.Contains(PlayerRoles, r)
}

func (r PlayerRole) String() string {
	return string(r)
}

// ParsePlayerRole accepts "" (not chosen yet) or one of PlayerRoles.
func ParsePlayerRole(s string) (PlayerRole, error) {
	r := PlayerRole(s)
	if r == "" || r.IsValid() {
		return r, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "unknown player role")
}

// Step is the wizard position. Submitted is terminal.
type Step int

const (
	StepDetails Step = iota + 1
	StepPayment
	StepAccount
	StepSubmitted
)

func (s Step) String() string {
	switch s {
	case StepDetails:
		return "details"
	case StepPayment:
		return "payment"
	case StepAccount:
		return "account"
	case StepSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

// Number is the 1-3 step shown to the user; a submitted wizard stays on 3.
func (s Step) Number() int {
	if s == StepSubmitted {
		return int(StepAccount)
	}
	return int(s)
}

type SubmissionState string

const (
	SubmissionIdle       SubmissionState = "idle"
	SubmissionSubmitting SubmissionState = "submitting"
	SubmissionSubmitted  SubmissionState = "submitted"
)

// CanSubmit reports whether a new submission may start from this state.
func (s SubmissionState) CanSubmit() bool {
	return s == SubmissionIdle
}
