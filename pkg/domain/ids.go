package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "brpl/pkg/domain-errors"
)

// Typed identifiers. Each wraps a UUID so a checkout ID can never be passed
// where a wizard session ID is expected.
type (
	SessionID  uuid.UUID
	CheckoutID uuid.UUID
	TrackingID uuid.UUID
)

func NewSessionID() SessionID   { return SessionID(uuid.New()) }
func NewCheckoutID() CheckoutID { return CheckoutID(uuid.New()) }
func NewTrackingID() TrackingID { return TrackingID(uuid.New()) }

func (id SessionID) String() string  { return uuid.UUID(id).String() }
func (id CheckoutID) String() string { return uuid.UUID(id).String() }
func (id TrackingID) String() string { return uuid.UUID(id).String() }

func (id SessionID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id CheckoutID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id TrackingID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id SessionID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id CheckoutID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id TrackingID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s, "session id")
	return SessionID(u), err
}

func ParseCheckoutID(s string) (CheckoutID, error) {
	u, err := parseUUID(s, "checkout id")
	return CheckoutID(u), err
}

func ParseTrackingID(s string) (TrackingID, error) {
	u, err := parseUUID(s, "tracking id")
	return TrackingID(u), err
}

// parseUUID enforces the shared rules: canonical 36-char form, not nil.
func parseUUID(s, field string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	if len(s) != 36 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+field)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" cannot be nil")
	}
	return u, nil
}
