package backend

import (
	"errors"
	"fmt"
)

// ErrorCategory defines the normalized failure taxonomy for backend calls.
type ErrorCategory string

const (
	// ErrorTransport means no usable response arrived: connection refused,
	// DNS failure, cancelled context, or the breaker short-circuited.
	ErrorTransport ErrorCategory = "transport"

	// ErrorRejected means the backend answered with a non-2xx status.
	ErrorRejected ErrorCategory = "rejected"

	// ErrorUnauthorized means the backend refused the bearer token (401/403).
	ErrorUnauthorized ErrorCategory = "unauthorized"

	// ErrorBadData means a 2xx body could not be decoded into the contract.
	ErrorBadData ErrorCategory = "bad_data"
)

// Error wraps backend failures with normalized categorization. Message holds
// the server-provided message when there was one.
type Error struct {
	Category   ErrorCategory
	Endpoint   string
	Status     int
	Message    string
	Underlying error
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("backend %s [%s]: %s: %v", e.Endpoint, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("backend %s [%s] status=%d: %s", e.Endpoint, e.Category, e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// ErrCircuitOpen is the underlying error when the breaker refused a call.
var ErrCircuitOpen = errors.New("backend circuit open")

// GetCategory extracts the error category from an error. Anything that is
// not a *Error is reported as a transport failure.
func GetCategory(err error) ErrorCategory {
	var be *Error
	if errors.As(err, &be) {
		return be.Category
	}
	return ErrorTransport
}

// ServerMessage returns the message the backend attached to a rejection,
// or "" when there was none.
func ServerMessage(err error) string {
	var be *Error
	if errors.As(err, &be) && be.Category == ErrorRejected {
		return be.Message
	}
	return ""
}
