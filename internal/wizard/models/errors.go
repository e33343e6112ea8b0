package models

import (
	"errors"

	dErrors "brpl/pkg/domain-errors"
)

// titledError attaches the notice title shown to the user to a domain error.
type titledError struct {
	title string
	err   error
}

func (e *titledError) Error() string { return e.err.Error() }
func (e *titledError) Unwrap() error { return e.err }

// Titled builds a domain error whose message is the notice description.
func Titled(title string, code dErrors.Code, description string) error {
	return &titledError{title: title, err: dErrors.New(code, description)}
}

// TitledWrap is Titled around an underlying cause.
func TitledWrap(err error, title string, code dErrors.Code, description string) error {
	return &titledError{title: title, err: dErrors.Wrap(err, code, description)}
}

// Title returns the notice title carried by err, or fallback.
func Title(err error, fallback string) string {
	var te *titledError
	if errors.As(err, &te) {
		return te.title
	}
	return fallback
}

// Description returns the user-facing message carried by err, or fallback.
func Description(err error, fallback string) string {
	if de, ok := dErrors.As(err); ok && de.Code != dErrors.CodeInternal && de.Message != "" {
		return de.Message
	}
	return fallback
}
