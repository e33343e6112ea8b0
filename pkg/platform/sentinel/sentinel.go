// Package sentinel holds the infrastructure errors stores return. Services
// translate them into domain errors; they never reach a response as-is.
package sentinel

import "errors"

var (
	// ErrNotFound: no wizard, visit or login session under that key.
	ErrNotFound = errors.New("not found")
	// ErrExpired: the entry existed but its TTL has passed.
	ErrExpired = errors.New("expired")
	// ErrInvalidState: a store was built or called with settings it cannot honor.
	ErrInvalidState = errors.New("invalid state")
)
