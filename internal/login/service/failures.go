package service

import (
	"errors"

	"brpl/internal/backend"
	"brpl/internal/notify"
	dErrors "brpl/pkg/domain-errors"
)

// Failure is a login error together with the notice the login page shows.
type Failure struct {
	Notice notify.Notice
	err    error
}

func (f *Failure) Error() string { return f.err.Error() }
func (f *Failure) Unwrap() error { return f.err }

// NoticeOf returns the notice attached to a login error.
func NoticeOf(err error) (notify.Notice, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Notice, true
	}
	return notify.Notice{}, false
}

const (
	descInvalidCredentials = "Invalid credentials."
	descConnectFailed      = "Failed to connect to server."
)

func connectionFailure(err error) error {
	return &Failure{
		Notice: notify.Error("Connection Error", descConnectFailed),
		err:    dErrors.Wrap(err, dErrors.CodeUnavailable, descConnectFailed),
	}
}

// partnerFailure shows the backend's message for refused partner logins.
func partnerFailure(err error) error {
	switch backend.GetCategory(err) {
	case backend.ErrorRejected, backend.ErrorUnauthorized:
		desc := descInvalidCredentials
		if msg := backend.ServerMessage(err); msg != "" {
			desc = msg
		}
		return &Failure{
			Notice: notify.Error("Login Failed", desc),
			err:    dErrors.Wrap(err, dErrors.CodeUnauthorized, desc),
		}
	default:
		return connectionFailure(err)
	}
}

// adminFailure never echoes the backend's message.
func adminFailure(err error) error {
	switch backend.GetCategory(err) {
	case backend.ErrorRejected, backend.ErrorUnauthorized:
		return &Failure{
			Notice: notify.Error("Access Denied", descInvalidCredentials),
			err:    dErrors.Wrap(err, dErrors.CodeUnauthorized, descInvalidCredentials),
		}
	default:
		return connectionFailure(err)
	}
}
