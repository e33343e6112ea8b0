package service

import (
	"context"
	"errors"

	"brpl/internal/backend"
	"brpl/internal/wizard/models"
	dErrors "brpl/pkg/domain-errors"
)

// Notice wording shared by several operations.
const (
	titleError          = "Error"
	titleConnection     = "Connection Error"
	descConnectFailed   = "Failed to connect to server."
	descTryAgain        = "Please try again."
	descSomethingWrong  = "Something went wrong."
	descContactSupport  = "Please contact support."
	descInitiateFailed  = "Failed to initiate payment."
	descPaymentVerifyKO = "Payment verification failed."
)

// failureText is the wording for one backend call's failure notices.
type failureText struct {
	rejectedTitle    string
	rejectedFallback string
	// useServerMessage shows the backend's message for rejections.
	useServerMessage bool
	transportTitle   string
	transportDesc    string
}

var (
	sendOTPFailure = failureText{
		rejectedTitle:    "Failed to Send OTP",
		rejectedFallback: descTryAgain,
		useServerMessage: true,
		transportTitle:   titleError,
		transportDesc:    descConnectFailed,
	}
	verifyOTPFailure = failureText{
		rejectedTitle:    "Invalid OTP",
		rejectedFallback: descTryAgain,
		useServerMessage: true,
		transportTitle:   titleError,
		transportDesc:    descConnectFailed,
	}
	createOrderFailure = failureText{
		rejectedTitle:    "Payment Error",
		rejectedFallback: descInitiateFailed,
		transportTitle:   "Payment Error",
		transportDesc:    descInitiateFailed,
	}
	verifyPaymentFailure = failureText{
		rejectedTitle:    "Payment Verification Failed",
		rejectedFallback: descContactSupport,
		transportTitle:   titleError,
		transportDesc:    descPaymentVerifyKO,
	}
	registerFailure = failureText{
		rejectedTitle:    "Registration Failed",
		rejectedFallback: descSomethingWrong,
		useServerMessage: true,
		transportTitle:   titleConnection,
		transportDesc:    descConnectFailed,
	}
)

// translate maps a backend client error onto a titled domain error.
// Rejections (including a refused token) become CodeRejected; undecodable
// bodies and transport failures become CodeUnavailable, or CodeTimeout when
// the caller's deadline ran out.
func (f failureText) translate(err error) error {
	switch backend.GetCategory(err) {
	case backend.ErrorRejected, backend.ErrorUnauthorized:
		desc := f.rejectedFallback
		if f.useServerMessage {
			if msg := backend.ServerMessage(err); msg != "" {
				desc = msg
			}
		}
		return models.TitledWrap(err, f.rejectedTitle, dErrors.CodeRejected, desc)
	default:
		code := dErrors.CodeUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			code = dErrors.CodeTimeout
		}
		return models.TitledWrap(err, f.transportTitle, code, f.transportDesc)
	}
}

// rejected is the failure for a 2xx reply that reports success=false.
func (f failureText) rejected(serverMessage string) error {
	desc := f.rejectedFallback
	if f.useServerMessage && serverMessage != "" {
		desc = serverMessage
	}
	return models.Titled(f.rejectedTitle, dErrors.CodeRejected, desc)
}

// outcomeLabel is the metrics label for an operation result.
func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return string(dErrors.CodeOf(err))
}
