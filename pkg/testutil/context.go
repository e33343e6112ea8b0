package testutil

import (
	"net/http"

	"brpl/pkg/requestcontext"
)

// WithPrincipal attaches an authenticated partner or admin to the request,
// as RequireAuth would after validating a session token.
func WithPrincipal(req *http.Request, userID, sessionID, role string) *http.Request {
	ctx := requestcontext.WithPrincipal(req.Context(), requestcontext.AuthPrincipal{
		UserID:    userID,
		SessionID: sessionID,
		Role:      role,
	})
	return req.WithContext(ctx)
}
