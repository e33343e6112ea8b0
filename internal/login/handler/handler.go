package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"brpl/internal/login/models"
	"brpl/internal/login/service"
	"brpl/internal/notify"
	"brpl/internal/platform/middleware"
	"brpl/pkg/platform/httputil"
	"brpl/pkg/requestcontext"
)

type Service interface {
	PartnerLogin(ctx context.Context, creds service.Credentials) (*service.Result, error)
	AdminLogin(ctx context.Context, creds service.Credentials) (*service.Result, error)
	Session(ctx context.Context, sessionID string) (*models.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

type Handler struct {
	logins       Service
	jwtValidator middleware.JWTValidator
	logger       *slog.Logger
}

func New(logins Service, jwtValidator middleware.JWTValidator, logger *slog.Logger) *Handler {
	return &Handler{logins: logins, jwtValidator: jwtValidator, logger: logger}
}

// Register mounts the login routes. Logout and session lookup require a
// gateway token.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/auth/partner/login", h.handlePartnerLogin)
	r.Post("/api/auth/admin/login", h.handleAdminLogin)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		r.Get("/api/auth/session", h.handleSession)
		r.Post("/api/auth/logout", h.handleLogout)
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate only normalizes; the service reports missing fields as a notice.
func (r *loginRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	return nil
}

// failureResponse is the error envelope with the notice the form shows.
type failureResponse struct {
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description,omitempty"`
	Notices          []notify.Notice `json:"notices"`
}

type sessionResponse struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role"`
	Portal   string `json:"portal"`
	Redirect string `json:"redirect"`
}

func (h *Handler) handlePartnerLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, h.logins.PartnerLogin)
}

func (h *Handler) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, h.logins.AdminLogin)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request, fn func(context.Context, service.Credentials) (*service.Result, error)) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[loginRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	res, err := fn(ctx, service.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		status, body := httputil.ErrorResponse(err)
		resp := failureResponse{
			Error:            body.Error,
			ErrorDescription: body.ErrorDescription,
			Notices:          []notify.Notice{},
		}
		if notice, ok := service.NoticeOf(err); ok {
			resp.Notices = append(resp.Notices, notice)
		}
		httputil.WriteJSON(w, status, resp)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, err := h.logins.Session(ctx, requestcontext.Principal(ctx).SessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sessionResponse{
		UserID:   session.UserID,
		Name:     session.Name,
		Role:     session.Role,
		Portal:   string(session.Portal),
		Redirect: models.RedirectFor(session.Role),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.logins.Logout(ctx, requestcontext.Principal(ctx).SessionID); err != nil {
		h.logger.ErrorContext(ctx, "logout failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
