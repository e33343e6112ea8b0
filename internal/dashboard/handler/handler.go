package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"brpl/internal/backend"
	"brpl/internal/dashboard/service"
	"brpl/internal/login/models"
	"brpl/internal/platform/middleware"
	dErrors "brpl/pkg/domain-errors"
	"brpl/pkg/platform/httputil"
	"brpl/pkg/requestcontext"
)

type Service interface {
	Stats(ctx context.Context, sessionID string) (backend.Stats, error)
	Records(ctx context.Context, sessionID string, q service.RecordsQuery) (backend.Records, error)
	Overview(ctx context.Context, sessionID string) (service.PartnerOverview, error)
	Players(ctx context.Context, sessionID string, q service.PlayersQuery) (backend.Records, error)
}

type Handler struct {
	dashboard    Service
	jwtValidator middleware.JWTValidator
	logger       *slog.Logger
}

func New(dashboard Service, jwtValidator middleware.JWTValidator, logger *slog.Logger) *Handler {
	return &Handler{dashboard: dashboard, jwtValidator: jwtValidator, logger: logger}
}

// Register mounts the admin dashboard behind admin auth and the partner
// dashboard behind coach or influencer auth.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		r.Use(middleware.RequireRole(h.logger, models.RoleAdmin))
		r.Get("/api/admin/stats", h.handleStats)
		r.Get("/api/admin/records", h.handleRecords)
	})
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		r.Use(middleware.RequireRole(h.logger, models.RoleCoach, models.RoleInfluencer))
		r.Get("/api/partner/profile", h.handleOverview)
		r.Get("/api/partner/players", h.handlePlayers)
	})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.dashboard.Stats(ctx, requestcontext.Principal(ctx).SessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"stats": stats})
}

// handleRecords lists one page. Query: type, page, limit, search.
func (h *Handler) handleRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	page, err := optionalInt(q.Get("page"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "page must be a number"))
		return
	}
	limit, err := optionalInt(q.Get("limit"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be a number"))
		return
	}

	records, err := h.dashboard.Records(ctx, requestcontext.Principal(ctx).SessionID, service.RecordsQuery{
		Type:   q.Get("type"),
		Page:   page,
		Limit:  limit,
		Search: q.Get("search"),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, records)
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	overview, err := h.dashboard.Overview(ctx, requestcontext.Principal(ctx).SessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, overview)
}

// handlePlayers lists one page. Query: page, limit, search.
func (h *Handler) handlePlayers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	page, err := optionalInt(q.Get("page"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "page must be a number"))
		return
	}
	limit, err := optionalInt(q.Get("limit"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be a number"))
		return
	}

	players, err := h.dashboard.Players(ctx, requestcontext.Principal(ctx).SessionID, service.PlayersQuery{
		Page:   page,
		Limit:  limit,
		Search: q.Get("search"),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, players)
}

func optionalInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
