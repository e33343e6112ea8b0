package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"brpl/internal/tracking/service"
	"brpl/pkg/platform/httputil"
	"brpl/pkg/requestcontext"
)

// Cookie is the visitor's tracking ID.
const Cookie = "brpl_tracking_id"

type Service interface {
	Track(ctx context.Context, req service.TrackRequest) (*service.TrackResult, error)
}

type Handler struct {
	tracking     Service
	logger       *slog.Logger
	cookieMaxAge time.Duration
	secureCookie bool
}

func New(tracking Service, logger *slog.Logger, cookieMaxAge time.Duration, secureCookie bool) *Handler {
	return &Handler{
		tracking:     tracking,
		logger:       logger,
		cookieMaxAge: cookieMaxAge,
		secureCookie: secureCookie,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/api/track", h.handleTrack)
}

// handleTrack records a landing-page visit. Query: ref, fbclid (or fb_clid).
func (h *Handler) handleTrack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	fbclid := q.Get("fbclid")
	if fbclid == "" {
		fbclid = q.Get("fb_clid")
	}
	userAgent := requestcontext.UserAgent(ctx)
	if userAgent == "" {
		userAgent = r.UserAgent()
	}
	req := service.TrackRequest{
		Ref:       q.Get("ref"),
		FBCLID:    fbclid,
		UserAgent: userAgent,
	}
	if c, err := r.Cookie(Cookie); err == nil {
		req.TrackingID = c.Value
	}

	res, err := h.tracking.Track(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to track visit",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     Cookie,
		Value:    res.TrackingID,
		Path:     "/",
		MaxAge:   int(h.cookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	httputil.WriteJSON(w, http.StatusOK, res)
}
