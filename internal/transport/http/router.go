// Package httptransport assembles the gateway's HTTP surface: global
// middleware, feature handlers, metrics and health.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"

	"brpl/internal/platform/metrics"
	"brpl/internal/platform/middleware"
	"brpl/pkg/platform/httputil"
	"brpl/pkg/platform/middleware/metadata"
	"brpl/pkg/platform/middleware/requesttime"
)

// Registrar is a feature handler that mounts its own routes.
type Registrar interface {
	Register(r chi.Router)
}

type limited struct {
	handler Registrar
	mw      func(http.Handler) http.Handler
}

func (l limited) Register(r chi.Router) {
	l.handler.Register(r.With(l.mw))
}

// Limited runs mw in front of every route h registers.
func Limited(h Registrar, mw func(http.Handler) http.Handler) Registrar {
	if mw == nil {
		return h
	}
	return limited{handler: h, mw: mw}
}

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

const healthCheckTimeout = 2 * time.Second

type Config struct {
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	Handlers     []Registrar
	HealthChecks map[string]HealthCheck
	// TrustedProxies may set X-Forwarded-For / X-Real-IP. Everyone else is
	// identified by the connection's peer address.
	TrustedProxies []netip.Prefix
}

// NewRouter wires global middleware in front of every handler. Request IDs
// come first so recovery and access logs can carry them.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(metadata.ClientMetadata(cfg.TrustedProxies))
	r.Use(requesttime.Middleware)
	r.Use(middleware.Logger(cfg.Logger, cfg.Metrics))
	r.Use(middleware.ContentTypeJSON)

	for _, h := range cfg.Handlers {
		h.Register(r)
	}

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}
	r.Get("/healthz", healthHandler(cfg.HealthChecks))
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
