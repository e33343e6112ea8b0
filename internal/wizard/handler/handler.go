package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"brpl/internal/notify"
	"brpl/internal/payment"
	"brpl/internal/wizard/models"
	"brpl/internal/wizard/service"
	dErrors "brpl/pkg/domain-errors"
	"brpl/pkg/platform/httputil"
	"brpl/pkg/requestcontext"
)

// TrackingCookie carries the visitor's tracking ID set by POST /api/track.
const TrackingCookie = "brpl_tracking_id"

// awaitTimeout bounds a long-poll on an open checkout.
const awaitTimeout = 25 * time.Second

// Service creates and resolves wizard sessions.
type Service interface {
	Create(ctx context.Context, referralCode string) (*service.Wizard, error)
	Get(ctx context.Context, id string) (*service.Wizard, error)
}

// ReferralSource resolves the referral code captured for a tracked visitor.
type ReferralSource interface {
	ReferralCode(ctx context.Context, trackingID string) (string, error)
}

// Handler serves the registration wizard API.
type Handler struct {
	wizards   Service
	referrals ReferralSource
	logger    *slog.Logger
	otpLimit  func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithOTPLimiter puts mw in front of OTP sends only, on top of whatever
// limits the router applies to the whole wizard.
func WithOTPLimiter(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		if mw != nil {
			h.otpLimit = mw
		}
	}
}

func New(wizards Service, referrals ReferralSource, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		wizards:   wizards,
		referrals: referrals,
		logger:    logger,
		otpLimit:  func(next http.Handler) http.Handler { return next },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the wizard routes under /api/wizard.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/wizard", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Put("/details", h.handleUpdateDetails)
			r.With(h.otpLimit).Post("/otp/send", h.handleRequestOTP)
			r.Post("/otp/verify", h.handleVerifyOTP)
			r.Post("/advance", h.handleAdvance)
			r.Post("/back", h.handleBack)
			r.Post("/payment", h.handleInitiatePayment)
			r.Get("/payment/{checkoutID}", h.handleAwaitPayment)
			r.Post("/payment/{checkoutID}/complete", h.handleCompletePayment)
			r.Post("/payment/{checkoutID}/dismiss", h.handleDismissPayment)
			r.Put("/account", h.handleUpdateAccount)
			r.Post("/submit", h.handleSubmit)
		})
	})
}

// Response is the envelope of every wizard endpoint. Error fields are set
// when the operation failed; the snapshot is always current.
type Response struct {
	Wizard           models.Snapshot     `json:"wizard"`
	Notices          []notify.Notice     `json:"notices"`
	Outcome          payment.OutcomeKind `json:"outcome,omitempty"`
	Error            string              `json:"error,omitempty"`
	ErrorDescription string              `json:"error_description,omitempty"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wz, err := h.wizards.Create(ctx, h.referralFor(r))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to start wizard",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	h.respond(w, http.StatusCreated, wz, nil)
}

// referralFor prefers an explicit ?ref= and falls back to the code
// captured for the visitor's tracking cookie.
func (h *Handler) referralFor(r *http.Request) string {
	if ref := strings.TrimSpace(r.URL.Query().Get("ref")); ref != "" {
		return ref
	}
	if h.referrals == nil {
		return ""
	}
	cookie, err := r.Cookie(TrackingCookie)
	if err != nil || cookie.Value == "" {
		return ""
	}
	ref, err := h.referrals.ReferralCode(r.Context(), cookie.Value)
	if err != nil {
		h.logger.WarnContext(r.Context(), "referral lookup failed",
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err,
		)
		return ""
	}
	return ref
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(context.Context, *service.Wizard) error { return nil })
}

func (h *Handler) handleUpdateDetails(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[detailsRequest](w, r, h.logger, r.Context(), requestcontext.RequestID(r.Context()))
	if !ok {
		return
	}
	h.run(w, r, func(ctx context.Context, wz *service.Wizard) error {
		return wz.UpdateDetails(ctx, req.toInput())
	})
}

func (h *Handler) handleRequestOTP(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(ctx context.Context, wz *service.Wizard) error {
		return wz.RequestOTP(ctx)
	})
}

func (h *Handler) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[verifyOTPRequest](w, r, h.logger, r.Context(), requestcontext.RequestID(r.Context()))
	if !ok {
		return
	}
	h.run(w, r, func(ctx context.Context, wz *service.Wizard) error {
		return wz.VerifyOTP(ctx, req.OTP)
	})
}

func (h *Handler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(ctx context.Context, wz *service.Wizard) error {
		return wz.Advance(ctx)
	})
}

func (h *Handler) handleBack(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(ctx context.Context, wz *service.Wizard) error {
		return wz.Back(ctx)
	})
}

func (h *Handler) handleInitiatePayment(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(ctx context.Context, wz *service.Wizard) error {
		return wz.InitiatePayment(ctx)
	})
}

func (h *Handler) handleCompletePayment(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[completePaymentRequest](w, r, h.logger, r.Context(), requestcontext.RequestID(r.Context()))
	if !ok {
		return
	}
	checkoutID := chi.URLParam(r, "checkoutID")
	h.run(w, r, func(ctx context.Context, wz *service.Wizard) error {
		return wz.CompletePayment(ctx, checkoutID, req.toReference())
	})
}

func (h *Handler) handleDismissPayment(w http.ResponseWriter, r *http.Request) {
	checkoutID := chi.URLParam(r, "checkoutID")
	h.run(w, r, func(ctx context.Context, wz *service.Wizard) error {
		return wz.DismissPayment(ctx, checkoutID)
	})
}

// handleAwaitPayment long-polls until the checkout is completed or
// dismissed, or until awaitTimeout.
func (h *Handler) handleAwaitPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wz, err := h.wizards.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	waitCtx, cancel := context.WithTimeout(ctx, awaitTimeout)
	defer cancel()
	kind, err := wz.AwaitPayment(waitCtx, chi.URLParam(r, "checkoutID"))
	resp := h.envelope(wz, err)
	resp.Outcome = kind
	httputil.WriteJSON(w, statusFor(err), resp)
}

func (h *Handler) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[accountRequest](w, r, h.logger, r.Context(), requestcontext.RequestID(r.Context()))
	if !ok {
		return
	}
	h.run(w, r, func(ctx context.Context, wz *service.Wizard) error {
		return wz.UpdateAccount(ctx, req.toInput())
	})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(ctx context.Context, wz *service.Wizard) error {
		return wz.Submit(ctx)
	})
}

// run resolves the session, applies op and writes the envelope.
func (h *Handler) run(w http.ResponseWriter, r *http.Request, op func(context.Context, *service.Wizard) error) {
	ctx := r.Context()
	wz, err := h.wizards.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	err = op(ctx, wz)
	h.respond(w, statusFor(err), wz, err)
}

func (h *Handler) respond(w http.ResponseWriter, status int, wz *service.Wizard, err error) {
	httputil.WriteJSON(w, status, h.envelope(wz, err))
}

func (h *Handler) envelope(wz *service.Wizard, err error) Response {
	resp := Response{
		Wizard:  wz.Snapshot(),
		Notices: wz.Notices(),
	}
	if err != nil {
		_, body := httputil.ErrorResponse(err)
		resp.Error = body.Error
		resp.ErrorDescription = body.ErrorDescription
	}
	return resp
}

func statusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return dErrors.ToHTTPStatus(dErrors.CodeOf(err))
}
