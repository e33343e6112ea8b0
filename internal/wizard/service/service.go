package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"brpl/internal/backend"
	"brpl/internal/notify"
	"brpl/internal/payment"
	"brpl/internal/platform/metrics"
	"brpl/internal/wizard/models"
	id "brpl/pkg/domain"
	dErrors "brpl/pkg/domain-errors"
	audit "brpl/pkg/platform/audit"
	"brpl/pkg/platform/sentinel"
	"brpl/pkg/requestcontext"
)

// Backend is the subset of the league API the wizard calls.
type Backend interface {
	SendOTP(ctx context.Context, mobile string) error
	VerifyOTP(ctx context.Context, mobile, code string) (backend.VerifyOTPResult, error)
	CreateOrder(ctx context.Context, amount int64) (backend.Order, error)
	VerifyPayment(ctx context.Context, ref backend.PaymentReference) (backend.VerifyPaymentResult, error)
	Register(ctx context.Context, reg backend.Registration) error
}

// Gateway opens hosted checkouts.
type Gateway interface {
	Load(ctx context.Context) error
	Open(order payment.Order, prefill payment.Prefill) *payment.Checkout
}

// Store holds live wizards. FindByID returns sentinel.ErrNotFound or
// sentinel.ErrExpired.
type Store interface {
	Save(ctx context.Context, key id.SessionID, w *Wizard) error
	FindByID(ctx context.Context, key id.SessionID) (*Wizard, error)
	Delete(ctx context.Context, key id.SessionID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// deps is shared by every wizard a Service creates.
type deps struct {
	backend         Backend
	gateway         Gateway
	requestedAmount int64
	noticeCapacity  int
	logger          *slog.Logger
	metrics         *metrics.Metrics
	auditPublisher  AuditPublisher
}

// Service creates and looks up wizard sessions.
type Service struct {
	store Store
	deps  *deps
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.deps.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.deps.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.deps.auditPublisher = p
	}
}

// WithRequestedAmount sets the advisory amount sent with order creation.
func WithRequestedAmount(amount int64) Option {
	return func(s *Service) {
		if amount > 0 {
			s.deps.requestedAmount = amount
		}
	}
}

func WithNoticeCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.deps.noticeCapacity = n
		}
	}
}

// DefaultRequestedAmount is the registration fee asked for when creating an
// order, in rupees. The backend's order amount is authoritative.
const DefaultRequestedAmount = 2

func New(store Store, be Backend, gw Gateway, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("wizard store is required")
	}
	if be == nil {
		return nil, errors.New("backend is required")
	}
	if gw == nil {
		return nil, errors.New("payment gateway is required")
	}
	s := &Service{
		store: store,
		deps: &deps{
			backend:         be,
			gateway:         gw,
			requestedAmount: DefaultRequestedAmount,
			noticeCapacity:  notify.DefaultCapacity,
			logger:          slog.Default(),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create starts a wizard session. referralCode comes from visit tracking and
// may be empty.
func (s *Service) Create(ctx context.Context, referralCode string) (*Wizard, error) {
	sessionID := id.NewSessionID()
	w := newWizard(sessionID, models.NewRegistration(referralCode, requestcontext.Now(ctx)), s.deps)
	if err := s.store.Save(ctx, sessionID, w); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to start wizard")
	}
	s.deps.metrics.IncrementSessionsStarted()
	s.deps.emit(ctx, sessionID, audit.EventWizardStarted, "ok", "")
	s.deps.logger.InfoContext(ctx, "wizard started",
		"session_id", sessionID.String(),
		"referred", strings.TrimSpace(referralCode) != "",
		"request_id", requestcontext.RequestID(ctx),
	)
	return w, nil
}

// Get resolves a live session. Unknown and expired sessions are both
// reported as not found.
func (s *Service) Get(ctx context.Context, rawID string) (*Wizard, error) {
	sessionID, err := id.ParseSessionID(rawID)
	if err != nil {
		return nil, err
	}
	w, err := s.store.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
			return nil, dErrors.New(dErrors.CodeNotFound, "wizard session not found or expired")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load wizard")
	}
	return w, nil
}

// Discard ends a session early.
func (s *Service) Discard(ctx context.Context, rawID string) error {
	sessionID, err := id.ParseSessionID(rawID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, sessionID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to discard wizard")
	}
	return nil
}

func (d *deps) emit(ctx context.Context, sessionID id.SessionID, event audit.AuditEvent, decision, reason string) {
	if d.auditPublisher == nil {
		return
	}
	err := d.auditPublisher.Emit(ctx, audit.Event{
		Subject:  sessionID.String(),
		Action:   string(event),
		Decision: decision,
		Reason:   reason,
	})
	if err != nil {
		d.logger.WarnContext(ctx, "audit emit failed",
			"event", string(event),
			"session_id", sessionID.String(),
			"error", err,
		)
	}
}
