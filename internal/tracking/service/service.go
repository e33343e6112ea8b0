package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"brpl/internal/backend"
	"brpl/internal/notify"
	"brpl/internal/platform/metrics"
	"brpl/internal/tracking/models"
	id "brpl/pkg/domain"
	dErrors "brpl/pkg/domain-errors"
	audit "brpl/pkg/platform/audit"
	"brpl/pkg/platform/sentinel"
	"brpl/pkg/requestcontext"
)

type Store interface {
	Save(ctx context.Context, v *models.Visit) error
	FindByID(ctx context.Context, trackingID string) (*models.Visit, error)
}

// Backend receives visit pings. Failures are logged and never surface.
type Backend interface {
	TrackVisit(ctx context.Context, v backend.Visit) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// forwardTimeout bounds the detached backend ping.
const forwardTimeout = 10 * time.Second

// Service records landing-page visits and their referral attribution.
type Service struct {
	store          Store
	backend        Backend
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher

	inflight sync.WaitGroup
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = p
	}
}

func New(store Store, be Backend, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("visit store is required")
	}
	if be == nil {
		return nil, errors.New("backend is required")
	}
	s := &Service{store: store, backend: be, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TrackRequest is one landing-page hit.
type TrackRequest struct {
	// TrackingID is the visitor's cookie value; empty or malformed values
	// get a fresh ID.
	TrackingID string
	Ref        string
	FBCLID     string
	UserAgent  string
}

type TrackResult struct {
	TrackingID   string          `json:"tracking_id"`
	ReferralCode string          `json:"referral_code,omitempty"`
	Notices      []notify.Notice `json:"notices"`
}

// Track records a visit and forwards it to the backend without waiting.
func (s *Service) Track(ctx context.Context, req TrackRequest) (*TrackResult, error) {
	now := requestcontext.Now(ctx)
	device := models.DeviceClass(req.UserAgent)

	trackingID := strings.TrimSpace(req.TrackingID)
	if _, err := id.ParseTrackingID(trackingID); err != nil {
		trackingID = id.NewTrackingID().String()
	}

	visit, err := s.store.FindByID(ctx, trackingID)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		visit = models.NewVisit(trackingID, device, now)
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load visit")
	}
	applied := visit.Touch(req.Ref, req.FBCLID, device, now)
	if err := s.store.Save(ctx, visit); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save visit")
	}

	result := &TrackResult{TrackingID: trackingID, ReferralCode: visit.ReferralCode, Notices: []notify.Notice{}}
	if applied {
		result.Notices = append(result.Notices, notify.Info("Referral Applied",
			fmt.Sprintf("Referral code %s has been applied!", visit.ReferralCode)))
	}

	if s.metrics != nil {
		s.metrics.IncrementVisitsTracked(device)
	}
	s.emit(ctx, trackingID, visit.ReferralCode)
	s.forward(ctx, backend.Visit{
		TrackingID:   trackingID,
		ReferralCode: strings.TrimSpace(req.Ref),
		FBCLID:       strings.TrimSpace(req.FBCLID),
	})
	s.logger.DebugContext(ctx, "visit tracked",
		"tracking_id", trackingID,
		"device", models.DisplayName(req.UserAgent),
		"referred", visit.ReferralCode != "",
		"request_id", requestcontext.RequestID(ctx),
	)
	return result, nil
}

// ReferralCode returns the referral captured for a visitor, "" when none.
func (s *Service) ReferralCode(ctx context.Context, trackingID string) (string, error) {
	visit, err := s.store.FindByID(ctx, trackingID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load visit")
	}
	return visit.ReferralCode, nil
}

// forward pings the backend on a detached context so the visitor's request
// never waits for it.
func (s *Service) forward(ctx context.Context, v backend.Visit) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), forwardTimeout)
		defer cancel()
		if err := s.backend.TrackVisit(fctx, v); err != nil {
			s.logger.WarnContext(fctx, "track visit forward failed",
				"tracking_id", v.TrackingID,
				"error", err,
			)
		}
	}()
}

// Wait blocks until in-flight backend pings finish or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) emit(ctx context.Context, trackingID, referral string) {
	if s.auditPublisher == nil {
		return
	}
	decision := "direct"
	if referral != "" {
		decision = "referred"
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		Subject:  trackingID,
		Action:   string(audit.EventVisitTracked),
		Decision: decision,
	})
}
