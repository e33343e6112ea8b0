package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"brpl/internal/backend"
	"brpl/internal/tracking/store"
	id "brpl/pkg/domain"
	auditmemory "brpl/pkg/platform/audit/store/memory"
	auditpublisher "brpl/pkg/platform/audit/publisher"
)

type recordingBackend struct {
	mu     sync.Mutex
	visits []backend.Visit
	err    error
}

func (b *recordingBackend) TrackVisit(_ context.Context, v backend.Visit) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.visits = append(b.visits, v)
	return b.err
}

func (b *recordingBackend) sent() []backend.Visit {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]backend.Visit(nil), b.visits...)
}

type TrackingSuite struct {
	suite.Suite
	backend    *recordingBackend
	auditStore *auditmemory.InMemoryStore
	service    *Service
	ctx        context.Context
}

func TestTrackingSuite(t *testing.T) {
	suite.Run(t, new(TrackingSuite))
}

func (s *TrackingSuite) SetupTest() {
	s.backend = &recordingBackend{}
	s.auditStore = auditmemory.NewInMemoryStore()
	s.ctx = context.Background()
	var err error
	s.service, err = New(store.NewInMemory(time.Hour), s.backend,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(auditpublisher.NewPublisher(s.auditStore)),
	)
	s.Require().NoError(err)
}

func (s *TrackingSuite) wait() {
	ctx, cancel := context.WithTimeout(s.ctx, 2*time.Second)
	defer cancel()
	s.Require().NoError(s.service.Wait(ctx))
}

func (s *TrackingSuite) TestNewVisitorGetsTrackingID() {
	res, err := s.service.Track(s.ctx, TrackRequest{})
	s.Require().NoError(err)

	_, err = id.ParseTrackingID(res.TrackingID)
	s.NoError(err)
	s.Empty(res.ReferralCode)
	s.Empty(res.Notices)

	s.wait()
	s.Equal([]backend.Visit{{TrackingID: res.TrackingID}}, s.backend.sent())
}

func (s *TrackingSuite) TestMalformedCookieIsReplaced() {
	res, err := s.service.Track(s.ctx, TrackRequest{TrackingID: "<script>"})
	s.Require().NoError(err)
	s.NotEqual("<script>", res.TrackingID)
}

func (s *TrackingSuite) TestReferralIsRememberedAcrossVisits() {
	first, err := s.service.Track(s.ctx, TrackRequest{Ref: "COACH42", FBCLID: "fb.1"})
	s.Require().NoError(err)
	s.Equal("COACH42", first.ReferralCode)
	s.Require().Len(first.Notices, 1)
	s.Equal("Referral Applied", first.Notices[0].Title)
	s.Equal("Referral code COACH42 has been applied!", first.Notices[0].Description)

	second, err := s.service.Track(s.ctx, TrackRequest{TrackingID: first.TrackingID})
	s.Require().NoError(err)
	s.Equal(first.TrackingID, second.TrackingID)
	s.Equal("COACH42", second.ReferralCode)
	s.Empty(second.Notices)

	code, err := s.service.ReferralCode(s.ctx, first.TrackingID)
	s.Require().NoError(err)
	s.Equal("COACH42", code)

	s.wait()
	sent := s.backend.sent()
	s.Require().Len(sent, 2)
	s.Equal("COACH42", sent[0].ReferralCode)
	s.Equal("fb.1", sent[0].FBCLID)
	s.Empty(sent[1].ReferralCode, "only the visit's own parameters are forwarded")

	events, err := s.auditStore.ListBySubject(s.ctx, first.TrackingID)
	s.Require().NoError(err)
	s.Len(events, 2)
	s.Equal("referred", events[0].Decision)
}

func (s *TrackingSuite) TestUnknownVisitorHasNoReferral() {
	code, err := s.service.ReferralCode(s.ctx, "unknown")
	s.NoError(err)
	s.Empty(code)
}

func (s *TrackingSuite) TestBackendFailureIsSwallowed() {
	s.backend.err = errors.New("connection refused")
	res, err := s.service.Track(s.ctx, TrackRequest{Ref: "X"})
	s.Require().NoError(err)
	s.NotEmpty(res.TrackingID)
	s.wait()
}

func (s *TrackingSuite) TestForwardOutlivesRequestContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	_, err := s.service.Track(ctx, TrackRequest{})
	s.Require().NoError(err)
	cancel()
	s.wait()
	s.Len(s.backend.sent(), 1)
}
