package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"brpl/internal/backend"
	"brpl/internal/login/models"
	dErrors "brpl/pkg/domain-errors"
	"brpl/pkg/platform/sentinel"
)

type fakeSessions struct {
	sessions  map[string]*models.Session
	loggedOut []string
}

func (f *fakeSessions) Session(_ context.Context, id string) (*models.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "session expired, please log in again")
	}
	return s, nil
}

func (f *fakeSessions) Logout(_ context.Context, id string) error {
	if _, ok := f.sessions[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(f.sessions, id)
	f.loggedOut = append(f.loggedOut, id)
	return nil
}

type fakeBackend struct {
	token        string
	query        backend.RecordsQuery
	playersQuery backend.PlayersQuery
	profile      backend.PartnerProfile
	err          error
}

func (f *fakeBackend) AdminStats(_ context.Context, token string) (backend.Stats, error) {
	f.token = token
	if f.err != nil {
		return backend.Stats{}, f.err
	}
	return backend.Stats{TotalUsers: 120, TotalCoaches: 7, TotalInfluencers: 3}, nil
}

func (f *fakeBackend) AdminRecords(_ context.Context, token string, q backend.RecordsQuery) (backend.Records, error) {
	f.token = token
	f.query = q
	if f.err != nil {
		return backend.Records{}, f.err
	}
	return backend.Records{
		Items:      []json.RawMessage{json.RawMessage(`{"_id":"1"}`)},
		Pagination: &backend.Pagination{Page: q.Page, Limit: q.Limit, Total: 1, Pages: 1},
	}, nil
}

func (f *fakeBackend) PartnerProfile(_ context.Context, token string) (backend.PartnerProfile, error) {
	f.token = token
	if f.err != nil {
		return backend.PartnerProfile{}, f.err
	}
	return f.profile, nil
}

func (f *fakeBackend) PartnerPlayers(_ context.Context, token string, q backend.PlayersQuery) (backend.Records, error) {
	f.token = token
	f.playersQuery = q
	if f.err != nil {
		return backend.Records{}, f.err
	}
	return backend.Records{
		Items:      []json.RawMessage{json.RawMessage(`{"name":"Arjun"}`)},
		Pagination: &backend.Pagination{Page: q.Page, Limit: q.Limit, Total: 42, Pages: 42},
	}, nil
}

type DashboardSuite struct {
	suite.Suite
	backend  *fakeBackend
	sessions *fakeSessions
	service  *Service
	ctx      context.Context
}

func TestDashboardSuite(t *testing.T) {
	suite.Run(t, new(DashboardSuite))
}

func (s *DashboardSuite) SetupTest() {
	now := time.Now()
	s.backend = &fakeBackend{}
	s.sessions = &fakeSessions{sessions: map[string]*models.Session{
		"admin-1":   {ID: "admin-1", Portal: models.PortalAdmin, Role: models.RoleAdmin, UpstreamToken: "up-admin", ExpiresAt: now.Add(time.Hour)},
		"partner-1": {ID: "partner-1", Portal: models.PortalPartner, Role: models.RoleAdmin, UpstreamToken: "up-partner", ExpiresAt: now.Add(time.Hour)},
		"coach-1":   {ID: "coach-1", Portal: models.PortalPartner, Role: models.RoleCoach, UpstreamToken: "up-coach", ExpiresAt: now.Add(time.Hour)},
		"inf-1":     {ID: "inf-1", Portal: models.PortalPartner, Role: models.RoleInfluencer, UpstreamToken: "up-inf", ExpiresAt: now.Add(time.Hour)},
	}}
	var err error
	s.service, err = New(s.backend, s.sessions, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Require().NoError(err)
	s.ctx = context.Background()
}

func (s *DashboardSuite) TestStatsUsesUpstreamToken() {
	stats, err := s.service.Stats(s.ctx, "admin-1")
	s.Require().NoError(err)
	s.Equal(int64(120), stats.TotalUsers)
	s.Equal("up-admin", s.backend.token)
}

func (s *DashboardSuite) TestPartnerSessionIsForbidden() {
	_, err := s.service.Stats(s.ctx, "partner-1")
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Empty(s.backend.token)
}

func (s *DashboardSuite) TestRefusedTokenEndsSession() {
	s.backend.err = &backend.Error{Category: backend.ErrorUnauthorized, Status: http.StatusForbidden}

	_, err := s.service.Stats(s.ctx, "admin-1")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	s.Equal([]string{"admin-1"}, s.sessions.loggedOut)

	_, err = s.service.Stats(s.ctx, "admin-1")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *DashboardSuite) TestTransportFailure() {
	s.backend.err = &backend.Error{Category: backend.ErrorTransport, Underlying: errors.New("dial tcp")}
	_, err := s.service.Records(s.ctx, "admin-1", RecordsQuery{})
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.Empty(s.sessions.loggedOut)
}

func (s *DashboardSuite) TestRecordsQueryDefaults() {
	records, err := s.service.Records(s.ctx, "admin-1", RecordsQuery{Type: " Coaches ", Page: 0, Limit: 500, Search: "  ravi "})
	s.Require().NoError(err)
	s.Len(records.Items, 1)
	s.Equal(backend.RecordsQuery{Type: "coaches", Page: 1, Limit: MaxPageSize, Search: "ravi"}, s.backend.query)

	_, err = s.service.Records(s.ctx, "admin-1", RecordsQuery{})
	s.Require().NoError(err)
	s.Equal(RecordUsers, s.backend.query.Type)
	s.Equal(DefaultPageSize, s.backend.query.Limit)

	_, err = s.service.Records(s.ctx, "admin-1", RecordsQuery{Type: "players"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *DashboardSuite) TestCoachOverview() {
	s.backend.profile = backend.PartnerProfile{Email: "c@example.com", NumberOfPlayers: 12}

	overview, err := s.service.Overview(s.ctx, "coach-1")
	s.Require().NoError(err)
	s.Equal(models.RoleCoach, overview.Role)
	s.Equal("Coach", overview.Profile.Name, "missing name falls back to the role")
	s.Equal(int64(12), overview.TotalPlayers)
	s.Equal("up-coach", s.backend.token)
}

func (s *DashboardSuite) TestInfluencerOverviewCountsReferrals() {
	s.backend.profile = backend.PartnerProfile{Name: "Asha", ReferralCode: "ASHA10"}

	overview, err := s.service.Overview(s.ctx, "inf-1")
	s.Require().NoError(err)
	s.Equal("Asha", overview.Profile.Name)
	s.Equal("ASHA10", overview.Profile.ReferralCode)
	s.Equal(int64(42), overview.TotalPlayers)
	s.Equal(backend.PlayersQuery{Page: 1, Limit: 1}, s.backend.playersQuery)
}

func (s *DashboardSuite) TestPartnerRoutesRejectOtherSessions() {
	_, err := s.service.Overview(s.ctx, "admin-1")
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.service.Players(s.ctx, "partner-1", PlayersQuery{})
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden), "partner portal with a non-partner role")

	_, err = s.service.Players(s.ctx, "unknown", PlayersQuery{})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	s.Empty(s.backend.token)
}

func (s *DashboardSuite) TestPlayersQueryDefaults() {
	players, err := s.service.Players(s.ctx, "coach-1", PlayersQuery{Page: -1, Limit: 1000, Search: " arjun "})
	s.Require().NoError(err)
	s.Len(players.Items, 1)
	s.Equal(backend.PlayersQuery{Page: 1, Limit: MaxPageSize, Search: "arjun"}, s.backend.playersQuery)
}

func (s *DashboardSuite) TestRefusedPartnerTokenEndsSession() {
	s.backend.err = &backend.Error{Category: backend.ErrorUnauthorized, Status: http.StatusUnauthorized}

	_, err := s.service.Players(s.ctx, "coach-1", PlayersQuery{})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	s.Equal([]string{"coach-1"}, s.sessions.loggedOut)
}
