// Package service reads dashboard data from the league backend on behalf of
// a logged-in administrator, coach or influencer.
package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"brpl/internal/backend"
	"brpl/internal/login/models"
	dErrors "brpl/pkg/domain-errors"
	"brpl/pkg/requestcontext"
)

type Backend interface {
	AdminStats(ctx context.Context, token string) (backend.Stats, error)
	AdminRecords(ctx context.Context, token string, q backend.RecordsQuery) (backend.Records, error)
	PartnerProfile(ctx context.Context, token string) (backend.PartnerProfile, error)
	PartnerPlayers(ctx context.Context, token string, q backend.PlayersQuery) (backend.Records, error)
}

// Sessions resolves the upstream token behind a gateway session.
type Sessions interface {
	Session(ctx context.Context, sessionID string) (*models.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// Record types the backend lists.
const (
	RecordUsers       = "users"
	RecordCoaches     = "coaches"
	RecordInfluencers = "influencers"
)

var recordTypes = []string{RecordUsers, RecordCoaches, RecordInfluencers}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type Service struct {
	backend  Backend
	sessions Sessions
	logger   *slog.Logger
}

func New(be Backend, sessions Sessions, logger *slog.Logger) (*Service, error) {
	if be == nil {
		return nil, errors.New("backend is required")
	}
	if sessions == nil {
		return nil, errors.New("login sessions are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: be, sessions: sessions, logger: logger}, nil
}

// RecordsQuery is a raw page request; Normalize fills defaults.
type RecordsQuery struct {
	Type   string
	Page   int
	Limit  int
	Search string
}

// Normalize applies defaults and bounds. Unknown types are rejected.
func (q RecordsQuery) Normalize() (backend.RecordsQuery, error) {
	out := backend.RecordsQuery{
		Type:   strings.ToLower(strings.TrimSpace(q.Type)),
		Page:   q.Page,
		Limit:  q.Limit,
		Search: strings.TrimSpace(q.Search),
	}
	if out.Type == "" {
		out.Type = RecordUsers
	}
	if !slices.Contains(recordTypes, out.Type) {
		return backend.RecordsQuery{}, dErrors.New(dErrors.CodeValidation, "type must be users, coaches or influencers")
	}
	if out.Page < 1 {
		out.Page = 1
	}
	if out.Limit < 1 {
		out.Limit = DefaultPageSize
	}
	out.Limit = min(out.Limit, MaxPageSize)
	return out, nil
}

// PlayersQuery is a raw page request for a partner's players.
type PlayersQuery struct {
	Page   int
	Limit  int
	Search string
}

func (q PlayersQuery) Normalize() backend.PlayersQuery {
	out := backend.PlayersQuery{Page: q.Page, Limit: q.Limit, Search: strings.TrimSpace(q.Search)}
	if out.Page < 1 {
		out.Page = 1
	}
	if out.Limit < 1 {
		out.Limit = DefaultPageSize
	}
	out.Limit = min(out.Limit, MaxPageSize)
	return out
}

// PartnerOverview is the head of a coach or influencer dashboard.
// TotalPlayers is a coach's registered players or an influencer's referrals.
type PartnerOverview struct {
	Role         string                 `json:"role"`
	Profile      backend.PartnerProfile `json:"profile"`
	TotalPlayers int64                  `json:"total_players"`
}

// Stats returns the headline counters.
func (s *Service) Stats(ctx context.Context, sessionID string) (backend.Stats, error) {
	session, err := s.adminSession(ctx, sessionID)
	if err != nil {
		return backend.Stats{}, err
	}
	stats, err := s.backend.AdminStats(ctx, session.UpstreamToken)
	if err != nil {
		return backend.Stats{}, s.upstreamFailure(ctx, sessionID, err)
	}
	return stats, nil
}

// Records returns one page of users, coaches or influencers.
func (s *Service) Records(ctx context.Context, sessionID string, q RecordsQuery) (backend.Records, error) {
	query, err := q.Normalize()
	if err != nil {
		return backend.Records{}, err
	}
	session, err := s.adminSession(ctx, sessionID)
	if err != nil {
		return backend.Records{}, err
	}
	records, err := s.backend.AdminRecords(ctx, session.UpstreamToken, query)
	if err != nil {
		return backend.Records{}, s.upstreamFailure(ctx, sessionID, err)
	}
	return records, nil
}

// Overview returns the partner's profile and player count.
func (s *Service) Overview(ctx context.Context, sessionID string) (PartnerOverview, error) {
	session, err := s.partnerSession(ctx, sessionID)
	if err != nil {
		return PartnerOverview{}, err
	}
	profile, err := s.backend.PartnerProfile(ctx, session.UpstreamToken)
	if err != nil {
		return PartnerOverview{}, s.upstreamFailure(ctx, sessionID, err)
	}
	out := PartnerOverview{Role: session.Role, Profile: profile, TotalPlayers: int64(profile.NumberOfPlayers)}

	switch session.Role {
	case models.RoleCoach:
		if out.Profile.Name == "" {
			out.Profile.Name = "Coach"
		}
	case models.RoleInfluencer:
		if out.Profile.Name == "" {
			out.Profile.Name = "Influencer"
		}
		// Referral totals only come with the player listing.
		page, err := s.backend.PartnerPlayers(ctx, session.UpstreamToken, backend.PlayersQuery{Page: 1, Limit: 1})
		if err != nil {
			return PartnerOverview{}, s.upstreamFailure(ctx, sessionID, err)
		}
		if page.Pagination != nil {
			out.TotalPlayers = int64(page.Pagination.Total)
		}
	}
	return out, nil
}

// Players returns one page of the partner's players.
func (s *Service) Players(ctx context.Context, sessionID string, q PlayersQuery) (backend.Records, error) {
	session, err := s.partnerSession(ctx, sessionID)
	if err != nil {
		return backend.Records{}, err
	}
	players, err := s.backend.PartnerPlayers(ctx, session.UpstreamToken, q.Normalize())
	if err != nil {
		return backend.Records{}, s.upstreamFailure(ctx, sessionID, err)
	}
	return players, nil
}

// partnerSession only accepts coach and influencer sessions opened through
// the partner portal.
func (s *Service) partnerSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.sessions.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Portal != models.PortalPartner {
		return nil, dErrors.New(dErrors.CodeForbidden, "partner session required")
	}
	if session.Role != models.RoleCoach && session.Role != models.RoleInfluencer {
		return nil, dErrors.New(dErrors.CodeForbidden, "coach or influencer account required")
	}
	return session, nil
}

// adminSession only accepts sessions opened through the admin portal, so a
// partner account reporting an admin role cannot reach the dashboard.
func (s *Service) adminSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.sessions.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Portal != models.PortalAdmin {
		return nil, dErrors.New(dErrors.CodeForbidden, "admin session required")
	}
	return session, nil
}

// upstreamFailure ends the gateway session when the backend refuses its
// token; the dashboard then sends the user back to login.
func (s *Service) upstreamFailure(ctx context.Context, sessionID string, err error) error {
	if backend.GetCategory(err) == backend.ErrorUnauthorized {
		if lerr := s.sessions.Logout(ctx, sessionID); lerr != nil {
			s.logger.WarnContext(ctx, "failed to end rejected dashboard session", "error", lerr)
		}
		s.logger.InfoContext(ctx, "dashboard token refused upstream",
			"session_id", sessionID,
			"request_id", requestcontext.RequestID(ctx),
		)
		return dErrors.Wrap(err, dErrors.CodeUnauthorized, "session expired, please log in again")
	}
	s.logger.ErrorContext(ctx, "dashboard backend call failed",
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	if backend.GetCategory(err) == backend.ErrorRejected {
		return dErrors.Wrap(err, dErrors.CodeRejected, "dashboard request was rejected")
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, "Failed to connect to server.")
}
