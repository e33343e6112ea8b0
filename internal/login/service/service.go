// Package service exchanges partner and admin credentials with the league
// backend for gateway session tokens.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"brpl/internal/backend"
	"brpl/internal/login/models"
	"brpl/internal/notify"
	"brpl/internal/platform/metrics"
	dErrors "brpl/pkg/domain-errors"
	audit "brpl/pkg/platform/audit"
	"brpl/pkg/platform/sentinel"
	"brpl/pkg/privacy"
	"brpl/pkg/requestcontext"
)

type Backend interface {
	PartnerLogin(ctx context.Context, email, password string) (backend.PartnerSession, error)
	AdminLogin(ctx context.Context, email, password string) (string, error)
}

// TokenIssuer signs the session token handed to the browser.
type TokenIssuer interface {
	GenerateSessionToken(userID, sessionID, name, role string, expiresIn time.Duration) (string, error)
}

// Store keeps login sessions. FindByID returns sentinel.ErrNotFound or
// sentinel.ErrExpired.
type Store interface {
	Save(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, sessionID string) (*models.Session, error)
	Delete(ctx context.Context, sessionID string) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

const DefaultSessionTTL = 24 * time.Hour

type Service struct {
	backend        Backend
	tokens         TokenIssuer
	store          Store
	sessionTTL     time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
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

func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

func New(be Backend, tokens TokenIssuer, store Store, opts ...Option) (*Service, error) {
	if be == nil {
		return nil, errors.New("backend is required")
	}
	if tokens == nil {
		return nil, errors.New("token issuer is required")
	}
	if store == nil {
		return nil, errors.New("login session store is required")
	}
	s := &Service{
		backend:    be,
		tokens:     tokens,
		store:      store,
		sessionTTL: DefaultSessionTTL,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Credentials are the email and password typed into a login form.
type Credentials struct {
	Email    string
	Password string
}

// Result is a successful login.
type Result struct {
	Token     string          `json:"token"`
	Role      string          `json:"role"`
	Name      string          `json:"name,omitempty"`
	Redirect  string          `json:"redirect"`
	ExpiresAt time.Time       `json:"expires_at"`
	Notices   []notify.Notice `json:"notices"`
}

// PartnerLogin signs in a coach or influencer.
func (s *Service) PartnerLogin(ctx context.Context, creds Credentials) (*Result, error) {
	if err := creds.validate(); err != nil {
		return nil, s.failed(ctx, models.PortalPartner, creds.Email, err)
	}
	upstream, err := s.backend.PartnerLogin(ctx, creds.Email, creds.Password)
	if err != nil {
		return nil, s.failed(ctx, models.PortalPartner, creds.Email, partnerFailure(err))
	}

	res, err := s.open(ctx, models.PortalPartner, upstream.User.ID, upstream.User.Name, upstream.User.Role, upstream.Token)
	if err != nil {
		return nil, s.failed(ctx, models.PortalPartner, creds.Email, err)
	}
	res.Notices = []notify.Notice{
		notify.Info("Login Successful", fmt.Sprintf("Welcome back, %s!", upstream.User.Name)),
	}
	return res, nil
}

// AdminLogin signs in an administrator. The backend returns only a token,
// so the session's user ID is the masked email.
func (s *Service) AdminLogin(ctx context.Context, creds Credentials) (*Result, error) {
	if err := creds.validate(); err != nil {
		return nil, s.failed(ctx, models.PortalAdmin, creds.Email, err)
	}
	token, err := s.backend.AdminLogin(ctx, creds.Email, creds.Password)
	if err != nil {
		return nil, s.failed(ctx, models.PortalAdmin, creds.Email, adminFailure(err))
	}

	userID := privacy.MaskEmail(strings.ToLower(strings.TrimSpace(creds.Email)))
	res, err := s.open(ctx, models.PortalAdmin, userID, "", models.RoleAdmin, token)
	if err != nil {
		return nil, s.failed(ctx, models.PortalAdmin, creds.Email, err)
	}
	res.Notices = []notify.Notice{
		notify.Info("Admin Access Granted", "Welcome to the control center."),
	}
	return res, nil
}

// open stores the upstream token and signs a gateway token pointing at it.
func (s *Service) open(ctx context.Context, portal models.Portal, userID, name, role, upstreamToken string) (*Result, error) {
	now := requestcontext.Now(ctx)
	session := &models.Session{
		ID:            uuid.NewString(),
		Portal:        portal,
		UserID:        userID,
		Name:          name,
		Role:          strings.ToLower(strings.TrimSpace(role)),
		UpstreamToken: upstreamToken,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.sessionTTL),
	}
	if err := s.store.Save(ctx, session); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save login session")
	}
	token, err := s.tokens.GenerateSessionToken(session.UserID, session.ID, session.Name, session.Role, s.sessionTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign session token")
	}

	s.metrics.IncrementLoginAttempt(string(portal), "ok")
	s.emit(ctx, audit.EventLoginSucceeded, session.UserID, string(portal), "")
	s.logger.InfoContext(ctx, "login succeeded",
		"portal", string(portal),
		"role", session.Role,
		"session_id", session.ID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return &Result{
		Token:     token,
		Role:      session.Role,
		Name:      session.Name,
		Redirect:  models.RedirectFor(session.Role),
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// Session resolves a live login session for an authenticated request.
func (s *Service) Session(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.store.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "session expired, please log in again")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load login session")
	}
	return session, nil
}

// Logout drops the session. Logging out twice is not an error.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if err := s.store.Delete(ctx, sessionID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to end login session")
	}
	return nil
}

func (c Credentials) validate() error {
	if strings.TrimSpace(c.Email) == "" || c.Password == "" {
		return &Failure{
			Notice: notify.Error("Login Failed", "Email and password are required."),
			err:    dErrors.New(dErrors.CodeValidation, "Email and password are required."),
		}
	}
	return nil
}

// failed records a failed attempt. The email is masked before it reaches
// logs or audit.
func (s *Service) failed(ctx context.Context, portal models.Portal, email string, err error) error {
	masked := privacy.MaskEmail(strings.TrimSpace(email))
	code := dErrors.CodeOf(err)
	s.metrics.IncrementLoginAttempt(string(portal), string(code))
	s.emit(ctx, audit.EventLoginFailed, masked, string(portal), string(code))
	s.logger.WarnContext(ctx, "login failed",
		"portal", string(portal),
		"email", masked,
		"code", string(code),
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	return err
}

func (s *Service) emit(ctx context.Context, event audit.AuditEvent, subject, portal, reason string) {
	if s.auditPublisher == nil {
		return
	}
	decision := "ok"
	if event == audit.EventLoginFailed {
		decision = "denied"
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Subject:  subject,
		Action:   string(event),
		Decision: decision,
		Reason:   strings.TrimSpace(portal + " " + reason),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "event", string(event), "error", err)
	}
}
