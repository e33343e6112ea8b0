// Package store persists login sessions keyed by session ID.
package store

import (
	"context"
	"sync"
	"time"

	"brpl/internal/login/models"
	"brpl/pkg/platform/sentinel"
)

// InMemoryStore is used when Redis is not configured. Sessions do not
// survive a restart.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	now      func() time.Time
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*models.Session), now: time.Now}
}

// WithClock overrides the time source (tests).
func (s *InMemoryStore) WithClock(now func() time.Time) *InMemoryStore {
	s.now = now
	return s
}

func (s *InMemoryStore) Save(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

// FindByID returns sentinel.ErrNotFound for unknown sessions and
// sentinel.ErrExpired for sessions past ExpiresAt.
func (s *InMemoryStore) FindByID(_ context.Context, sessionID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if session.IsExpired(s.now()) {
		return nil, sentinel.ErrExpired
	}
	cp := *session
	return &cp, nil
}

func (s *InMemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

// DeleteExpired drops sessions past ExpiresAt and reports how many went.
func (s *InMemoryStore) DeleteExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for key, session := range s.sessions {
		if session.IsExpired(now) {
			delete(s.sessions, key)
			n++
		}
	}
	return n, nil
}
