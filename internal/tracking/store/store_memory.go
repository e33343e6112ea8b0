// Package store keeps visitor attribution keyed by tracking ID.
package store

import (
	"context"
	"sync"
	"time"

	"brpl/internal/tracking/models"
	"brpl/pkg/platform/sentinel"
)

type memoryEntry struct {
	visit     models.Visit
	expiresAt time.Time
}

// InMemoryStore is the single-instance fallback when Redis is not configured.
type InMemoryStore struct {
	mu     sync.RWMutex
	visits map[string]memoryEntry
	ttl    time.Duration
	now    func() time.Time
}

func NewInMemory(ttl time.Duration) *InMemoryStore {
	return &InMemoryStore{visits: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

// WithClock overrides the time source (tests).
func (s *InMemoryStore) WithClock(now func() time.Time) *InMemoryStore {
	s.now = now
	return s
}

func (s *InMemoryStore) Save(_ context.Context, v *models.Visit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visits[v.TrackingID] = memoryEntry{visit: *v, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, trackingID string) (*models.Visit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.visits[trackingID]
	if !ok || !s.now().Before(e.expiresAt) {
		return nil, sentinel.ErrNotFound
	}
	v := e.visit
	return &v, nil
}
