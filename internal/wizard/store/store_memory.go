// Package store keeps live wizard sessions in process memory. Sessions are
// never persisted; an idle session expires after the configured TTL.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	id "brpl/pkg/domain"
	"brpl/pkg/platform/sentinel"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// InMemoryStore is a sliding-TTL map of session ID to value. Every Get
// extends the entry's lifetime.
type InMemoryStore[V any] struct {
	mu      sync.Mutex
	entries map[id.SessionID]*entry[V]
	ttl     time.Duration
	now     func() time.Time
	onEvict func(n int)
}

type Option func(*config)

type config struct {
	now     func() time.Time
	onEvict func(n int)
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// WithEvictHook is called with the number of entries removed by expiry or
// Delete.
func WithEvictHook(fn func(n int)) Option {
	return func(c *config) {
		c.onEvict = fn
	}
}

func New[V any](ttl time.Duration, opts ...Option) (*InMemoryStore[V], error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("ttl must be positive: %w", sentinel.ErrInvalidState)
	}
	cfg := config{now: time.Now, onEvict: func(int) {}}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &InMemoryStore[V]{
		entries: make(map[id.SessionID]*entry[V]),
		ttl:     ttl,
		now:     cfg.now,
		onEvict: cfg.onEvict,
	}, nil
}

func (s *InMemoryStore[V]) Save(_ context.Context, key id.SessionID, value V) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &entry[V]{value: value, expiresAt: s.now().Add(s.ttl)}
	return nil
}

// FindByID returns the live value for key and refreshes its TTL.
func (s *InMemoryStore[V]) FindByID(_ context.Context, key id.SessionID) (V, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero V
	e, ok := s.entries[key]
	if !ok {
		return zero, sentinel.ErrNotFound
	}
	now := s.now()
	if !now.Before(e.expiresAt) {
		delete(s.entries, key)
		s.onEvict(1)
		return zero, sentinel.ErrExpired
	}
	e.expiresAt = now.Add(s.ttl)
	return e.value, nil
}

// ExpiresAt reports when key will expire if left idle.
func (s *InMemoryStore[V]) ExpiresAt(key id.SessionID) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return time.Time{}, false
	}
	return e.expiresAt, true
}

func (s *InMemoryStore[V]) Delete(_ context.Context, key id.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.entries, key)
	s.onEvict(1)
	return nil
}

func (s *InMemoryStore[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep removes expired entries and returns how many were removed.
func (s *InMemoryStore[V]) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
			removed++
		}
	}
	if removed > 0 {
		s.onEvict(removed)
	}
	return removed
}

// RunSweeper sweeps every interval until ctx is done.
func (s *InMemoryStore[V]) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
