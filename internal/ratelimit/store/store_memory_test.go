package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"brpl/internal/ratelimit/models"
)

var testLimit = models.Limit{Requests: 3, Window: time.Minute}

type InMemoryBucketStoreSuite struct {
	suite.Suite
	now   time.Time
	store *InMemoryBucketStore
	ctx   context.Context
}

func TestInMemoryBucketStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryBucketStoreSuite))
}

func (s *InMemoryBucketStoreSuite) SetupTest() {
	s.now = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	s.store = NewInMemoryBucketStore().WithClock(func() time.Time { return s.now })
	s.ctx = context.Background()
}

func (s *InMemoryBucketStoreSuite) TestAllow() {
	s.Run("requests up to limit allowed", func() {
		for i := range testLimit.Requests {
			res, err := s.store.Allow(s.ctx, "otp:1.1.1.1", testLimit)
			s.Require().NoError(err)
			s.True(res.Allowed)
			s.Equal(testLimit.Requests-i-1, res.Remaining)
		}
	})

	s.Run("request over limit denied with retry hint", func() {
		s.now = s.now.Add(20 * time.Second)
		res, err := s.store.Allow(s.ctx, "otp:1.1.1.1", testLimit)
		s.Require().NoError(err)
		s.False(res.Allowed)
		s.Equal(0, res.Remaining)
		s.Equal(40, res.RetryAfter)
	})

	s.Run("keys are independent", func() {
		res, err := s.store.Allow(s.ctx, "otp:2.2.2.2", testLimit)
		s.Require().NoError(err)
		s.True(res.Allowed)
	})

	s.Run("window slides", func() {
		s.now = s.now.Add(41 * time.Second)
		res, err := s.store.Allow(s.ctx, "otp:1.1.1.1", testLimit)
		s.Require().NoError(err)
		s.True(res.Allowed)
	})
}

func (s *InMemoryBucketStoreSuite) TestResetAndSweep() {
	for range testLimit.Requests {
		_, _ = s.store.Allow(s.ctx, "login:ip", testLimit)
	}
	s.Require().NoError(s.store.Reset(s.ctx, "login:ip"))
	res, err := s.store.Allow(s.ctx, "login:ip", testLimit)
	s.Require().NoError(err)
	s.True(res.Allowed)

	s.now = s.now.Add(2 * time.Minute)
	s.Equal(1, s.store.Sweep(time.Minute))
}

func (s *InMemoryBucketStoreSuite) TestConcurrentCallersNeverExceedLimit() {
	limit := models.Limit{Requests: 50, Window: time.Minute}
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.store.Allow(s.ctx, "wizard:ip", limit)
			if err == nil && res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.Equal(50, allowed)
}
