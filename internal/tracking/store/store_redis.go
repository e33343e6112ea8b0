package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"brpl/internal/tracking/models"
	"brpl/pkg/platform/sentinel"
)

const keyPrefix = "brpl:visit:"

// RedisStore shares visitor attribution across gateway instances. Entries
// expire after ttl of inactivity.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func visitKey(trackingID string) string {
	return keyPrefix + trackingID
}

func (s *RedisStore) Save(ctx context.Context, v *models.Visit) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal visit: %w", err)
	}
	if err := s.client.Set(ctx, visitKey(v.TrackingID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save visit: %w", err)
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, trackingID string) (*models.Visit, error) {
	data, err := s.client.Get(ctx, visitKey(trackingID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find visit: %w", err)
	}
	var v models.Visit
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("unmarshal visit: %w", err)
	}
	return &v, nil
}
