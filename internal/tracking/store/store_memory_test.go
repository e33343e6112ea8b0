package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brpl/internal/tracking/models"
	"brpl/pkg/platform/sentinel"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := NewInMemory(time.Hour).WithClock(func() time.Time { return now })

	_, err := s.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	v := models.NewVisit("t-1", models.DeviceMobile, now)
	v.ReferralCode = "COACH42"
	require.NoError(t, s.Save(ctx, v))

	got, err := s.FindByID(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, "COACH42", got.ReferralCode)

	got.ReferralCode = "mutated"
	again, err := s.FindByID(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, "COACH42", again.ReferralCode, "callers get a copy")

	now = now.Add(time.Hour)
	_, err = s.FindByID(ctx, "t-1")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
