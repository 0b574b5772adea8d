package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vodeneev/ttmonitor/internal/pkg/models"
)

// Runs against a real server only when TEST_REDIS_ADDR is set.
func TestRedisTransport(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	tr, err := NewRedisTransport(addr, "", 15)
	require.NoError(t, err)
	defer tr.Close()
	require.NoError(t, tr.client.FlushDB(ctx).Err())

	clock := newFakeClock()
	s := NewMatchStore(tr, WithClock(clock.Now))

	s.Merge(ctx, []models.Match{upcomingMatch("u1"), liveMatch("l1", "-120", "11-4")})
	clock.Advance(48 * time.Hour)
	live := upcomingMatch("u1")
	live.Status = models.StatusLive
	s.Merge(ctx, []models.Match{live})

	recs, err := s.ByStatus(ctx, models.StatusLive)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = s.ByStatus(ctx, models.StatusUpcoming)
	require.NoError(t, err)
	assert.Empty(t, recs)

	n, err := s.DeleteOlderThan(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.Get(ctx, "l1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFilterMatch(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rec := &models.MatchRecord{Status: models.StatusLive, LastUpdated: models.At(t0)}

	assert.True(t, Filter{}.Match(rec))
	assert.True(t, Filter{Status: models.StatusLive}.Match(rec))
	assert.False(t, Filter{Status: models.StatusUpcoming}.Match(rec))
	assert.True(t, Filter{UpdatedAfter: t0}.Match(rec))
	assert.False(t, Filter{UpdatedAfter: t0.Add(time.Second)}.Match(rec))
	assert.False(t, Filter{UpdatedBefore: t0}.Match(rec))
	assert.True(t, Filter{UpdatedBefore: t0.Add(time.Second)}.Match(rec))
}
