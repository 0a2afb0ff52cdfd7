package redis

import (
	"bytes"
	"context"
	"testing"
	"time"

	"ms-parking/internal/logger"
	"ms-parking/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a Redis client using miniredis for testing
func setupTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		mr.Close()
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return NewRedis(client, logger.NewTestLogger(&bytes.Buffer{})), mr
}

func TestHintLifecycle(t *testing.T) {
	r, mr := setupTestRedis(t)
	ctx := context.Background()

	has, err := r.HasHint(ctx, "B1234XYZ")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, r.SetHint(ctx, "B1234XYZ", "session-1", 24*time.Hour))

	has, err = r.HasHint(ctx, "B1234XYZ")
	require.NoError(t, err)
	assert.True(t, has)
	assert.Equal(t, 24*time.Hour, mr.TTL("active_parking:B1234XYZ"))

	id, err := r.HintSession(ctx, "B1234XYZ")
	require.NoError(t, err)
	assert.Equal(t, "session-1", id)

	require.NoError(t, r.ClearHint(ctx, "B1234XYZ"))
	has, err = r.HasHint(ctx, "B1234XYZ")
	require.NoError(t, err)
	assert.False(t, has)

	id, err = r.HintSession(ctx, "B1234XYZ")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestHintExpires(t *testing.T) {
	r, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, r.SetHint(ctx, "B1234XYZ", "session-1", time.Minute))
	mr.FastForward(2 * time.Minute)

	has, err := r.HasHint(ctx, "B1234XYZ")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestCacheUnavailableReturnsError(t *testing.T) {
	r, mr := setupTestRedis(t)
	mr.Close()

	_, err := r.HasHint(context.Background(), "B1234XYZ")
	assert.Error(t, err)
	assert.Error(t, r.SetHint(context.Background(), "B1234XYZ", "s", time.Minute))
}

func TestRecordEventBuildsDailyStats(t *testing.T) {
	r, mr := setupTestRedis(t)
	ctx := context.Background()
	at := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	events := []models.SessionEvent{
		{Type: models.EventCheckedIn, OccurredAt: at},
		{Type: models.EventCheckedIn, OccurredAt: at},
		{Type: models.EventCheckedOut, OccurredAt: at, TotalAmount: decimal.NewFromInt(15000)},
		{Type: models.EventCheckedOut, OccurredAt: at, TotalAmount: decimal.RequireFromString("4500.50")},
		{Type: models.EventCancelled, OccurredAt: at},
	}
	for _, e := range events {
		require.NoError(t, r.RecordEvent(ctx, e, time.UTC))
	}

	stats, err := r.GetDailyStats(ctx, "2026-06-01")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.CheckIns)
	assert.Equal(t, int64(2), stats.CheckOuts)
	assert.Equal(t, int64(1), stats.Cancelled)
	assert.Equal(t, "19500.50", stats.Revenue.StringFixed(2))
	assert.Equal(t, 30*24*time.Hour, mr.TTL("parking_stats:2026-06-01"))

	empty, err := r.GetDailyStats(ctx, "2026-06-02")
	require.NoError(t, err)
	assert.Zero(t, empty.CheckIns)
	assert.True(t, empty.Revenue.IsZero())

	assert.Error(t, r.RecordEvent(ctx, models.SessionEvent{Type: "PARKED"}, time.UTC))
}
