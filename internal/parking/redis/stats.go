package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"ms-parking/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

const (
	statsKeyPrefix = "parking_stats:"
	statsRetention = 30 * 24 * time.Hour
)

// DailyStats is the per-day counter hash maintained from session events.
type DailyStats struct {
	Date      string          `json:"date"`
	CheckIns  int64           `json:"check_ins"`
	CheckOuts int64           `json:"check_outs"`
	Cancelled int64           `json:"cancelled"`
	Revenue   decimal.Decimal `json:"revenue"`
}

func statsKey(date string) string {
	return statsKeyPrefix + date
}

// RecordEvent folds one session event into its day's hash. The day is taken
// from OccurredAt in loc.
func (r *Redis) RecordEvent(ctx context.Context, event models.SessionEvent, loc *time.Location) error {
	date := event.OccurredAt.In(loc).Format("2006-01-02")
	key := statsKey(date)

	pipe := r.Client.TxPipeline()
	switch event.Type {
	case models.EventCheckedIn:
		pipe.HIncrBy(ctx, key, "check_ins", 1)
	case models.EventCheckedOut:
		pipe.HIncrBy(ctx, key, "check_outs", 1)
		pipe.HIncrByFloat(ctx, key, "revenue", event.TotalAmount.InexactFloat64())
	case models.EventCancelled:
		pipe.HIncrBy(ctx, key, "cancelled", 1)
	default:
		return fmt.Errorf("unknown session event type %q", event.Type)
	}
	pipe.Expire(ctx, key, statsRetention)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record %s stats for %s: %w", event.Type, date, err)
	}
	r.Logger.LogCache("HINCR", key, event.Type)
	return nil
}

func (r *Redis) GetDailyStats(ctx context.Context, date string) (*DailyStats, error) {
	fields, err := r.Client.HGetAll(ctx, statsKey(date)).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("read stats for %s: %w", date, err)
	}

	stats := &DailyStats{Date: date, Revenue: decimal.Zero}
	stats.CheckIns, _ = strconv.ParseInt(fields["check_ins"], 10, 64)
	stats.CheckOuts, _ = strconv.ParseInt(fields["check_outs"], 10, 64)
	stats.Cancelled, _ = strconv.ParseInt(fields["cancelled"], 10, 64)
	if raw, ok := fields["revenue"]; ok {
		if rev, err := decimal.NewFromString(raw); err == nil {
			stats.Revenue = rev.Round(2)
		}
	}
	return stats, nil
}
