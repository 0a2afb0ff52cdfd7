package redis

import (
	"context"
	"fmt"
	"time"

	"ms-parking/internal/logger"

	"github.com/go-redis/redis/v8"
)

const activeKeyPrefix = "active_parking:"

// Redis holds the advisory "plate is parked" hints and the daily counters.
type Redis struct {
	Client *redis.Client
	Logger *logger.Logger
}

func NewRedis(client *redis.Client, log *logger.Logger) *Redis {
	return &Redis{Client: client, Logger: log}
}

func activeKey(plate string) string {
	return activeKeyPrefix + plate
}

// SetHint records that plate has session sessionID open, for at most ttl.
func (r *Redis) SetHint(ctx context.Context, plate, sessionID string, ttl time.Duration) error {
	if err := r.Client.Set(ctx, activeKey(plate), sessionID, ttl).Err(); err != nil {
		return fmt.Errorf("set hint %s: %w", plate, err)
	}
	r.Logger.LogCache("SET", activeKey(plate), fmt.Sprintf("session=%s ttl=%s", sessionID, ttl))
	return nil
}

func (r *Redis) HasHint(ctx context.Context, plate string) (bool, error) {
	n, err := r.Client.Exists(ctx, activeKey(plate)).Result()
	if err != nil {
		return false, fmt.Errorf("check hint %s: %w", plate, err)
	}
	return n > 0, nil
}

// HintSession returns the session id stored with the hint, or "" when absent.
func (r *Redis) HintSession(ctx context.Context, plate string) (string, error) {
	val, err := r.Client.Get(ctx, activeKey(plate)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get hint %s: %w", plate, err)
	}
	return val, nil
}

func (r *Redis) ClearHint(ctx context.Context, plate string) error {
	if err := r.Client.Del(ctx, activeKey(plate)).Err(); err != nil {
		return fmt.Errorf("clear hint %s: %w", plate, err)
	}
	r.Logger.LogCache("DEL", activeKey(plate), "hint cleared")
	return nil
}
