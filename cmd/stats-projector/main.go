package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"ms-parking/internal/config"
	"ms-parking/internal/kafka"
	"ms-parking/internal/logger"
	"ms-parking/internal/models"
	parkingredis "ms-parking/internal/parking/redis"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
)

// The projector folds session events into per-day Redis hashes served by
// GET /api/parking/stats/{date}.
func main() {
	logger := logger.NewLogger("stats-projector")
	defer logger.Close()

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()
	if !cfg.Kafka.Enabled {
		logger.Fatal("CONFIG", "KAFKA_ENABLED=false, nothing to project")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}

	stats := parkingredis.NewRedis(redisClient, logger)
	loc := cfg.Parking.Location()

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topics.All(), logger)
	defer consumer.Close()

	logger.Info("APP", fmt.Sprintf("Projecting %v into Redis daily stats", cfg.Kafka.Topics.All()))
	err := consumer.Start(ctx, func(ctx context.Context, event models.SessionEvent) error {
		switch event.Type {
		case models.EventCheckedIn, models.EventCheckedOut, models.EventCancelled:
		default:
			logger.Warn("KAFKA", fmt.Sprintf("ignoring unknown event type %q", event.Type))
			return nil
		}
		return stats.RecordEvent(ctx, event, loc)
	})
	if err != nil {
		logger.Error("KAFKA", fmt.Sprintf("consumer stopped: %v", err))
	}
	logger.Info("APP", "Stats projector stopped")
}
