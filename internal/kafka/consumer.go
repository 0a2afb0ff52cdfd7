package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ms-parking/internal/logger"
	"ms-parking/internal/models"

	"github.com/segmentio/kafka-go"
)

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type EventHandler func(ctx context.Context, event models.SessionEvent) error

type Consumer struct {
	Reader     MessageReader
	Logger     *logger.Logger
	RetryDelay time.Duration
}

// NewConsumer joins groupID on every topic in topics.
func NewConsumer(brokers []string, groupID string, topics []string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		GroupTopics: topics,
		MinBytes:    10e3, // 10KB
		MaxBytes:    10e6, // 10MB
	})
	return &Consumer{Reader: reader, Logger: log, RetryDelay: time.Second}
}

// Start consumes until ctx is done. A message is committed only after handler
// accepts it; undecodable messages are committed and skipped.
func (c *Consumer) Start(ctx context.Context, handler EventHandler) error {
	c.Logger.LogKafka("CONSUME", "*", "consumer started")

	for {
		msg, err := c.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			c.Logger.Error("KAFKA", fmt.Sprintf("error reading message: %v", err))
			if !c.sleep(ctx) {
				return nil
			}
			continue
		}

		var event models.SessionEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.Logger.Warn("KAFKA", fmt.Sprintf("skipping undecodable message at %s/%d@%d: %v", msg.Topic, msg.Partition, msg.Offset, err))
			c.commit(ctx, msg)
			continue
		}

		for {
			err := handler(ctx, event)
			if err == nil {
				break
			}
			c.Logger.Error("KAFKA", fmt.Sprintf("handling %s for %s failed: %v", event.Type, event.PlateNumber, err))
			if !c.sleep(ctx) {
				return nil
			}
		}
		c.commit(ctx, msg)
	}
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.Reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
		c.Logger.Error("KAFKA", fmt.Sprintf("commit %s/%d@%d failed: %v", msg.Topic, msg.Partition, msg.Offset, err))
	}
}

func (c *Consumer) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(c.RetryDelay):
		return true
	}
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.Reader.Close()
}
