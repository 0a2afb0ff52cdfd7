package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-parking/internal/logger"
	"ms-parking/internal/models"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	Writer  MessageWriter
	Logger  *logger.Logger
	Timeout time.Duration
}

// NewProducer builds a writer without a fixed topic; every session event
// names its own.
func NewProducer(brokers []string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
	return &Producer{Writer: writer, Logger: log, Timeout: 3 * time.Second}
}

// PublishSessionEvent streams a lifecycle event keyed by plate, so one
// vehicle's events stay ordered within a partition.
func (p *Producer) PublishSessionEvent(ctx context.Context, topic string, event models.SessionEvent) error {
	if p == nil || p.Writer == nil {
		return nil
	}
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(event.PlateNumber),
		Value: msgBytes,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("write %s to %s: %w", event.Type, topic, err)
	}
	p.Logger.LogKafka("PUBLISH", topic, fmt.Sprintf("%s %s", event.Type, event.PlateNumber))
	return nil
}

func (p *Producer) Close() error {
	if p == nil || p.Writer == nil {
		return nil
	}
	return p.Writer.Close()
}
