package kafka

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"ms-parking/internal/logger"
	"ms-parking/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []int64
	done      chan struct{}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		msg := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	close(r.done)
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func testLogger() *logger.Logger {
	return logger.NewTestLogger(&bytes.Buffer{})
}

func TestPublishSessionEventKeysByPlate(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{Writer: w, Logger: testLogger(), Timeout: time.Second}

	event := models.SessionEvent{
		Type:          models.EventCheckedOut,
		SessionID:     "s-1",
		PlateNumber:   "B1234XYZ",
		InvoiceNumber: "INV-20260210-0001",
		TotalAmount:   decimal.NewFromInt(10000),
	}
	require.NoError(t, p.PublishSessionEvent(context.Background(), "parking.session.checked-out", event))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "parking.session.checked-out", msg.Topic)
	assert.Equal(t, []byte("B1234XYZ"), msg.Key)
	assert.Equal(t, []byte(models.EventCheckedOut), msg.Headers[0].Value)

	var decoded models.SessionEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "INV-20260210-0001", decoded.InvoiceNumber)
	assert.True(t, decimal.NewFromInt(10000).Equal(decoded.TotalAmount))
}

func TestPublishSessionEventWrapsWriterError(t *testing.T) {
	p := &Producer{Writer: &fakeWriter{err: errors.New("leader not available")}, Logger: testLogger()}

	err := p.PublishSessionEvent(context.Background(), "t", models.SessionEvent{Type: models.EventCheckedIn})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
}

func TestNilProducerIsNoop(t *testing.T) {
	var p *Producer
	assert.NoError(t, p.PublishSessionEvent(context.Background(), "t", models.SessionEvent{}))
	assert.NoError(t, p.Close())
}

func TestConsumerCommitsHandledAndUndecodable(t *testing.T) {
	good, err := json.Marshal(models.SessionEvent{Type: models.EventCheckedIn, PlateNumber: "B1"})
	require.NoError(t, err)

	r := &fakeReader{
		pending: []kafka.Message{
			{Offset: 1, Value: good},
			{Offset: 2, Value: []byte("{not json")},
			{Offset: 3, Value: good},
		},
		done: make(chan struct{}),
	}
	c := &Consumer{Reader: r, Logger: testLogger(), RetryDelay: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var handled []string
	attempts := 0
	errc := make(chan error, 1)
	go func() {
		errc <- c.Start(ctx, func(ctx context.Context, e models.SessionEvent) error {
			attempts++
			// first delivery fails once and is retried
			if attempts == 1 {
				return errors.New("redis down")
			}
			handled = append(handled, e.PlateNumber)
			return nil
		})
	}()

	<-r.done
	cancel()
	require.NoError(t, <-errc)

	assert.Equal(t, []string{"B1", "B1"}, handled)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int64{1, 2, 3}, r.committed)
}
