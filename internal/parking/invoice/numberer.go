package invoice

import (
	"context"
	"fmt"
	"time"

	"ms-parking/internal/models"
)

// SequenceSource hands out the next per-day sequence atomically.
type SequenceSource interface {
	NextInvoiceSequence(ctx context.Context, day string) (int, error)
}

// Numberer issues INV-<YYYYMMDD>-<seq> numbers. The day boundary follows Location.
type Numberer struct {
	Location *time.Location
}

func NewNumberer(loc *time.Location) *Numberer {
	if loc == nil {
		loc = time.UTC
	}
	return &Numberer{Location: loc}
}

func (n *Numberer) Day(at time.Time) string {
	return at.In(n.Location).Format("20060102")
}

func (n *Numberer) Next(ctx context.Context, src SequenceSource, at time.Time) (string, error) {
	day := n.Day(at)
	seq, err := src.NextInvoiceSequence(ctx, day)
	if err != nil {
		return "", fmt.Errorf("next invoice sequence for %s: %w", day, err)
	}
	if seq < 1 {
		return "", models.Infrastructure("next invoice sequence", fmt.Errorf("counter returned %d", seq))
	}
	return Format(day, seq), nil
}

// Format pads seq to four digits; days past 9999 invoices keep growing.
func Format(day string, seq int) string {
	return fmt.Sprintf("INV-%s-%04d", day, seq)
}
