package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventCheckedIn  = "CHECK_IN"
	EventCheckedOut = "CHECK_OUT"
	EventCancelled  = "CANCELLED"
)

// SessionEvent is published to kafka after a lifecycle transition commits.
type SessionEvent struct {
	Type          string          `json:"type"`
	SessionID     string          `json:"session_id"`
	PlateNumber   string          `json:"plate_number"`
	VehicleType   VehicleType     `json:"vehicle_type"`
	Gate          string          `json:"gate"`
	Operator      string          `json:"operator"`
	InvoiceNumber string          `json:"invoice_number,omitempty"`
	PaymentMethod PaymentMethod   `json:"payment_method,omitempty"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	OccurredAt    time.Time       `json:"occurred_at"`
}
