package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type InvoiceStatus string

const InvoicePaid InvoiceStatus = "PAID"

// Invoice is the immutable receipt issued once per completed session.
type Invoice struct {
	bun.BaseModel `bun:"table:invoices"`

	ID               string          `bun:"id,pk" json:"id"`
	InvoiceNumber    string          `bun:"invoice_number,notnull,unique" json:"invoice_number"`
	SessionID        string          `bun:"session_id,notnull,unique" json:"session_id"`
	InvoiceDate      time.Time       `bun:"invoice_date,notnull" json:"invoice_date"`
	PlateNumber      string          `bun:"plate_number,notnull" json:"plate_number"`
	CheckInTime      time.Time       `bun:"check_in_time,notnull" json:"check_in_time"`
	CheckOutTime     time.Time       `bun:"check_out_time,notnull" json:"check_out_time"`
	DurationMinutes  int64           `bun:"duration_minutes,notnull" json:"duration_minutes"`
	Duration         string          `bun:"duration" json:"duration"`
	BaseAmount       decimal.Decimal `bun:"base_amount,type:decimal(12,2),notnull" json:"base_amount"`
	DiscountAmount   decimal.Decimal `bun:"discount_amount,type:decimal(12,2),notnull" json:"discount_amount"`
	TotalAmount      decimal.Decimal `bun:"total_amount,type:decimal(12,2),notnull" json:"total_amount"`
	PaymentMethod    PaymentMethod   `bun:"payment_method,notnull" json:"payment_method"`
	PaymentReference string          `bun:"payment_reference,notnull" json:"payment_reference"`
	MemberName       string          `bun:"member_name,nullzero" json:"member_name,omitempty"`
	VoucherCode      string          `bun:"voucher_code,nullzero" json:"voucher_code,omitempty"`
	OperatorName     string          `bun:"operator_name" json:"operator_name"`
	CheckInGate      string          `bun:"check_in_gate" json:"check_in_gate"`
	CheckOutGate     string          `bun:"check_out_gate" json:"check_out_gate"`
	Status           InvoiceStatus   `bun:"status,notnull" json:"status"`
	QRCode           []byte          `bun:"qr_code" json:"-"`
	CreatedAt        time.Time       `bun:"created_at,notnull" json:"created_at"`
}

// InvoiceCounter holds the last sequence number handed out for one day.
type InvoiceCounter struct {
	bun.BaseModel `bun:"table:invoice_counters"`

	Day     string `bun:"day,pk"`
	LastSeq int    `bun:"last_seq,notnull"`
}
