package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Calculation is a fee quote for an active session. It is never persisted and
// never trusted at check-out.
type Calculation struct {
	SessionID       string          `json:"session_id"`
	PlateNumber     string          `json:"plate_number"`
	CheckInTime     time.Time       `json:"check_in_time"`
	CalculatedAt    time.Time       `json:"calculated_at"`
	Duration        string          `json:"duration"`
	MinutesParked   int64           `json:"minutes_parked"`
	HoursParked     int64           `json:"hours_parked"`
	InGracePeriod   bool            `json:"grace_period"`
	BaseFee         decimal.Decimal `json:"base_fee"`
	VoucherDiscount decimal.Decimal `json:"voucher_discount"`
	MemberDiscount  decimal.Decimal `json:"member_discount"`
	Discount        decimal.Decimal `json:"discount"`
	TotalFee        decimal.Decimal `json:"total_fee"`
	IsMember        bool            `json:"is_member"`
	AppliedVoucher  string          `json:"applied_voucher,omitempty"`
	VoucherNote     string          `json:"voucher_note,omitempty"`
}
