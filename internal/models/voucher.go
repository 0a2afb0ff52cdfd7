package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFixed      DiscountType = "FIXED"
)

func ParseDiscountType(raw string) (DiscountType, bool) {
	switch dt := DiscountType(strings.ToUpper(strings.TrimSpace(raw))); dt {
	case DiscountPercentage, DiscountFixed:
		return dt, true
	case "FIXED_AMOUNT":
		return DiscountFixed, true
	}
	return "", false
}

type Voucher struct {
	bun.BaseModel `bun:"table:vouchers"`

	ID            string          `bun:"id,pk" json:"id"`
	Code          string          `bun:"code,notnull,unique" json:"code"`
	Description   string          `bun:"description" json:"description"`
	DiscountType  DiscountType    `bun:"discount_type,notnull" json:"discount_type"`
	DiscountValue decimal.Decimal `bun:"discount_value,type:decimal(12,2),notnull" json:"discount_value"`
	MinimumAmount decimal.Decimal `bun:"minimum_amount,type:decimal(12,2),notnull" json:"minimum_amount"`
	ValidFrom     time.Time       `bun:"valid_from,notnull" json:"valid_from"`
	ValidUntil    time.Time       `bun:"valid_until,notnull" json:"valid_until"`
	UsageLimit    *int            `bun:"usage_limit" json:"usage_limit,omitempty"`
	UsageCount    int             `bun:"usage_count,notnull" json:"usage_count"`
	Active        bool            `bun:"active,notnull" json:"active"`
	CreatedAt     time.Time       `bun:"created_at,notnull" json:"created_at"`
	TerminatedAt  *time.Time      `bun:"terminated_at" json:"terminated_at,omitempty"`
}

// IsValid reports whether the voucher can be redeemed at now: active, inside
// [ValidFrom, ValidUntil) and below its usage limit.
func (v *Voucher) IsValid(now time.Time) bool {
	if v == nil || !v.Active {
		return false
	}
	if now.Before(v.ValidFrom) || !now.Before(v.ValidUntil) {
		return false
	}
	return v.UsageLimit == nil || v.UsageCount < *v.UsageLimit
}

type VoucherCreate struct {
	Code          string          `json:"code"`
	Description   string          `json:"description"`
	DiscountType  string          `json:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	MinimumAmount decimal.Decimal `json:"minimum_amount"`
	ValidFrom     time.Time       `json:"valid_from"`
	ValidUntil    time.Time       `json:"valid_until"`
	UsageLimit    *int            `json:"usage_limit,omitempty"`
}
