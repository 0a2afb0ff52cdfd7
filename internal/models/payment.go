package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type PaymentMethod string

const (
	PaymentQRIS          PaymentMethod = "QRIS"
	PaymentGoPay         PaymentMethod = "GOPAY"
	PaymentOVO           PaymentMethod = "OVO"
	PaymentDANA          PaymentMethod = "DANA"
	PaymentShopeePay     PaymentMethod = "SHOPEEPAY"
	PaymentLinkAja       PaymentMethod = "LINKAJA"
	PaymentEMoney        PaymentMethod = "EMONEY"
	PaymentFlazz         PaymentMethod = "FLAZZ"
	PaymentBrizzi        PaymentMethod = "BRIZZI"
	PaymentTapCash       PaymentMethod = "TAPCASH"
	PaymentCash          PaymentMethod = "CASH"
	PaymentDebitCard     PaymentMethod = "DEBIT_CARD"
	PaymentCreditCard    PaymentMethod = "CREDIT_CARD"
	PaymentMemberBalance PaymentMethod = "MEMBER_BALANCE"
)

type PaymentMethodInfo struct {
	Code        PaymentMethod `json:"code"`
	DisplayName string        `json:"name"`
	Type        string        `json:"type"`
}

// PaymentMethods is the catalogue accepted at the exit gate, in display order.
var PaymentMethods = []PaymentMethodInfo{
	{PaymentQRIS, "QRIS", "E-Money"},
	{PaymentGoPay, "GoPay", "E-Money"},
	{PaymentOVO, "OVO", "E-Money"},
	{PaymentDANA, "DANA", "E-Money"},
	{PaymentShopeePay, "ShopeePay", "E-Money"},
	{PaymentLinkAja, "LinkAja", "E-Money"},
	{PaymentEMoney, "e-Money Mandiri", "E-Toll"},
	{PaymentFlazz, "Flazz BCA", "E-Toll"},
	{PaymentBrizzi, "Brizzi BRI", "E-Toll"},
	{PaymentTapCash, "TapCash BNI", "E-Toll"},
	{PaymentCash, "Tunai", "Cash"},
	{PaymentDebitCard, "Kartu Debit", "Card"},
	{PaymentCreditCard, "Kartu Kredit", "Card"},
	{PaymentMemberBalance, "Saldo Member", "Member"},
}

func (m PaymentMethod) Info() (PaymentMethodInfo, bool) {
	for _, info := range PaymentMethods {
		if info.Code == m {
			return info, true
		}
	}
	return PaymentMethodInfo{}, false
}

func (m PaymentMethod) Valid() bool {
	_, ok := m.Info()
	return ok
}

// ParsePaymentMethod trims and upper-cases raw and reports whether the result
// is an accepted method.
func ParsePaymentMethod(raw string) (PaymentMethod, bool) {
	m := PaymentMethod(strings.ToUpper(strings.TrimSpace(raw)))
	return m, m.Valid()
}

func (m PaymentMethod) DisplayName() string {
	if info, ok := m.Info(); ok {
		return info.DisplayName
	}
	return string(m)
}

type PaymentStatus string

const (
	PaymentSuccess PaymentStatus = "SUCCESS"
)

// Payment is the settlement record of a completed session. One per session.
type Payment struct {
	bun.BaseModel `bun:"table:payments"`

	ID              string          `bun:"id,pk" json:"id"`
	SessionID       string          `bun:"session_id,notnull,unique" json:"session_id"`
	MemberID        string          `bun:"member_id,nullzero" json:"member_id,omitempty"`
	Amount          decimal.Decimal `bun:"amount,type:decimal(12,2),notnull" json:"amount"`
	PaymentMethod   PaymentMethod   `bun:"payment_method,notnull" json:"payment_method"`
	ReferenceNumber string          `bun:"reference_number,notnull" json:"reference_number"`
	Status          PaymentStatus   `bun:"status,notnull" json:"status"`
	PaidAt          time.Time       `bun:"paid_at,notnull" json:"paid_at"`
}
