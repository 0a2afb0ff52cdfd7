package payment

import (
	"context"
	"fmt"
	"time"

	"ms-parking/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceDebiter takes amount off a member balance, failing with
// models.ErrInsufficientBalance when the balance would go negative.
type BalanceDebiter interface {
	DebitMemberBalance(ctx context.Context, memberID string, amount decimal.Decimal) error
}

type Request struct {
	SessionID string
	MemberID  string
	Method    models.PaymentMethod
	Amount    decimal.Decimal
}

type Settler struct {
	Now func() time.Time
}

func NewSettler() *Settler {
	return &Settler{Now: time.Now}
}

// Settle records the payment for one session. Member balance payments debit
// through d; every other method is an already-settled external payment.
func (s *Settler) Settle(ctx context.Context, d BalanceDebiter, req Request) (*models.Payment, error) {
	if !req.Method.Valid() {
		return nil, models.InvalidInput("unsupported payment method %q", req.Method)
	}
	if req.Amount.IsNegative() {
		return nil, models.InvalidInput("payment amount cannot be negative")
	}

	paidAt := s.Now()
	p := &models.Payment{
		ID:              uuid.New().String(),
		SessionID:       req.SessionID,
		Amount:          req.Amount,
		PaymentMethod:   req.Method,
		ReferenceNumber: Reference(req.Method, paidAt),
		Status:          models.PaymentSuccess,
		PaidAt:          paidAt,
	}

	if req.Method == models.PaymentMemberBalance {
		if req.MemberID == "" {
			return nil, models.InvalidInput("member balance payment requires a registered member")
		}
		p.MemberID = req.MemberID
		if req.Amount.IsPositive() {
			if err := d.DebitMemberBalance(ctx, req.MemberID, req.Amount); err != nil {
				return nil, fmt.Errorf("debit member %s: %w", req.MemberID, err)
			}
		}
	}

	return p, nil
}

var prefixes = map[models.PaymentMethod]string{
	models.PaymentMemberBalance: "MB",
	models.PaymentQRIS:          "QR",
	models.PaymentEMoney:        "EM",
	models.PaymentFlazz:         "FL",
	models.PaymentBrizzi:        "BR",
	models.PaymentTapCash:       "TC",
	models.PaymentCash:          "CS",
}

// Reference is "<prefix>-<unix millis>", e.g. "QR-1767225600000".
func Reference(method models.PaymentMethod, at time.Time) string {
	prefix, ok := prefixes[method]
	if !ok {
		prefix = "OT"
	}
	return fmt.Sprintf("%s-%d", prefix, at.UnixMilli())
}
