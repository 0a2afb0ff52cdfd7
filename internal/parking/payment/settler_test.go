package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"ms-parking/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDebiter struct {
	mock.Mock
}

func (m *MockDebiter) DebitMemberBalance(ctx context.Context, memberID string, amount decimal.Decimal) error {
	args := m.Called(memberID, amount.String())
	return args.Error(0)
}

var paidAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newSettler() *Settler {
	return &Settler{Now: func() time.Time { return paidAt }}
}

func TestExternalPaymentGetsPrefixedReference(t *testing.T) {
	d := &MockDebiter{}
	p, err := newSettler().Settle(context.Background(), d, Request{
		SessionID: "s-1",
		Method:    models.PaymentQRIS,
		Amount:    decimal.NewFromInt(15000),
	})

	require.NoError(t, err)
	assert.Equal(t, "QR-1767225600000", p.ReferenceNumber)
	assert.Equal(t, models.PaymentSuccess, p.Status)
	assert.Equal(t, "s-1", p.SessionID)
	assert.Empty(t, p.MemberID)
	d.AssertNotCalled(t, "DebitMemberBalance", mock.Anything, mock.Anything)
}

func TestMemberBalanceDebits(t *testing.T) {
	d := &MockDebiter{}
	d.On("DebitMemberBalance", "m-1", "6000").Return(nil)

	p, err := newSettler().Settle(context.Background(), d, Request{
		SessionID: "s-1",
		MemberID:  "m-1",
		Method:    models.PaymentMemberBalance,
		Amount:    decimal.NewFromInt(6000),
	})

	require.NoError(t, err)
	assert.Equal(t, "MB-1767225600000", p.ReferenceNumber)
	assert.Equal(t, "m-1", p.MemberID)
	d.AssertExpectations(t)
}

func TestMemberBalanceInsufficient(t *testing.T) {
	d := &MockDebiter{}
	d.On("DebitMemberBalance", "m-1", "6000").Return(models.ErrInsufficientBalance)

	_, err := newSettler().Settle(context.Background(), d, Request{
		MemberID: "m-1",
		Method:   models.PaymentMemberBalance,
		Amount:   decimal.NewFromInt(6000),
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInsufficientBalance))
	assert.Equal(t, models.KindInsufficientBalance, models.KindOf(err))
}

func TestMemberBalanceWithoutMember(t *testing.T) {
	_, err := newSettler().Settle(context.Background(), &MockDebiter{}, Request{
		Method: models.PaymentMemberBalance,
		Amount: decimal.NewFromInt(6000),
	})

	assert.Equal(t, models.KindInvalidInput, models.KindOf(err))
}

func TestZeroMemberBalancePaymentSkipsDebit(t *testing.T) {
	d := &MockDebiter{}
	p, err := newSettler().Settle(context.Background(), d, Request{
		MemberID: "m-1",
		Method:   models.PaymentMemberBalance,
		Amount:   decimal.Zero,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, p.ReferenceNumber)
	d.AssertNotCalled(t, "DebitMemberBalance", mock.Anything, mock.Anything)
}

func TestUnknownMethodRejected(t *testing.T) {
	_, err := newSettler().Settle(context.Background(), &MockDebiter{}, Request{
		Method: models.PaymentMethod("BARTER"),
		Amount: decimal.NewFromInt(1),
	})
	assert.Equal(t, models.KindInvalidInput, models.KindOf(err))
}

func TestReferencePrefixes(t *testing.T) {
	cases := map[models.PaymentMethod]string{
		models.PaymentQRIS:       "QR-",
		models.PaymentEMoney:     "EM-",
		models.PaymentFlazz:      "FL-",
		models.PaymentBrizzi:     "BR-",
		models.PaymentTapCash:    "TC-",
		models.PaymentCash:       "CS-",
		models.PaymentGoPay:      "OT-",
		models.PaymentCreditCard: "OT-",
	}
	for method, prefix := range cases {
		assert.Equal(t, prefix+"1767225600000", Reference(method, paidAt), string(method))
	}
}
