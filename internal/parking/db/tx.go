package db

import (
	"context"
	"fmt"
	"time"

	"ms-parking/internal/models"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Tx implements parking.SessionTx on a bun transaction. It must not be used
// after the RunInTx callback returns.
type Tx struct {
	tx bun.Tx
}

func (t *Tx) GetActiveSessionByPlate(ctx context.Context, plate string) (*models.Session, error) {
	return getActiveSession(ctx, t.tx, plate)
}

func (t *Tx) GetMemberByID(ctx context.Context, id string) (*models.Member, error) {
	return getMember(ctx, t.tx, "id", id)
}

func (t *Tx) GetVoucherByCode(ctx context.Context, code string) (*models.Voucher, error) {
	return getVoucherByCode(ctx, t.tx, code)
}

// IncrementVoucherUsage bumps usage_count only while the voucher is active and
// under its limit, so concurrent redemptions cannot overshoot.
func (t *Tx) IncrementVoucherUsage(ctx context.Context, code string) error {
	res, err := t.tx.NewUpdate().
		Model((*models.Voucher)(nil)).
		Set("usage_count = usage_count + 1").
		Where("code = ?", code).
		Where("active = ?", true).
		Where("(usage_limit IS NULL OR usage_count < usage_limit)").
		Exec(ctx)
	if err != nil {
		return storeErr("increment voucher usage", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.InvalidVoucher(fmt.Sprintf("voucher %s can no longer be redeemed", code))
	}
	return nil
}

// DebitMemberBalance is a guarded decrement: zero rows means the balance
// would have gone negative (or the member is gone or inactive).
func (t *Tx) DebitMemberBalance(ctx context.Context, memberID string, amount decimal.Decimal) error {
	now := time.Now()
	res, err := t.tx.NewUpdate().
		Model((*models.Member)(nil)).
		Set("balance = balance - ?", amount).
		Set("last_activity = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", memberID).
		Where("active = ?", true).
		Where("balance >= ?", amount).
		Exec(ctx)
	if err != nil {
		return storeErr("debit member balance", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("member %s: %w", memberID, models.ErrInsufficientBalance)
	}
	return nil
}

// NextInvoiceSequence upserts the day's counter and returns the new value in
// one statement.
func (t *Tx) NextInvoiceSequence(ctx context.Context, day string) (int, error) {
	var seq int
	err := t.tx.NewRaw(
		`INSERT INTO invoice_counters (day, last_seq) VALUES (?, 1)
		ON CONFLICT (day) DO UPDATE SET last_seq = invoice_counters.last_seq + 1
		RETURNING last_seq`, day,
	).Scan(ctx, &seq)
	if err != nil {
		return 0, storeErr("upsert invoice counter", err)
	}
	return seq, nil
}

func (t *Tx) SavePayment(ctx context.Context, payment *models.Payment) error {
	_, err := t.tx.NewInsert().Model(payment).Exec(ctx)
	return storeErr("insert payment", err)
}

// SaveInvoice fails retryably on a number collision; it never renumbers.
func (t *Tx) SaveInvoice(ctx context.Context, invoice *models.Invoice) error {
	_, err := t.tx.NewInsert().Model(invoice).Exec(ctx)
	if isUniqueViolation(err) {
		return models.Infrastructure("insert invoice "+invoice.InvoiceNumber, err)
	}
	return storeErr("insert invoice", err)
}

// CompleteSession writes the check-out fields only if the row is still ACTIVE.
func (t *Tx) CompleteSession(ctx context.Context, session *models.Session) error {
	return t.closeSession(ctx, session,
		"check_out_time", "check_out_gate", "check_out_operator", "check_out_photo",
		"parking_fee", "voucher_code", "status", "updated_at")
}

func (t *Tx) CancelSession(ctx context.Context, session *models.Session) error {
	return t.closeSession(ctx, session, "status", "cancel_reason", "cancelled_by", "updated_at")
}

func (t *Tx) closeSession(ctx context.Context, session *models.Session, columns ...string) error {
	res, err := t.tx.NewUpdate().
		Model(session).
		Column(columns...).
		WherePK().
		Where("status = ?", models.SessionActive).
		Exec(ctx)
	if err != nil {
		return storeErr("update session", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", session.ID, models.ErrSessionNotFound)
	}
	return nil
}
