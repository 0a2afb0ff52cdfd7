package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-parking/internal/models"
	"ms-parking/internal/parking"

	"github.com/lib/pq"
	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

func New(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

func (d *DB) GetActiveSessionByPlate(ctx context.Context, plate string) (*models.Session, error) {
	return getActiveSession(ctx, d.Bun, plate)
}

// CreateSession inserts an ACTIVE session. A second ACTIVE row for the same
// plate trips ux_parking_sessions_active_plate and comes back as a conflict.
func (d *DB) CreateSession(ctx context.Context, session *models.Session) error {
	_, err := d.Bun.NewInsert().Model(session).Exec(ctx)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert session for %s: %w", session.PlateNumber, models.ErrVehicleAlreadyParked)
	}
	return storeErr("insert session", err)
}

func (d *DB) ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.Session, error) {
	var sessions []models.Session
	q := d.Bun.NewSelect().Model(&sessions).Order("check_in_time DESC")

	if filter.Plate != "" {
		q = q.Where("plate_number = ?", models.NormalizePlate(filter.Plate))
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if !filter.Date.IsZero() {
		start := time.Date(filter.Date.Year(), filter.Date.Month(), filter.Date.Day(), 0, 0, 0, 0, filter.Date.Location())
		q = q.Where("check_in_time >= ?", start.UTC()).Where("check_in_time < ?", start.AddDate(0, 0, 1).UTC())
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q = q.Limit(limit).Offset(filter.Offset)

	if err := q.Scan(ctx); err != nil {
		return nil, storeErr("list sessions", err)
	}
	return sessions, nil
}

func (d *DB) GetInvoiceByNumber(ctx context.Context, number string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := d.Bun.NewSelect().
		Model(&invoice).
		Where("invoice_number = ?", number).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invoice %s: %w", number, models.ErrInvoiceNotFound)
	}
	if err != nil {
		return nil, storeErr("select invoice", err)
	}
	return &invoice, nil
}

func (d *DB) GetInvoiceBySession(ctx context.Context, sessionID string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := d.Bun.NewSelect().
		Model(&invoice).
		Where("session_id = ?", sessionID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invoice for session %s: %w", sessionID, models.ErrInvoiceNotFound)
	}
	if err != nil {
		return nil, storeErr("select invoice", err)
	}
	return &invoice, nil
}

// RunInTx runs fn in one transaction; any error from fn rolls everything back.
func (d *DB) RunInTx(ctx context.Context, fn func(tx parking.SessionTx) error) error {
	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(&Tx{tx: tx})
	})
	if err == nil {
		return nil
	}
	if models.KindOf(err) != models.KindUnknown {
		return err
	}
	return storeErr("transaction", err)
}

func getActiveSession(ctx context.Context, idb bun.IDB, plate string) (*models.Session, error) {
	var session models.Session
	err := idb.NewSelect().
		Model(&session).
		Where("plate_number = ?", models.NormalizePlate(plate)).
		Where("status = ?", models.SessionActive).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("plate %s: %w", plate, models.ErrSessionNotFound)
	}
	if err != nil {
		return nil, storeErr("select active session", err)
	}
	return &session, nil
}

func getVoucherByCode(ctx context.Context, idb bun.IDB, code string) (*models.Voucher, error) {
	var voucher models.Voucher
	err := idb.NewSelect().
		Model(&voucher).
		Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("voucher %s: %w", code, models.ErrVoucherNotFound)
	}
	if err != nil {
		return nil, storeErr("select voucher", err)
	}
	return &voucher, nil
}

func getMember(ctx context.Context, idb bun.IDB, column, value string) (*models.Member, error) {
	var member models.Member
	err := idb.NewSelect().
		Model(&member).
		Where("? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("member %s=%s: %w", column, value, models.ErrMemberNotFound)
	}
	if err != nil {
		return nil, storeErr("select member", err)
	}
	return &member, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// storeErr classifies a driver error: duplicates are conflicts, everything
// else (timeouts included) is a retryable infrastructure failure.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, models.ErrDuplicate)
	}
	return models.Infrastructure(op, err)
}
