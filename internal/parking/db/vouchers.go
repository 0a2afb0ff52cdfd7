package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-parking/internal/models"
)

func (d *DB) GetVoucherByCode(ctx context.Context, code string) (*models.Voucher, error) {
	return getVoucherByCode(ctx, d.Bun, code)
}

func (d *DB) GetVoucherByID(ctx context.Context, id string) (*models.Voucher, error) {
	var voucher models.Voucher
	err := d.Bun.NewSelect().Model(&voucher).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("voucher %s: %w", id, models.ErrVoucherNotFound)
	}
	if err != nil {
		return nil, storeErr("select voucher", err)
	}
	return &voucher, nil
}

func (d *DB) CreateVoucher(ctx context.Context, voucher *models.Voucher) error {
	_, err := d.Bun.NewInsert().Model(voucher).Exec(ctx)
	return storeErr("insert voucher", err)
}

func (d *DB) ListVouchers(ctx context.Context, activeOnly bool) ([]models.Voucher, error) {
	var vouchers []models.Voucher
	q := d.Bun.NewSelect().Model(&vouchers).Order("created_at DESC")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, storeErr("list vouchers", err)
	}
	return vouchers, nil
}

// TerminateVoucher deactivates an active voucher. Zero rows means it was
// already inactive or does not exist.
func (d *DB) TerminateVoucher(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Voucher)(nil)).
		Set("active = ?", false).
		Set("terminated_at = ?", at).
		Where("id = ?", id).
		Where("active = ?", true).
		Exec(ctx)
	if err != nil {
		return false, storeErr("terminate voucher", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
