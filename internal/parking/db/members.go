package db

import (
	"context"
	"fmt"
	"time"

	"ms-parking/internal/models"

	"github.com/shopspring/decimal"
)

func (d *DB) GetMemberByPlate(ctx context.Context, plate string) (*models.Member, error) {
	return getMember(ctx, d.Bun, "vehicle_plate_number", models.NormalizePlate(plate))
}

func (d *DB) GetMemberByID(ctx context.Context, id string) (*models.Member, error) {
	return getMember(ctx, d.Bun, "id", id)
}

func (d *DB) CreateMember(ctx context.Context, member *models.Member) error {
	_, err := d.Bun.NewInsert().Model(member).Exec(ctx)
	return storeErr("insert member", err)
}

func (d *DB) CountMembers(ctx context.Context) (int, error) {
	n, err := d.Bun.NewSelect().Model((*models.Member)(nil)).Count(ctx)
	if err != nil {
		return 0, storeErr("count members", err)
	}
	return n, nil
}

func (d *DB) ListMembers(ctx context.Context, activeOnly bool) ([]models.Member, error) {
	var members []models.Member
	q := d.Bun.NewSelect().Model(&members).Order("member_code ASC")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, storeErr("list members", err)
	}
	return members, nil
}

// UpdateMember writes profile fields and the active flag. Balance is never
// written here.
func (d *DB) UpdateMember(ctx context.Context, member *models.Member) error {
	res, err := d.Bun.NewUpdate().
		Model(member).
		Column("name", "email", "phone_number", "active", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return storeErr("update member", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("member %s: %w", member.ID, models.ErrMemberNotFound)
	}
	return nil
}

// TopUpMemberBalance credits an active member in place.
func (d *DB) TopUpMemberBalance(ctx context.Context, id string, amount decimal.Decimal, at time.Time) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Member)(nil)).
		Set("balance = balance + ?", amount).
		Set("last_activity = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("active = ?", true).
		Exec(ctx)
	if err != nil {
		return storeErr("top up member balance", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("member %s: %w", id, models.ErrMemberNotFound)
	}
	return nil
}
