package db

import (
	"context"
	"fmt"

	"ms-parking/internal/models"

	"github.com/uptrace/bun"
)

// CreateSchema builds the tables straight from the models. Production
// databases are migrated from migrations/; this serves tests and local sqlite.
func CreateSchema(ctx context.Context, idb bun.IDB) error {
	tables := []interface{}{
		(*models.Session)(nil),
		(*models.Member)(nil),
		(*models.Voucher)(nil),
		(*models.Payment)(nil),
		(*models.Invoice)(nil),
		(*models.InvoiceCounter)(nil),
	}
	for _, model := range tables {
		if _, err := idb.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}

	indexes := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_parking_sessions_active_plate
			ON parking_sessions (plate_number) WHERE status = 'ACTIVE'`,
		`CREATE INDEX IF NOT EXISTS ix_parking_sessions_check_in_time
			ON parking_sessions (check_in_time)`,
	}
	for _, stmt := range indexes {
		if _, err := idb.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
