package migrations

import (
	"errors"
	"fmt"
	"os"
	"time"

	"ms-parking/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/uptrace/bun"
)

const defaultTable = "parking_schema_migrations"

// MigrateOptions configures the schema runner.
type MigrateOptions struct {
	// MigrationsDir holds the NNNNNN_name.{up,down}.sql files
	MigrationsDir string
	// AutoMigrate applies pending migrations at startup
	AutoMigrate bool
	// Table records the applied version; defaults to parking_schema_migrations
	Table string
	// LockTimeout bounds the wait for the advisory lock another replica may hold
	LockTimeout time.Duration
}

// Status is the schema version recorded in the migrations table.
type Status struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
	Empty   bool `json:"empty"`
}

// Runner applies the parking schema with golang-migrate.
type Runner struct {
	bunDB    *bun.DB
	options  MigrateOptions
	logger   *logger.Logger
	migrator *migrate.Migrate
}

func NewRunner(bunDB *bun.DB, opts MigrateOptions, log *logger.Logger) *Runner {
	if opts.Table == "" {
		opts.Table = defaultTable
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 15 * time.Second
	}
	return &Runner{bunDB: bunDB, options: opts, logger: log}
}

func (r *Runner) init() error {
	if r.migrator != nil {
		return nil
	}
	if _, err := os.Stat(r.options.MigrationsDir); os.IsNotExist(err) {
		return fmt.Errorf("migrations directory does not exist: %s", r.options.MigrationsDir)
	}

	driver, err := postgres.WithInstance(r.bunDB.DB, &postgres.Config{MigrationsTable: r.options.Table})
	if err != nil {
		return fmt.Errorf("create postgres migration driver: %w", err)
	}
	migrator, err := migrate.NewWithDatabaseInstance("file://"+r.options.MigrationsDir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	migrator.LockTimeout = r.options.LockTimeout

	r.migrator = migrator
	return nil
}

// Status reads the current schema version.
func (r *Runner) Status() (Status, error) {
	if err := r.init(); err != nil {
		return Status{}, err
	}
	version, dirty, err := r.migrator.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return Status{Empty: true}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("read schema version: %w", err)
	}
	return Status{Version: version, Dirty: dirty}, nil
}

// RunMigrations applies pending migrations when AutoMigrate is on. A dirty
// schema stops startup; it is never forced.
func (r *Runner) RunMigrations() error {
	if !r.options.AutoMigrate {
		r.logger.LogDatabase("MIGRATE", r.options.Table, "auto-migrate disabled")
		return nil
	}

	before, err := r.Status()
	if err != nil {
		return err
	}
	if before.Dirty {
		return fmt.Errorf("schema version %d is dirty, fix it manually before starting", before.Version)
	}

	if err := r.migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}

	after, err := r.Status()
	if err != nil {
		return err
	}
	if after.Version != before.Version {
		r.logger.LogDatabase("MIGRATE", r.options.Table, fmt.Sprintf("schema migrated %d -> %d", before.Version, after.Version))
	} else {
		r.logger.LogDatabase("MIGRATE", r.options.Table, fmt.Sprintf("schema up to date at version %d", after.Version))
	}
	return nil
}

// Rollback reverts the last n applied migrations.
func (r *Runner) Rollback(n int) error {
	if n <= 0 {
		return fmt.Errorf("rollback needs a positive step count, got %d", n)
	}
	if err := r.init(); err != nil {
		return err
	}
	if err := r.migrator.Steps(-n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rollback %d step(s): %w", n, err)
	}
	r.logger.LogDatabase("MIGRATE", r.options.Table, fmt.Sprintf("rolled back %d migration(s)", n))
	return nil
}

// Close releases the migrator. The postgres driver closes the *sql.DB it was
// built on, so call it only when the service is done with the database.
func (r *Runner) Close() error {
	if r.migrator == nil {
		return nil
	}
	sourceErr, databaseErr := r.migrator.Close()
	if sourceErr != nil {
		return fmt.Errorf("close migration source: %w", sourceErr)
	}
	if databaseErr != nil {
		return fmt.Errorf("close migration database: %w", databaseErr)
	}
	return nil
}
