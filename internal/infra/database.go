package infra

import (
	"fmt"

	"github.com/funkypatns/progym/internal/apierror"
	"github.com/funkypatns/progym/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate to
// create/update all tables, then applies the idempotent SQL patches that GORM
// cannot express (partial unique indexes, sequences).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}

	return db, nil
}

// RunMigrations applies the schema. Shared with integration tests.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.User{},
		&model.Member{},
		&model.Plan{},
		&model.Shift{},
		&model.Payment{},
		&model.Refund{},
		&model.Subscription{},
		&model.SubscriptionPause{},
		&model.MemberPackage{},
		&model.PackageSessionUsage{},
		&model.CheckInIdempotencyRecord{},
		&model.Receipt{},
	); err != nil {
		return apierror.SchemaMismatch("schema_out_of_sync",
			fmt.Sprintf("auto-migrate failed: %v", err))
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot produce.
// The partial unique indexes are load-bearing: they are what actually
// enforces "at most one open shift per machine/user", "one active
// subscription per member" and "one ACTIVE package per member" under
// concurrent writers — the service-layer checks only give friendly errors.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		{"one open shift per machine",
			`CREATE UNIQUE INDEX IF NOT EXISTS uni_shifts_open_machine
			    ON shifts (machine_id) WHERE status = 'open'`},
		{"one open shift per user",
			`CREATE UNIQUE INDEX IF NOT EXISTS uni_shifts_open_user
			    ON shifts (opened_by_id) WHERE status = 'open'`},
		{"one active subscription per member",
			`CREATE UNIQUE INDEX IF NOT EXISTS uni_subscriptions_active_member
			    ON subscriptions (member_id) WHERE status = 'active'`},
		{"one active package per member",
			`CREATE UNIQUE INDEX IF NOT EXISTS uni_member_packages_active_member
			    ON member_packages (member_id) WHERE status = 'ACTIVE'`},
		{"receipt number sequence",
			`CREATE SEQUENCE IF NOT EXISTS receipts_number_seq START 1`},
		{"retry cron partial index",
			`CREATE INDEX IF NOT EXISTS idx_receipts_pending_retry
			    ON receipts (next_retry_at)
			    WHERE status = 'pending' AND next_retry_at IS NOT NULL`},
	}

	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return apierror.SchemaMismatch("schema_out_of_sync",
				fmt.Sprintf("schema patch %q: %v", p.descr, err))
		}
	}
	return nil
}
