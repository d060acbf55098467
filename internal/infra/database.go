package infra

import (
	"fmt"

	"bodega/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens a GORM connection backed by pgx and brings the schema up
// to date.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
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

// RunMigrations creates or updates every table, then applies the patches
// AutoMigrate cannot express. Safe to run on every start.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Product{},
		&model.StockAdjustment{},
		&model.Customer{},
		&model.Invoice{},
		&model.InvoiceLine{},
		&model.Payment{},
		&model.Quotation{},
		&model.QuotationLine{},
		&model.RateCacheEntry{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL. Each statement is guarded so that
// re-running it on a patched database is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// Document numbers come from sequences so concurrent creations never
		// share a number. START follows any rows already present.
		{"invoice_number_seq", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_class WHERE relkind = 'S' AND relname = 'invoice_number_seq') THEN
    EXECUTE format('CREATE SEQUENCE invoice_number_seq START %s',
                   (SELECT COALESCE(MAX(number), 0) + 1 FROM invoices));
  END IF;
END $$`},
		{"quotation_number_seq", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_class WHERE relkind = 'S' AND relname = 'quotation_number_seq') THEN
    EXECUTE format('CREATE SEQUENCE quotation_number_seq START %s',
                   (SELECT COALESCE(MAX(number::bigint), 0) + 1 FROM quotations));
  END IF;
END $$`},
		{"idx_stock_adjustments_product_created", `
CREATE INDEX IF NOT EXISTS idx_stock_adjustments_product_created
    ON stock_adjustments (product_id, created_at DESC)`},
		{"idx_invoices_pending_due", `
CREATE INDEX IF NOT EXISTS idx_invoices_pending_due
    ON invoices (due_date)
    WHERE state = 'pending'`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
