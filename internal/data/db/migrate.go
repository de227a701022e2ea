package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/ftkghost/SuperSaver/internal/domain"
)

// Models lists every table in migration order.
func Models() []interface{} {
	return []interface{}{
		&types.DataSource{},
		&types.Retailer{},
		&types.RetailerProperty{},
		&types.Region{},
		&types.Store{},
		&types.StoreProperty{},
		&types.Product{},
		&types.ProductProperty{},
		&types.ProductImage{},
		&types.ProductStore{},
		&types.CrawlRun{},
	}
}

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// EnsureIndexes adds the indexes gorm tags cannot express. Postgres only.
func EnsureIndexes(db *gorm.DB) error {
	// Sweep and seed both filter live deals by end date.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_product_active_end
		ON product (promotion_end_date)
		WHERE active;
	`).Error; err != nil {
		return fmt.Errorf("create idx_product_active_end: %w", err)
	}
	// Landing page lookups are case-sensitive but bounded per retailer.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_product_retailer_landing
		ON product (retailer_id, landing_page);
	`).Error; err != nil {
		return fmt.Errorf("create idx_product_retailer_landing: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_crawl_run_source_started
		ON crawl_run (datasource_id, started_at DESC);
	`).Error; err != nil {
		return fmt.Errorf("create idx_crawl_run_source_started: %w", err)
	}
	return nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureIndexes(s.db); err != nil {
		s.log.Error("Index migration failed", "error", err)
		return err
	}
	return nil
}
