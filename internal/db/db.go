package db

import (
	"fmt"
	"strings"

	"ritual/internal/cards"
	"ritual/internal/explore"
	"ritual/internal/jobs"
	"ritual/internal/rewards"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Options struct {
	// Silent disables gorm's SQL logging.
	Silent bool
}

// Connect opens postgres for postgres:// DSNs and SQLite for sqlite:// or
// file: DSNs (local runs and tests).
func Connect(dsn string, opts Options) (*gorm.DB, error) {
	cfg := &gorm.Config{
		// unique violations surface as gorm.ErrDuplicatedKey on every dialect
		TranslateError: true,
	}
	if opts.Silent {
		cfg.Logger = gormlogger.Default.LogMode(gormlogger.Silent)
	}

	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		dialector = sqlite.Open(strings.TrimPrefix(dsn, "sqlite://"))
	case strings.HasPrefix(dsn, "file:"):
		dialector = sqlite.Open(dsn)
	default:
		dialector = postgres.Open(dsn)
	}

	gdb, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, err
	}

	if gdb.Dialector.Name() == "sqlite" {
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		// SQLite has a single writer; one connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	}
	return gdb, nil
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	// Tables. Unique constraints are declared on the models:
	//   shown_records(user_id, content_item_id)
	//   daily_allocations(day, category)
	//   collection_entries(user_id, content_item_id)
	//   milestone_claims(user_id, milestone_id)
	//   explore_keeps(user_id, activity_id)
	if err := gdb.AutoMigrate(
		&cards.ContentItem{},
		&cards.ShownRecord{},
		&cards.DailyAllocation{},
		&cards.CollectionEntry{},
		&cards.UserProgress{},
		&rewards.MilestoneClaim{},
		&explore.ExploreKeep{},
		&explore.WalkQueue{},
		&jobs.Job{},
	); err != nil {
		return err
	}

	// Helpful indexes
	stmts := []string{
		`create index if not exists idx_items_pool on content_items(category, approved);`,
		`create index if not exists idx_explore_user_status on explore_keeps(user_id, status);`,
		`create index if not exists idx_explore_user_saved on explore_keeps(user_id, saved_on);`,
		`create index if not exists idx_jobs_due on jobs(status, run_at);`,
		`create index if not exists idx_jobs_lock on jobs(status, locked_at);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
