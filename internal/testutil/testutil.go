// Package testutil wires services against a throwaway SQLite database.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"ritual/internal/calendar"
	"ritual/internal/cards"
	"ritual/internal/catalog"
	"ritual/internal/db"
	"ritual/internal/logger"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// DB opens a migrated SQLite database under t.TempDir.
func DB(t *testing.T) *gorm.DB {
	t.Helper()
	logger.Silence()

	path := filepath.Join(t.TempDir(), "ritual.db")
	gdb, err := db.Connect("sqlite://"+path, db.Options{Silent: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrateAndIndexes(gdb))

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

func Catalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	return c
}

// Clock returns a clock fixed at noon UTC on day.
func Clock(t *testing.T, day string) *calendar.FixedClock {
	t.Helper()
	d, err := calendar.ParseDay(day)
	require.NoError(t, err)
	return calendar.NewFixedClock(d.Time().Add(12 * time.Hour))
}

type ItemOpt func(*cards.ContentItem)

func Duration(seconds int) ItemOpt {
	return func(it *cards.ContentItem) { it.DurationSeconds = &seconds }
}

func Unapproved() ItemOpt {
	return func(it *cards.ContentItem) { it.Approved = false }
}

func SubmittedBy(userID uint64) ItemOpt {
	return func(it *cards.ContentItem) { it.SubmittedBy = &userID }
}

// SeedItem inserts a content item, approved unless Unapproved is given.
func SeedItem(t *testing.T, gdb *gorm.DB, category, title string, opts ...ItemOpt) cards.ContentItem {
	t.Helper()
	it := cards.ContentItem{Category: category, Title: title, Approved: true}
	for _, o := range opts {
		o(&it)
	}
	require.NoError(t, gdb.Create(&it).Error)
	return it
}

// Deal records each item as a past daily card so it can be kept. Every item
// gets its own day, well before any test clock.
func Deal(t *testing.T, gdb *gorm.DB, items ...cards.ContentItem) {
	t.Helper()
	base := calendar.Day("2000-01-01")
	for _, it := range items {
		require.NoError(t, gdb.Create(&cards.DailyAllocation{
			Day:           base.AddDays(int(it.ID)),
			Category:      it.Category,
			ContentItemID: it.ID,
		}).Error)
	}
}
