package cards

import (
	"context"
	"errors"
	"fmt"

	"ritual/internal/apperr"
	"ritual/internal/calendar"
	"ritual/internal/logger"
	"ritual/internal/metrics"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnsureAllocated returns the item assigned to (day, category), allocating one
// on the first call of the day. A nil item with a nil error is the "empty"
// card: the category has no approved content at all.
//
// Concurrent first calls race on the unique (day, category) index; the loser
// re-reads the winner's row. Only the user whose call commits the allocation
// gets a shown record for the item.
func (s *Service) EnsureAllocated(ctx context.Context, day calendar.Day, category string, userID uint64) (*ContentItem, error) {
	if !s.Catalog.HasCategory(category) {
		return nil, apperr.Validation("UnknownCategory", "unknown category %q", category)
	}
	db := s.DB.WithContext(ctx)
	m := metrics.Get()

	item, err := allocatedItem(db, day, category)
	if err != nil {
		return nil, err
	}
	if item != nil {
		m.Allocations.WithLabelValues("existing").Inc()
		return item, nil
	}

	pick, err := s.pickCandidate(db, category, userID)
	if err != nil {
		return nil, err
	}
	if pick == nil {
		m.Allocations.WithLabelValues("empty").Inc()
		logger.Log.WithFields(logrus.Fields{"day": day, "category": category}).Warn("no approved content for category")
		return nil, nil
	}

	won := false
	err = db.Transaction(func(tx *gorm.DB) error {
		alloc := DailyAllocation{
			Day:           day,
			Category:      category,
			ContentItemID: pick.ID,
			AllocatedBy:   userID,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&alloc)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// another request committed first
			return nil
		}
		won = true

		shown := ShownRecord{UserID: userID, ContentItemID: pick.ID, ShownOn: day}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&shown).Error
	})
	if err != nil {
		return nil, fmt.Errorf("commit allocation: %w", err)
	}

	if won {
		m.Allocations.WithLabelValues("allocated").Inc()
		logger.Log.WithFields(logrus.Fields{
			"day":      day,
			"category": category,
			"item_id":  pick.ID,
			"user_id":  userID,
		}).Info("daily card allocated")
		return pick, nil
	}

	m.Allocations.WithLabelValues("lost_race").Inc()
	item, err = allocatedItem(db, day, category)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("allocation for %s/%s missing after conflict", day, category)
	}
	return item, nil
}

func allocatedItem(db *gorm.DB, day calendar.Day, category string) (*ContentItem, error) {
	var alloc DailyAllocation
	err := db.Where("day = ? AND category = ?", day, category).First(&alloc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read allocation: %w", err)
	}

	var item ContentItem
	err = db.Where("id = ?", alloc.ContentItemID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// item removed by maintenance; the slot renders as empty
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read allocated item: %w", err)
	}
	return &item, nil
}

// pickCandidate selects from approved items of the category the user has not
// been shown, falling back to the whole approved pool when that is exhausted.
// Within either set, items inside the category's duration window win; ties
// are broken uniformly at random.
func (s *Service) pickCandidate(db *gorm.DB, category string, userID uint64) (*ContentItem, error) {
	shown := db.Model(&ShownRecord{}).Select("content_item_id").Where("user_id = ?", userID)

	var fresh []ContentItem
	if err := db.Where("category = ? AND approved = ?", category, true).
		Where("id NOT IN (?)", shown).
		Order("id").
		Find(&fresh).Error; err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	if len(fresh) > 0 {
		return s.choose(category, fresh), nil
	}

	var pool []ContentItem
	if err := db.Where("category = ? AND approved = ?", category, true).
		Order("id").
		Find(&pool).Error; err != nil {
		return nil, fmt.Errorf("load pool: %w", err)
	}
	if len(pool) == 0 {
		return nil, nil
	}
	return s.choose(category, pool), nil
}

func (s *Service) choose(category string, items []ContentItem) *ContentItem {
	preferred := make([]ContentItem, 0, len(items))
	for _, it := range items {
		if s.Catalog.InWindow(category, it.DurationSeconds) {
			preferred = append(preferred, it)
		}
	}
	if len(preferred) == 0 {
		preferred = items
	}
	pick := preferred[s.intn(len(preferred))]
	return &pick
}

type Card struct {
	Category string       `json:"category"`
	Item     *ContentItem `json:"item"`
	// Empty means no approved content exists for the category yet.
	Empty bool `json:"empty"`
	// Kept is true when the item is already in the user's collection.
	Kept bool `json:"kept"`
}

type Today struct {
	Day            calendar.Day `json:"day"`
	Cards          []Card       `json:"cards"`
	Quota          int          `json:"quota"`
	KeptToday      int          `json:"kept_today"`
	KeptCategories []string     `json:"kept_categories"`
	Streak         int          `json:"streak"`
}

// TodaysCards ensures every category has today's allocation and returns the
// cards with the user's keep state.
func (s *Service) TodaysCards(ctx context.Context, userID uint64) (*Today, error) {
	day := s.today()
	db := s.DB.WithContext(ctx)

	out := &Today{Day: day, KeptCategories: []string{}}
	itemIDs := []uint64{}
	for _, cat := range s.Catalog.CategoryNames() {
		item, err := s.EnsureAllocated(ctx, day, cat, userID)
		if err != nil {
			return nil, err
		}
		out.Cards = append(out.Cards, Card{Category: cat, Item: item, Empty: item == nil})
		if item != nil {
			itemIDs = append(itemIDs, item.ID)
		}
	}

	// deleted keeps still block the item and the category, so they count here
	kept := map[uint64]bool{}
	if len(itemIDs) > 0 {
		var ids []uint64
		if err := db.Unscoped().Model(&CollectionEntry{}).
			Where("user_id = ? AND content_item_id IN ?", userID, itemIDs).
			Pluck("content_item_id", &ids).Error; err != nil {
			return nil, fmt.Errorf("load kept items: %w", err)
		}
		for _, id := range ids {
			kept[id] = true
		}
	}
	for i := range out.Cards {
		if it := out.Cards[i].Item; it != nil {
			out.Cards[i].Kept = kept[it.ID]
		}
	}

	if err := db.Unscoped().Model(&CollectionEntry{}).
		Where("user_id = ? AND kept_on = ? AND is_submission = ?", userID, day, false).
		Order("category").
		Pluck("category", &out.KeptCategories).Error; err != nil {
		return nil, fmt.Errorf("load kept categories: %w", err)
	}
	out.KeptToday = len(out.KeptCategories)

	p, err := loadProgress(db, userID)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	out.Quota = Quota(p.SubmissionCredit, s.Catalog.DailyKeepCap)
	out.Streak = ActiveStreak(p.Streak, p.LastKeepOn, day)
	return out, nil
}
