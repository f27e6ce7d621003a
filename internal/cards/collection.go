package cards

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"ritual/internal/analytics"
	"ritual/internal/apperr"
	"ritual/internal/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SubmissionResult struct {
	Entry CollectionEntry `json:"entry"`
	// Credited is false when the submission had already been recorded.
	Credited         bool `json:"credited"`
	SubmissionCredit int  `json:"submission_credit"`
}

// RecordApprovedSubmission puts a user's own approved item into their
// collection and grants one submission credit. It bypasses quota and the
// category guard, and is idempotent per (user, item).
func (s *Service) RecordApprovedSubmission(ctx context.Context, userID, itemID uint64) (*SubmissionResult, error) {
	db := s.DB.WithContext(ctx)

	var item ContentItem
	if err := db.Where("id = ?", itemID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(CodeItemNotFound, "content item %d not found", itemID)
		}
		return nil, fmt.Errorf("load item: %w", err)
	}
	if !item.Approved || item.SubmittedBy == nil || *item.SubmittedBy != userID {
		return nil, apperr.Validation(CodeNotASubmission, "item %d is not an approved submission by user %d", itemID, userID)
	}

	today := s.today()
	var out SubmissionResult
	err := db.Transaction(func(tx *gorm.DB) error {
		entry := CollectionEntry{
			UserID:        userID,
			ContentItemID: item.ID,
			Category:      item.Category,
			KeptOn:        today,
			IsSubmission:  true,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
		if res.Error != nil {
			return fmt.Errorf("insert submission entry: %w", res.Error)
		}

		p, err := lockProgress(tx, userID)
		if err != nil {
			return fmt.Errorf("lock progress: %w", err)
		}

		if res.RowsAffected == 1 {
			p.SubmissionCredit++
			if err := tx.Save(p).Error; err != nil {
				return fmt.Errorf("update progress: %w", err)
			}
			out.Credited = true
		} else if err := tx.Unscoped().Where("user_id = ? AND content_item_id = ?", userID, item.ID).First(&entry).Error; err != nil {
			return fmt.Errorf("reload entry: %w", err)
		}

		out.Entry = entry
		out.SubmissionCredit = p.SubmissionCredit
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.Credited {
		logger.Log.WithFields(logrus.Fields{"user_id": userID, "item_id": itemID}).Info("submission recorded")
		s.notify(ctx, analytics.SubmissionApproved, userID, map[string]any{
			"item_id":  itemID,
			"category": item.Category,
		})
	}
	return &out, nil
}

type CollectionItem struct {
	CollectionEntry
	Item *ContentItem `json:"item,omitempty"`
}

func (s *Service) Collection(ctx context.Context, userID uint64) ([]CollectionItem, error) {
	db := s.DB.WithContext(ctx)

	var entries []CollectionEntry
	if err := db.Where("user_id = ?", userID).Order("created_at desc, id desc").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("load collection: %w", err)
	}
	if len(entries) == 0 {
		return []CollectionItem{}, nil
	}

	ids := make([]uint64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ContentItemID)
	}
	var items []ContentItem
	if err := db.Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("load collection items: %w", err)
	}
	byID := make(map[uint64]*ContentItem, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}

	out := make([]CollectionItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, CollectionItem{CollectionEntry: e, Item: byID[e.ContentItemID]})
	}
	return out, nil
}

type EntryUpdate struct {
	Reflection *string
	Public     *bool
}

// UpdateEntry edits the reflection text or visibility of the owner's entry.
// Nothing else about a kept card is mutable.
func (s *Service) UpdateEntry(ctx context.Context, userID, entryID uint64, upd EntryUpdate) (*CollectionEntry, error) {
	db := s.DB.WithContext(ctx)

	var entry CollectionEntry
	if err := db.Where("id = ? AND user_id = ?", entryID, userID).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(CodeEntryNotFound, "collection entry %d not found", entryID)
		}
		return nil, fmt.Errorf("load entry: %w", err)
	}

	changes := map[string]any{}
	if upd.Reflection != nil {
		r := strings.TrimSpace(*upd.Reflection)
		// submissions may carry an empty reflection, but an edit must meet the minimum
		if n := utf8.RuneCountInString(r); n < s.Catalog.KeepReflectionMin {
			return nil, apperr.Rejection(CodeReflectionTooShort, "reflection must be at least %d characters", s.Catalog.KeepReflectionMin).
				With("min", s.Catalog.KeepReflectionMin).
				With("length", n)
		}
		changes["reflection"] = r
		entry.Reflection = r
	}
	if upd.Public != nil {
		changes["public"] = *upd.Public
		entry.Public = *upd.Public
	}
	if len(changes) == 0 {
		return &entry, nil
	}

	if err := db.Model(&CollectionEntry{}).Where("id = ? AND user_id = ?", entryID, userID).Updates(changes).Error; err != nil {
		return nil, fmt.Errorf("update entry: %w", err)
	}
	return &entry, nil
}

// DeleteEntry removes one of the owner's kept cards from the collection. The
// row is soft deleted so the day's quota and category guard still see it.
// Progress and shown records are untouched.
func (s *Service) DeleteEntry(ctx context.Context, userID, entryID uint64) error {
	res := s.DB.WithContext(ctx).Where("id = ? AND user_id = ?", entryID, userID).Delete(&CollectionEntry{})
	if res.Error != nil {
		return fmt.Errorf("delete entry: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(CodeEntryNotFound, "collection entry %d not found", entryID)
	}
	return nil
}
