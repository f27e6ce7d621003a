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
	"ritual/internal/metrics"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	CodeReflectionTooShort       = "ReflectionTooShort"
	CodeDailyQuotaExceeded       = "DailyQuotaExceeded"
	CodeCategoryAlreadyKeptToday = "CategoryAlreadyKeptToday"
	CodeAlreadyInCollection      = "AlreadyInCollection"
	CodeItemNotFound             = "ItemNotFound"
	CodeEntryNotFound            = "EntryNotFound"
	CodeNotASubmission           = "NotASubmission"
	CodeNotDealt                 = "NotDealt"
)

type KeepResult struct {
	Entry     CollectionEntry `json:"entry"`
	Streak    int             `json:"streak"`
	KeptToday int             `json:"kept_today"`
	Quota     int             `json:"quota"`
}

// Keep commits an item to the user's collection. Only items that have been
// dealt as a daily card, today or earlier, can be kept. Checks run in a fixed
// order, each with its own rejection: reflection length, daily quota, category
// already kept today, item already in the collection. The count checks, the
// insert and the streak update share one transaction under the user's
// progress row lock.
func (s *Service) Keep(ctx context.Context, userID, itemID uint64, reflection string) (*KeepResult, error) {
	res, err := s.keep(ctx, userID, itemID, reflection)
	if err != nil {
		metrics.Get().ObserveRejection("keep", err)
		if ae, ok := apperr.As(err); ok {
			logger.Log.WithFields(logrus.Fields{
				"user_id": userID,
				"item_id": itemID,
				"reason":  ae.Code,
			}).Info("keep rejected")
		}
		return nil, err
	}

	metrics.Get().Keeps.Inc()
	s.notify(ctx, analytics.CardKept, userID, map[string]any{
		"item_id":  itemID,
		"category": res.Entry.Category,
		"streak":   res.Streak,
	})
	return res, nil
}

func (s *Service) keep(ctx context.Context, userID, itemID uint64, reflection string) (*KeepResult, error) {
	reflection = strings.TrimSpace(reflection)
	if n := utf8.RuneCountInString(reflection); n < s.Catalog.KeepReflectionMin {
		return nil, apperr.Rejection(CodeReflectionTooShort, "reflection must be at least %d characters", s.Catalog.KeepReflectionMin).
			With("min", s.Catalog.KeepReflectionMin).
			With("length", n)
	}

	db := s.DB.WithContext(ctx)
	var item ContentItem
	if err := db.Where("id = ? AND approved = ?", itemID, true).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(CodeItemNotFound, "content item %d not found", itemID)
		}
		return nil, fmt.Errorf("load item: %w", err)
	}

	today := s.today()
	var dealt int64
	if err := db.Model(&DailyAllocation{}).
		Where("content_item_id = ? AND day <= ?", item.ID, today).
		Count(&dealt).Error; err != nil {
		return nil, fmt.Errorf("check allocation: %w", err)
	}
	if dealt == 0 {
		return nil, apperr.Rejection(CodeNotDealt, "item %d has not been dealt as a card", item.ID).
			With("item_id", item.ID)
	}

	var out KeepResult
	err := db.Transaction(func(tx *gorm.DB) error {
		p, err := lockProgress(tx, userID)
		if err != nil {
			return fmt.Errorf("lock progress: %w", err)
		}

		quota := Quota(p.SubmissionCredit, s.Catalog.DailyKeepCap)
		count, err := countKeptOn(tx, userID, today)
		if err != nil {
			return err
		}
		if int(count) >= quota {
			return apperr.Rejection(CodeDailyQuotaExceeded, "kept %d of %d cards today", count, quota).
				With("limit", quota).
				With("count", int(count))
		}

		var sameCategory int64
		if err := tx.Unscoped().Model(&CollectionEntry{}).
			Where("user_id = ? AND kept_on = ? AND is_submission = ? AND category = ?", userID, today, false, item.Category).
			Count(&sameCategory).Error; err != nil {
			return fmt.Errorf("count category keeps: %w", err)
		}
		if sameCategory > 0 {
			return apperr.Rejection(CodeCategoryAlreadyKeptToday, "already kept a %s card today", item.Category).
				With("category", item.Category)
		}

		// a deleted entry still holds the (user, item) unique key
		var dup int64
		if err := tx.Unscoped().Model(&CollectionEntry{}).
			Where("user_id = ? AND content_item_id = ?", userID, item.ID).
			Count(&dup).Error; err != nil {
			return fmt.Errorf("check collection: %w", err)
		}
		if dup > 0 {
			return alreadyInCollection(item.ID)
		}

		entry := CollectionEntry{
			UserID:        userID,
			ContentItemID: item.ID,
			Category:      item.Category,
			KeptOn:        today,
			Reflection:    reflection,
		}
		if err := tx.Create(&entry).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return alreadyInCollection(item.ID)
			}
			return fmt.Errorf("insert collection entry: %w", err)
		}

		p.Streak = NextStreak(p.Streak, p.LastKeepOn, today)
		p.LastKeepOn = today
		if err := tx.Save(p).Error; err != nil {
			return fmt.Errorf("update progress: %w", err)
		}

		out = KeepResult{
			Entry:     entry,
			Streak:    p.Streak,
			KeptToday: int(count) + 1,
			Quota:     quota,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func alreadyInCollection(itemID uint64) *apperr.Error {
	return apperr.Rejection(CodeAlreadyInCollection, "item %d is already in your collection", itemID).
		With("item_id", itemID)
}
