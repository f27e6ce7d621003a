// Package explore picks the daily walk prompts and manages each user's walk
// queue: save (planned), complete, cancel.
package explore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"ritual/internal/analytics"
	"ritual/internal/apperr"
	"ritual/internal/calendar"
	"ritual/internal/catalog"
	"ritual/internal/logger"
	"ritual/internal/metrics"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	CodeUnknownActivity            = "UnknownActivity"
	CodeAlreadySavedToday          = "AlreadySavedToday"
	CodeQueueFull                  = "QueueFull"
	CodeAlreadySaved               = "AlreadySaved"
	CodeReflectionTooShort         = "ReflectionTooShort"
	CodeNotFoundOrAlreadyCompleted = "NotFoundOrAlreadyCompleted"
)

type Service struct {
	DB      *gorm.DB
	Catalog *catalog.Catalog
	Clock   calendar.Clock
	Loc     *time.Location
	Events  analytics.Notifier
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func (s *Service) Today() calendar.Day {
	return calendar.DayOf(s.now(), s.Loc)
}

func (s *Service) notify(ctx context.Context, typ string, userID uint64, activityID string) {
	if s.Events == nil {
		return
	}
	s.Events.Notify(ctx, analytics.Event{
		Type:   typ,
		UserID: userID,
		At:     s.now().UTC(),
		Data:   map[string]any{"activity_id": activityID},
	})
}

type Card struct {
	Category string            `json:"category"`
	Activity *catalog.Activity `json:"activity,omitempty"`
	// AllDone means the user has saved every activity of the category.
	AllDone bool `json:"all_done"`
}

type Daily struct {
	Day          calendar.Day `json:"day"`
	Cards        []Card       `json:"cards"`
	SavedToday   bool         `json:"saved_today"`
	PlannedCount int          `json:"planned_count"`
	QueueCap     int          `json:"queue_cap"`
}

// DailyActivities returns one activity per category for day. Anything the
// user has ever saved, planned or completed, is excluded.
func (s *Service) DailyActivities(ctx context.Context, day calendar.Day, userID uint64) (*Daily, error) {
	db := s.DB.WithContext(ctx)

	var keeps []ExploreKeep
	if err := db.Where("user_id = ?", userID).Find(&keeps).Error; err != nil {
		return nil, fmt.Errorf("load walks: %w", err)
	}
	excluded := make(map[string]bool, len(keeps))
	out := &Daily{Day: day, QueueCap: s.Catalog.WalkQueueCap}
	for _, k := range keeps {
		excluded[k.ActivityID] = true
		if k.Status == StatusPlanned {
			out.PlannedCount++
		}
		if k.SavedOn == day {
			out.SavedToday = true
		}
	}

	for _, cat := range s.Catalog.CategoryNames() {
		a, ok := Pick(day, cat, s.Catalog.ExploreCandidates(cat), excluded)
		if !ok {
			out.Cards = append(out.Cards, Card{Category: cat, AllDone: true})
			continue
		}
		out.Cards = append(out.Cards, Card{Category: cat, Activity: &a})
	}
	return out, nil
}

// Save adds an activity to the user's queue as planned. One save per day
// across all categories, and at most WalkQueueCap planned walks.
func (s *Service) Save(ctx context.Context, userID uint64, activityID string) (*ExploreKeep, error) {
	k, err := s.save(ctx, userID, activityID)
	if err != nil {
		metrics.Get().ObserveRejection("walk_save", err)
		return nil, err
	}
	metrics.Get().WalkTransitions.WithLabelValues("saved").Inc()
	logger.Log.WithFields(logrus.Fields{"user_id": userID, "activity_id": activityID}).Info("walk saved")
	s.notify(ctx, analytics.WalkSaved, userID, activityID)
	return k, nil
}

func (s *Service) save(ctx context.Context, userID uint64, activityID string) (*ExploreKeep, error) {
	a, ok := s.Catalog.Activity(activityID)
	if !ok {
		return nil, apperr.Validation(CodeUnknownActivity, "unknown activity %q", activityID)
	}

	today := s.Today()
	k := ExploreKeep{
		UserID:     userID,
		ActivityID: a.ID,
		Category:   a.Category,
		Status:     StatusPlanned,
		SavedOn:    today,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q, err := lockQueue(tx, userID)
		if err != nil {
			return fmt.Errorf("lock walk queue: %w", err)
		}

		var savedToday int64
		if err := tx.Model(&ExploreKeep{}).
			Where("user_id = ? AND saved_on = ?", userID, today).
			Count(&savedToday).Error; err != nil {
			return fmt.Errorf("count saves: %w", err)
		}
		if savedToday > 0 {
			return apperr.Rejection(CodeAlreadySavedToday, "one walk can be saved per day").
				With("day", today)
		}

		var planned int64
		if err := tx.Model(&ExploreKeep{}).
			Where("user_id = ? AND status = ?", userID, StatusPlanned).
			Count(&planned).Error; err != nil {
			return fmt.Errorf("count planned: %w", err)
		}
		if int(planned) >= s.Catalog.WalkQueueCap {
			return apperr.Rejection(CodeQueueFull, "walk queue holds at most %d planned walks", s.Catalog.WalkQueueCap).
				With("limit", s.Catalog.WalkQueueCap).
				With("count", int(planned))
		}

		var dup int64
		if err := tx.Model(&ExploreKeep{}).
			Where("user_id = ? AND activity_id = ?", userID, a.ID).
			Count(&dup).Error; err != nil {
			return fmt.Errorf("check walk: %w", err)
		}
		if dup > 0 {
			return alreadySaved(a.ID)
		}

		if err := tx.Create(&k).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return alreadySaved(a.ID)
			}
			return fmt.Errorf("insert walk: %w", err)
		}

		q.LastSavedOn = today
		if err := tx.Save(q).Error; err != nil {
			return fmt.Errorf("update walk queue: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// lockQueue returns the user's walk queue row, creating it if needed, and
// holds a row lock on it for the rest of tx.
func lockQueue(tx *gorm.DB, userID uint64) (*WalkQueue, error) {
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&WalkQueue{UserID: userID}).Error; err != nil {
		return nil, err
	}
	var q WalkQueue
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&q).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

func alreadySaved(activityID string) *apperr.Error {
	return apperr.Rejection(CodeAlreadySaved, "%s is already in your walks", activityID).
		With("activity_id", activityID)
}

// Complete moves a planned walk to completed with the user's reflection.
func (s *Service) Complete(ctx context.Context, userID uint64, activityID, reflection string) (*ExploreKeep, error) {
	k, err := s.complete(ctx, userID, activityID, reflection)
	if err != nil {
		metrics.Get().ObserveRejection("walk_complete", err)
		return nil, err
	}
	metrics.Get().WalkTransitions.WithLabelValues("completed").Inc()
	logger.Log.WithFields(logrus.Fields{"user_id": userID, "activity_id": activityID}).Info("walk completed")
	s.notify(ctx, analytics.WalkCompleted, userID, activityID)
	return k, nil
}

func (s *Service) complete(ctx context.Context, userID uint64, activityID, reflection string) (*ExploreKeep, error) {
	reflection = strings.TrimSpace(reflection)
	if n := utf8.RuneCountInString(reflection); n < s.Catalog.WalkReflectionMin {
		return nil, apperr.Rejection(CodeReflectionTooShort, "reflection must be at least %d characters", s.Catalog.WalkReflectionMin).
			With("min", s.Catalog.WalkReflectionMin).
			With("length", n)
	}

	db := s.DB.WithContext(ctx)
	today := s.Today()
	res := db.Model(&ExploreKeep{}).
		Where("user_id = ? AND activity_id = ? AND status = ?", userID, activityID, StatusPlanned).
		Updates(map[string]any{
			"status":       StatusCompleted,
			"reflection":   reflection,
			"completed_on": today,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("complete walk: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound(CodeNotFoundOrAlreadyCompleted, "no planned walk %q", activityID).
			With("activity_id", activityID)
	}

	var k ExploreKeep
	if err := db.Where("user_id = ? AND activity_id = ?", userID, activityID).First(&k).Error; err != nil {
		return nil, fmt.Errorf("reload walk: %w", err)
	}
	return &k, nil
}

// Cancel deletes a planned walk. Cancelling a walk that is missing or already
// completed is not an error.
func (s *Service) Cancel(ctx context.Context, userID uint64, activityID string) error {
	res := s.DB.WithContext(ctx).
		Where("user_id = ? AND activity_id = ? AND status = ?", userID, activityID, StatusPlanned).
		Delete(&ExploreKeep{})
	if res.Error != nil {
		return fmt.Errorf("cancel walk: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		metrics.Get().WalkTransitions.WithLabelValues("cancelled").Inc()
		s.notify(ctx, analytics.WalkCancelled, userID, activityID)
	}
	return nil
}

type Queue struct {
	Planned   []ExploreKeep `json:"planned"`
	Completed []ExploreKeep `json:"completed"`
}

func (s *Service) Queue(ctx context.Context, userID uint64) (*Queue, error) {
	var keeps []ExploreKeep
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("saved_on asc, id asc").
		Find(&keeps).Error; err != nil {
		return nil, fmt.Errorf("load walks: %w", err)
	}

	out := &Queue{Planned: []ExploreKeep{}, Completed: []ExploreKeep{}}
	for _, k := range keeps {
		if k.Status == StatusCompleted {
			out.Completed = append(out.Completed, k)
		} else {
			out.Planned = append(out.Planned, k)
		}
	}
	return out, nil
}
