package cards

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"ritual/internal/analytics"
	"ritual/internal/calendar"
	"ritual/internal/catalog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	DB      *gorm.DB
	Catalog *catalog.Catalog
	Clock   calendar.Clock
	Loc     *time.Location
	Events  analytics.Notifier

	// Intn picks the tie-break among equally ranked candidates.
	// Defaults to math/rand/v2.
	Intn func(n int) int
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func (s *Service) today() calendar.Day {
	return calendar.DayOf(s.now(), s.Loc)
}

func (s *Service) intn(n int) int {
	if s.Intn != nil {
		return s.Intn(n)
	}
	return rand.IntN(n)
}

func (s *Service) notify(ctx context.Context, typ string, userID uint64, data map[string]any) {
	if s.Events == nil {
		return
	}
	s.Events.Notify(ctx, analytics.Event{Type: typ, UserID: userID, At: s.now().UTC(), Data: data})
}

// lockProgress returns the user's progress row, creating it if needed, and
// holds a row lock on it for the rest of tx. Keeps by the same user serialize
// on this lock.
func lockProgress(tx *gorm.DB, userID uint64) (*UserProgress, error) {
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&UserProgress{UserID: userID}).Error; err != nil {
		return nil, err
	}
	var p UserProgress
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func loadProgress(db *gorm.DB, userID uint64) (UserProgress, error) {
	var p UserProgress
	err := db.Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return UserProgress{UserID: userID}, nil
	}
	return p, err
}

type ProgressView struct {
	Streak           int          `json:"streak"`
	ActiveStreak     int          `json:"active_streak"`
	LastKeepOn       calendar.Day `json:"last_keep_on,omitempty"`
	SubmissionCredit int          `json:"submission_credit"`
	Quota            int          `json:"quota"`
	KeptToday        int          `json:"kept_today"`
}

func (s *Service) Progress(ctx context.Context, userID uint64) (*ProgressView, error) {
	db := s.DB.WithContext(ctx)
	today := s.today()

	p, err := loadProgress(db, userID)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	kept, err := countKeptOn(db, userID, today)
	if err != nil {
		return nil, err
	}

	return &ProgressView{
		Streak:           p.Streak,
		ActiveStreak:     ActiveStreak(p.Streak, p.LastKeepOn, today),
		LastKeepOn:       p.LastKeepOn,
		SubmissionCredit: p.SubmissionCredit,
		Quota:            Quota(p.SubmissionCredit, s.Catalog.DailyKeepCap),
		KeptToday:        int(kept),
	}, nil
}

// Stats are the cumulative totals the reward detector reads.
type Stats struct {
	Streak int
	// Distinct calendar days with at least one collection entry, self
	// submissions and deleted entries included.
	TotalDays int
	// Live collection size, self submissions included.
	Kept int
}

func (s *Service) Stats(ctx context.Context, userID uint64) (Stats, error) {
	db := s.DB.WithContext(ctx)

	p, err := loadProgress(db, userID)
	if err != nil {
		return Stats{}, fmt.Errorf("load progress: %w", err)
	}

	var days, kept int64
	if err := db.Unscoped().Model(&CollectionEntry{}).
		Where("user_id = ?", userID).
		Distinct("kept_on").
		Count(&days).Error; err != nil {
		return Stats{}, fmt.Errorf("count engaged days: %w", err)
	}
	if err := db.Model(&CollectionEntry{}).
		Where("user_id = ?", userID).
		Count(&kept).Error; err != nil {
		return Stats{}, fmt.Errorf("count collection: %w", err)
	}

	return Stats{Streak: p.Streak, TotalDays: int(days), Kept: int(kept)}, nil
}

// countKeptOn counts the day's allocation-flow keeps, deleted ones included;
// self submissions never use quota.
func countKeptOn(db *gorm.DB, userID uint64, day calendar.Day) (int64, error) {
	var n int64
	err := db.Unscoped().Model(&CollectionEntry{}).
		Where("user_id = ? AND kept_on = ? AND is_submission = ?", userID, day, false).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count keeps: %w", err)
	}
	return n, nil
}
