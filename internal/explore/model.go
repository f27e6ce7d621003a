package explore

import (
	"time"

	"ritual/internal/calendar"
)

const (
	StatusPlanned   = "planned"
	StatusCompleted = "completed"
)

// ExploreKeep is a walk the user saved. It is created planned, moves to
// completed once, or is deleted while still planned.
type ExploreKeep struct {
	ID         uint64 `gorm:"primaryKey" json:"id"`
	UserID     uint64 `gorm:"not null;uniqueIndex:uq_explore_user_activity,priority:1" json:"user_id"`
	ActivityID string `gorm:"not null;uniqueIndex:uq_explore_user_activity,priority:2" json:"activity_id"`
	Category   string `gorm:"not null" json:"category"`
	Status     string `gorm:"type:varchar(16);not null" json:"status"`
	Reflection string `gorm:"type:text;not null;default:''" json:"reflection,omitempty"`

	SavedOn calendar.Day `gorm:"type:varchar(10);not null" json:"saved_on"`
	// Empty while planned.
	CompletedOn calendar.Day `gorm:"type:varchar(10);not null;default:''" json:"completed_on,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WalkQueue is the per-user row that saves lock before counting, so two
// concurrent saves cannot both pass the daily and queue limits.
type WalkQueue struct {
	UserID      uint64       `gorm:"primaryKey;autoIncrement:false"`
	LastSavedOn calendar.Day `gorm:"type:varchar(10);not null;default:''"`
	UpdatedAt   time.Time
}
