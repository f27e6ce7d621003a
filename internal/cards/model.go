package cards

import (
	"time"

	"ritual/internal/calendar"

	"gorm.io/gorm"
)

// ContentItem is an entry of the content pool. Items are created and approved
// by moderation; the engine only reads them.
type ContentItem struct {
	ID              uint64  `gorm:"primaryKey" json:"id"`
	Category        string  `gorm:"index;not null" json:"category"`
	Title           string  `gorm:"not null;default:''" json:"title"`
	URL             string  `gorm:"type:text;not null;default:''" json:"url"`
	DurationSeconds *int    `json:"duration_seconds,omitempty"`
	Approved        bool    `gorm:"index;not null;default:false" json:"-"`
	SubmittedBy     *uint64 `gorm:"index" json:"submitted_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ShownRecord marks an item as used up for a user, forever.
type ShownRecord struct {
	ID            uint64       `gorm:"primaryKey"`
	UserID        uint64       `gorm:"not null;uniqueIndex:uq_shown_user_item,priority:1"`
	ContentItemID uint64       `gorm:"not null;uniqueIndex:uq_shown_user_item,priority:2"`
	ShownOn       calendar.Day `gorm:"type:varchar(10);not null"`
	CreatedAt     time.Time
}

// DailyAllocation is shared by every user: one item per (day, category).
type DailyAllocation struct {
	ID            uint64       `gorm:"primaryKey"`
	Day           calendar.Day `gorm:"type:varchar(10);not null;uniqueIndex:uq_alloc_day_category,priority:1"`
	Category      string       `gorm:"not null;uniqueIndex:uq_alloc_day_category,priority:2"`
	ContentItemID uint64       `gorm:"not null"`
	AllocatedBy   uint64       `gorm:"not null"`
	CreatedAt     time.Time
}

// CollectionEntry is a kept card. Category and KeptOn are copied from the item
// and the request day so the per-day guards are single-table counts.
// Deletion is soft: the per-day guards read deleted rows too, so removing a
// keep never gives a slot back.
type CollectionEntry struct {
	ID            uint64       `gorm:"primaryKey" json:"id"`
	UserID        uint64       `gorm:"not null;uniqueIndex:uq_collection_user_item,priority:1;index:idx_collection_user_day,priority:1" json:"user_id"`
	ContentItemID uint64       `gorm:"not null;uniqueIndex:uq_collection_user_item,priority:2" json:"content_item_id"`
	Category      string       `gorm:"not null" json:"category"`
	KeptOn        calendar.Day `gorm:"type:varchar(10);not null;index:idx_collection_user_day,priority:2" json:"kept_on"`
	Reflection    string       `gorm:"type:text;not null;default:''" json:"reflection"`
	Public        bool         `gorm:"not null;default:false" json:"public"`
	IsSubmission  bool         `gorm:"not null;default:false" json:"is_submission"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

type UserProgress struct {
	UserID           uint64 `gorm:"primaryKey;autoIncrement:false"`
	SubmissionCredit int    `gorm:"not null;default:0"`
	Streak           int    `gorm:"not null;default:0"`
	// Empty until the first keep.
	LastKeepOn calendar.Day `gorm:"type:varchar(10);not null;default:''"`
	UpdatedAt  time.Time
}

func (UserProgress) TableName() string { return "user_progress" }
