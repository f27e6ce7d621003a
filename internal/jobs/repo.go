package jobs

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RUNNING jobs locked longer than this are handed back to the queue.
const staleAfter = 5 * time.Minute

type Repo struct {
	DB *gorm.DB
}

func (r *Repo) Enqueue(ctx context.Context, j *Job) error {
	if j.Status == "" {
		j.Status = StatusPending
	}
	if j.MaxAttempts == 0 {
		j.MaxAttempts = defaultMaxAttempts
	}
	return r.DB.WithContext(ctx).Create(j).Error
}

// Claim one due job atomically. On Postgres the row lock uses SKIP LOCKED so
// concurrent workers never double-claim; SQLite drops the locking clause and
// serializes through its single writer.
func (r *Repo) Claim(ctx context.Context, workerID string, now time.Time) (*Job, error) {
	now = now.UTC()
	var job Job
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// requeue stuck RUNNING jobs
		if err := tx.Model(&Job{}).
			Where("status = ? AND locked_at IS NOT NULL AND locked_at < ?", StatusRunning, now.Add(-staleAfter)).
			Updates(map[string]any{
				"status":     StatusPending,
				"locked_by":  nil,
				"locked_at":  nil,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}

		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND run_at <= ?", StatusPending, now).
			Order("run_at asc").
			First(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			job = Job{}
			return nil
		}
		if err != nil {
			return err
		}

		return tx.Model(&Job{}).
			Where("id = ?", job.ID).
			Updates(map[string]any{
				"status":     StatusRunning,
				"locked_by":  workerID,
				"locked_at":  now,
				"updated_at": now,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	if job.ID == 0 {
		return nil, nil
	}
	job.Status = StatusRunning
	job.LockedBy = &workerID
	job.LockedAt = &now
	return &job, nil
}

func (r *Repo) MarkDone(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&Job{}).Where("id = ?", id).
		Updates(map[string]any{"status": StatusDone, "updated_at": time.Now().UTC()}).Error
}

func (r *Repo) MarkFailed(ctx context.Context, id uint64, errMsg string) error {
	return r.DB.WithContext(ctx).Model(&Job{}).Where("id = ?", id).
		Updates(map[string]any{"status": StatusFailed, "last_error": errMsg, "updated_at": time.Now().UTC()}).Error
}

func (r *Repo) RetryLater(ctx context.Context, id uint64, attempts int, runAt time.Time, errMsg string) error {
	return r.DB.WithContext(ctx).Model(&Job{}).Where("id = ?", id).
		Updates(map[string]any{
			"status":     StatusPending,
			"attempts":   attempts,
			"run_at":     runAt.UTC(),
			"locked_by":  nil,
			"locked_at":  nil,
			"last_error": errMsg,
			"updated_at": time.Now().UTC(),
		}).Error
}
