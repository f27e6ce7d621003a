package jobs

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"ritual/internal/analytics"
	"ritual/internal/logger"
	"ritual/internal/metrics"
)

type Worker struct {
	ID        string
	Repo      *Repo
	Publisher analytics.Publisher
	Interval  time.Duration
	Now       func() time.Time
}

func (w *Worker) Run(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = 800 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				logger.Log.WithError(err).WithField("worker", w.ID).Warn("worker claim error")
			}
		}
	}
}

// RunOnce claims and handles at most one due job and reports whether one was
// found.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.Repo.Claim(ctx, w.ID, w.now())
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	w.handle(ctx, job)
	return true, nil
}

func (w *Worker) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

func (w *Worker) handle(ctx context.Context, job *Job) {
	switch job.Type {
	case TypeAnalyticsEvent:
		w.handleEvent(ctx, job)
	default:
		_ = w.Repo.MarkFailed(ctx, job.ID, "unknown job type")
		metrics.Get().AnalyticsJobs.WithLabelValues("failed").Inc()
	}
}

func (w *Worker) handleEvent(ctx context.Context, job *Job) {
	var ev analytics.Event
	if err := json.Unmarshal(job.Payload, &ev); err != nil {
		_ = w.Repo.MarkFailed(ctx, job.ID, "bad payload")
		metrics.Get().AnalyticsJobs.WithLabelValues("failed").Inc()
		return
	}

	if err := w.Publisher.Publish(ctx, ev); err != nil {
		w.retry(ctx, job, err.Error())
		return
	}
	_ = w.Repo.MarkDone(ctx, job.ID)
	metrics.Get().AnalyticsJobs.WithLabelValues("published").Inc()
}

func (w *Worker) retry(ctx context.Context, job *Job, errMsg string) {
	attempts := job.Attempts + 1
	if attempts >= job.MaxAttempts {
		_ = w.Repo.MarkFailed(ctx, job.ID, errMsg)
		metrics.Get().AnalyticsJobs.WithLabelValues("failed").Inc()
		return
	}

	sec := math.Min(math.Pow(2, float64(attempts)), 600)
	next := w.now().Add(time.Duration(sec) * time.Second)

	_ = w.Repo.RetryLater(ctx, job.ID, attempts, next, errMsg)
	metrics.Get().AnalyticsJobs.WithLabelValues("retried").Inc()
}
