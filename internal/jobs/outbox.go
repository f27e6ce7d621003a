package jobs

import (
	"context"
	"encoding/json"
	"time"

	"ritual/internal/analytics"
	"ritual/internal/logger"
	"ritual/internal/metrics"

	"github.com/sirupsen/logrus"
)

// Outbox implements analytics.Notifier by queueing events as jobs for the
// worker. Enqueue failures are logged and dropped.
type Outbox struct {
	Repo *Repo
	Now  func() time.Time
}

func (o *Outbox) Notify(ctx context.Context, ev analytics.Event) {
	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	if ev.At.IsZero() {
		ev.At = now().UTC()
	}

	payload, err := json.Marshal(ev)
	if err == nil {
		err = o.Repo.Enqueue(ctx, &Job{
			UserID:  ev.UserID,
			Type:    TypeAnalyticsEvent,
			Payload: payload,
			RunAt:   now().UTC(),
		})
	}
	if err != nil {
		metrics.Get().AnalyticsJobs.WithLabelValues("dropped").Inc()
		logger.Log.WithError(err).WithFields(logrus.Fields{
			"event":   ev.Type,
			"user_id": ev.UserID,
		}).Warn("analytics event dropped")
	}
}
