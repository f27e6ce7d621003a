package metrics

import (
	"sync"

	"ritual/internal/apperr"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	global *Metrics
	once   sync.Once
)

// Metrics holds the engine's Prometheus collectors. They are registered once
// per process on the default registry.
//
//   - ritual_allocations_total{outcome} - allocated, existing, lost_race, empty
//   - ritual_keeps_total - accepted keeps
//   - ritual_rejections_total{operation,reason} - policy rejections
//   - ritual_milestone_claims_total{milestone}
//   - ritual_walk_transitions_total{transition} - saved, completed, cancelled
//   - ritual_analytics_jobs_total{status} - published, retried, failed, dropped
type Metrics struct {
	Allocations     *prometheus.CounterVec
	Keeps           prometheus.Counter
	Rejections      *prometheus.CounterVec
	MilestoneClaims *prometheus.CounterVec
	WalkTransitions *prometheus.CounterVec
	AnalyticsJobs   *prometheus.CounterVec
}

func Get() *Metrics {
	once.Do(func() {
		global = &Metrics{
			Allocations: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ritual_allocations_total",
					Help: "Daily card allocation requests by outcome",
				},
				[]string{"outcome"},
			),
			Keeps: promauto.NewCounter(prometheus.CounterOpts{
				Name: "ritual_keeps_total",
				Help: "Cards kept into a collection",
			}),
			Rejections: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ritual_rejections_total",
					Help: "Policy rejections by operation and reason",
				},
				[]string{"operation", "reason"},
			),
			MilestoneClaims: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ritual_milestone_claims_total",
					Help: "Milestone rewards claimed",
				},
				[]string{"milestone"},
			),
			WalkTransitions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ritual_walk_transitions_total",
					Help: "Walk queue transitions",
				},
				[]string{"transition"},
			),
			AnalyticsJobs: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ritual_analytics_jobs_total",
					Help: "Analytics outbox jobs by final status",
				},
				[]string{"status"},
			),
		}
	})
	return global
}

// ObserveRejection counts err when it is a policy rejection or validation
// error; other errors are ignored.
func (m *Metrics) ObserveRejection(operation string, err error) {
	if ae, ok := apperr.As(err); ok {
		m.Rejections.WithLabelValues(operation, ae.Code).Inc()
	}
}
