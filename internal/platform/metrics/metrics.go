// Package metrics provides Prometheus metrics definitions for the job
// engine and delivery tracking.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lumen"

var (
	// JobsProcessed counts finished job executions by queue and outcome
	// (completed, failed, retried, stalled).
	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "processed_total",
			Help:      "Total job executions by queue and outcome",
		},
		[]string{"queue", "outcome"},
	)

	// JobDuration tracks handler wall time per queue.
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Job handler execution time in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"queue"},
	)

	// QueueDepth tracks the number of jobs per queue and state, refreshed
	// by the dashboard aggregator.
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "queue_depth",
			Help:      "Number of jobs by queue and state",
		},
		[]string{"queue", "state"},
	)

	// WebhookEvents counts delivery-provider webhook notifications by type
	// and outcome (applied, duplicate, unknown).
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "webhook_events_total",
			Help:      "Total webhook notifications by type and outcome",
		},
		[]string{"type", "outcome"},
	)
)

// RecordJobProcessed records a finished job execution.
func RecordJobProcessed(queue, outcome string) {
	JobsProcessed.WithLabelValues(queue, outcome).Inc()
}

// ObserveJobDuration records handler execution time.
func ObserveJobDuration(queue string, d time.Duration) {
	JobDuration.WithLabelValues(queue).Observe(d.Seconds())
}

// SetQueueDepth refreshes the depth gauge for one queue/state pair.
func SetQueueDepth(queue, state string, n int) {
	QueueDepth.WithLabelValues(queue, state).Set(float64(n))
}

// RecordWebhookEvent records a processed webhook notification.
func RecordWebhookEvent(eventType, outcome string) {
	WebhookEvents.WithLabelValues(eventType, outcome).Inc()
}
