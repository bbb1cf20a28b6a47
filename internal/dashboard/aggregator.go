package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/lumenlearn/lumen-api/internal/config"
	"github.com/lumenlearn/lumen-api/internal/platform/metrics"
	"github.com/lumenlearn/lumen-api/internal/queue"
	"github.com/lumenlearn/lumen-api/internal/singleflight"
)

// snapshotKey is the single-flight key for the dashboard snapshot; there
// is only one dashboard view.
const snapshotKey = "dashboard:snapshot"

// QueueService is the slice of the queue manager the aggregator reads
// from and passes management operations through to.
type QueueService interface {
	Stats(ctx context.Context) ([]queue.QueueStats, error)
	PauseQueue(ctx context.Context, queueName string) error
	ResumeQueue(ctx context.Context, queueName string) error
	ClearQueue(ctx context.Context, queueName string) (int, error)
	RetryFailedJob(ctx context.Context, jobID uuid.UUID) error
	RetryFailedJobs(ctx context.Context, queueName string, maxCount int) (int, error)
}

// Aggregator computes dashboard snapshots and holds the bounded alert
// feed. Snapshot computation runs behind a single-flight group so a burst
// of dashboard requests hits the job store once per TTL window.
type Aggregator struct {
	svc    QueueService
	cfg    config.DashboardConfig
	flight *singleflight.Group
	logger *slog.Logger
	now    func() time.Time

	alerts *alertRing
}

// NewAggregator creates a dashboard aggregator with the given health
// thresholds.
func NewAggregator(svc QueueService, cfg config.DashboardConfig, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		svc:    svc,
		cfg:    cfg,
		flight: singleflight.NewGroup(cfg.SnapshotTTL),
		logger: logger.With("component", "dashboard_aggregator"),
		now:    func() time.Time { return time.Now().UTC() },
		alerts: newAlertRing(cfg.MaxAlerts),
	}
}

// Snapshot returns the current dashboard view. Concurrent callers within
// the TTL window share a single computation; the view is eventually
// consistent with the job store.
func (a *Aggregator) Snapshot(ctx context.Context) (*Snapshot, error) {
	v, _, err := a.flight.Do(ctx, snapshotKey, func(ctx context.Context) (any, error) {
		return a.compute(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// compute builds one snapshot from live queue statistics.
func (a *Aggregator) compute(ctx context.Context) (*Snapshot, error) {
	stats, err := a.svc.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue stats: %w", err)
	}

	sort.Slice(stats, func(i, j int) bool { return stats[i].QueueName < stats[j].QueueName })

	snap := &Snapshot{
		Queues: make([]QueueHealth, 0, len(stats)),
		Alerts: a.alerts.list(),
	}

	healthy := 0
	totalDepth := 0
	for _, s := range stats {
		health := a.classify(s)
		if health == HealthHealthy {
			healthy++
		}
		totalDepth += s.Depth()

		snap.Queues = append(snap.Queues, QueueHealth{QueueStats: s, Health: health})

		metrics.SetQueueDepth(s.QueueName, "waiting", s.Waiting)
		metrics.SetQueueDepth(s.QueueName, "active", s.Active)
		metrics.SetQueueDepth(s.QueueName, "delayed", s.Delayed)
		metrics.SetQueueDepth(s.QueueName, "failed", s.Failed)
	}

	score := 1.0
	if len(stats) > 0 {
		score = float64(healthy) / float64(len(stats))
	}

	snap.Overview = Overview{
		TotalQueues:        len(stats),
		HealthyQueues:      healthy,
		OverallHealthScore: score,
		TotalDepth:         totalDepth,
		GeneratedAt:        a.now(),
	}
	return snap, nil
}

// classify applies the health thresholds to one queue's statistics.
// Error conditions dominate warnings.
func (a *Aggregator) classify(s queue.QueueStats) Health {
	if s.Failed > a.cfg.FailedErrorThreshold || s.Paused {
		return HealthError
	}
	if s.Waiting > a.cfg.WaitingWarnThreshold || s.CompletionRate < a.cfg.CompletionRateWarning {
		return HealthWarning
	}
	return HealthHealthy
}

// PauseQueue pauses a queue. Pass-through management operation.
func (a *Aggregator) PauseQueue(ctx context.Context, queueName string) error {
	if err := a.svc.PauseQueue(ctx, queueName); err != nil {
		return err
	}
	a.flight.Forget(snapshotKey)
	return nil
}

// ResumeQueue resumes a paused queue.
func (a *Aggregator) ResumeQueue(ctx context.Context, queueName string) error {
	if err := a.svc.ResumeQueue(ctx, queueName); err != nil {
		return err
	}
	a.flight.Forget(snapshotKey)
	return nil
}

// ClearQueue removes all waiting and delayed jobs from a queue, returning
// how many were removed.
func (a *Aggregator) ClearQueue(ctx context.Context, queueName string) (int, error) {
	removed, err := a.svc.ClearQueue(ctx, queueName)
	if err != nil {
		return 0, err
	}
	a.flight.Forget(snapshotKey)
	return removed, nil
}

// RetryFailedJob resets one failed job back to waiting.
func (a *Aggregator) RetryFailedJob(ctx context.Context, jobID uuid.UUID) error {
	if err := a.svc.RetryFailedJob(ctx, jobID); err != nil {
		return err
	}
	a.flight.Forget(snapshotKey)
	return nil
}

// RetryFailedJobs bulk-retries up to maxCount failed jobs in a queue.
func (a *Aggregator) RetryFailedJobs(ctx context.Context, queueName string, maxCount int) (int, error) {
	retried, err := a.svc.RetryFailedJobs(ctx, queueName, maxCount)
	if err != nil {
		return 0, err
	}
	a.flight.Forget(snapshotKey)
	return retried, nil
}
