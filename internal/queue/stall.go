package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lumenlearn/lumen-api/internal/events"
	"github.com/lumenlearn/lumen-api/internal/platform/metrics"
)

// StallDetector periodically sweeps active jobs whose worker stopped
// heartbeating and reclaims them: the abandoned run consumes one attempt,
// then the job is either requeued or terminally failed when the budget is
// exhausted. Without this, a worker crash mid-handler would orphan the job
// in the active state forever.
type StallDetector struct {
	store         Store
	emitter       events.EventEmitter
	checkInterval time.Duration
	threshold     time.Duration
	logger        *slog.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewStallDetector creates a stall detector sweeping on checkInterval and
// reclaiming active jobs whose heartbeat is older than threshold.
func NewStallDetector(
	store Store,
	emitter events.EventEmitter,
	checkInterval, threshold time.Duration,
	logger *slog.Logger,
) *StallDetector {
	ctx, cancel := context.WithCancel(context.Background())

	return &StallDetector{
		store:         store,
		emitter:       emitter,
		checkInterval: checkInterval,
		threshold:     threshold,
		logger:        logger.With("component", "stall_detector"),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start launches the background sweep goroutine.
func (d *StallDetector) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop halts the sweep and waits for the current pass to finish.
func (d *StallDetector) Stop() {
	d.cancel()
	d.wg.Wait()
}

func (d *StallDetector) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.Sweep(context.Background())
		}
	}
}

// Sweep performs one reclamation pass. Exported so startup recovery and
// tests can trigger it without waiting for the ticker.
func (d *StallDetector) Sweep(ctx context.Context) {
	// Promote due delayed jobs so stats converge between dequeues.
	if promoted, err := d.store.PromoteDue(ctx); err != nil {
		d.logger.Error("failed to promote due jobs", "error", err)
	} else if promoted > 0 {
		d.logger.Debug("promoted due delayed jobs", "count", promoted)
	}

	stalled, err := d.store.ListStalled(ctx, d.threshold)
	if err != nil {
		d.logger.Error("failed to list stalled jobs", "error", err)
		return
	}

	if len(stalled) == 0 {
		return
	}

	d.logger.Info("found stalled jobs", "count", len(stalled))

	for _, job := range stalled {
		d.reclaim(ctx, job)
	}
}

// reclaim requeues one stalled job, consuming an attempt, or fails it when
// the attempt budget is exhausted.
func (d *StallDetector) reclaim(ctx context.Context, job *Job) {
	logger := d.logger.With(
		"job_id", job.ID,
		"queue", job.QueueName,
		"job_type", job.Type)

	attempt := job.AttemptsMade + 1
	if attempt >= job.MaxAttempts {
		logger.Warn("stalled job has no attempts left, failing",
			"attempts_made", attempt,
			"max_attempts", job.MaxAttempts)

		if err := d.store.MarkFailed(ctx, job.ID, "worker stalled and attempt budget exhausted"); err != nil {
			logger.Error("failed to fail stalled job", "error", err)
			return
		}

		metrics.RecordJobProcessed(job.QueueName, "failed")
		d.emit(ctx, events.NewJobEvent(events.JobEventFailed, job.ID, job.QueueName, job.Type).
			WithError("worker stalled and attempt budget exhausted").
			WithAttempt(attempt))
		return
	}

	if err := d.store.ScheduleRetry(ctx, job.ID, "reclaimed after worker stall", time.Now().UTC()); err != nil {
		logger.Error("failed to requeue stalled job", "error", err)
		return
	}

	logger.Info("requeued stalled job", "attempt", attempt)
	metrics.RecordJobProcessed(job.QueueName, "stalled")
	d.emit(ctx, events.NewJobEvent(events.JobEventStalled, job.ID, job.QueueName, job.Type).
		WithError("reclaimed after worker stall").
		WithAttempt(attempt))
}

func (d *StallDetector) emit(ctx context.Context, event *events.JobEvent) {
	if d.emitter == nil {
		return
	}
	if err := d.emitter.EmitEvent(ctx, event); err != nil {
		d.logger.Warn("failed to emit stall event", "error", err)
	}
}
