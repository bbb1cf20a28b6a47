package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumenlearn/lumen-api/internal/events"
	"github.com/lumenlearn/lumen-api/internal/platform/metrics"
)

// defaultPollInterval is how long an idle worker sleeps between dequeue
// attempts when its queue has no ready jobs.
const defaultPollInterval = 500 * time.Millisecond

// inflightRegistry tracks cancel functions for currently executing jobs so
// an explicit cancel (or shutdown) can abort in-flight handler contexts.
// Safe for concurrent use.
type inflightRegistry struct {
	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelFunc
}

func newInflightRegistry() *inflightRegistry {
	return &inflightRegistry{cancels: make(map[uuid.UUID]context.CancelFunc)}
}

func (r *inflightRegistry) add(jobID uuid.UUID, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels[jobID] = cancel
}

func (r *inflightRegistry) remove(jobID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancels, jobID)
}

// cancel aborts the handler context for the given job if it is in flight.
// Returns whether the job was found.
func (r *inflightRegistry) cancel(jobID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.cancels[jobID]
	if ok {
		cancel()
	}
	return ok
}

// cancelAll aborts every in-flight handler context. Used by shutdown after
// the drain timeout expires.
func (r *inflightRegistry) cancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cancel := range r.cancels {
		cancel()
	}
}

// WorkerPool manages the worker goroutines for a single queue. Each worker
// repeatedly claims a ready job from the store, executes its registered
// handler while refreshing the heartbeat lease, and routes the outcome
// through the retry policy.
type WorkerPool struct {
	cfg               QueueConfig
	store             Store
	registry          *Registry
	emitter           events.EventEmitter
	inflight          *inflightRegistry
	heartbeatInterval time.Duration
	pollInterval      time.Duration
	logger            *slog.Logger

	// wg tracks active worker goroutines for clean shutdown
	wg sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// NewWorkerPool creates a worker pool for one queue. The inflight registry
// is shared with the manager so cancellation reaches running handlers.
func NewWorkerPool(
	cfg QueueConfig,
	store Store,
	registry *Registry,
	emitter events.EventEmitter,
	inflight *inflightRegistry,
	heartbeatInterval time.Duration,
	logger *slog.Logger,
) *WorkerPool {
	if cfg.Concurrency <= 0 {
		logger.Warn("invalid queue concurrency, using 1",
			"queue", cfg.Name,
			"specified", cfg.Concurrency)
		cfg.Concurrency = 1
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		cfg:               cfg,
		store:             store,
		registry:          registry,
		emitter:           emitter,
		inflight:          inflight,
		heartbeatInterval: heartbeatInterval,
		pollInterval:      pollInterval,
		logger:            logger.With("queue", cfg.Name),
		ctx:               ctx,
		cancel:            cancel,
	}
}

// Start launches the worker goroutines.
func (p *WorkerPool) Start() {
	for i := 0; i < p.cfg.Concurrency; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("worker pool started", "concurrency", p.cfg.Concurrency)
}

// Stop halts dequeueing and waits for in-flight jobs to finish. Handlers
// keep their own contexts, so a running job completes unless the manager
// hard-cancels it after the drain timeout.
func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
}

// worker is the dequeue loop for one concurrency slot.
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug("stopping worker", "worker_id", id)
			return
		default:
		}

		job, err := p.store.DequeueNext(p.ctx, p.cfg.Name)
		if err != nil {
			if p.ctx.Err() != nil {
				return
			}
			p.logger.Error("failed to dequeue job", "worker_id", id, "error", err)
			p.sleep()
			continue
		}
		if job == nil {
			p.sleep()
			continue
		}

		p.processJob(job, id)
	}
}

// sleep waits one poll interval or until the pool is stopped.
func (p *WorkerPool) sleep() {
	select {
	case <-p.ctx.Done():
	case <-time.After(p.pollInterval):
	}
}

// processJob executes a single claimed job and records its outcome.
func (p *WorkerPool) processJob(job *Job, workerID int) {
	logger := p.logger.With(
		"job_id", job.ID,
		"job_type", job.Type,
		"worker_id", workerID,
		"attempt", job.AttemptsMade+1,
	)

	handler, ok := p.registry.Get(job.Type)
	if !ok {
		// Unknown types are rejected at enqueue, so this only happens when
		// a handler was unregistered between deploys. Not retryable.
		logger.Error("no handler registered for job type")
		p.failJob(job, "no handler registered for job type "+job.Type, logger)
		return
	}

	// The job context is independent of the pool context so stopping the
	// pool drains in-flight work instead of aborting it. Explicit cancel
	// and shutdown hard-cancel reach it through the inflight registry.
	jobCtx, cancelJob := context.WithCancel(context.Background())
	defer cancelJob()
	jobCtx = WithJobID(jobCtx, job.ID)
	p.inflight.add(job.ID, cancelJob)
	defer p.inflight.remove(job.ID)

	stopHeartbeat := p.startHeartbeat(jobCtx, job.ID)
	defer stopHeartbeat()

	report := func(pct int) {
		if err := p.store.ReportProgress(jobCtx, job.ID, pct); err != nil {
			logger.Warn("failed to report progress", "pct", pct, "error", err)
		}
	}

	logger.Info("processing job")
	start := time.Now()

	result, err := handler(jobCtx, job.Payload, report)

	metrics.ObserveJobDuration(job.QueueName, time.Since(start))

	if jobCtx.Err() != nil {
		// The job was cancelled (or hard-stopped) mid-flight. The store
		// already holds the cancelled state; discard the handler outcome.
		logger.Info("job cancelled mid-flight, discarding result")
		return
	}

	if err != nil {
		p.handleFailure(job, err, logger)
		return
	}

	if markErr := p.store.MarkCompleted(context.Background(), job.ID, result); markErr != nil {
		logger.Error("failed to mark job completed", "error", markErr)
		return
	}

	logger.Info("job completed", "duration_ms", time.Since(start).Milliseconds())
	metrics.RecordJobProcessed(job.QueueName, "completed")
	p.emit(events.NewJobEvent(events.JobEventCompleted, job.ID, job.QueueName, job.Type).
		WithAttempt(job.AttemptsMade + 1))
}

// handleFailure routes a handler error through the retry policy: terminal
// failure for unretryable errors or an exhausted budget, delayed retry
// otherwise.
func (p *WorkerPool) handleFailure(job *Job, err error, logger *slog.Logger) {
	attempt := job.AttemptsMade + 1

	if IsUnretryable(err) || attempt >= job.MaxAttempts {
		logger.Error("job failed permanently",
			"error", err,
			"attempts_made", attempt,
			"max_attempts", job.MaxAttempts,
			"unretryable", IsUnretryable(err))
		p.failJob(job, err.Error(), logger)
		return
	}

	delay := job.Backoff.Delay(attempt)
	nextRunAt := time.Now().UTC().Add(delay)

	logger.Warn("job failed, scheduling retry",
		"error", err,
		"attempt", attempt,
		"max_attempts", job.MaxAttempts,
		"retry_delay", delay)

	if retryErr := p.store.ScheduleRetry(context.Background(), job.ID, err.Error(), nextRunAt); retryErr != nil {
		logger.Error("failed to schedule retry", "error", retryErr)
		return
	}

	metrics.RecordJobProcessed(job.QueueName, "retried")
	p.emit(events.NewJobEvent(events.JobEventRetried, job.ID, job.QueueName, job.Type).
		WithError(err.Error()).
		WithAttempt(attempt))
}

// failJob marks the job as terminally failed and emits the failure event.
func (p *WorkerPool) failJob(job *Job, errMsg string, logger *slog.Logger) {
	if err := p.store.MarkFailed(context.Background(), job.ID, errMsg); err != nil {
		logger.Error("failed to mark job failed", "error", err)
		return
	}

	metrics.RecordJobProcessed(job.QueueName, "failed")
	p.emit(events.NewJobEvent(events.JobEventFailed, job.ID, job.QueueName, job.Type).
		WithError(errMsg).
		WithAttempt(job.AttemptsMade + 1))
}

// startHeartbeat refreshes the job's lease on a fixed interval until the
// returned stop function is called.
func (p *WorkerPool) startHeartbeat(ctx context.Context, jobID uuid.UUID) func() {
	if p.heartbeatInterval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var once sync.Once

	go func() {
		ticker := time.NewTicker(p.heartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := p.store.Heartbeat(context.Background(), jobID); err != nil {
					p.logger.Warn("failed to heartbeat job", "job_id", jobID, "error", err)
				}
			}
		}
	}()

	return func() {
		once.Do(func() { close(done) })
	}
}

// emit publishes a lifecycle event, logging delivery failures rather than
// propagating them into the job outcome.
func (p *WorkerPool) emit(event *events.JobEvent) {
	if p.emitter == nil {
		return
	}
	if err := p.emitter.EmitEvent(context.Background(), event); err != nil {
		p.logger.Warn("failed to emit job event", "event_type", event.Type, "error", err)
	}
}
