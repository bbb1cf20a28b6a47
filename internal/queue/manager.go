package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumenlearn/lumen-api/internal/events"
)

// ManagerConfig holds engine-wide tuning knobs shared by all queues.
type ManagerConfig struct {
	// StallCheckInterval is how often the stall detector sweeps.
	StallCheckInterval time.Duration

	// StallThreshold is how long an active job may go without a heartbeat
	// before it is reclaimed.
	StallThreshold time.Duration

	// HeartbeatInterval is how often workers refresh the lease on the job
	// they are executing.
	HeartbeatInterval time.Duration
}

// DefaultManagerConfig returns a ManagerConfig with reasonable defaults:
// a 30s sweep reclaiming jobs silent for two sweep intervals.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		StallCheckInterval: 30 * time.Second,
		StallThreshold:     time.Minute,
		HeartbeatInterval:  15 * time.Second,
	}
}

// Manager is the job engine facade: it owns the registered queues, their
// worker pools and the stall detector, and exposes enqueue, status,
// cancellation and the administrative operations the dashboard passes
// through. Construct one instance and inject it; there is no package-level
// singleton.
type Manager struct {
	store    Store
	registry *Registry
	emitter  events.EventEmitter
	cfg      ManagerConfig
	logger   *slog.Logger

	mu       sync.Mutex
	queues   map[string]QueueConfig
	pools    []*WorkerPool
	detector *StallDetector
	inflight *inflightRegistry
	started  bool
	closed   bool
}

// NewManager creates a queue manager. Queues and handlers are registered
// afterwards, before Start.
func NewManager(
	store Store,
	registry *Registry,
	emitter events.EventEmitter,
	cfg ManagerConfig,
	logger *slog.Logger,
) *Manager {
	def := DefaultManagerConfig()
	if cfg.StallCheckInterval <= 0 {
		cfg.StallCheckInterval = def.StallCheckInterval
	}
	if cfg.StallThreshold <= 0 {
		cfg.StallThreshold = def.StallThreshold
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}

	return &Manager{
		store:    store,
		registry: registry,
		emitter:  emitter,
		cfg:      cfg,
		logger:   logger.With("component", "queue_manager"),
		queues:   make(map[string]QueueConfig),
		inflight: newInflightRegistry(),
	}
}

// RegisterQueue adds a named queue. Must be called before Start.
func (m *Manager) RegisterQueue(cfg QueueConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("cannot register queue %q after start", cfg.Name)
	}
	if cfg.Name == "" {
		return fmt.Errorf("queue name cannot be empty")
	}
	if _, exists := m.queues[cfg.Name]; exists {
		return fmt.Errorf("queue %q already registered", cfg.Name)
	}

	if cfg.DefaultMaxAttempts <= 0 {
		cfg.DefaultMaxAttempts = 3
	}
	if cfg.DefaultBackoff.IsZero() {
		cfg.DefaultBackoff = DefaultBackoff()
	}

	m.queues[cfg.Name] = cfg
	return nil
}

// QueueNames returns the registered queue names.
func (m *Manager) QueueNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.queues))
	for name := range m.queues {
		names = append(names, name)
	}
	return names
}

// Enqueue validates, marshals and persists a new job, returning its id.
// Unknown queues and job types are rejected. An idempotency key already
// held by a non-terminal job short-circuits to that job's id.
func (m *Manager) Enqueue(
	ctx context.Context,
	queueName, jobType string,
	payload any,
	opts EnqueueOptions,
) (uuid.UUID, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return uuid.Nil, ErrManagerClosed
	}
	qcfg, ok := m.queues[queueName]
	m.mu.Unlock()

	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrUnknownQueue, queueName)
	}
	if !m.registry.Has(jobType) {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrUnknownJobType, jobType)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal job payload: %w", err)
	}

	// Apply queue defaults for unset options.
	if opts.Priority == 0 {
		opts.Priority = qcfg.DefaultPriority
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = qcfg.DefaultMaxAttempts
	}
	if opts.Backoff.IsZero() {
		opts.Backoff = qcfg.DefaultBackoff
	}

	job := newJob(queueName, jobType, raw, opts)

	stored, err := m.store.Enqueue(ctx, job)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	if stored.ID != job.ID {
		m.logger.Debug("enqueue deduplicated by idempotency key",
			"queue", queueName,
			"job_type", jobType,
			"idempotency_key", opts.IdempotencyKey,
			"existing_job_id", stored.ID)
	} else {
		m.logger.Debug("job enqueued",
			"queue", queueName,
			"job_type", jobType,
			"job_id", stored.ID,
			"priority", stored.Priority)
	}

	return stored.ID, nil
}

// Start recovers jobs orphaned by a previous process, then launches the
// per-queue worker pools and the stall detector.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("queue manager already started")
	}
	if m.closed {
		return ErrManagerClosed
	}

	if err := m.recover(ctx); err != nil {
		return fmt.Errorf("failed to recover orphaned jobs: %w", err)
	}

	for _, qcfg := range m.queues {
		pool := NewWorkerPool(
			qcfg,
			m.store,
			m.registry,
			m.emitter,
			m.inflight,
			m.cfg.HeartbeatInterval,
			m.logger,
		)
		pool.Start()
		m.pools = append(m.pools, pool)
	}

	m.detector = NewStallDetector(
		m.store,
		m.emitter,
		m.cfg.StallCheckInterval,
		m.cfg.StallThreshold,
		m.logger,
	)
	m.detector.Start()

	m.started = true
	m.logger.Info("queue manager started", "queues", len(m.queues))
	return nil
}

// recover requeues jobs left active by a previous process. The old process
// is gone, so the interrupted run does not consume an attempt.
func (m *Manager) recover(ctx context.Context) error {
	active, err := m.store.ListActive(ctx)
	if err != nil {
		return err
	}

	if len(active) == 0 {
		return nil
	}

	m.logger.Info("recovering jobs orphaned by previous run", "count", len(active))

	for _, job := range active {
		if err := m.store.Requeue(ctx, job.ID, "requeued after process restart"); err != nil {
			m.logger.Error("failed to requeue orphaned job",
				"job_id", job.ID,
				"queue", job.QueueName,
				"error", err)
		}
	}

	return nil
}

// Shutdown stops intake, drains in-flight jobs bounded by the context
// deadline, then hard-cancels whatever is still running.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	pools := m.pools
	detector := m.detector
	m.mu.Unlock()

	m.logger.Info("queue manager shutting down")

	if detector != nil {
		detector.Stop()
	}

	done := make(chan struct{})
	go func() {
		for _, pool := range pools {
			pool.Stop()
		}
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("queue manager drained cleanly")
		return nil
	case <-ctx.Done():
		// Out of time: abort in-flight handlers and wait for the pools to
		// observe the cancellation.
		m.logger.Warn("shutdown deadline reached, cancelling in-flight jobs")
		m.inflight.cancelAll()
		<-done
		return ctx.Err()
	}
}

// GetJob retrieves a job by id.
func (m *Manager) GetJob(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	return m.store.GetJob(ctx, jobID)
}

// Cancel transitions a non-terminal job to cancelled and aborts its
// handler context if it is currently executing.
func (m *Manager) Cancel(ctx context.Context, jobID uuid.UUID) error {
	if err := m.store.Cancel(ctx, jobID); err != nil {
		return err
	}

	if m.inflight.cancel(jobID) {
		m.logger.Info("cancelled in-flight job", "job_id", jobID)
	}

	if job, err := m.store.GetJob(ctx, jobID); err == nil {
		m.emit(ctx, events.NewJobEvent(events.JobEventCancelled, jobID, job.QueueName, job.Type))
	}
	return nil
}

// RetryFailedJob resets one failed job back to waiting with a fresh
// attempt budget.
func (m *Manager) RetryFailedJob(ctx context.Context, jobID uuid.UUID) error {
	return m.store.RetryFailed(ctx, jobID)
}

// RetryFailedJobs bulk-retries up to maxCount failed jobs in the queue,
// returning how many were reset.
func (m *Manager) RetryFailedJobs(ctx context.Context, queueName string, maxCount int) (int, error) {
	m.mu.Lock()
	_, ok := m.queues[queueName]
	m.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownQueue, queueName)
	}

	failed, err := m.store.ListFailed(ctx, queueName, maxCount)
	if err != nil {
		return 0, fmt.Errorf("failed to list failed jobs: %w", err)
	}

	retried := 0
	for _, job := range failed {
		if err := m.store.RetryFailed(ctx, job.ID); err != nil {
			m.logger.Error("failed to retry job", "job_id", job.ID, "error", err)
			continue
		}
		retried++
	}

	m.logger.Info("bulk retried failed jobs", "queue", queueName, "count", retried)
	return retried, nil
}

// PauseQueue stops job dequeueing for the queue. Active jobs finish.
func (m *Manager) PauseQueue(ctx context.Context, queueName string) error {
	if !m.hasQueue(queueName) {
		return fmt.Errorf("%w: %s", ErrUnknownQueue, queueName)
	}
	m.logger.Info("pausing queue", "queue", queueName)
	return m.store.PauseQueue(ctx, queueName)
}

// ResumeQueue re-enables job dequeueing for the queue.
func (m *Manager) ResumeQueue(ctx context.Context, queueName string) error {
	if !m.hasQueue(queueName) {
		return fmt.Errorf("%w: %s", ErrUnknownQueue, queueName)
	}
	m.logger.Info("resuming queue", "queue", queueName)
	return m.store.ResumeQueue(ctx, queueName)
}

// ClearQueue removes all waiting and delayed jobs from the queue.
func (m *Manager) ClearQueue(ctx context.Context, queueName string) (int, error) {
	if !m.hasQueue(queueName) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownQueue, queueName)
	}
	removed, err := m.store.ClearQueue(ctx, queueName)
	if err != nil {
		return 0, err
	}
	m.logger.Info("cleared queue", "queue", queueName, "removed", removed)
	return removed, nil
}

// Stats returns current statistics for every registered queue.
func (m *Manager) Stats(ctx context.Context) ([]QueueStats, error) {
	names := m.QueueNames()

	stats := make([]QueueStats, 0, len(names))
	for _, name := range names {
		s, err := m.store.Stats(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to compute stats for queue %s: %w", name, err)
		}
		stats = append(stats, s)
	}
	return stats, nil
}

func (m *Manager) hasQueue(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.queues[name]
	return ok
}

func (m *Manager) emit(ctx context.Context, event *events.JobEvent) {
	if m.emitter == nil {
		return
	}
	if err := m.emitter.EmitEvent(ctx, event); err != nil {
		m.logger.Warn("failed to emit job event", "event_type", event.Type, "error", err)
	}
}
