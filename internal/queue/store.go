package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QueueStats holds per-queue counters derived from job records. It is
// recomputed on demand and never stored as a source of truth.
type QueueStats struct {
	QueueName string `json:"queue_name"`
	Waiting   int    `json:"waiting"`
	Active    int    `json:"active"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Delayed   int    `json:"delayed"`
	Cancelled int    `json:"cancelled"`
	Paused    bool   `json:"paused"`

	// CompletionRate is completed / (completed + failed) over the recent
	// window, or 1 when nothing finished in the window.
	CompletionRate float64 `json:"completion_rate"`

	// AvgProcessingMs is the mean wall time of recently finished jobs.
	AvgProcessingMs float64 `json:"avg_processing_ms"`
}

// Depth returns the queue depth: jobs either waiting for a worker or
// currently held by one.
func (s QueueStats) Depth() int {
	return s.Waiting + s.Active
}

// Store defines the persistence contract for job records. The store is the
// single source of truth for job state; every mutation goes through its
// operations, and DequeueNext is the one required point of mutual
// exclusion (no two workers may claim the same job).
type Store interface {
	// Enqueue persists a new job. If the job carries an idempotency key
	// already present on a non-terminal job, no new job is created and the
	// existing job is returned instead.
	Enqueue(ctx context.Context, job *Job) (*Job, error)

	// DequeueNext atomically claims the highest-priority, earliest-created
	// job in the queue whose RunAt has elapsed, transitions it to active
	// and stamps its heartbeat. Returns (nil, nil) when no job is ready or
	// the queue is paused.
	DequeueNext(ctx context.Context, queueName string) (*Job, error)

	// MarkCompleted transitions a job to completed with the given result.
	// A no-op if the job is already terminal.
	MarkCompleted(ctx context.Context, jobID uuid.UUID, result json.RawMessage) error

	// MarkFailed transitions a job to terminal failure. A no-op if the job
	// is already terminal, so duplicate failure reports are tolerated.
	MarkFailed(ctx context.Context, jobID uuid.UUID, errMsg string) error

	// ScheduleRetry consumes one attempt and reschedules the job: waiting
	// if nextRunAt has already passed, delayed otherwise. Used both for
	// handler failures and stall reclaims.
	ScheduleRetry(ctx context.Context, jobID uuid.UUID, errMsg string, nextRunAt time.Time) error

	// ReportProgress records handler progress (0-100) on an active job.
	ReportProgress(ctx context.Context, jobID uuid.UUID, pct int) error

	// Heartbeat refreshes the lease on an active job.
	Heartbeat(ctx context.Context, jobID uuid.UUID) error

	// GetJob retrieves a job by id. Returns ErrJobNotFound if absent.
	GetJob(ctx context.Context, jobID uuid.UUID) (*Job, error)

	// Cancel transitions a non-terminal job to cancelled. Returns
	// ErrJobTerminal if the job already finished.
	Cancel(ctx context.Context, jobID uuid.UUID) error

	// RetryFailed resets a failed job: attempts back to zero, state to
	// waiting. Returns ErrJobNotFailed for jobs in any other state.
	RetryFailed(ctx context.Context, jobID uuid.UUID) error

	// Requeue returns an active job to the waiting state without consuming
	// an attempt. Used by startup recovery, where the previous process is
	// known to be gone and the interrupted run should not count against
	// the job's budget.
	Requeue(ctx context.Context, jobID uuid.UUID, reason string) error

	// ListStalled returns active jobs whose heartbeat is older than the
	// given threshold, implying their worker died mid-flight.
	ListStalled(ctx context.Context, olderThan time.Duration) ([]*Job, error)

	// ListActive returns all currently active jobs. Used by startup
	// recovery to requeue jobs orphaned by a previous process.
	ListActive(ctx context.Context) ([]*Job, error)

	// ListFailed returns up to limit failed jobs in the queue, oldest
	// first. Used by bulk retry.
	ListFailed(ctx context.Context, queueName string, limit int) ([]*Job, error)

	// PromoteDue transitions delayed jobs whose RunAt elapsed back to
	// waiting so queue statistics converge between dequeues.
	PromoteDue(ctx context.Context) (int, error)

	// PauseQueue stops DequeueNext from returning jobs for the queue.
	PauseQueue(ctx context.Context, queueName string) error

	// ResumeQueue re-enables dequeueing for a paused queue.
	ResumeQueue(ctx context.Context, queueName string) error

	// ClearQueue removes all waiting and delayed jobs from the queue,
	// returning how many were removed. Active and terminal jobs stay.
	ClearQueue(ctx context.Context, queueName string) (int, error)

	// Stats computes current counters for the queue. Reads race concurrent
	// completions; callers must tolerate eventually-consistent snapshots.
	Stats(ctx context.Context, queueName string) (QueueStats, error)
}
