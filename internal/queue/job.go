package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// State represents the lifecycle state of a job.
type State string

// Possible job states
const (
	// StateWaiting means the job is ready to be picked up by a worker.
	StateWaiting State = "waiting"
	// StateActive means a worker is currently executing the job.
	StateActive State = "active"
	// StateCompleted means the job finished successfully. Terminal.
	StateCompleted State = "completed"
	// StateFailed means the job exhausted its attempts or hit an
	// unretryable error. Terminal until an explicit retry resets it.
	StateFailed State = "failed"
	// StateDelayed means the job is scheduled to run at a later time,
	// either by enqueue delay or by retry backoff.
	StateDelayed State = "delayed"
	// StateCancelled means the job was explicitly cancelled. Terminal.
	StateCancelled State = "cancelled"
)

// IsTerminal reports whether the state admits no further transitions
// (other than an explicit operator retry of a failed job).
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// Job represents a unit of asynchronous work and its full lifecycle record.
// The job store owns these records; workers operate on claimed copies.
type Job struct {
	ID             uuid.UUID       `json:"id"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	QueueName      string          `json:"queue_name"`
	Type           string          `json:"type"`
	Payload        json.RawMessage `json:"payload"`

	// Priority orders dequeueing; lower value means higher priority.
	Priority int `json:"priority"`

	AttemptsMade int           `json:"attempts_made"`
	MaxAttempts  int           `json:"max_attempts"`
	Backoff      BackoffPolicy `json:"backoff"`

	State State `json:"state"`

	// Progress is 0-100, updated by the handler at coarse milestones.
	Progress int `json:"progress"`

	Result    json.RawMessage `json:"result,omitempty"`
	LastError string          `json:"last_error,omitempty"`

	// RunAt is the earliest time the job is eligible for execution.
	RunAt       time.Time  `json:"run_at"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`

	// HeartbeatAt is the worker's last liveness report while the job is
	// active. The stall detector reclaims active jobs whose heartbeat
	// exceeds the stall threshold.
	HeartbeatAt *time.Time `json:"heartbeat_at,omitempty"`
}

// EnqueueOptions customizes a single enqueue call. Zero values fall back
// to the owning queue's defaults.
type EnqueueOptions struct {
	// Priority overrides the queue's default priority when non-zero.
	// Lower value means higher priority.
	Priority int

	// Delay postpones the first execution attempt.
	Delay time.Duration

	// MaxAttempts overrides the queue's default attempt budget when non-zero.
	MaxAttempts int

	// Backoff overrides the queue's default backoff policy when non-zero.
	Backoff BackoffPolicy

	// IdempotencyKey prevents duplicate submission: an enqueue with a key
	// already present on a non-terminal job returns that job's id instead
	// of creating a new job.
	IdempotencyKey string
}

// QueueConfig describes a named queue: its concurrency bound and the
// defaults applied to jobs enqueued without explicit options.
type QueueConfig struct {
	Name               string
	Concurrency        int
	DefaultPriority    int
	DefaultMaxAttempts int
	DefaultBackoff     BackoffPolicy

	// PollInterval is how long an idle worker waits before re-checking
	// the store. Zero uses the engine default.
	PollInterval time.Duration
}

// newJob builds a waiting job from enqueue parameters with queue defaults
// already applied by the manager.
func newJob(queueName, jobType string, payload json.RawMessage, opts EnqueueOptions) *Job {
	now := time.Now().UTC()
	runAt := now
	state := StateWaiting
	if opts.Delay > 0 {
		runAt = now.Add(opts.Delay)
		state = StateDelayed
	}

	return &Job{
		ID:             uuid.New(),
		IdempotencyKey: opts.IdempotencyKey,
		QueueName:      queueName,
		Type:           jobType,
		Payload:        payload,
		Priority:       opts.Priority,
		AttemptsMade:   0,
		MaxAttempts:    opts.MaxAttempts,
		Backoff:        opts.Backoff,
		State:          state,
		Progress:       0,
		RunAt:          runAt,
		CreatedAt:      now,
	}
}
