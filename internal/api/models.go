package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/lumenlearn/lumen-api/internal/queue"
)

// EnqueueRequest is the payload for submitting a new job.
type EnqueueRequest struct {
	QueueName string `json:"queue_name" validate:"required"`
	Type      string `json:"type"       validate:"required"`

	// Payload is handed to the job handler verbatim.
	Payload json.RawMessage `json:"payload"`

	// Priority orders dequeueing; lower value means higher priority. Zero
	// uses the queue's default.
	Priority int `json:"priority,omitempty" validate:"gte=0"`

	// DelaySeconds postpones the first execution attempt.
	DelaySeconds int `json:"delay_seconds,omitempty" validate:"gte=0"`

	// MaxAttempts overrides the queue's attempt budget. Zero uses the
	// queue's default.
	MaxAttempts int `json:"max_attempts,omitempty" validate:"gte=0"`

	// IdempotencyKey deduplicates submissions against non-terminal jobs.
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// Options converts the request's tuning fields into engine enqueue options.
func (r EnqueueRequest) Options() queue.EnqueueOptions {
	return queue.EnqueueOptions{
		Priority:       r.Priority,
		Delay:          time.Duration(r.DelaySeconds) * time.Second,
		MaxAttempts:    r.MaxAttempts,
		IdempotencyKey: r.IdempotencyKey,
	}
}

// EnqueueResponse is returned after a job is accepted.
type EnqueueResponse struct {
	JobID uuid.UUID `json:"job_id"`
}

// JobResponse is the API representation of a job record.
type JobResponse struct {
	ID           uuid.UUID       `json:"id"`
	QueueName    string          `json:"queue_name"`
	Type         string          `json:"type"`
	State        queue.State     `json:"state"`
	Priority     int             `json:"priority"`
	Progress     int             `json:"progress"`
	AttemptsMade int             `json:"attempts_made"`
	MaxAttempts  int             `json:"max_attempts"`
	Result       json.RawMessage `json:"result,omitempty"`
	LastError    string          `json:"last_error,omitempty"`
	RunAt        time.Time       `json:"run_at"`
	CreatedAt    time.Time       `json:"created_at"`
	ProcessedAt  *time.Time      `json:"processed_at,omitempty"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
}

// NewJobResponse maps a job record onto its API representation.
func NewJobResponse(job *queue.Job) JobResponse {
	return JobResponse{
		ID:           job.ID,
		QueueName:    job.QueueName,
		Type:         job.Type,
		State:        job.State,
		Priority:     job.Priority,
		Progress:     job.Progress,
		AttemptsMade: job.AttemptsMade,
		MaxAttempts:  job.MaxAttempts,
		Result:       job.Result,
		LastError:    job.LastError,
		RunAt:        job.RunAt,
		CreatedAt:    job.CreatedAt,
		ProcessedAt:  job.ProcessedAt,
		FinishedAt:   job.FinishedAt,
	}
}

// WebhookEventRequest is the delivery provider's bounce/complaint
// notification payload.
type WebhookEventRequest struct {
	EventID   string    `json:"event_id"   validate:"required"`
	Type      string    `json:"type"       validate:"required,oneof=bounce complaint"`
	MessageID string    `json:"message_id" validate:"required"`
	Recipient string    `json:"recipient,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// ClearQueueResponse reports how many jobs a clear removed.
type ClearQueueResponse struct {
	Removed int `json:"removed"`
}

// RetryFailedResponse reports how many failed jobs a bulk retry reset.
type RetryFailedResponse struct {
	Retried int `json:"retried"`
}
