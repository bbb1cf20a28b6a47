package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JobEventType identifies the lifecycle transition an event describes.
type JobEventType string

// Possible job event types
const (
	JobEventCompleted JobEventType = "job_completed"
	JobEventFailed    JobEventType = "job_failed"
	JobEventRetried   JobEventType = "job_retried"
	JobEventStalled   JobEventType = "job_stalled"
	JobEventCancelled JobEventType = "job_cancelled"
)

// JobEvent represents a job lifecycle transition emitted by the job engine.
// It carries enough context for observers (alert feed, metrics) to act
// without a follow-up store read.
type JobEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type indicates which lifecycle transition occurred
	Type JobEventType `json:"type"`

	// JobID identifies the job the event refers to
	JobID uuid.UUID `json:"job_id"`

	// QueueName is the queue the job belongs to
	QueueName string `json:"queue_name"`

	// JobType is the job's handler-dispatch discriminator
	JobType string `json:"job_type"`

	// Error holds the failure reason for failed/stalled/retried events
	Error string `json:"error,omitempty"`

	// Attempt is the attempt number the event refers to
	Attempt int `json:"attempt,omitempty"`

	// OccurredAt is the timestamp when the event was created
	OccurredAt time.Time `json:"occurred_at"`
}

// NewJobEvent creates a new JobEvent for the given transition.
func NewJobEvent(eventType JobEventType, jobID uuid.UUID, queueName, jobType string) *JobEvent {
	return &JobEvent{
		ID:         uuid.New(),
		Type:       eventType,
		JobID:      jobID,
		QueueName:  queueName,
		JobType:    jobType,
		OccurredAt: time.Now().UTC(),
	}
}

// WithError returns the event with the failure reason attached.
func (e *JobEvent) WithError(errMsg string) *JobEvent {
	e.Error = errMsg
	return e
}

// WithAttempt returns the event with the attempt number attached.
func (e *JobEvent) WithAttempt(attempt int) *JobEvent {
	e.Attempt = attempt
	return e
}

// EventHandler defines an interface for components that can handle events.
// Handlers are responsible for processing events and taking appropriate actions.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *JobEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows the engine to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *JobEvent) error
}
