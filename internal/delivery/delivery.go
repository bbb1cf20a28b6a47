package delivery

import (
	"time"

	"github.com/google/uuid"
)

// Status is the fine-grained delivery state of a dispatched message.
type Status string

// Possible delivery statuses
const (
	// StatusQueued means the owning job exists but no dispatch happened yet.
	StatusQueued Status = "queued"
	// StatusProcessing means a dispatch attempt to the provider is underway.
	StatusProcessing Status = "processing"
	// StatusCompleted means the provider acknowledged the message and
	// assigned an external message id.
	StatusCompleted Status = "completed"
	// StatusFailed means dispatch failed; the owning job's retry policy
	// decides whether another attempt happens.
	StatusFailed Status = "failed"
	// StatusBounced means the recipient's system rejected the delivered
	// message. Terminal, reachable only from completed.
	StatusBounced Status = "bounced"
	// StatusComplained means the recipient flagged the delivered message
	// as spam. Terminal, reachable only from completed.
	StatusComplained Status = "complained"
)

// IsTerminal reports whether no further delivery transitions are possible.
// Completed is not terminal here: a completed delivery can still bounce.
func (s Status) IsTerminal() bool {
	return s == StatusBounced || s == StatusComplained
}

// DeliveryStatus is the tracked record for one dispatched unit, keyed by
// the owning job and, once the provider acknowledges, by the external
// message id.
type DeliveryStatus struct {
	JobID             uuid.UUID  `json:"job_id"`
	ExternalMessageID string     `json:"external_message_id,omitempty"`
	Recipient         string     `json:"recipient,omitempty"`
	Status            Status     `json:"status"`
	Attempts          int        `json:"attempts"`
	LastAttemptAt     *time.Time `json:"last_attempt_at,omitempty"`
	DeliveredAt       *time.Time `json:"delivered_at,omitempty"`
	BouncedAt         *time.Time `json:"bounced_at,omitempty"`
	ComplainedAt      *time.Time `json:"complained_at,omitempty"`
	Error             string     `json:"error,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// ProviderEventType identifies an asynchronous delivery notification from
// the external provider.
type ProviderEventType string

// Possible provider event types
const (
	EventBounce    ProviderEventType = "bounce"
	EventComplaint ProviderEventType = "complaint"
)

// ProviderEvent is one webhook notification from the delivery provider.
// EventID makes replays detectable; ExternalMessageID correlates back to
// the tracked delivery.
type ProviderEvent struct {
	EventID           string            `json:"event_id"`
	Type              ProviderEventType `json:"type"`
	ExternalMessageID string            `json:"external_message_id"`
	Recipient         string            `json:"recipient,omitempty"`
	Reason            string            `json:"reason,omitempty"`
	Timestamp         time.Time         `json:"timestamp"`
}
