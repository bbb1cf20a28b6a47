package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumenlearn/lumen-api/internal/platform/metrics"
)

// defaultSeenEventLimit bounds the replay-suppression window. Events older
// than the last N are evicted; a provider replaying beyond that window is
// still harmless because terminal statuses absorb repeats.
const defaultSeenEventLimit = 10000

// Tracker owns the delivery state machine. Worker-side outcomes (dispatch
// started, provider acknowledged, dispatch failed) and provider webhooks
// (bounce, complaint) both funnel through it, so the two event streams
// merge under one set of transition rules.
type Tracker struct {
	store  Store
	logger *slog.Logger

	mu        sync.Mutex
	now       func() time.Time
	seen      map[string]struct{}
	seenOrder []string
	seenLimit int
}

// NewTracker creates a delivery tracker over the given store.
func NewTracker(store Store, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:     store,
		logger:    logger.With("component", "delivery_tracker"),
		now:       func() time.Time { return time.Now().UTC() },
		seen:      make(map[string]struct{}),
		seenLimit: defaultSeenEventLimit,
	}
}

// SetNowFunc overrides the tracker's clock. Test helper.
func (t *Tracker) SetNowFunc(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// clock reads the current time through the tracker's clock function.
func (t *Tracker) clock() time.Time {
	t.mu.Lock()
	now := t.now
	t.mu.Unlock()
	return now()
}

// Track creates a queued delivery record for the job. Called at enqueue
// time for jobs with an external counterpart. Tracking an already tracked
// job is a no-op.
func (t *Tracker) Track(ctx context.Context, jobID uuid.UUID, recipient string) error {
	now := t.clock()
	err := t.store.Create(ctx, &DeliveryStatus{
		JobID:     jobID,
		Recipient: recipient,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		if existing, getErr := t.store.GetByJobID(ctx, jobID); getErr == nil && existing != nil {
			return nil
		}
		return fmt.Errorf("failed to track delivery for job %s: %w", jobID, err)
	}
	return nil
}

// MarkProcessing records that a dispatch attempt to the provider started.
// Allowed from queued, processing and failed (a retried job dispatches
// again); completed and terminal statuses reject the transition.
func (t *Tracker) MarkProcessing(ctx context.Context, jobID uuid.UUID) error {
	ds, err := t.store.GetByJobID(ctx, jobID)
	if err != nil {
		return err
	}

	switch ds.Status {
	case StatusQueued, StatusProcessing, StatusFailed:
	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, ds.Status, StatusProcessing)
	}

	now := t.clock()
	ds.Status = StatusProcessing
	ds.Attempts++
	ds.LastAttemptAt = &now
	ds.UpdatedAt = now
	return t.store.Update(ctx, ds)
}

// MarkCompleted records provider acknowledgment and the assigned message
// id, the correlation key for later webhooks. Idempotent on repeats;
// a terminal status is authoritative and absorbs late completions.
func (t *Tracker) MarkCompleted(ctx context.Context, jobID uuid.UUID, externalMessageID string) error {
	ds, err := t.store.GetByJobID(ctx, jobID)
	if err != nil {
		return err
	}

	if ds.Status.IsTerminal() {
		t.logger.Warn("ignoring completion for terminally tracked delivery",
			"job_id", jobID,
			"status", ds.Status)
		return nil
	}
	if ds.Status == StatusCompleted {
		return nil
	}

	now := t.clock()
	ds.Status = StatusCompleted
	ds.ExternalMessageID = externalMessageID
	ds.DeliveredAt = &now
	ds.Error = ""
	ds.UpdatedAt = now
	return t.store.Update(ctx, ds)
}

// MarkFailed records a failed dispatch attempt.
func (t *Tracker) MarkFailed(ctx context.Context, jobID uuid.UUID, errMsg string) error {
	ds, err := t.store.GetByJobID(ctx, jobID)
	if err != nil {
		return err
	}

	if ds.Status == StatusCompleted || ds.Status.IsTerminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, ds.Status, StatusFailed)
	}

	now := t.clock()
	ds.Status = StatusFailed
	ds.Error = errMsg
	ds.UpdatedAt = now
	return t.store.Update(ctx, ds)
}

// Get retrieves the delivery record for a job.
func (t *Tracker) Get(ctx context.Context, jobID uuid.UUID) (*DeliveryStatus, error) {
	return t.store.GetByJobID(ctx, jobID)
}

// HandleProviderEvent reconciles one asynchronous provider notification
// against the tracked delivery. Idempotent two ways: a replayed event id is
// dropped, and a repeat of an already-applied terminal transition is a
// no-op. The job's own queue-level state is untouched; bounce and
// complaint are delivery-level facts.
func (t *Tracker) HandleProviderEvent(ctx context.Context, event ProviderEvent) error {
	if event.ExternalMessageID == "" {
		metrics.RecordWebhookEvent(string(event.Type), "rejected")
		return ErrMissingMessageID
	}
	if event.Type != EventBounce && event.Type != EventComplaint {
		metrics.RecordWebhookEvent(string(event.Type), "rejected")
		return fmt.Errorf("%w: %s", ErrUnknownEventType, event.Type)
	}

	if t.isReplay(event.EventID) {
		t.logger.Debug("ignoring replayed provider event",
			"event_id", event.EventID,
			"message_id", event.ExternalMessageID)
		metrics.RecordWebhookEvent(string(event.Type), "duplicate")
		return nil
	}

	ds, err := t.store.GetByMessageID(ctx, event.ExternalMessageID)
	if err != nil {
		metrics.RecordWebhookEvent(string(event.Type), "unmatched")
		return fmt.Errorf("no delivery for message %s: %w", event.ExternalMessageID, err)
	}

	if ds.Status.IsTerminal() {
		// First terminal signal wins; a complaint after a bounce (or a
		// replayed bounce under a new event id) changes nothing.
		t.markSeen(event.EventID)
		metrics.RecordWebhookEvent(string(event.Type), "duplicate")
		return nil
	}
	if ds.Status != StatusCompleted {
		metrics.RecordWebhookEvent(string(event.Type), "rejected")
		return fmt.Errorf("%w: message %s is %s", ErrNotCompleted, event.ExternalMessageID, ds.Status)
	}

	occurredAt := event.Timestamp
	if occurredAt.IsZero() {
		occurredAt = t.clock()
	}

	switch event.Type {
	case EventBounce:
		ds.Status = StatusBounced
		ds.BouncedAt = &occurredAt
	case EventComplaint:
		ds.Status = StatusComplained
		ds.ComplainedAt = &occurredAt
	}
	if event.Reason != "" {
		ds.Error = event.Reason
	}
	if event.Recipient != "" {
		ds.Recipient = event.Recipient
	}
	ds.UpdatedAt = t.clock()

	if err := t.store.Update(ctx, ds); err != nil {
		return fmt.Errorf("failed to apply provider event %s: %w", event.EventID, err)
	}
	t.markSeen(event.EventID)

	t.logger.Info("applied provider delivery event",
		"event_type", event.Type,
		"job_id", ds.JobID,
		"message_id", event.ExternalMessageID,
		"reason", event.Reason)
	metrics.RecordWebhookEvent(string(event.Type), "applied")
	return nil
}

// isReplay reports whether the event id has already been absorbed.
func (t *Tracker) isReplay(eventID string) bool {
	if eventID == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.seen[eventID]
	return ok
}

// markSeen records the event id in the bounded FIFO replay window.
// Called only after the event's effect is durably applied or absorbed;
// an event whose processing failed keeps its id free so the provider's
// retry is handled, not dropped as a replay.
func (t *Tracker) markSeen(eventID string) {
	if eventID == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.seen[eventID]; ok {
		return
	}
	t.seen[eventID] = struct{}{}
	t.seenOrder = append(t.seenOrder, eventID)
	if len(t.seenOrder) > t.seenLimit {
		oldest := t.seenOrder[0]
		t.seenOrder = t.seenOrder[1:]
		delete(t.seen, oldest)
	}
}
