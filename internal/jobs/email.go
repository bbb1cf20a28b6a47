package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lumenlearn/lumen-api/internal/delivery"
	"github.com/lumenlearn/lumen-api/internal/queue"
)

// EmailPayload is the job payload for a single transactional email.
type EmailPayload struct {
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	Template string            `json:"template"`
	Data     map[string]string `json:"data,omitempty"`
}

// EmailResult is persisted as the job result on completion.
type EmailResult struct {
	MessageID string `json:"message_id"`
}

// EmailHandler dispatches one email through the provider and keeps the
// delivery tracker in sync, recording the provider-assigned message id so
// later bounce/complaint webhooks can correlate back.
type EmailHandler struct {
	sender  EmailSender
	tracker *delivery.Tracker
	logger  *slog.Logger
}

// NewEmailHandler creates the single-email handler.
func NewEmailHandler(sender EmailSender, tracker *delivery.Tracker, logger *slog.Logger) *EmailHandler {
	return &EmailHandler{
		sender:  sender,
		tracker: tracker,
		logger:  logger.With("handler", TypeSendEmail),
	}
}

// Handle executes one email dispatch job.
func (h *EmailHandler) Handle(ctx context.Context, payload EmailPayload, report queue.ProgressFunc) (json.RawMessage, error) {
	if payload.To == "" {
		return nil, fmt.Errorf("%w: recipient is required", queue.ErrInvalidPayload)
	}
	if payload.Template == "" {
		return nil, fmt.Errorf("%w: template is required", queue.ErrInvalidPayload)
	}

	jobID, hasJobID := queue.JobIDFromContext(ctx)
	if hasJobID {
		if err := h.tracker.Track(ctx, jobID, payload.To); err != nil {
			h.logger.Warn("failed to track delivery", "job_id", jobID, "error", err)
		}
		if err := h.tracker.MarkProcessing(ctx, jobID); err != nil {
			h.logger.Warn("failed to mark delivery processing", "job_id", jobID, "error", err)
		}
	}
	report(25)

	messageID, err := h.sender.Send(ctx, EmailMessage{
		To:       payload.To,
		Subject:  payload.Subject,
		Template: payload.Template,
		Data:     payload.Data,
	})
	if err != nil {
		if hasJobID {
			if trackErr := h.tracker.MarkFailed(ctx, jobID, err.Error()); trackErr != nil {
				h.logger.Warn("failed to mark delivery failed", "job_id", jobID, "error", trackErr)
			}
		}
		return nil, fmt.Errorf("failed to send email to %s: %w", payload.To, err)
	}
	report(75)

	if hasJobID {
		if err := h.tracker.MarkCompleted(ctx, jobID, messageID); err != nil {
			h.logger.Warn("failed to mark delivery completed",
				"job_id", jobID,
				"message_id", messageID,
				"error", err)
		}
	}

	h.logger.Info("email dispatched", "to", payload.To, "message_id", messageID)

	raw, err := json.Marshal(EmailResult{MessageID: messageID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal email result: %w", err)
	}
	return raw, nil
}

// BulkEmailPayload is the job payload for a bulk send: one email per
// recipient, fanned out as individual send jobs.
type BulkEmailPayload struct {
	Recipients []string          `json:"recipients"`
	Subject    string            `json:"subject"`
	Template   string            `json:"template"`
	Data       map[string]string `json:"data,omitempty"`
}

// BulkEmailResult is persisted as the job result on completion.
type BulkEmailResult struct {
	Enqueued int         `json:"enqueued"`
	JobIDs   []uuid.UUID `json:"job_ids"`
}

// BulkEmailHandler fans a bulk send out into per-recipient email jobs.
// Each child job carries an idempotency key derived from the bulk job and
// the recipient, so a retried fan-out never double-enqueues a recipient
// that was already submitted.
type BulkEmailHandler struct {
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewBulkEmailHandler creates the bulk fan-out handler.
func NewBulkEmailHandler(enqueuer Enqueuer, logger *slog.Logger) *BulkEmailHandler {
	return &BulkEmailHandler{
		enqueuer: enqueuer,
		logger:   logger.With("handler", TypeSendBulkEmail),
	}
}

// Handle executes one bulk fan-out job.
func (h *BulkEmailHandler) Handle(ctx context.Context, payload BulkEmailPayload, report queue.ProgressFunc) (json.RawMessage, error) {
	if len(payload.Recipients) == 0 {
		return nil, fmt.Errorf("%w: at least one recipient is required", queue.ErrInvalidPayload)
	}
	if payload.Template == "" {
		return nil, fmt.Errorf("%w: template is required", queue.ErrInvalidPayload)
	}

	bulkID, _ := queue.JobIDFromContext(ctx)

	jobIDs := make([]uuid.UUID, 0, len(payload.Recipients))
	for i, recipient := range payload.Recipients {
		childID, err := h.enqueuer.Enqueue(ctx, QueueEmails, TypeSendEmail,
			EmailPayload{
				To:       recipient,
				Subject:  payload.Subject,
				Template: payload.Template,
				Data:     payload.Data,
			},
			queue.EnqueueOptions{
				IdempotencyKey: fmt.Sprintf("bulk-%s-%s", bulkID, recipient),
			})
		if err != nil {
			// The idempotency keys make a retry of the whole fan-out safe:
			// already-enqueued recipients dedupe to their existing jobs.
			return nil, fmt.Errorf("failed to enqueue email for %s: %w", recipient, err)
		}
		jobIDs = append(jobIDs, childID)

		report((i + 1) * 100 / len(payload.Recipients))
	}

	h.logger.Info("bulk email fanned out",
		"bulk_job_id", bulkID,
		"recipients", len(payload.Recipients))

	raw, err := json.Marshal(BulkEmailResult{Enqueued: len(jobIDs), JobIDs: jobIDs})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bulk email result: %w", err)
	}
	return raw, nil
}
