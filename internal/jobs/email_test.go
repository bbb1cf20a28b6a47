package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlearn/lumen-api/internal/delivery"
	"github.com/lumenlearn/lumen-api/internal/queue"
)

func TestEmailHandler_Handle(t *testing.T) {
	t.Parallel()

	t.Run("dispatches and records delivery", func(t *testing.T) {
		t.Parallel()

		sender := &mockEmailSender{
			SendFn: func(context.Context, EmailMessage) (string, error) { return "msg-7", nil },
		}
		tracker := delivery.NewTracker(delivery.NewMemoryStore(), testLogger())
		h := NewEmailHandler(sender, tracker, testLogger())

		jobID := uuid.New()
		ctx := queue.WithJobID(context.Background(), jobID)

		raw, err := h.Handle(ctx, EmailPayload{
			To:       "student@example.com",
			Subject:  "Welcome",
			Template: "welcome",
		}, noProgress)
		require.NoError(t, err)

		var res EmailResult
		require.NoError(t, json.Unmarshal(raw, &res))
		assert.Equal(t, "msg-7", res.MessageID)

		ds, err := tracker.Get(ctx, jobID)
		require.NoError(t, err)
		assert.Equal(t, delivery.StatusCompleted, ds.Status)
		assert.Equal(t, "msg-7", ds.ExternalMessageID)
		assert.Equal(t, 1, ds.Attempts)
	})

	t.Run("provider failure marks delivery failed and retries", func(t *testing.T) {
		t.Parallel()

		sender := &mockEmailSender{
			SendFn: func(context.Context, EmailMessage) (string, error) {
				return "", errors.New("provider 503")
			},
		}
		tracker := delivery.NewTracker(delivery.NewMemoryStore(), testLogger())
		h := NewEmailHandler(sender, tracker, testLogger())

		jobID := uuid.New()
		ctx := queue.WithJobID(context.Background(), jobID)

		_, err := h.Handle(ctx, EmailPayload{To: "student@example.com", Template: "welcome"}, noProgress)
		require.Error(t, err)
		assert.False(t, queue.IsUnretryable(err), "a provider 503 is transient")

		ds, err := tracker.Get(ctx, jobID)
		require.NoError(t, err)
		assert.Equal(t, delivery.StatusFailed, ds.Status)
		assert.Contains(t, ds.Error, "provider 503")
	})

	t.Run("retry counts a second delivery attempt", func(t *testing.T) {
		t.Parallel()

		attempts := 0
		sender := &mockEmailSender{
			SendFn: func(context.Context, EmailMessage) (string, error) {
				attempts++
				if attempts == 1 {
					return "", errors.New("timeout")
				}
				return "msg-8", nil
			},
		}
		tracker := delivery.NewTracker(delivery.NewMemoryStore(), testLogger())
		h := NewEmailHandler(sender, tracker, testLogger())

		jobID := uuid.New()
		ctx := queue.WithJobID(context.Background(), jobID)
		payload := EmailPayload{To: "student@example.com", Template: "welcome"}

		_, err := h.Handle(ctx, payload, noProgress)
		require.Error(t, err)

		_, err = h.Handle(ctx, payload, noProgress)
		require.NoError(t, err)

		ds, _ := tracker.Get(ctx, jobID)
		assert.Equal(t, delivery.StatusCompleted, ds.Status)
		assert.Equal(t, 2, ds.Attempts)
	})

	t.Run("invalid payloads are unretryable", func(t *testing.T) {
		t.Parallel()

		tracker := delivery.NewTracker(delivery.NewMemoryStore(), testLogger())
		h := NewEmailHandler(&mockEmailSender{}, tracker, testLogger())

		_, err := h.Handle(context.Background(), EmailPayload{Template: "welcome"}, noProgress)
		assert.True(t, queue.IsUnretryable(err))

		_, err = h.Handle(context.Background(), EmailPayload{To: "student@example.com"}, noProgress)
		assert.True(t, queue.IsUnretryable(err))
	})
}

func TestBulkEmailHandler_Handle(t *testing.T) {
	t.Parallel()

	t.Run("fans out one job per recipient", func(t *testing.T) {
		t.Parallel()

		enqueuer := &mockEnqueuer{}
		h := NewBulkEmailHandler(enqueuer, testLogger())

		bulkID := uuid.New()
		ctx := queue.WithJobID(context.Background(), bulkID)

		recipients := []string{"a@example.com", "b@example.com", "c@example.com"}
		var milestones []int
		raw, err := h.Handle(ctx, BulkEmailPayload{
			Recipients: recipients,
			Subject:    "Course update",
			Template:   "course_update",
		}, func(pct int) { milestones = append(milestones, pct) })
		require.NoError(t, err)

		var res BulkEmailResult
		require.NoError(t, json.Unmarshal(raw, &res))
		assert.Equal(t, 3, res.Enqueued)
		assert.Len(t, res.JobIDs, 3)

		require.Len(t, enqueuer.enqueued, 3)
		for i, call := range enqueuer.enqueued {
			assert.Equal(t, QueueEmails, call.queueName)
			assert.Equal(t, TypeSendEmail, call.jobType)
			assert.Equal(t,
				fmt.Sprintf("bulk-%s-%s", bulkID, recipients[i]),
				call.opts.IdempotencyKey)

			payload, ok := call.payload.(EmailPayload)
			require.True(t, ok)
			assert.Equal(t, recipients[i], payload.To)
			assert.Equal(t, "course_update", payload.Template)
		}

		assert.Equal(t, []int{33, 66, 100}, milestones)
	})

	t.Run("enqueue failure is retryable", func(t *testing.T) {
		t.Parallel()

		enqueuer := &mockEnqueuer{
			EnqueueFn: func(context.Context, string, string, any, queue.EnqueueOptions) (uuid.UUID, error) {
				return uuid.Nil, errors.New("store unavailable")
			},
		}
		h := NewBulkEmailHandler(enqueuer, testLogger())

		_, err := h.Handle(context.Background(), BulkEmailPayload{
			Recipients: []string{"a@example.com"},
			Template:   "course_update",
		}, noProgress)
		require.Error(t, err)
		assert.False(t, queue.IsUnretryable(err))
	})

	t.Run("empty recipient list is unretryable", func(t *testing.T) {
		t.Parallel()

		h := NewBulkEmailHandler(&mockEnqueuer{}, testLogger())
		_, err := h.Handle(context.Background(), BulkEmailPayload{Template: "x"}, noProgress)
		assert.True(t, queue.IsUnretryable(err))
	})
}
