package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlearn/lumen-api/internal/delivery"
)

const testProviderToken = "provider-shared-secret"

func newWebhookRouter(t *testing.T) (chi.Router, *delivery.Tracker, *delivery.MemoryStore) {
	t.Helper()

	store := delivery.NewMemoryStore()
	tracker := delivery.NewTracker(store, testLogger())
	handler := NewWebhookHandler(tracker, testProviderToken, testLogger())

	r := chi.NewRouter()
	r.Post("/webhooks/delivery", handler.HandleDeliveryEvent)
	r.Get("/jobs/{id}/delivery", handler.GetDelivery)

	return r, tracker, store
}

// completedDelivery tracks a delivery and walks it to completed with the
// given provider message id.
func completedDelivery(t *testing.T, tracker *delivery.Tracker, messageID string) uuid.UUID {
	t.Helper()

	ctx := context.Background()
	jobID := uuid.New()
	require.NoError(t, tracker.Track(ctx, jobID, "student@example.com"))
	require.NoError(t, tracker.MarkProcessing(ctx, jobID))
	require.NoError(t, tracker.MarkCompleted(ctx, jobID, messageID))
	return jobID
}

func postWebhook(t *testing.T, router http.Handler, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/delivery", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Provider-Token", token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestWebhookHandler_HandleDeliveryEvent(t *testing.T) {
	t.Parallel()

	t.Run("rejects a missing provider token", func(t *testing.T) {
		t.Parallel()
		router, _, _ := newWebhookRouter(t)

		rr := postWebhook(t, router, "",
			`{"event_id":"evt-1","type":"bounce","message_id":"msg-1"}`)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("rejects a wrong provider token", func(t *testing.T) {
		t.Parallel()
		router, _, _ := newWebhookRouter(t)

		rr := postWebhook(t, router, "guessing",
			`{"event_id":"evt-1","type":"bounce","message_id":"msg-1"}`)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("applies a bounce to a completed delivery", func(t *testing.T) {
		t.Parallel()
		router, tracker, _ := newWebhookRouter(t)
		jobID := completedDelivery(t, tracker, "msg-bounce-1")

		rr := postWebhook(t, router, testProviderToken,
			`{"event_id":"evt-1","type":"bounce","message_id":"msg-bounce-1","reason":"mailbox full"}`)
		require.Equal(t, http.StatusOK, rr.Code)

		ds, err := tracker.Get(context.Background(), jobID)
		require.NoError(t, err)
		assert.Equal(t, delivery.StatusBounced, ds.Status)
		assert.Equal(t, "mailbox full", ds.Error)
	})

	t.Run("applies a complaint to a completed delivery", func(t *testing.T) {
		t.Parallel()
		router, tracker, _ := newWebhookRouter(t)
		jobID := completedDelivery(t, tracker, "msg-complaint-1")

		rr := postWebhook(t, router, testProviderToken,
			`{"event_id":"evt-2","type":"complaint","message_id":"msg-complaint-1"}`)
		require.Equal(t, http.StatusOK, rr.Code)

		ds, err := tracker.Get(context.Background(), jobID)
		require.NoError(t, err)
		assert.Equal(t, delivery.StatusComplained, ds.Status)
	})

	t.Run("accepts a replayed event id without reapplying it", func(t *testing.T) {
		t.Parallel()
		router, tracker, _ := newWebhookRouter(t)
		jobID := completedDelivery(t, tracker, "msg-replay-1")

		body := `{"event_id":"evt-3","type":"bounce","message_id":"msg-replay-1","reason":"first"}`
		require.Equal(t, http.StatusOK, postWebhook(t, router, testProviderToken, body).Code)

		replay := `{"event_id":"evt-3","type":"complaint","message_id":"msg-replay-1"}`
		assert.Equal(t, http.StatusOK, postWebhook(t, router, testProviderToken, replay).Code)

		ds, err := tracker.Get(context.Background(), jobID)
		require.NoError(t, err)
		assert.Equal(t, delivery.StatusBounced, ds.Status)
	})

	t.Run("rejects an unknown event type", func(t *testing.T) {
		t.Parallel()
		router, _, _ := newWebhookRouter(t)

		rr := postWebhook(t, router, testProviderToken,
			`{"event_id":"evt-4","type":"opened","message_id":"msg-1"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("rejects a missing message id", func(t *testing.T) {
		t.Parallel()
		router, _, _ := newWebhookRouter(t)

		rr := postWebhook(t, router, testProviderToken,
			`{"event_id":"evt-5","type":"bounce"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("returns 404 for an unmatched message id", func(t *testing.T) {
		t.Parallel()
		router, _, _ := newWebhookRouter(t)

		rr := postWebhook(t, router, testProviderToken,
			`{"event_id":"evt-6","type":"bounce","message_id":"msg-nobody-sent"}`)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("rejects a bounce for a delivery that never completed", func(t *testing.T) {
		t.Parallel()
		router, _, store := newWebhookRouter(t)

		// A message id on a non-completed record means the provider and our
		// state disagree; the event cannot be applied.
		now := time.Now().UTC()
		require.NoError(t, store.Create(context.Background(), &delivery.DeliveryStatus{
			JobID:             uuid.New(),
			ExternalMessageID: "msg-early-1",
			Recipient:         "student@example.com",
			Status:            delivery.StatusProcessing,
			CreatedAt:         now,
			UpdatedAt:         now,
		}))

		rr := postWebhook(t, router, testProviderToken,
			`{"event_id":"evt-7","type":"bounce","message_id":"msg-early-1"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	})
}

func TestWebhookHandler_GetDelivery(t *testing.T) {
	t.Parallel()

	t.Run("returns the delivery record", func(t *testing.T) {
		t.Parallel()
		router, tracker, _ := newWebhookRouter(t)
		jobID := completedDelivery(t, tracker, "msg-get-1")

		req := httptest.NewRequest(http.MethodGet, "/jobs/"+jobID.String()+"/delivery", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		var ds delivery.DeliveryStatus
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ds))
		assert.Equal(t, jobID, ds.JobID)
		assert.Equal(t, delivery.StatusCompleted, ds.Status)
		assert.Equal(t, "msg-get-1", ds.ExternalMessageID)
	})

	t.Run("returns 404 for an untracked job", func(t *testing.T) {
		t.Parallel()
		router, _, _ := newWebhookRouter(t)

		req := httptest.NewRequest(http.MethodGet, "/jobs/"+uuid.NewString()+"/delivery", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
