package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lumenlearn/lumen-api/internal/queue"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestManager builds a manager over an in-memory store with one "emails"
// queue and one registered job type. The manager is not started; tests drive
// job state through the store directly.
func newTestManager(t *testing.T) (*queue.Manager, *queue.MemoryStore) {
	t.Helper()

	store := queue.NewMemoryStore()
	registry := queue.NewRegistry()
	registry.Register("send_email", func(_ context.Context, _ json.RawMessage, _ queue.ProgressFunc) (json.RawMessage, error) {
		return nil, nil
	})

	mgr := queue.NewManager(store, registry, nil, queue.DefaultManagerConfig(), testLogger())
	require.NoError(t, mgr.RegisterQueue(queue.QueueConfig{Name: "emails", Concurrency: 1}))

	return mgr, store
}

// enqueueTestJob submits a job through the manager and returns its id.
func enqueueTestJob(t *testing.T, mgr *queue.Manager) uuid.UUID {
	t.Helper()

	jobID, err := mgr.Enqueue(context.Background(), "emails", "send_email",
		map[string]string{"to": "student@example.com"}, queue.EnqueueOptions{})
	require.NoError(t, err)
	return jobID
}

// failTestJob runs a job through one claim-and-fail cycle so it lands in the
// failed state.
func failTestJob(t *testing.T, store *queue.MemoryStore, jobID uuid.UUID) {
	t.Helper()

	ctx := context.Background()
	claimed, err := store.DequeueNext(ctx, "emails")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.Equal(t, jobID, claimed.ID)
	require.NoError(t, store.MarkFailed(ctx, jobID, "smtp timeout"))
}

// completeTestJob runs a job through one claim-and-complete cycle.
func completeTestJob(t *testing.T, store *queue.MemoryStore, jobID uuid.UUID) {
	t.Helper()

	ctx := context.Background()
	claimed, err := store.DequeueNext(ctx, "emails")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.Equal(t, jobID, claimed.ID)
	require.NoError(t, store.MarkCompleted(ctx, jobID, nil))
}
