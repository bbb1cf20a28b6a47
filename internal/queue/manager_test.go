package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlearn/lumen-api/internal/events"
)

func newTestManager(store Store, registry *Registry, emitter events.EventEmitter) *Manager {
	return NewManager(store, registry, emitter, ManagerConfig{
		StallCheckInterval: time.Hour,
		StallThreshold:     time.Minute,
		HeartbeatInterval:  time.Hour,
	}, discardLogger())
}

func TestManager_RegisterQueue(t *testing.T) {
	t.Parallel()

	t.Run("applies defaults", func(t *testing.T) {
		t.Parallel()

		store := NewMemoryStore()
		m := newTestManager(store, NewRegistry(), nil)

		require.NoError(t, m.RegisterQueue(QueueConfig{Name: "emails", Concurrency: 2}))
		assert.Contains(t, m.QueueNames(), "emails")
	})

	t.Run("rejects empty name", func(t *testing.T) {
		t.Parallel()

		m := newTestManager(NewMemoryStore(), NewRegistry(), nil)
		assert.Error(t, m.RegisterQueue(QueueConfig{Concurrency: 1}))
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		t.Parallel()

		m := newTestManager(NewMemoryStore(), NewRegistry(), nil)
		require.NoError(t, m.RegisterQueue(QueueConfig{Name: "emails", Concurrency: 1}))
		assert.Error(t, m.RegisterQueue(QueueConfig{Name: "emails", Concurrency: 1}))
	})

	t.Run("rejects registration after start", func(t *testing.T) {
		t.Parallel()

		m := newTestManager(NewMemoryStore(), NewRegistry(), nil)
		require.NoError(t, m.Start(context.Background()))
		defer func() { _ = m.Shutdown(context.Background()) }()

		assert.Error(t, m.RegisterQueue(QueueConfig{Name: "late", Concurrency: 1}))
	})
}

func TestManager_Enqueue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	newFixture := func(t *testing.T) (*Manager, *MemoryStore) {
		t.Helper()
		store := NewMemoryStore()
		registry := NewRegistry()
		registry.Register("send_email", func(_ context.Context, _ json.RawMessage, _ ProgressFunc) (json.RawMessage, error) {
			return nil, nil
		})
		m := newTestManager(store, registry, nil)
		require.NoError(t, m.RegisterQueue(QueueConfig{Name: "emails", Concurrency: 1}))
		return m, store
	}

	t.Run("rejects unknown queue", func(t *testing.T) {
		t.Parallel()

		m, _ := newFixture(t)
		_, err := m.Enqueue(ctx, "nope", "send_email", nil, EnqueueOptions{})
		assert.ErrorIs(t, err, ErrUnknownQueue)
	})

	t.Run("rejects unknown job type", func(t *testing.T) {
		t.Parallel()

		m, _ := newFixture(t)
		_, err := m.Enqueue(ctx, "emails", "nope", nil, EnqueueOptions{})
		assert.ErrorIs(t, err, ErrUnknownJobType)
	})

	t.Run("applies queue defaults", func(t *testing.T) {
		t.Parallel()

		m, store := newFixture(t)
		id, err := m.Enqueue(ctx, "emails", "send_email", map[string]string{"to": "a@b.c"}, EnqueueOptions{})
		require.NoError(t, err)

		job, err := store.GetJob(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 3, job.MaxAttempts)
		assert.Equal(t, DefaultBackoff(), job.Backoff)
		assert.Equal(t, StateWaiting, job.State)
		assert.JSONEq(t, `{"to":"a@b.c"}`, string(job.Payload))
	})

	t.Run("delay lands in delayed state", func(t *testing.T) {
		t.Parallel()

		m, store := newFixture(t)
		id, err := m.Enqueue(ctx, "emails", "send_email", nil, EnqueueOptions{Delay: time.Hour})
		require.NoError(t, err)

		job, err := store.GetJob(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StateDelayed, job.State)
		assert.True(t, job.RunAt.After(time.Now().UTC().Add(50*time.Minute)))
	})

	t.Run("deduplicates by idempotency key", func(t *testing.T) {
		t.Parallel()

		m, _ := newFixture(t)
		opts := EnqueueOptions{IdempotencyKey: "digest-2026-08-30"}

		first, err := m.Enqueue(ctx, "emails", "send_email", nil, opts)
		require.NoError(t, err)
		second, err := m.Enqueue(ctx, "emails", "send_email", nil, opts)
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})

	t.Run("rejects enqueue after shutdown", func(t *testing.T) {
		t.Parallel()

		m, _ := newFixture(t)
		require.NoError(t, m.Shutdown(ctx))

		_, err := m.Enqueue(ctx, "emails", "send_email", nil, EnqueueOptions{})
		assert.ErrorIs(t, err, ErrManagerClosed)
	})
}

func TestManager_ProcessesJobEndToEnd(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	registry := NewRegistry()
	emitter := &captureEmitter{}

	registry.Register("send_email", func(_ context.Context, _ json.RawMessage, _ ProgressFunc) (json.RawMessage, error) {
		return json.RawMessage(`{"sent":true}`), nil
	})

	m := newTestManager(store, registry, emitter)
	require.NoError(t, m.RegisterQueue(QueueConfig{
		Name:         "emails",
		Concurrency:  2,
		PollInterval: 5 * time.Millisecond,
	}))
	require.NoError(t, m.Start(ctx))
	defer func() { _ = m.Shutdown(ctx) }()

	id, err := m.Enqueue(ctx, "emails", "send_email", nil, EnqueueOptions{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		job, err := m.GetJob(ctx, id)
		return err == nil && job.State == StateCompleted
	}, 2*time.Second, 5*time.Millisecond)

	require.Len(t, emitter.byType(events.JobEventCompleted), 1)
}

func TestManager_StartRecoversOrphanedJobs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()

	// Simulate a previous process that died mid-job: the job sits active
	// with nobody heartbeating it.
	orphan := newJob("emails", "send_email", json.RawMessage(`{}`), EnqueueOptions{MaxAttempts: 3})
	_, err := store.Enqueue(ctx, orphan)
	require.NoError(t, err)
	claimed, err := store.DequeueNext(ctx, "emails")
	require.NoError(t, err)
	require.Equal(t, StateActive, claimed.State)

	registry := NewRegistry()
	registry.Register("send_email", func(_ context.Context, _ json.RawMessage, _ ProgressFunc) (json.RawMessage, error) {
		return nil, nil
	})

	m := newTestManager(store, registry, nil)
	require.NoError(t, m.RegisterQueue(QueueConfig{
		Name:         "emails",
		Concurrency:  1,
		PollInterval: 5 * time.Millisecond,
	}))
	require.NoError(t, m.Start(ctx))
	defer func() { _ = m.Shutdown(ctx) }()

	var got *Job
	require.Eventually(t, func() bool {
		j, err := m.GetJob(ctx, orphan.ID)
		got = j
		return err == nil && j.State == StateCompleted
	}, 2*time.Second, 5*time.Millisecond)

	// The interrupted run was not the worker's fault.
	assert.Equal(t, 0, got.AttemptsMade, "recovery must not consume an attempt")
}

func TestManager_Cancel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("cancels waiting job and emits event", func(t *testing.T) {
		t.Parallel()

		store := NewMemoryStore()
		registry := NewRegistry()
		registry.Register("send_email", func(_ context.Context, _ json.RawMessage, _ ProgressFunc) (json.RawMessage, error) {
			return nil, nil
		})
		emitter := &captureEmitter{}
		m := newTestManager(store, registry, emitter)
		require.NoError(t, m.RegisterQueue(QueueConfig{Name: "emails", Concurrency: 1}))

		id, err := m.Enqueue(ctx, "emails", "send_email", nil, EnqueueOptions{})
		require.NoError(t, err)

		require.NoError(t, m.Cancel(ctx, id))

		job, err := m.GetJob(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StateCancelled, job.State)
		require.Len(t, emitter.byType(events.JobEventCancelled), 1)
	})

	t.Run("rejects unknown job", func(t *testing.T) {
		t.Parallel()

		m := newTestManager(NewMemoryStore(), NewRegistry(), nil)
		assert.ErrorIs(t, m.Cancel(ctx, uuid.New()), ErrJobNotFound)
	})
}

func TestManager_RetryFailedJobs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	m := newTestManager(store, NewRegistry(), nil)
	require.NoError(t, m.RegisterQueue(QueueConfig{Name: "emails", Concurrency: 1}))

	// Seed three terminally failed jobs.
	for i := 0; i < 3; i++ {
		job := newJob("emails", "send_email", json.RawMessage(`{}`), EnqueueOptions{MaxAttempts: 1})
		_, err := store.Enqueue(ctx, job)
		require.NoError(t, err)
		_, err = store.DequeueNext(ctx, "emails")
		require.NoError(t, err)
		require.NoError(t, store.MarkFailed(ctx, job.ID, "boom"))
	}

	t.Run("bulk retry respects max count", func(t *testing.T) {
		retried, err := m.RetryFailedJobs(ctx, "emails", 2)
		require.NoError(t, err)
		assert.Equal(t, 2, retried)

		stats, err := store.Stats(ctx, "emails")
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Waiting)
		assert.Equal(t, 1, stats.Failed)
	})

	t.Run("unknown queue", func(t *testing.T) {
		_, err := m.RetryFailedJobs(ctx, "nope", 10)
		assert.ErrorIs(t, err, ErrUnknownQueue)
	})
}

func TestManager_QueueAdministration(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	registry := NewRegistry()
	registry.Register("send_email", func(_ context.Context, _ json.RawMessage, _ ProgressFunc) (json.RawMessage, error) {
		return nil, nil
	})
	m := newTestManager(store, registry, nil)
	require.NoError(t, m.RegisterQueue(QueueConfig{Name: "emails", Concurrency: 1}))

	t.Run("pause and resume", func(t *testing.T) {
		require.NoError(t, m.PauseQueue(ctx, "emails"))

		stats, err := store.Stats(ctx, "emails")
		require.NoError(t, err)
		assert.True(t, stats.Paused)

		require.NoError(t, m.ResumeQueue(ctx, "emails"))
		stats, err = store.Stats(ctx, "emails")
		require.NoError(t, err)
		assert.False(t, stats.Paused)
	})

	t.Run("clear", func(t *testing.T) {
		_, err := m.Enqueue(ctx, "emails", "send_email", nil, EnqueueOptions{})
		require.NoError(t, err)

		removed, err := m.ClearQueue(ctx, "emails")
		require.NoError(t, err)
		assert.Equal(t, 1, removed)
	})

	t.Run("unknown queue errors", func(t *testing.T) {
		assert.ErrorIs(t, m.PauseQueue(ctx, "nope"), ErrUnknownQueue)
		assert.ErrorIs(t, m.ResumeQueue(ctx, "nope"), ErrUnknownQueue)
		_, err := m.ClearQueue(ctx, "nope")
		assert.ErrorIs(t, err, ErrUnknownQueue)
	})

	t.Run("stats cover all registered queues", func(t *testing.T) {
		stats, err := m.Stats(ctx)
		require.NoError(t, err)
		require.Len(t, stats, 1)
		assert.Equal(t, "emails", stats[0].QueueName)
	})
}

func TestManager_ShutdownDeadlineCancelsInFlight(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	registry := NewRegistry()

	started := make(chan struct{})
	registry.Register("hang", func(jobCtx context.Context, _ json.RawMessage, _ ProgressFunc) (json.RawMessage, error) {
		close(started)
		<-jobCtx.Done()
		return nil, jobCtx.Err()
	})

	m := newTestManager(store, registry, nil)
	require.NoError(t, m.RegisterQueue(QueueConfig{
		Name:         "emails",
		Concurrency:  1,
		PollInterval: 5 * time.Millisecond,
	}))
	require.NoError(t, m.Start(ctx))

	_, err := m.Enqueue(ctx, "emails", "hang", nil, EnqueueOptions{})
	require.NoError(t, err)
	<-started

	shutdownCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	err = m.Shutdown(shutdownCtx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "expected deadline error, got %v", err)
}
