package queue

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// defaultStatsWindow bounds the "recent" window for completion rate and
// average processing time.
const defaultStatsWindow = time.Hour

// MemoryStore is a mutex-guarded in-memory implementation of the Store
// contract, used by tests and local development. The single lock makes
// DequeueNext trivially atomic: no two workers can claim the same job.
type MemoryStore struct {
	mu          sync.Mutex
	jobs        map[uuid.UUID]*Job
	paused      map[string]bool
	statsWindow time.Duration
	now         func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:        make(map[uuid.UUID]*Job),
		paused:      make(map[string]bool),
		statsWindow: defaultStatsWindow,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the store's clock. Test helper.
func (s *MemoryStore) SetNowFunc(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// cloneJob returns a copy so callers never share memory with the store's
// record.
func cloneJob(j *Job) *Job {
	c := *j
	if j.Payload != nil {
		c.Payload = append(json.RawMessage(nil), j.Payload...)
	}
	if j.Result != nil {
		c.Result = append(json.RawMessage(nil), j.Result...)
	}
	if j.ProcessedAt != nil {
		t := *j.ProcessedAt
		c.ProcessedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	if j.HeartbeatAt != nil {
		t := *j.HeartbeatAt
		c.HeartbeatAt = &t
	}
	return &c
}

// Enqueue persists a new job, deduplicating on the idempotency key against
// non-terminal jobs.
func (s *MemoryStore) Enqueue(_ context.Context, job *Job) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.IdempotencyKey != "" {
		for _, existing := range s.jobs {
			if existing.IdempotencyKey == job.IdempotencyKey && !existing.State.IsTerminal() {
				return cloneJob(existing), nil
			}
		}
	}

	s.jobs[job.ID] = cloneJob(job)
	return cloneJob(job), nil
}

// DequeueNext atomically claims the best ready job in the queue.
func (s *MemoryStore) DequeueNext(_ context.Context, queueName string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused[queueName] {
		return nil, nil
	}

	now := s.now()
	var best *Job
	for _, j := range s.jobs {
		if j.QueueName != queueName {
			continue
		}
		if j.State != StateWaiting && j.State != StateDelayed {
			continue
		}
		if j.RunAt.After(now) {
			continue
		}
		if best == nil || less(j, best) {
			best = j
		}
	}

	if best == nil {
		return nil, nil
	}

	best.State = StateActive
	hb := now
	best.HeartbeatAt = &hb
	if best.ProcessedAt == nil {
		p := now
		best.ProcessedAt = &p
	}
	return cloneJob(best), nil
}

// less orders claimable jobs: priority first (lower wins), then FIFO on
// creation time.
func less(a, b *Job) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// MarkCompleted transitions a job to completed. No-op on terminal jobs.
func (s *MemoryStore) MarkCompleted(_ context.Context, jobID uuid.UUID, result json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if j.State.IsTerminal() {
		return nil
	}

	j.State = StateCompleted
	j.Progress = 100
	j.Result = append(json.RawMessage(nil), result...)
	j.LastError = ""
	now := s.now()
	j.FinishedAt = &now
	j.HeartbeatAt = nil
	return nil
}

// MarkFailed transitions a job to terminal failure. No-op on terminal jobs.
func (s *MemoryStore) MarkFailed(_ context.Context, jobID uuid.UUID, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if j.State.IsTerminal() {
		return nil
	}

	// A failing run consumes the attempt that just happened, capped at
	// the budget so attempts_made never exceeds max_attempts.
	if j.State == StateActive && j.AttemptsMade < j.MaxAttempts {
		j.AttemptsMade++
	}

	j.State = StateFailed
	j.LastError = errMsg
	now := s.now()
	j.FinishedAt = &now
	j.HeartbeatAt = nil
	return nil
}

// ScheduleRetry consumes one attempt and reschedules the job.
func (s *MemoryStore) ScheduleRetry(_ context.Context, jobID uuid.UUID, errMsg string, nextRunAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if j.State.IsTerminal() {
		return ErrJobTerminal
	}

	j.AttemptsMade++
	j.LastError = errMsg
	j.RunAt = nextRunAt
	j.HeartbeatAt = nil
	if nextRunAt.After(s.now()) {
		j.State = StateDelayed
	} else {
		j.State = StateWaiting
	}
	return nil
}

// ReportProgress records handler progress on an active job.
func (s *MemoryStore) ReportProgress(_ context.Context, jobID uuid.UUID, pct int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if j.State != StateActive {
		return nil
	}

	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	j.Progress = pct
	return nil
}

// Heartbeat refreshes the lease on an active job.
func (s *MemoryStore) Heartbeat(_ context.Context, jobID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if j.State != StateActive {
		return nil
	}

	now := s.now()
	j.HeartbeatAt = &now
	return nil
}

// GetJob retrieves a job by id.
func (s *MemoryStore) GetJob(_ context.Context, jobID uuid.UUID) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return cloneJob(j), nil
}

// Cancel transitions a non-terminal job to cancelled.
func (s *MemoryStore) Cancel(_ context.Context, jobID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if j.State.IsTerminal() {
		return ErrJobTerminal
	}

	j.State = StateCancelled
	now := s.now()
	j.FinishedAt = &now
	j.HeartbeatAt = nil
	return nil
}

// RetryFailed resets a failed job back to waiting with a fresh attempt
// budget.
func (s *MemoryStore) RetryFailed(_ context.Context, jobID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if j.State != StateFailed {
		return ErrJobNotFailed
	}

	j.State = StateWaiting
	j.AttemptsMade = 0
	j.Progress = 0
	j.LastError = ""
	j.RunAt = s.now()
	j.FinishedAt = nil
	return nil
}

// Requeue returns an active job to waiting without consuming an attempt.
func (s *MemoryStore) Requeue(_ context.Context, jobID uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if j.State != StateActive {
		return nil
	}

	j.State = StateWaiting
	j.LastError = reason
	j.RunAt = s.now()
	j.HeartbeatAt = nil
	return nil
}

// ListStalled returns active jobs whose heartbeat is older than the threshold.
func (s *MemoryStore) ListStalled(_ context.Context, olderThan time.Duration) ([]*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-olderThan)
	var stalled []*Job
	for _, j := range s.jobs {
		if j.State != StateActive {
			continue
		}
		if j.HeartbeatAt == nil || j.HeartbeatAt.Before(cutoff) {
			stalled = append(stalled, cloneJob(j))
		}
	}
	return stalled, nil
}

// ListActive returns all active jobs.
func (s *MemoryStore) ListActive(_ context.Context) ([]*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var active []*Job
	for _, j := range s.jobs {
		if j.State == StateActive {
			active = append(active, cloneJob(j))
		}
	}
	return active, nil
}

// ListFailed returns up to limit failed jobs in the queue, oldest first.
func (s *MemoryStore) ListFailed(_ context.Context, queueName string, limit int) ([]*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var failed []*Job
	for _, j := range s.jobs {
		if j.QueueName == queueName && j.State == StateFailed {
			failed = append(failed, cloneJob(j))
		}
	}
	sort.Slice(failed, func(i, k int) bool {
		return failed[i].CreatedAt.Before(failed[k].CreatedAt)
	})
	if limit > 0 && len(failed) > limit {
		failed = failed[:limit]
	}
	return failed, nil
}

// PromoteDue transitions delayed jobs whose RunAt elapsed back to waiting.
func (s *MemoryStore) PromoteDue(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	promoted := 0
	for _, j := range s.jobs {
		if j.State == StateDelayed && !j.RunAt.After(now) {
			j.State = StateWaiting
			promoted++
		}
	}
	return promoted, nil
}

// PauseQueue stops dequeueing for the queue.
func (s *MemoryStore) PauseQueue(_ context.Context, queueName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused[queueName] = true
	return nil
}

// ResumeQueue re-enables dequeueing for the queue.
func (s *MemoryStore) ResumeQueue(_ context.Context, queueName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.paused, queueName)
	return nil
}

// ClearQueue removes all waiting and delayed jobs from the queue.
func (s *MemoryStore) ClearQueue(_ context.Context, queueName string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, j := range s.jobs {
		if j.QueueName != queueName {
			continue
		}
		if j.State == StateWaiting || j.State == StateDelayed {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed, nil
}

// Stats computes current counters for the queue.
func (s *MemoryStore) Stats(_ context.Context, queueName string) (QueueStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := QueueStats{
		QueueName: queueName,
		Paused:    s.paused[queueName],
	}

	windowStart := s.now().Add(-s.statsWindow)
	recentCompleted, recentFailed := 0, 0
	var totalProcessing time.Duration
	processed := 0

	for _, j := range s.jobs {
		if j.QueueName != queueName {
			continue
		}
		switch j.State {
		case StateWaiting:
			stats.Waiting++
		case StateActive:
			stats.Active++
		case StateCompleted:
			stats.Completed++
		case StateFailed:
			stats.Failed++
		case StateDelayed:
			stats.Delayed++
		case StateCancelled:
			stats.Cancelled++
		}

		if j.FinishedAt == nil || j.FinishedAt.Before(windowStart) {
			continue
		}
		switch j.State {
		case StateCompleted:
			recentCompleted++
		case StateFailed:
			recentFailed++
		}
		if j.ProcessedAt != nil && j.State == StateCompleted {
			totalProcessing += j.FinishedAt.Sub(*j.ProcessedAt)
			processed++
		}
	}

	if recentCompleted+recentFailed > 0 {
		stats.CompletionRate = float64(recentCompleted) / float64(recentCompleted+recentFailed)
	} else {
		stats.CompletionRate = 1
	}
	if processed > 0 {
		stats.AvgProcessingMs = float64(totalProcessing.Milliseconds()) / float64(processed)
	}

	return stats, nil
}
