package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lumenlearn/lumen-api/internal/queue"
	"github.com/lumenlearn/lumen-api/internal/singleflight"
)

// analyticsLockTTL bounds how long a crashed aggregation run can block the
// window for other instances.
const analyticsLockTTL = 10 * time.Minute

// AnalyticsPayload is the job payload for daily analytics aggregation.
// Date is the aggregation window in "2006-01-02" form.
type AnalyticsPayload struct {
	Date string `json:"date"`
}

// AnalyticsResult is persisted as the job result on completion.
type AnalyticsResult struct {
	Summary AnalyticsSummary `json:"summary,omitempty"`

	// Skipped means another instance held the window's lock; its run
	// produces the summary.
	Skipped bool `json:"skipped,omitempty"`
}

// AnalyticsHandler aggregates one daily metrics window. A cross-process
// advisory lock keyed by the window keeps multiple instances from
// aggregating the same day concurrently.
type AnalyticsHandler struct {
	repo   AnalyticsRepository
	locker singleflight.Locker
	logger *slog.Logger
}

// NewAnalyticsHandler creates the analytics aggregation handler.
func NewAnalyticsHandler(repo AnalyticsRepository, locker singleflight.Locker, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		repo:   repo,
		locker: locker,
		logger: logger.With("handler", TypeAggregateAnalytics),
	}
}

// Handle executes one aggregation job.
func (h *AnalyticsHandler) Handle(ctx context.Context, payload AnalyticsPayload, report queue.ProgressFunc) (json.RawMessage, error) {
	date, err := time.Parse("2006-01-02", payload.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD: %w", queue.ErrInvalidPayload, err)
	}

	release, err := h.locker.Acquire(ctx, "analytics:daily:"+payload.Date, analyticsLockTTL)
	if err != nil {
		if errors.Is(err, singleflight.ErrLockHeld) {
			h.logger.Info("aggregation window locked by another instance, skipping", "date", payload.Date)
			return marshalAnalyticsResult(AnalyticsResult{Skipped: true})
		}
		return nil, fmt.Errorf("failed to acquire aggregation lock: %w", err)
	}
	defer func() {
		if err := release(ctx); err != nil {
			h.logger.Warn("failed to release aggregation lock", "date", payload.Date, "error", err)
		}
	}()
	report(10)

	summary, err := h.repo.AggregateDay(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate analytics for %s: %w", payload.Date, err)
	}
	report(90)

	h.logger.Info("analytics window aggregated",
		"date", payload.Date,
		"active_students", summary.ActiveStudents,
		"completed_enrollments", summary.CompletedEnrollments)

	return marshalAnalyticsResult(AnalyticsResult{Summary: summary})
}

func marshalAnalyticsResult(res AnalyticsResult) (json.RawMessage, error) {
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analytics result: %w", err)
	}
	return raw, nil
}
