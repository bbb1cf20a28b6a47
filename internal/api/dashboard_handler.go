package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lumenlearn/lumen-api/internal/api/shared"
	"github.com/lumenlearn/lumen-api/internal/dashboard"
	"github.com/lumenlearn/lumen-api/internal/platform/logger"
)

// defaultRetryBatch bounds a retry-failed sweep when the caller gives no
// explicit count.
const defaultRetryBatch = 100

// DashboardHandler serves the operational dashboard snapshot and the
// queue management endpoints built on top of it.
type DashboardHandler struct {
	aggregator *dashboard.Aggregator
	logger     *slog.Logger
}

// NewDashboardHandler creates a new DashboardHandler with the given
// dependencies. If logger is nil, a default logger will be used.
func NewDashboardHandler(aggregator *dashboard.Aggregator, logger *slog.Logger) *DashboardHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &DashboardHandler{
		aggregator: aggregator,
		logger:     logger.With(slog.String("component", "dashboard_handler")),
	}
}

// GetSnapshot handles GET /dashboard
func (h *DashboardHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.aggregator.Snapshot(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, snapshot)
}

// PauseQueue handles POST /queues/{name}/pause
func (h *DashboardHandler) PauseQueue(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	queueName := chi.URLParam(r, "name")

	if err := h.aggregator.PauseQueue(r.Context(), queueName); err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("queue paused", slog.String("queue", queueName))
	w.WriteHeader(http.StatusNoContent)
}

// ResumeQueue handles POST /queues/{name}/resume
func (h *DashboardHandler) ResumeQueue(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	queueName := chi.URLParam(r, "name")

	if err := h.aggregator.ResumeQueue(r.Context(), queueName); err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("queue resumed", slog.String("queue", queueName))
	w.WriteHeader(http.StatusNoContent)
}

// ClearQueue handles POST /queues/{name}/clear
func (h *DashboardHandler) ClearQueue(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	queueName := chi.URLParam(r, "name")

	removed, err := h.aggregator.ClearQueue(r.Context(), queueName)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("queue cleared",
		slog.String("queue", queueName),
		slog.Int("removed", removed))
	shared.RespondWithJSON(w, r, http.StatusOK, ClearQueueResponse{Removed: removed})
}

// RetryFailed handles POST /queues/{name}/retry-failed
func (h *DashboardHandler) RetryFailed(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	queueName := chi.URLParam(r, "name")

	maxCount := defaultRetryBatch
	if raw := r.URL.Query().Get("max"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid max parameter")
			return
		}
		maxCount = parsed
	}

	retried, err := h.aggregator.RetryFailedJobs(r.Context(), queueName, maxCount)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("failed jobs reset for retry",
		slog.String("queue", queueName),
		slog.Int("retried", retried))
	shared.RespondWithJSON(w, r, http.StatusOK, RetryFailedResponse{Retried: retried})
}
