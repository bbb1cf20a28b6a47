package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lumenlearn/lumen-api/internal/api/middleware"
	"github.com/lumenlearn/lumen-api/internal/api/shared"
	"github.com/lumenlearn/lumen-api/internal/platform/logger"
	"github.com/lumenlearn/lumen-api/internal/queue"
)

// JobHandler serves the enqueue, status, cancel and retry endpoints.
type JobHandler struct {
	manager *queue.Manager
	logger  *slog.Logger
}

// NewJobHandler creates a new JobHandler with the given dependencies.
// If logger is nil, a default logger will be used.
func NewJobHandler(manager *queue.Manager, logger *slog.Logger) *JobHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &JobHandler{
		manager: manager,
		logger:  logger.With(slog.String("component", "job_handler")),
	}
}

// Enqueue handles POST /jobs
func (h *JobHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req EnqueueRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	jobID, err := h.manager.Enqueue(r.Context(), req.QueueName, req.Type, req.Payload, req.Options())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	attrs := []any{
		slog.String("job_id", jobID.String()),
		slog.String("queue", req.QueueName),
		slog.String("job_type", req.Type),
	}
	if subjectID, ok := middleware.GetSubjectID(r); ok {
		attrs = append(attrs, slog.String("subject_id", subjectID.String()))
	}
	log.Debug("job accepted", attrs...)
	shared.RespondWithJSON(w, r, http.StatusAccepted, EnqueueResponse{JobID: jobID})
}

// GetJob handles GET /jobs/{id}
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := h.jobIDParam(w, r)
	if !ok {
		return
	}

	job, err := h.manager.GetJob(r.Context(), jobID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, NewJobResponse(job))
}

// Cancel handles POST /jobs/{id}/cancel
func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	jobID, ok := h.jobIDParam(w, r)
	if !ok {
		return
	}

	if err := h.manager.Cancel(r.Context(), jobID); err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("job cancelled", slog.String("job_id", jobID.String()))
	w.WriteHeader(http.StatusNoContent)
}

// Retry handles POST /jobs/{id}/retry
func (h *JobHandler) Retry(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	jobID, ok := h.jobIDParam(w, r)
	if !ok {
		return
	}

	if err := h.manager.RetryFailedJob(r.Context(), jobID); err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("failed job reset for retry", slog.String("job_id", jobID.String()))
	w.WriteHeader(http.StatusNoContent)
}

// jobIDParam parses the {id} route parameter, responding with 400 on a
// malformed id.
func (h *JobHandler) jobIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid job ID")
		return uuid.Nil, false
	}
	return jobID, true
}
