package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lumenlearn/lumen-api/internal/api/shared"
	"github.com/lumenlearn/lumen-api/internal/delivery"
	"github.com/lumenlearn/lumen-api/internal/platform/logger"
)

// WebhookHandler receives asynchronous delivery notifications from the
// external provider. The endpoint is authenticated with a shared token
// rather than a JWT because the caller is the provider, not a platform
// service.
type WebhookHandler struct {
	tracker       *delivery.Tracker
	providerToken string
	logger        *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler with the given dependencies.
// If logger is nil, a default logger will be used.
func NewWebhookHandler(tracker *delivery.Tracker, providerToken string, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &WebhookHandler{
		tracker:       tracker,
		providerToken: providerToken,
		logger:        logger.With(slog.String("component", "webhook_handler")),
	}
}

// HandleDeliveryEvent handles POST /webhooks/delivery
func (h *WebhookHandler) HandleDeliveryEvent(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	if !h.authorized(r) {
		log.Warn("rejected webhook call with bad provider token",
			slog.String("remote_addr", r.RemoteAddr))
		shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized,
			"Invalid provider token", nil, shared.WithElevatedLogLevel())
		return
	}

	var req WebhookEventRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	event := delivery.ProviderEvent{
		EventID:           req.EventID,
		Type:              delivery.ProviderEventType(req.Type),
		ExternalMessageID: req.MessageID,
		Recipient:         req.Recipient,
		Reason:            req.Reason,
		Timestamp:         req.Timestamp,
	}

	if err := h.tracker.HandleProviderEvent(r.Context(), event); err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	// Replays and repeated terminal transitions land here too; the
	// provider should not retry an event we have already absorbed.
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "accepted"})
}

// GetDelivery handles GET /jobs/{id}/delivery
func (h *WebhookHandler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid job ID")
		return
	}

	ds, err := h.tracker.Get(r.Context(), jobID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ds)
}

// authorized compares the presented provider token in constant time.
func (h *WebhookHandler) authorized(r *http.Request) bool {
	token := r.Header.Get("X-Provider-Token")
	if token == "" || h.providerToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.providerToken)) == 1
}
