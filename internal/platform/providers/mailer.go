package providers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lumenlearn/lumen-api/internal/config"
	"github.com/lumenlearn/lumen-api/internal/jobs"
)

// HTTPEmailSender dispatches email through the delivery provider's REST
// API. The provider assigns each accepted message an id that later bounce
// and complaint webhooks reference.
type HTTPEmailSender struct {
	api    *apiClient
	logger *slog.Logger
}

var _ jobs.EmailSender = (*HTTPEmailSender)(nil)

// NewHTTPEmailSender creates an email provider client from configuration.
func NewHTTPEmailSender(cfg config.ProvidersConfig, logger *slog.Logger) (*HTTPEmailSender, error) {
	api, err := newAPIClient(cfg.EmailBaseURL, cfg.EmailAPIKey, cfg.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create email provider client: %w", err)
	}

	return &HTTPEmailSender{
		api:    api,
		logger: logger.With(slog.String("component", "email_sender")),
	}, nil
}

type sendMessageRequest struct {
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	Template string            `json:"template"`
	Data     map[string]string `json:"data,omitempty"`
}

type sendMessageResponse struct {
	MessageID string `json:"message_id"`
}

// Send submits one message and returns the provider-assigned message id.
func (s *HTTPEmailSender) Send(ctx context.Context, msg jobs.EmailMessage) (string, error) {
	start := time.Now()

	var resp sendMessageResponse
	err := s.api.postJSON(ctx, "/v1/messages", sendMessageRequest{
		To:       msg.To,
		Subject:  msg.Subject,
		Template: msg.Template,
		Data:     msg.Data,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("email provider send failed: %w", err)
	}
	if resp.MessageID == "" {
		return "", fmt.Errorf("email provider accepted message without an id")
	}

	s.logger.Debug("message accepted by provider",
		slog.String("message_id", resp.MessageID),
		slog.Duration("elapsed", time.Since(start)))
	return resp.MessageID, nil
}
