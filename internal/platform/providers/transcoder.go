package providers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lumenlearn/lumen-api/internal/config"
	"github.com/lumenlearn/lumen-api/internal/jobs"
)

// HTTPTranscodeProvider kicks off transcoding at the external video
// service. Transcoding itself is asynchronous on the provider side; the
// returned job id correlates its completion callbacks with the asset.
type HTTPTranscodeProvider struct {
	api    *apiClient
	logger *slog.Logger
}

var _ jobs.TranscodeProvider = (*HTTPTranscodeProvider)(nil)

// NewHTTPTranscodeProvider creates a transcoding service client from
// configuration.
func NewHTTPTranscodeProvider(cfg config.ProvidersConfig, logger *slog.Logger) (*HTTPTranscodeProvider, error) {
	api, err := newAPIClient(cfg.TranscodeBaseURL, cfg.TranscodeAPIKey, cfg.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcode service client: %w", err)
	}

	return &HTTPTranscodeProvider{
		api:    api,
		logger: logger.With(slog.String("component", "transcode_provider")),
	}, nil
}

type startTranscodeRequest struct {
	SourceURL string `json:"source_url"`
}

type startTranscodeResponse struct {
	JobID string `json:"job_id"`
}

// StartTranscode submits the source for transcoding and returns the
// provider's job id.
func (p *HTTPTranscodeProvider) StartTranscode(ctx context.Context, sourceURL string) (string, error) {
	var resp startTranscodeResponse
	err := p.api.postJSON(ctx, "/v1/transcodes", startTranscodeRequest{SourceURL: sourceURL}, &resp)
	if err != nil {
		return "", fmt.Errorf("transcode kickoff failed: %w", err)
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("transcode service accepted job without an id")
	}

	p.logger.Debug("transcode started",
		slog.String("source_url", sourceURL),
		slog.String("provider_job_id", resp.JobID))
	return resp.JobID, nil
}
