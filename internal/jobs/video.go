package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lumenlearn/lumen-api/internal/domain"
	"github.com/lumenlearn/lumen-api/internal/queue"
	"github.com/lumenlearn/lumen-api/internal/store"
)

// TranscodePayload is the job payload for a transcoding kickoff.
type TranscodePayload struct {
	VideoAssetID uuid.UUID `json:"video_asset_id"`
}

// TranscodeResult is persisted as the job result on completion. The
// provider job id is the correlation key for the provider's own progress
// callbacks, which arrive outside this job's lifetime.
type TranscodeResult struct {
	ProviderJobID string `json:"provider_job_id"`
	AlreadyQueued bool   `json:"already_queued"`
	AlreadyReady  bool   `json:"already_ready"`
}

// VideoHandler kicks off transcoding for an uploaded video asset at the
// external provider and records the provider's job id on the asset.
type VideoHandler struct {
	assets   store.VideoAssetStore
	provider TranscodeProvider
	logger   *slog.Logger
}

// NewVideoHandler creates the transcoding kickoff handler.
func NewVideoHandler(assets store.VideoAssetStore, provider TranscodeProvider, logger *slog.Logger) *VideoHandler {
	return &VideoHandler{
		assets:   assets,
		provider: provider,
		logger:   logger.With("handler", TypeTranscodeVideo),
	}
}

// Handle executes one transcoding kickoff job.
func (h *VideoHandler) Handle(ctx context.Context, payload TranscodePayload, report queue.ProgressFunc) (json.RawMessage, error) {
	if payload.VideoAssetID == uuid.Nil {
		return nil, fmt.Errorf("%w: video asset id is required", queue.ErrInvalidPayload)
	}

	asset, err := h.assets.GetByID(ctx, payload.VideoAssetID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, queue.Unretryable(err)
		}
		return nil, fmt.Errorf("failed to load video asset: %w", err)
	}
	report(20)

	// Idempotency on retry: a previous attempt may already have reached
	// the provider before the worker died.
	switch {
	case asset.Status == domain.VideoStatusReady:
		h.logger.Info("asset already transcoded, short-circuiting", "asset_id", asset.ID)
		return marshalTranscodeResult(TranscodeResult{ProviderJobID: asset.ProviderJobID, AlreadyReady: true})
	case asset.Status == domain.VideoStatusTranscoding && asset.ProviderJobID != "":
		h.logger.Info("transcode already in flight at provider",
			"asset_id", asset.ID,
			"provider_job_id", asset.ProviderJobID)
		return marshalTranscodeResult(TranscodeResult{ProviderJobID: asset.ProviderJobID, AlreadyQueued: true})
	}

	providerJobID, err := h.provider.StartTranscode(ctx, asset.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("failed to start transcode for asset %s: %w", asset.ID, err)
	}
	report(60)

	asset.ProviderJobID = providerJobID
	if err := asset.UpdateStatus(domain.VideoStatusTranscoding); err != nil {
		return nil, queue.Unretryable(err)
	}
	if err := h.assets.Update(ctx, asset); err != nil {
		// Provider call succeeded but recording it did not; a retry will
		// start a second provider job for the same source.
		return nil, fmt.Errorf("failed to record provider job id: %w", err)
	}
	report(90)

	h.logger.Info("transcode started",
		"asset_id", asset.ID,
		"provider_job_id", providerJobID)

	return marshalTranscodeResult(TranscodeResult{ProviderJobID: providerJobID})
}

func marshalTranscodeResult(res TranscodeResult) (json.RawMessage, error) {
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transcode result: %w", err)
	}
	return raw, nil
}
