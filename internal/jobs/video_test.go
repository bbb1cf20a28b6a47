package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlearn/lumen-api/internal/domain"
	"github.com/lumenlearn/lumen-api/internal/queue"
	"github.com/lumenlearn/lumen-api/internal/store"
)

func uploadedAsset() *domain.VideoAsset {
	now := time.Now().UTC()
	return &domain.VideoAsset{
		ID:        uuid.New(),
		CourseID:  uuid.New(),
		SourceURL: "https://uploads.example.com/lecture-1.mp4",
		Status:    domain.VideoStatusUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestVideoHandler_Handle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("kicks off transcode and records provider job id", func(t *testing.T) {
		t.Parallel()

		asset := uploadedAsset()
		var updated *domain.VideoAsset
		assets := &mockVideoAssetStore{
			GetByIDFn: func(context.Context, uuid.UUID) (*domain.VideoAsset, error) { return asset, nil },
			UpdateFn: func(_ context.Context, a *domain.VideoAsset) error {
				updated = a
				return nil
			},
		}
		provider := &mockTranscodeProvider{
			StartTranscodeFn: func(_ context.Context, sourceURL string) (string, error) {
				assert.Equal(t, asset.SourceURL, sourceURL)
				return "provider-job-99", nil
			},
		}

		h := NewVideoHandler(assets, provider, testLogger())
		raw, err := h.Handle(ctx, TranscodePayload{VideoAssetID: asset.ID}, noProgress)
		require.NoError(t, err)

		var res TranscodeResult
		require.NoError(t, json.Unmarshal(raw, &res))
		assert.Equal(t, "provider-job-99", res.ProviderJobID)
		assert.False(t, res.AlreadyQueued)

		require.NotNil(t, updated)
		assert.Equal(t, domain.VideoStatusTranscoding, updated.Status)
		assert.Equal(t, "provider-job-99", updated.ProviderJobID)
	})

	t.Run("short-circuits on ready asset", func(t *testing.T) {
		t.Parallel()

		asset := uploadedAsset()
		asset.Status = domain.VideoStatusReady
		asset.ProviderJobID = "provider-job-1"

		provider := &mockTranscodeProvider{}
		assets := &mockVideoAssetStore{
			GetByIDFn: func(context.Context, uuid.UUID) (*domain.VideoAsset, error) { return asset, nil },
			UpdateFn:  func(context.Context, *domain.VideoAsset) error { return nil },
		}

		h := NewVideoHandler(assets, provider, testLogger())
		raw, err := h.Handle(ctx, TranscodePayload{VideoAssetID: asset.ID}, noProgress)
		require.NoError(t, err)

		var res TranscodeResult
		require.NoError(t, json.Unmarshal(raw, &res))
		assert.True(t, res.AlreadyReady)
		assert.Equal(t, 0, provider.calls, "no second provider job on retry")
	})

	t.Run("short-circuits on in-flight transcode", func(t *testing.T) {
		t.Parallel()

		asset := uploadedAsset()
		asset.Status = domain.VideoStatusTranscoding
		asset.ProviderJobID = "provider-job-2"

		provider := &mockTranscodeProvider{}
		assets := &mockVideoAssetStore{
			GetByIDFn: func(context.Context, uuid.UUID) (*domain.VideoAsset, error) { return asset, nil },
			UpdateFn:  func(context.Context, *domain.VideoAsset) error { return nil },
		}

		h := NewVideoHandler(assets, provider, testLogger())
		raw, err := h.Handle(ctx, TranscodePayload{VideoAssetID: asset.ID}, noProgress)
		require.NoError(t, err)

		var res TranscodeResult
		require.NoError(t, json.Unmarshal(raw, &res))
		assert.True(t, res.AlreadyQueued)
		assert.Equal(t, "provider-job-2", res.ProviderJobID)
		assert.Equal(t, 0, provider.calls)
	})

	t.Run("missing asset is unretryable", func(t *testing.T) {
		t.Parallel()

		assets := &mockVideoAssetStore{
			GetByIDFn: func(context.Context, uuid.UUID) (*domain.VideoAsset, error) {
				return nil, store.ErrVideoAssetNotFound
			},
		}
		h := NewVideoHandler(assets, &mockTranscodeProvider{}, testLogger())

		_, err := h.Handle(ctx, TranscodePayload{VideoAssetID: uuid.New()}, noProgress)
		assert.True(t, queue.IsUnretryable(err))
	})

	t.Run("provider failure is retryable", func(t *testing.T) {
		t.Parallel()

		asset := uploadedAsset()
		assets := &mockVideoAssetStore{
			GetByIDFn: func(context.Context, uuid.UUID) (*domain.VideoAsset, error) { return asset, nil },
			UpdateFn:  func(context.Context, *domain.VideoAsset) error { return nil },
		}
		provider := &mockTranscodeProvider{
			StartTranscodeFn: func(context.Context, string) (string, error) {
				return "", errors.New("provider 502")
			},
		}

		h := NewVideoHandler(assets, provider, testLogger())
		_, err := h.Handle(ctx, TranscodePayload{VideoAssetID: asset.ID}, noProgress)
		require.Error(t, err)
		assert.False(t, queue.IsUnretryable(err))
	})

	t.Run("nil asset id is unretryable", func(t *testing.T) {
		t.Parallel()

		h := NewVideoHandler(&mockVideoAssetStore{}, &mockTranscodeProvider{}, testLogger())
		_, err := h.Handle(ctx, TranscodePayload{}, noProgress)
		assert.True(t, queue.IsUnretryable(err))
	})
}
