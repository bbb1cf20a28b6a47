package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/lumenlearn/lumen-api/internal/domain"
)

// VideoAssetStore defines the interface for video asset persistence.
type VideoAssetStore interface {
	// GetByID retrieves a video asset by its unique ID.
	// Returns ErrVideoAssetNotFound if the asset does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.VideoAsset, error)

	// Update overwrites the asset's mutable fields (status, playback URL,
	// provider job id). Returns ErrVideoAssetNotFound if the asset does
	// not exist.
	Update(ctx context.Context, asset *domain.VideoAsset) error

	// WithTxVideoAssetStore returns a VideoAssetStore bound to the given
	// transaction, for use with store.RunInTransaction.
	WithTxVideoAssetStore(tx *sql.Tx) VideoAssetStore
}
