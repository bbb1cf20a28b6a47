package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lumenlearn/lumen-api/internal/domain"
	"github.com/lumenlearn/lumen-api/internal/platform/logger"
	"github.com/lumenlearn/lumen-api/internal/store"
)

// PostgresVideoAssetStore implements the store.VideoAssetStore interface
// using a PostgreSQL database as the storage backend.
type PostgresVideoAssetStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresVideoAssetStore creates a new PostgreSQL implementation of the
// VideoAssetStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresVideoAssetStore(db store.DBTX, logger *slog.Logger) *PostgresVideoAssetStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresVideoAssetStore{
		db:     db,
		logger: logger.With(slog.String("component", "video_asset_store")),
	}
}

// Ensure PostgresVideoAssetStore implements store.VideoAssetStore interface
var _ store.VideoAssetStore = (*PostgresVideoAssetStore)(nil)

// GetByID implements store.VideoAssetStore.GetByID
// Returns store.ErrVideoAssetNotFound if the asset does not exist.
func (s *PostgresVideoAssetStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.VideoAsset, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, course_id, source_url, playback_url, provider_job_id, status, created_at, updated_at
		FROM video_assets
		WHERE id = $1
	`

	var asset domain.VideoAsset
	var status string
	var playbackURL, providerJobID sql.NullString

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&asset.ID,
		&asset.CourseID,
		&asset.SourceURL,
		&playbackURL,
		&providerJobID,
		&status,
		&asset.CreatedAt,
		&asset.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrVideoAssetNotFound
		}
		log.Error("failed to get video asset by ID",
			slog.String("error", err.Error()),
			slog.String("video_asset_id", id.String()))
		return nil, MapError(err)
	}

	asset.Status = domain.VideoStatus(status)
	asset.PlaybackURL = playbackURL.String
	asset.ProviderJobID = providerJobID.String
	return &asset, nil
}

// Update implements store.VideoAssetStore.Update
// It overwrites the asset's mutable fields. Returns validation errors if the
// asset data is invalid, store.ErrVideoAssetNotFound if it does not exist.
func (s *PostgresVideoAssetStore) Update(ctx context.Context, asset *domain.VideoAsset) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := asset.Validate(); err != nil {
		log.Warn("video asset validation failed during update",
			slog.String("error", err.Error()),
			slog.String("video_asset_id", asset.ID.String()))
		return err
	}

	query := `
		UPDATE video_assets
		SET playback_url = $2,
		    provider_job_id = $3,
		    status = $4,
		    updated_at = $5
		WHERE id = $1
	`

	res, err := s.db.ExecContext(
		ctx,
		query,
		asset.ID,
		nullString(asset.PlaybackURL),
		nullString(asset.ProviderJobID),
		asset.Status,
		asset.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to update video asset",
			slog.String("error", err.Error()),
			slog.String("video_asset_id", asset.ID.String()))
		return MapError(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if affected == 0 {
		return store.ErrVideoAssetNotFound
	}

	log.Debug("video asset updated",
		slog.String("video_asset_id", asset.ID.String()),
		slog.String("status", string(asset.Status)))
	return nil
}

// WithTxVideoAssetStore implements store.VideoAssetStore.WithTxVideoAssetStore
// It returns a store bound to the given transaction.
func (s *PostgresVideoAssetStore) WithTxVideoAssetStore(tx *sql.Tx) store.VideoAssetStore {
	return &PostgresVideoAssetStore{
		db:     tx,
		logger: s.logger,
	}
}
