package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lumenlearn/lumen-api/internal/delivery"
	"github.com/lumenlearn/lumen-api/internal/platform/logger"
	"github.com/lumenlearn/lumen-api/internal/store"
)

// deliveryColumns is the canonical column list for scanning delivery rows.
const deliveryColumns = `job_id, external_message_id, recipient, status, attempts,
	last_attempt_at, delivered_at, bounced_at, complained_at, error,
	created_at, updated_at`

// PostgresDeliveryStore implements the delivery.Store interface using a
// PostgreSQL database as the storage backend.
type PostgresDeliveryStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresDeliveryStore creates a new PostgreSQL implementation of the
// delivery.Store interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresDeliveryStore(db store.DBTX, logger *slog.Logger) *PostgresDeliveryStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresDeliveryStore{
		db:     db,
		logger: logger.With(slog.String("component", "delivery_store")),
	}
}

// Ensure PostgresDeliveryStore implements the delivery.Store interface
var _ delivery.Store = (*PostgresDeliveryStore)(nil)

// scanDelivery maps one database row onto a delivery.DeliveryStatus.
func scanDelivery(row rowScanner) (*delivery.DeliveryStatus, error) {
	var (
		ds                delivery.DeliveryStatus
		externalMessageID sql.NullString
		lastAttemptAt     sql.NullTime
		deliveredAt       sql.NullTime
		bouncedAt         sql.NullTime
		complainedAt      sql.NullTime
		errMsg            sql.NullString
	)

	err := row.Scan(
		&ds.JobID,
		&externalMessageID,
		&ds.Recipient,
		&ds.Status,
		&ds.Attempts,
		&lastAttemptAt,
		&deliveredAt,
		&bouncedAt,
		&complainedAt,
		&errMsg,
		&ds.CreatedAt,
		&ds.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	ds.ExternalMessageID = externalMessageID.String
	ds.Error = errMsg.String
	if lastAttemptAt.Valid {
		t := lastAttemptAt.Time
		ds.LastAttemptAt = &t
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time
		ds.DeliveredAt = &t
	}
	if bouncedAt.Valid {
		t := bouncedAt.Time
		ds.BouncedAt = &t
	}
	if complainedAt.Valid {
		t := complainedAt.Time
		ds.ComplainedAt = &t
	}
	return &ds, nil
}

// Create persists a new delivery record.
// Returns store.ErrDuplicate when a record for the job already exists.
func (s *PostgresDeliveryStore) Create(ctx context.Context, ds *delivery.DeliveryStatus) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO deliveries (` + deliveryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		ds.JobID,
		nullString(ds.ExternalMessageID),
		ds.Recipient,
		ds.Status,
		ds.Attempts,
		ds.LastAttemptAt,
		ds.DeliveredAt,
		ds.BouncedAt,
		ds.ComplainedAt,
		nullString(ds.Error),
		ds.CreatedAt,
		ds.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return store.ErrDuplicate
		}
		log.Error("failed to create delivery record",
			slog.String("error", err.Error()),
			slog.String("job_id", ds.JobID.String()))
		return MapError(err)
	}
	return nil
}

// Update overwrites the record for ds.JobID.
// Returns store.ErrDeliveryNotFound if no record exists for the job.
func (s *PostgresDeliveryStore) Update(ctx context.Context, ds *delivery.DeliveryStatus) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE deliveries
		SET external_message_id = $2,
		    recipient = $3,
		    status = $4,
		    attempts = $5,
		    last_attempt_at = $6,
		    delivered_at = $7,
		    bounced_at = $8,
		    complained_at = $9,
		    error = $10,
		    updated_at = $11
		WHERE job_id = $1
	`

	res, err := s.db.ExecContext(
		ctx,
		query,
		ds.JobID,
		nullString(ds.ExternalMessageID),
		ds.Recipient,
		ds.Status,
		ds.Attempts,
		ds.LastAttemptAt,
		ds.DeliveredAt,
		ds.BouncedAt,
		ds.ComplainedAt,
		nullString(ds.Error),
		ds.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to update delivery record",
			slog.String("error", err.Error()),
			slog.String("job_id", ds.JobID.String()))
		return MapError(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if affected == 0 {
		return store.ErrDeliveryNotFound
	}
	return nil
}

// GetByJobID retrieves the record for a job.
// Returns store.ErrDeliveryNotFound if no record exists.
func (s *PostgresDeliveryStore) GetByJobID(ctx context.Context, jobID uuid.UUID) (*delivery.DeliveryStatus, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE job_id = $1`

	ds, err := scanDelivery(s.db.QueryRowContext(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrDeliveryNotFound
		}
		return nil, MapError(err)
	}
	return ds, nil
}

// GetByMessageID retrieves the record correlated to a provider-assigned
// message id. Returns store.ErrDeliveryNotFound if no record matches.
func (s *PostgresDeliveryStore) GetByMessageID(ctx context.Context, externalMessageID string) (*delivery.DeliveryStatus, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE external_message_id = $1`

	ds, err := scanDelivery(s.db.QueryRowContext(ctx, query, externalMessageID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrDeliveryNotFound
		}
		return nil, MapError(err)
	}
	return ds, nil
}
