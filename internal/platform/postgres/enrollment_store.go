package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lumenlearn/lumen-api/internal/domain"
	"github.com/lumenlearn/lumen-api/internal/platform/logger"
	"github.com/lumenlearn/lumen-api/internal/store"
)

// PostgresEnrollmentStore implements the store.EnrollmentStore interface
// using a PostgreSQL database as the storage backend.
type PostgresEnrollmentStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresEnrollmentStore creates a new PostgreSQL implementation of the
// EnrollmentStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresEnrollmentStore(db store.DBTX, logger *slog.Logger) *PostgresEnrollmentStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresEnrollmentStore{
		db:     db,
		logger: logger.With(slog.String("component", "enrollment_store")),
	}
}

// Ensure PostgresEnrollmentStore implements store.EnrollmentStore interface
var _ store.EnrollmentStore = (*PostgresEnrollmentStore)(nil)

// GetByID implements store.EnrollmentStore.GetByID
// Returns store.ErrEnrollmentNotFound if the enrollment does not exist.
func (s *PostgresEnrollmentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Enrollment, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, student_id, course_id, status, completed_at, created_at, updated_at
		FROM enrollments
		WHERE id = $1
	`

	var enrollment domain.Enrollment
	var status string
	var completedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&enrollment.ID,
		&enrollment.StudentID,
		&enrollment.CourseID,
		&status,
		&completedAt,
		&enrollment.CreatedAt,
		&enrollment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrEnrollmentNotFound
		}
		log.Error("failed to get enrollment by ID",
			slog.String("error", err.Error()),
			slog.String("enrollment_id", id.String()))
		return nil, MapError(err)
	}

	enrollment.Status = domain.EnrollmentStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		enrollment.CompletedAt = &t
	}
	return &enrollment, nil
}

// UpdateStatus implements store.EnrollmentStore.UpdateStatus
// Returns store.ErrEnrollmentNotFound if the enrollment does not exist.
func (s *PostgresEnrollmentStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.EnrollmentStatus) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE enrollments
		SET status = $2,
		    completed_at = CASE WHEN $2 = 'completed' THEN now() ELSE completed_at END,
		    updated_at = $3
		WHERE id = $1
	`

	res, err := s.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		log.Error("failed to update enrollment status",
			slog.String("error", err.Error()),
			slog.String("enrollment_id", id.String()),
			slog.String("status", string(status)))
		return MapError(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if affected == 0 {
		return store.ErrEnrollmentNotFound
	}

	log.Info("enrollment status updated",
		slog.String("enrollment_id", id.String()),
		slog.String("status", string(status)))
	return nil
}

// WithTxEnrollmentStore implements store.EnrollmentStore.WithTxEnrollmentStore
// It returns a store bound to the given transaction.
func (s *PostgresEnrollmentStore) WithTxEnrollmentStore(tx *sql.Tx) store.EnrollmentStore {
	return &PostgresEnrollmentStore{
		db:     tx,
		logger: s.logger,
	}
}
