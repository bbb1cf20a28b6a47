package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/lumenlearn/lumen-api/internal/domain"
)

// EnrollmentStore defines the interface for enrollment data persistence.
type EnrollmentStore interface {
	// GetByID retrieves an enrollment by its unique ID.
	// Returns ErrEnrollmentNotFound if the enrollment does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Enrollment, error)

	// UpdateStatus transitions an enrollment's lifecycle status.
	// Returns ErrEnrollmentNotFound if the enrollment does not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.EnrollmentStatus) error

	// WithTxEnrollmentStore returns an EnrollmentStore bound to the given
	// transaction, for use with store.RunInTransaction.
	WithTxEnrollmentStore(tx *sql.Tx) EnrollmentStore
}
