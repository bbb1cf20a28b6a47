package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/lumenlearn/lumen-api/internal/domain"
)

// CertificateStore defines the interface for certificate data persistence.
// At most one certificate exists per enrollment; Create enforces this so
// the certificate job can safely retry.
type CertificateStore interface {
	// Create saves a new certificate.
	// Returns ErrCertificateExists if the enrollment already has one.
	Create(ctx context.Context, cert *domain.Certificate) error

	// GetByEnrollmentID retrieves the certificate issued for an enrollment.
	// Returns ErrCertificateNotFound if none exists.
	GetByEnrollmentID(ctx context.Context, enrollmentID uuid.UUID) (*domain.Certificate, error)

	// WithTxCertificateStore returns a CertificateStore bound to the given
	// transaction, for use with store.RunInTransaction.
	WithTxCertificateStore(tx *sql.Tx) CertificateStore
}
