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

// PostgresCertificateStore implements the store.CertificateStore interface
// using a PostgreSQL database as the storage backend. The unique constraint
// on enrollment_id enforces the one-certificate-per-enrollment invariant at
// the database level, which is what makes concurrent certificate jobs safe.
type PostgresCertificateStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCertificateStore creates a new PostgreSQL implementation of the
// CertificateStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresCertificateStore(db store.DBTX, logger *slog.Logger) *PostgresCertificateStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresCertificateStore{
		db:     db,
		logger: logger.With(slog.String("component", "certificate_store")),
	}
}

// Ensure PostgresCertificateStore implements store.CertificateStore interface
var _ store.CertificateStore = (*PostgresCertificateStore)(nil)

// Create implements store.CertificateStore.Create
// Returns store.ErrCertificateExists if the enrollment already has a
// certificate. Returns validation errors if the certificate data is invalid.
func (s *PostgresCertificateStore) Create(ctx context.Context, cert *domain.Certificate) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := cert.Validate(); err != nil {
		log.Warn("certificate validation failed during create",
			slog.String("error", err.Error()),
			slog.String("certificate_id", cert.ID.String()))
		return err
	}

	query := `
		INSERT INTO certificates
			(id, enrollment_id, student_id, course_id, url, verification_code, issued_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		cert.ID,
		cert.EnrollmentID,
		cert.StudentID,
		cert.CourseID,
		cert.URL,
		cert.VerificationCode,
		cert.IssuedAt,
		cert.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Debug("certificate already exists for enrollment",
				slog.String("enrollment_id", cert.EnrollmentID.String()))
			return store.ErrCertificateExists
		}
		log.Error("failed to create certificate",
			slog.String("error", err.Error()),
			slog.String("certificate_id", cert.ID.String()),
			slog.String("enrollment_id", cert.EnrollmentID.String()))
		return MapError(err)
	}

	log.Info("certificate created",
		slog.String("certificate_id", cert.ID.String()),
		slog.String("enrollment_id", cert.EnrollmentID.String()))
	return nil
}

// GetByEnrollmentID implements store.CertificateStore.GetByEnrollmentID
// Returns store.ErrCertificateNotFound if no certificate exists for the
// enrollment.
func (s *PostgresCertificateStore) GetByEnrollmentID(ctx context.Context, enrollmentID uuid.UUID) (*domain.Certificate, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, enrollment_id, student_id, course_id, url, verification_code, issued_at, created_at
		FROM certificates
		WHERE enrollment_id = $1
	`

	var cert domain.Certificate
	err := s.db.QueryRowContext(ctx, query, enrollmentID).Scan(
		&cert.ID,
		&cert.EnrollmentID,
		&cert.StudentID,
		&cert.CourseID,
		&cert.URL,
		&cert.VerificationCode,
		&cert.IssuedAt,
		&cert.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrCertificateNotFound
		}
		log.Error("failed to get certificate by enrollment ID",
			slog.String("error", err.Error()),
			slog.String("enrollment_id", enrollmentID.String()))
		return nil, MapError(err)
	}
	return &cert, nil
}

// WithTxCertificateStore implements store.CertificateStore.WithTxCertificateStore
// It returns a store bound to the given transaction.
func (s *PostgresCertificateStore) WithTxCertificateStore(tx *sql.Tx) store.CertificateStore {
	return &PostgresCertificateStore{
		db:     tx,
		logger: s.logger,
	}
}
