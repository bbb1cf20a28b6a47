package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlearn/lumen-api/internal/domain"
)

func TestNewCertificate(t *testing.T) {
	t.Parallel()

	enrollmentID := uuid.New()
	studentID := uuid.New()
	courseID := uuid.New()

	t.Run("creates valid certificate", func(t *testing.T) {
		t.Parallel()

		cert, err := domain.NewCertificate(
			enrollmentID, studentID, courseID,
			"https://cdn.example.com/certs/abc.pdf", "CERT-ABC123",
		)
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, cert.ID)
		assert.Equal(t, enrollmentID, cert.EnrollmentID)
		assert.False(t, cert.IssuedAt.IsZero())
	})

	t.Run("rejects empty enrollment ID", func(t *testing.T) {
		t.Parallel()

		_, err := domain.NewCertificate(
			uuid.Nil, studentID, courseID,
			"https://cdn.example.com/certs/abc.pdf", "CERT-ABC123",
		)
		assert.ErrorIs(t, err, domain.ErrEmptyCertEnrollment)
	})

	t.Run("rejects empty URL", func(t *testing.T) {
		t.Parallel()

		_, err := domain.NewCertificate(enrollmentID, studentID, courseID, "", "CERT-ABC123")
		assert.ErrorIs(t, err, domain.ErrEmptyCertificateURL)
	})

	t.Run("rejects empty verification code", func(t *testing.T) {
		t.Parallel()

		_, err := domain.NewCertificate(
			enrollmentID, studentID, courseID,
			"https://cdn.example.com/certs/abc.pdf", "",
		)
		assert.ErrorIs(t, err, domain.ErrEmptyCertificateCode)
	})
}
