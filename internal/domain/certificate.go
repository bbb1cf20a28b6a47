package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Certificate validation errors, all wrapping ErrValidation.
var (
	ErrEmptyCertificateID   = fmt.Errorf("%w: certificate ID cannot be empty", ErrValidation)
	ErrEmptyCertEnrollment  = fmt.Errorf("%w: certificate enrollment ID cannot be empty", ErrValidation)
	ErrEmptyCertificateURL  = fmt.Errorf("%w: certificate URL cannot be empty", ErrValidation)
	ErrEmptyCertificateCode = fmt.Errorf("%w: certificate verification code cannot be empty", ErrValidation)
)

// Certificate represents a completion certificate issued for an enrollment.
// The PDF artifact lives in object storage; URL points at it. At most one
// certificate exists per enrollment, which is what lets the certificate
// job short-circuit on retry.
type Certificate struct {
	ID               uuid.UUID `json:"id"`
	EnrollmentID     uuid.UUID `json:"enrollment_id"`
	StudentID        uuid.UUID `json:"student_id"`
	CourseID         uuid.UUID `json:"course_id"`
	URL              string    `json:"url"`
	VerificationCode string    `json:"verification_code"`
	IssuedAt         time.Time `json:"issued_at"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewCertificate creates a new Certificate for the given enrollment.
// It generates a new UUID for the certificate ID and sets the issue
// timestamp. Returns an error if validation fails.
func NewCertificate(
	enrollmentID, studentID, courseID uuid.UUID,
	url, verificationCode string,
) (*Certificate, error) {
	now := time.Now().UTC()
	cert := &Certificate{
		ID:               uuid.New(),
		EnrollmentID:     enrollmentID,
		StudentID:        studentID,
		CourseID:         courseID,
		URL:              url,
		VerificationCode: verificationCode,
		IssuedAt:         now,
		CreatedAt:        now,
	}

	if err := cert.Validate(); err != nil {
		return nil, err
	}

	return cert, nil
}

// Validate checks if the Certificate has valid data.
// Returns an error if any field fails validation.
func (c *Certificate) Validate() error {
	if c.ID == uuid.Nil {
		return ErrEmptyCertificateID
	}

	if c.EnrollmentID == uuid.Nil {
		return ErrEmptyCertEnrollment
	}

	if c.URL == "" {
		return ErrEmptyCertificateURL
	}

	if c.VerificationCode == "" {
		return ErrEmptyCertificateCode
	}

	return nil
}
