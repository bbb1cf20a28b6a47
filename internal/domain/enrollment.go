package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnrollmentStatus represents the lifecycle state of a course enrollment.
type EnrollmentStatus string

// Possible enrollment status values
const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusDropped   EnrollmentStatus = "dropped"
)

// Enrollment validation errors, all wrapping ErrValidation.
var (
	ErrEmptyEnrollmentID       = fmt.Errorf("%w: enrollment ID cannot be empty", ErrValidation)
	ErrEmptyStudentID          = fmt.Errorf("%w: enrollment student ID cannot be empty", ErrValidation)
	ErrEmptyCourseID           = fmt.Errorf("%w: enrollment course ID cannot be empty", ErrValidation)
	ErrInvalidEnrollmentStatus = fmt.Errorf("%w: invalid enrollment status", ErrValidation)
	ErrEnrollmentNotCompleted  = fmt.Errorf("%w: enrollment is not completed", ErrValidation)
)

// Enrollment represents a student's participation in a course. Certificate
// generation is only valid for completed enrollments.
type Enrollment struct {
	ID          uuid.UUID        `json:"id"`
	StudentID   uuid.UUID        `json:"student_id"`
	CourseID    uuid.UUID        `json:"course_id"`
	Status      EnrollmentStatus `json:"status"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Validate checks if the Enrollment has valid data.
// Returns an error if any field fails validation.
func (e *Enrollment) Validate() error {
	if e.ID == uuid.Nil {
		return ErrEmptyEnrollmentID
	}

	if e.StudentID == uuid.Nil {
		return ErrEmptyStudentID
	}

	if e.CourseID == uuid.Nil {
		return ErrEmptyCourseID
	}

	if !isValidEnrollmentStatus(e.Status) {
		return ErrInvalidEnrollmentStatus
	}

	return nil
}

// IsCompleted reports whether the enrollment finished the course.
func (e *Enrollment) IsCompleted() bool {
	return e.Status == EnrollmentStatusCompleted
}

// isValidEnrollmentStatus checks if the given status is a valid EnrollmentStatus.
func isValidEnrollmentStatus(status EnrollmentStatus) bool {
	switch status {
	case EnrollmentStatusActive, EnrollmentStatusCompleted, EnrollmentStatusDropped:
		return true
	default:
		return false
	}
}
