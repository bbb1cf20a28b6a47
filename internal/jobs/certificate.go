package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lumenlearn/lumen-api/internal/domain"
	"github.com/lumenlearn/lumen-api/internal/queue"
	"github.com/lumenlearn/lumen-api/internal/store"
)

// CertificatePayload is the job payload for certificate generation.
type CertificatePayload struct {
	EnrollmentID   uuid.UUID `json:"enrollment_id"`
	StudentID      uuid.UUID `json:"student_id"`
	CourseID       uuid.UUID `json:"course_id"`
	StudentEmail   string    `json:"student_email"`
	CompletionDate time.Time `json:"completion_date"`
}

// CertificateResult is persisted as the job result on completion. A failed
// congratulation email is recorded here rather than failing the job: the
// certificate itself is the core deliverable, the email a secondary side
// effect.
type CertificateResult struct {
	CertificateID  uuid.UUID `json:"certificate_id"`
	URL            string    `json:"url"`
	AlreadyExisted bool      `json:"already_existed"`
	EmailMessageID string    `json:"email_message_id,omitempty"`
	EmailError     string    `json:"email_error,omitempty"`
}

// CertificateHandler generates a completion certificate for an enrollment:
// validate the enrollment, render and store the PDF, persist the
// certificate record, then send the congratulation email.
type CertificateHandler struct {
	enrollments  store.EnrollmentStore
	certificates store.CertificateStore
	renderer     CertificateRenderer
	sender       EmailSender
	logger       *slog.Logger
}

// NewCertificateHandler creates the certificate generation handler.
func NewCertificateHandler(
	enrollments store.EnrollmentStore,
	certificates store.CertificateStore,
	renderer CertificateRenderer,
	sender EmailSender,
	logger *slog.Logger,
) *CertificateHandler {
	return &CertificateHandler{
		enrollments:  enrollments,
		certificates: certificates,
		renderer:     renderer,
		sender:       sender,
		logger:       logger.With("handler", TypeGenerateCertificate),
	}
}

// Handle executes one certificate generation job.
func (h *CertificateHandler) Handle(ctx context.Context, payload CertificatePayload, report queue.ProgressFunc) (json.RawMessage, error) {
	if payload.EnrollmentID == uuid.Nil || payload.StudentID == uuid.Nil || payload.CourseID == uuid.Nil {
		return nil, fmt.Errorf("%w: enrollment, student and course ids are required", queue.ErrInvalidPayload)
	}

	logger := h.logger.With("enrollment_id", payload.EnrollmentID)

	enrollment, err := h.enrollments.GetByID(ctx, payload.EnrollmentID)
	if err != nil {
		if store.IsNotFoundError(err) {
			// A missing enrollment will not appear by retrying.
			return nil, queue.Unretryable(err)
		}
		return nil, fmt.Errorf("failed to load enrollment: %w", err)
	}
	if !enrollment.IsCompleted() {
		return nil, queue.Unretryable(
			fmt.Errorf("%w: enrollment %s", domain.ErrEnrollmentNotCompleted, payload.EnrollmentID))
	}
	report(10)

	// Idempotency on retry: if a previous attempt already issued the
	// certificate, short-circuit with it instead of rendering a duplicate.
	if existing, err := h.certificates.GetByEnrollmentID(ctx, payload.EnrollmentID); err == nil {
		logger.Info("certificate already exists, short-circuiting", "certificate_id", existing.ID)
		report(90)
		return h.result(ctx, existing, payload, true, logger)
	} else if !store.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to check for existing certificate: %w", err)
	}
	report(30)

	rendered, err := h.renderer.Render(ctx, payload.EnrollmentID, payload.StudentID, payload.CourseID, payload.CompletionDate)
	if err != nil {
		return nil, fmt.Errorf("failed to render certificate: %w", err)
	}
	report(50)

	cert, err := domain.NewCertificate(payload.EnrollmentID, payload.StudentID, payload.CourseID, rendered.URL, rendered.VerificationCode)
	if err != nil {
		return nil, queue.Unretryable(fmt.Errorf("invalid certificate data: %w", err))
	}

	if err := h.certificates.Create(ctx, cert); err != nil {
		if store.IsDuplicateError(err) {
			// A concurrent attempt won the race; use its certificate.
			existing, getErr := h.certificates.GetByEnrollmentID(ctx, payload.EnrollmentID)
			if getErr != nil {
				return nil, fmt.Errorf("certificate exists but could not be loaded: %w", getErr)
			}
			logger.Info("concurrent attempt issued the certificate", "certificate_id", existing.ID)
			report(90)
			return h.result(ctx, existing, payload, true, logger)
		}
		return nil, fmt.Errorf("failed to persist certificate: %w", err)
	}
	report(70)

	logger.Info("certificate issued", "certificate_id", cert.ID, "url", cert.URL)
	report(90)
	return h.result(ctx, cert, payload, false, logger)
}

// result sends the congratulation email and assembles the job result. The
// email is a secondary side effect: its failure is recorded, not
// propagated, so the completed status reflects the certificate itself.
func (h *CertificateHandler) result(
	ctx context.Context,
	cert *domain.Certificate,
	payload CertificatePayload,
	alreadyExisted bool,
	logger *slog.Logger,
) (json.RawMessage, error) {
	res := CertificateResult{
		CertificateID:  cert.ID,
		URL:            cert.URL,
		AlreadyExisted: alreadyExisted,
	}

	if !alreadyExisted && payload.StudentEmail != "" {
		messageID, err := h.sender.Send(ctx, EmailMessage{
			To:       payload.StudentEmail,
			Subject:  "Your course certificate is ready",
			Template: "certificate_issued",
			Data: map[string]string{
				"certificate_url":   cert.URL,
				"verification_code": cert.VerificationCode,
			},
		})
		if err != nil {
			logger.Warn("certificate email failed, certificate still issued",
				"certificate_id", cert.ID,
				"error", err)
			res.EmailError = err.Error()
		} else {
			res.EmailMessageID = messageID
		}
	}

	raw, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal certificate result: %w", err)
	}
	return raw, nil
}
