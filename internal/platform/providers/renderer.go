package providers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lumenlearn/lumen-api/internal/config"
	"github.com/lumenlearn/lumen-api/internal/jobs"
)

// HTTPCertificateRenderer renders certificate PDFs through the render
// service, which writes the artifact to object storage and returns its URL
// together with the verification code embedded in the document.
type HTTPCertificateRenderer struct {
	api    *apiClient
	logger *slog.Logger
}

var _ jobs.CertificateRenderer = (*HTTPCertificateRenderer)(nil)

// NewHTTPCertificateRenderer creates a render service client from
// configuration.
func NewHTTPCertificateRenderer(cfg config.ProvidersConfig, logger *slog.Logger) (*HTTPCertificateRenderer, error) {
	api, err := newAPIClient(cfg.RenderBaseURL, cfg.RenderAPIKey, cfg.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create render service client: %w", err)
	}

	return &HTTPCertificateRenderer{
		api:    api,
		logger: logger.With(slog.String("component", "certificate_renderer")),
	}, nil
}

type renderCertificateRequest struct {
	EnrollmentID uuid.UUID `json:"enrollment_id"`
	StudentID    uuid.UUID `json:"student_id"`
	CourseID     uuid.UUID `json:"course_id"`
	CompletedAt  time.Time `json:"completed_at"`
}

type renderCertificateResponse struct {
	URL              string `json:"url"`
	VerificationCode string `json:"verification_code"`
}

// Render submits one render request and returns the stored artifact.
func (r *HTTPCertificateRenderer) Render(
	ctx context.Context,
	enrollmentID, studentID, courseID uuid.UUID,
	completedAt time.Time,
) (jobs.CertificateRender, error) {
	var resp renderCertificateResponse
	err := r.api.postJSON(ctx, "/v1/certificates", renderCertificateRequest{
		EnrollmentID: enrollmentID,
		StudentID:    studentID,
		CourseID:     courseID,
		CompletedAt:  completedAt,
	}, &resp)
	if err != nil {
		return jobs.CertificateRender{}, fmt.Errorf("certificate render failed: %w", err)
	}
	if resp.URL == "" || resp.VerificationCode == "" {
		return jobs.CertificateRender{}, fmt.Errorf("render service returned an incomplete artifact")
	}

	r.logger.Debug("certificate rendered",
		slog.String("enrollment_id", enrollmentID.String()),
		slog.String("url", resp.URL))
	return jobs.CertificateRender{
		URL:              resp.URL,
		VerificationCode: resp.VerificationCode,
	}, nil
}
