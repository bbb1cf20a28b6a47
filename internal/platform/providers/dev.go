package providers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lumenlearn/lumen-api/internal/jobs"
)

// LogEmailSender is the development stand-in for the email provider: it
// logs the message and fabricates a message id so delivery tracking still
// exercises its full lifecycle.
type LogEmailSender struct {
	logger *slog.Logger
}

var _ jobs.EmailSender = (*LogEmailSender)(nil)

// NewLogEmailSender creates a logging email sender.
func NewLogEmailSender(logger *slog.Logger) *LogEmailSender {
	return &LogEmailSender{logger: logger.With(slog.String("component", "log_email_sender"))}
}

// Send logs the message instead of dispatching it.
func (s *LogEmailSender) Send(_ context.Context, msg jobs.EmailMessage) (string, error) {
	messageID := "dev-" + uuid.NewString()
	s.logger.Info("email send skipped, no provider configured",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("template", msg.Template),
		slog.String("message_id", messageID))
	return messageID, nil
}

// LocalCertificateRenderer is the development stand-in for the render
// service: it fabricates an artifact URL and verification code without
// producing a PDF.
type LocalCertificateRenderer struct {
	logger *slog.Logger
}

var _ jobs.CertificateRenderer = (*LocalCertificateRenderer)(nil)

// NewLocalCertificateRenderer creates a local certificate renderer.
func NewLocalCertificateRenderer(logger *slog.Logger) *LocalCertificateRenderer {
	return &LocalCertificateRenderer{logger: logger.With(slog.String("component", "local_certificate_renderer"))}
}

// Render fabricates an artifact without calling a render service.
func (r *LocalCertificateRenderer) Render(
	_ context.Context,
	enrollmentID, _, _ uuid.UUID,
	_ time.Time,
) (jobs.CertificateRender, error) {
	code := uuid.NewString()
	render := jobs.CertificateRender{
		URL:              fmt.Sprintf("local://certificates/%s.pdf", enrollmentID),
		VerificationCode: code,
	}
	r.logger.Info("certificate render skipped, no provider configured",
		slog.String("enrollment_id", enrollmentID.String()),
		slog.String("verification_code", code))
	return render, nil
}

// LogTranscodeProvider is the development stand-in for the transcoding
// service.
type LogTranscodeProvider struct {
	logger *slog.Logger
}

var _ jobs.TranscodeProvider = (*LogTranscodeProvider)(nil)

// NewLogTranscodeProvider creates a logging transcode provider.
func NewLogTranscodeProvider(logger *slog.Logger) *LogTranscodeProvider {
	return &LogTranscodeProvider{logger: logger.With(slog.String("component", "log_transcode_provider"))}
}

// StartTranscode logs the request and fabricates a provider job id.
func (p *LogTranscodeProvider) StartTranscode(_ context.Context, sourceURL string) (string, error) {
	jobID := "dev-" + uuid.NewString()
	p.logger.Info("transcode skipped, no provider configured",
		slog.String("source_url", sourceURL),
		slog.String("provider_job_id", jobID))
	return jobID, nil
}
