package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lumenlearn/lumen-api/internal/queue"
)

// EmailMessage is one outbound email handed to the provider.
type EmailMessage struct {
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	Template string            `json:"template"`
	Data     map[string]string `json:"data,omitempty"`
}

// EmailSender dispatches email through the external provider. The returned
// message id is provider-assigned and is the correlation key for later
// bounce/complaint webhooks.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) (messageID string, err error)
}

// CertificateRender is the rendered artifact: the PDF's object-storage URL
// and the public verification code embedded in it.
type CertificateRender struct {
	URL              string
	VerificationCode string
}

// CertificateRenderer renders a certificate PDF and persists it to object
// storage.
type CertificateRenderer interface {
	Render(ctx context.Context, enrollmentID, studentID, courseID uuid.UUID, completedAt time.Time) (CertificateRender, error)
}

// TranscodeProvider kicks off transcoding at the external video service.
// The returned provider job id correlates provider callbacks back to the
// asset.
type TranscodeProvider interface {
	StartTranscode(ctx context.Context, sourceURL string) (providerJobID string, err error)
}

// AnalyticsSummary is one aggregated daily window.
type AnalyticsSummary struct {
	Date                 string `json:"date"`
	ActiveStudents       int    `json:"active_students"`
	CompletedEnrollments int    `json:"completed_enrollments"`
	CertificatesIssued   int    `json:"certificates_issued"`
}

// AnalyticsRepository computes and persists aggregate metrics for a daily
// window. Aggregation is idempotent per date: re-running a window replaces
// its row.
type AnalyticsRepository interface {
	AggregateDay(ctx context.Context, date time.Time) (AnalyticsSummary, error)
}

// Enqueuer is the slice of the queue manager the bulk email handler needs
// to fan out per-recipient jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName, jobType string, payload any, opts queue.EnqueueOptions) (uuid.UUID, error)
}
