package jobs

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lumenlearn/lumen-api/internal/domain"
	"github.com/lumenlearn/lumen-api/internal/queue"
	"github.com/lumenlearn/lumen-api/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noProgress(int) {}

// mockEnrollmentStore implements store.EnrollmentStore with overridable
// function fields.
type mockEnrollmentStore struct {
	GetByIDFn      func(ctx context.Context, id uuid.UUID) (*domain.Enrollment, error)
	UpdateStatusFn func(ctx context.Context, id uuid.UUID, status domain.EnrollmentStatus) error
}

func (m *mockEnrollmentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Enrollment, error) {
	return m.GetByIDFn(ctx, id)
}

func (m *mockEnrollmentStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.EnrollmentStatus) error {
	return m.UpdateStatusFn(ctx, id, status)
}

func (m *mockEnrollmentStore) WithTxEnrollmentStore(_ *sql.Tx) store.EnrollmentStore { return m }

// mockCertificateStore implements store.CertificateStore.
type mockCertificateStore struct {
	CreateFn            func(ctx context.Context, cert *domain.Certificate) error
	GetByEnrollmentIDFn func(ctx context.Context, enrollmentID uuid.UUID) (*domain.Certificate, error)
}

func (m *mockCertificateStore) Create(ctx context.Context, cert *domain.Certificate) error {
	return m.CreateFn(ctx, cert)
}

func (m *mockCertificateStore) GetByEnrollmentID(ctx context.Context, enrollmentID uuid.UUID) (*domain.Certificate, error) {
	return m.GetByEnrollmentIDFn(ctx, enrollmentID)
}

func (m *mockCertificateStore) WithTxCertificateStore(_ *sql.Tx) store.CertificateStore { return m }

// mockVideoAssetStore implements store.VideoAssetStore.
type mockVideoAssetStore struct {
	GetByIDFn func(ctx context.Context, id uuid.UUID) (*domain.VideoAsset, error)
	UpdateFn  func(ctx context.Context, asset *domain.VideoAsset) error
}

func (m *mockVideoAssetStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.VideoAsset, error) {
	return m.GetByIDFn(ctx, id)
}

func (m *mockVideoAssetStore) Update(ctx context.Context, asset *domain.VideoAsset) error {
	return m.UpdateFn(ctx, asset)
}

func (m *mockVideoAssetStore) WithTxVideoAssetStore(_ *sql.Tx) store.VideoAssetStore { return m }

// mockEmailSender implements EmailSender.
type mockEmailSender struct {
	SendFn func(ctx context.Context, msg EmailMessage) (string, error)
	sent   []EmailMessage
}

func (m *mockEmailSender) Send(ctx context.Context, msg EmailMessage) (string, error) {
	m.sent = append(m.sent, msg)
	if m.SendFn != nil {
		return m.SendFn(ctx, msg)
	}
	return "msg-" + uuid.NewString(), nil
}

// mockRenderer implements CertificateRenderer.
type mockRenderer struct {
	RenderFn func(ctx context.Context, enrollmentID, studentID, courseID uuid.UUID, completedAt time.Time) (CertificateRender, error)
	calls    int
}

func (m *mockRenderer) Render(ctx context.Context, enrollmentID, studentID, courseID uuid.UUID, completedAt time.Time) (CertificateRender, error) {
	m.calls++
	if m.RenderFn != nil {
		return m.RenderFn(ctx, enrollmentID, studentID, courseID, completedAt)
	}
	return CertificateRender{
		URL:              "https://certs.example.com/" + enrollmentID.String() + ".pdf",
		VerificationCode: "VERIFY-" + enrollmentID.String()[:8],
	}, nil
}

// mockTranscodeProvider implements TranscodeProvider.
type mockTranscodeProvider struct {
	StartTranscodeFn func(ctx context.Context, sourceURL string) (string, error)
	calls            int
}

func (m *mockTranscodeProvider) StartTranscode(ctx context.Context, sourceURL string) (string, error) {
	m.calls++
	if m.StartTranscodeFn != nil {
		return m.StartTranscodeFn(ctx, sourceURL)
	}
	return "provider-job-1", nil
}

// mockAnalyticsRepo implements AnalyticsRepository.
type mockAnalyticsRepo struct {
	AggregateDayFn func(ctx context.Context, date time.Time) (AnalyticsSummary, error)
	calls          int
}

func (m *mockAnalyticsRepo) AggregateDay(ctx context.Context, date time.Time) (AnalyticsSummary, error) {
	m.calls++
	if m.AggregateDayFn != nil {
		return m.AggregateDayFn(ctx, date)
	}
	return AnalyticsSummary{Date: date.Format("2006-01-02")}, nil
}

// mockEnqueuer implements Enqueuer, recording every fan-out call.
type mockEnqueuer struct {
	EnqueueFn func(ctx context.Context, queueName, jobType string, payload any, opts queue.EnqueueOptions) (uuid.UUID, error)

	enqueued []enqueueCall
}

type enqueueCall struct {
	queueName string
	jobType   string
	payload   any
	opts      queue.EnqueueOptions
}

func (m *mockEnqueuer) Enqueue(ctx context.Context, queueName, jobType string, payload any, opts queue.EnqueueOptions) (uuid.UUID, error) {
	m.enqueued = append(m.enqueued, enqueueCall{queueName: queueName, jobType: jobType, payload: payload, opts: opts})
	if m.EnqueueFn != nil {
		return m.EnqueueFn(ctx, queueName, jobType, payload, opts)
	}
	return uuid.New(), nil
}

// completedEnrollment returns a valid completed enrollment for the ids.
func completedEnrollment(id, studentID, courseID uuid.UUID) *domain.Enrollment {
	now := time.Now().UTC()
	return &domain.Enrollment{
		ID:          id,
		StudentID:   studentID,
		CourseID:    courseID,
		Status:      domain.EnrollmentStatusCompleted,
		CompletedAt: &now,
		CreatedAt:   now.Add(-30 * 24 * time.Hour),
		UpdatedAt:   now,
	}
}
