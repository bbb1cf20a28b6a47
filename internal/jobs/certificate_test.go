package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlearn/lumen-api/internal/domain"
	"github.com/lumenlearn/lumen-api/internal/queue"
	"github.com/lumenlearn/lumen-api/internal/store"
)

type certFixture struct {
	enrollments  *mockEnrollmentStore
	certificates *mockCertificateStore
	renderer     *mockRenderer
	sender       *mockEmailSender
	handler      *CertificateHandler

	enrollmentID uuid.UUID
	studentID    uuid.UUID
	courseID     uuid.UUID
}

func newCertFixture() *certFixture {
	f := &certFixture{
		renderer:     &mockRenderer{},
		sender:       &mockEmailSender{},
		enrollmentID: uuid.New(),
		studentID:    uuid.New(),
		courseID:     uuid.New(),
	}

	f.enrollments = &mockEnrollmentStore{
		GetByIDFn: func(_ context.Context, id uuid.UUID) (*domain.Enrollment, error) {
			if id != f.enrollmentID {
				return nil, store.ErrEnrollmentNotFound
			}
			return completedEnrollment(f.enrollmentID, f.studentID, f.courseID), nil
		},
	}

	f.certificates = &mockCertificateStore{
		GetByEnrollmentIDFn: func(context.Context, uuid.UUID) (*domain.Certificate, error) {
			return nil, store.ErrCertificateNotFound
		},
		CreateFn: func(context.Context, *domain.Certificate) error { return nil },
	}

	f.handler = NewCertificateHandler(f.enrollments, f.certificates, f.renderer, f.sender, testLogger())
	return f
}

func (f *certFixture) payload() CertificatePayload {
	return CertificatePayload{
		EnrollmentID:   f.enrollmentID,
		StudentID:      f.studentID,
		CourseID:       f.courseID,
		StudentEmail:   "student@example.com",
		CompletionDate: time.Now().UTC(),
	}
}

func TestCertificateHandler_Handle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("issues certificate and sends email", func(t *testing.T) {
		t.Parallel()

		f := newCertFixture()
		var created *domain.Certificate
		f.certificates.CreateFn = func(_ context.Context, cert *domain.Certificate) error {
			created = cert
			return nil
		}
		f.sender.SendFn = func(context.Context, EmailMessage) (string, error) { return "msg-42", nil }

		var milestones []int
		raw, err := f.handler.Handle(ctx, f.payload(), func(pct int) { milestones = append(milestones, pct) })
		require.NoError(t, err)

		require.NotNil(t, created)
		assert.Equal(t, f.enrollmentID, created.EnrollmentID)

		var res CertificateResult
		require.NoError(t, json.Unmarshal(raw, &res))
		assert.Equal(t, created.ID, res.CertificateID)
		assert.False(t, res.AlreadyExisted)
		assert.Equal(t, "msg-42", res.EmailMessageID)
		assert.Empty(t, res.EmailError)

		assert.Equal(t, []int{10, 30, 50, 70, 90}, milestones)
		assert.Equal(t, 1, f.renderer.calls)
	})

	t.Run("short-circuits when certificate exists", func(t *testing.T) {
		t.Parallel()

		f := newCertFixture()
		existing, err := domain.NewCertificate(f.enrollmentID, f.studentID, f.courseID,
			"https://certs.example.com/existing.pdf", "VERIFY-1")
		require.NoError(t, err)

		f.certificates.GetByEnrollmentIDFn = func(context.Context, uuid.UUID) (*domain.Certificate, error) {
			return existing, nil
		}

		raw, err := f.handler.Handle(ctx, f.payload(), noProgress)
		require.NoError(t, err)

		var res CertificateResult
		require.NoError(t, json.Unmarshal(raw, &res))
		assert.True(t, res.AlreadyExisted)
		assert.Equal(t, existing.ID, res.CertificateID)

		assert.Equal(t, 0, f.renderer.calls, "no second PDF render on retry")
		assert.Empty(t, f.sender.sent, "no second email on retry")
	})

	t.Run("loses create race and returns winner's certificate", func(t *testing.T) {
		t.Parallel()

		f := newCertFixture()
		winner, err := domain.NewCertificate(f.enrollmentID, f.studentID, f.courseID,
			"https://certs.example.com/winner.pdf", "VERIFY-2")
		require.NoError(t, err)

		checks := 0
		f.certificates.GetByEnrollmentIDFn = func(context.Context, uuid.UUID) (*domain.Certificate, error) {
			checks++
			if checks == 1 {
				// Pre-render check: nothing exists yet.
				return nil, store.ErrCertificateNotFound
			}
			return winner, nil
		}
		f.certificates.CreateFn = func(context.Context, *domain.Certificate) error {
			return store.ErrCertificateExists
		}

		raw, err := f.handler.Handle(ctx, f.payload(), noProgress)
		require.NoError(t, err)

		var res CertificateResult
		require.NoError(t, json.Unmarshal(raw, &res))
		assert.True(t, res.AlreadyExisted)
		assert.Equal(t, winner.ID, res.CertificateID)
	})

	t.Run("email failure does not fail the job", func(t *testing.T) {
		t.Parallel()

		f := newCertFixture()
		f.sender.SendFn = func(context.Context, EmailMessage) (string, error) {
			return "", errors.New("smtp unavailable")
		}

		raw, err := f.handler.Handle(ctx, f.payload(), noProgress)
		require.NoError(t, err, "secondary email failure must not fail the certificate job")

		var res CertificateResult
		require.NoError(t, json.Unmarshal(raw, &res))
		assert.Equal(t, "smtp unavailable", res.EmailError)
		assert.Empty(t, res.EmailMessageID)
	})

	t.Run("unretryable failures", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name    string
			mutate  func(f *certFixture)
			payload func(f *certFixture) CertificatePayload
		}{
			{
				name:    "missing ids",
				mutate:  func(*certFixture) {},
				payload: func(f *certFixture) CertificatePayload { return CertificatePayload{} },
			},
			{
				name: "enrollment not found",
				mutate: func(f *certFixture) {
					f.enrollments.GetByIDFn = func(context.Context, uuid.UUID) (*domain.Enrollment, error) {
						return nil, store.ErrEnrollmentNotFound
					}
				},
				payload: func(f *certFixture) CertificatePayload { return f.payload() },
			},
			{
				name: "enrollment not completed",
				mutate: func(f *certFixture) {
					f.enrollments.GetByIDFn = func(context.Context, uuid.UUID) (*domain.Enrollment, error) {
						e := completedEnrollment(f.enrollmentID, f.studentID, f.courseID)
						e.Status = domain.EnrollmentStatusActive
						e.CompletedAt = nil
						return e, nil
					}
				},
				payload: func(f *certFixture) CertificatePayload { return f.payload() },
			},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()

				f := newCertFixture()
				tc.mutate(f)

				_, err := f.handler.Handle(ctx, tc.payload(f), noProgress)
				require.Error(t, err)
				assert.True(t, queue.IsUnretryable(err), "expected unretryable, got %v", err)
			})
		}
	})

	t.Run("transient failures stay retryable", func(t *testing.T) {
		t.Parallel()

		f := newCertFixture()
		f.renderer.RenderFn = func(context.Context, uuid.UUID, uuid.UUID, uuid.UUID, time.Time) (CertificateRender, error) {
			return CertificateRender{}, errors.New("storage timeout")
		}

		_, err := f.handler.Handle(ctx, f.payload(), noProgress)
		require.Error(t, err)
		assert.False(t, queue.IsUnretryable(err))
	})
}
