package providers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlearn/lumen-api/internal/config"
	"github.com/lumenlearn/lumen-api/internal/jobs"
	"github.com/lumenlearn/lumen-api/internal/queue"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func providerConfig(baseURL string) config.ProvidersConfig {
	return config.ProvidersConfig{
		EmailBaseURL:     baseURL,
		EmailAPIKey:      "test-key",
		RenderBaseURL:    baseURL,
		TranscodeBaseURL: baseURL,
		RequestTimeout:   5 * time.Second,
	}
}

func TestHTTPEmailSender(t *testing.T) {
	t.Parallel()

	t.Run("returns the provider-assigned message id", func(t *testing.T) {
		t.Parallel()

		var gotAuth string
		var gotBody sendMessageRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			_ = json.NewEncoder(w).Encode(sendMessageResponse{MessageID: "msg-abc"})
		}))
		defer srv.Close()

		sender, err := NewHTTPEmailSender(providerConfig(srv.URL), testLogger())
		require.NoError(t, err)

		messageID, err := sender.Send(context.Background(), jobs.EmailMessage{
			To:       "student@example.com",
			Subject:  "Welcome",
			Template: "welcome",
		})
		require.NoError(t, err)
		assert.Equal(t, "msg-abc", messageID)
		assert.Equal(t, "Bearer test-key", gotAuth)
		assert.Equal(t, "student@example.com", gotBody.To)
	})

	t.Run("maps a 5xx to a transient error", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		sender, err := NewHTTPEmailSender(providerConfig(srv.URL), testLogger())
		require.NoError(t, err)

		_, err = sender.Send(context.Background(), jobs.EmailMessage{To: "a@b.c", Template: "t"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrProviderUnavailable)
		assert.False(t, queue.IsUnretryable(err))
	})

	t.Run("marks a 4xx unretryable", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "unknown template", http.StatusBadRequest)
		}))
		defer srv.Close()

		sender, err := NewHTTPEmailSender(providerConfig(srv.URL), testLogger())
		require.NoError(t, err)

		_, err = sender.Send(context.Background(), jobs.EmailMessage{To: "a@b.c", Template: "t"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrProviderRejected)
		assert.True(t, queue.IsUnretryable(err))
	})

	t.Run("rejects a response without a message id", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		sender, err := NewHTTPEmailSender(providerConfig(srv.URL), testLogger())
		require.NoError(t, err)

		_, err = sender.Send(context.Background(), jobs.EmailMessage{To: "a@b.c", Template: "t"})
		assert.Error(t, err)
	})

	t.Run("requires a base URL", func(t *testing.T) {
		t.Parallel()

		_, err := NewHTTPEmailSender(config.ProvidersConfig{}, testLogger())
		assert.ErrorIs(t, err, ErrMissingBaseURL)
	})
}

func TestHTTPCertificateRenderer(t *testing.T) {
	t.Parallel()

	t.Run("returns the rendered artifact", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/certificates", r.URL.Path)
			_ = json.NewEncoder(w).Encode(renderCertificateResponse{
				URL:              "https://cdn.example.com/certs/1.pdf",
				VerificationCode: "VC-123",
			})
		}))
		defer srv.Close()

		renderer, err := NewHTTPCertificateRenderer(providerConfig(srv.URL), testLogger())
		require.NoError(t, err)

		render, err := renderer.Render(context.Background(),
			uuid.New(), uuid.New(), uuid.New(), time.Now().UTC())
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/certs/1.pdf", render.URL)
		assert.Equal(t, "VC-123", render.VerificationCode)
	})

	t.Run("rejects an incomplete artifact", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(renderCertificateResponse{URL: "https://cdn.example.com/x.pdf"})
		}))
		defer srv.Close()

		renderer, err := NewHTTPCertificateRenderer(providerConfig(srv.URL), testLogger())
		require.NoError(t, err)

		_, err = renderer.Render(context.Background(),
			uuid.New(), uuid.New(), uuid.New(), time.Now().UTC())
		assert.Error(t, err)
	})
}

func TestHTTPTranscodeProvider(t *testing.T) {
	t.Parallel()

	t.Run("returns the provider job id", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/transcodes", r.URL.Path)
			_ = json.NewEncoder(w).Encode(startTranscodeResponse{JobID: "tc-42"})
		}))
		defer srv.Close()

		provider, err := NewHTTPTranscodeProvider(providerConfig(srv.URL), testLogger())
		require.NoError(t, err)

		jobID, err := provider.StartTranscode(context.Background(), "s3://raw/video.mp4")
		require.NoError(t, err)
		assert.Equal(t, "tc-42", jobID)
	})
}

func TestDevProviders(t *testing.T) {
	t.Parallel()

	t.Run("log email sender fabricates message ids", func(t *testing.T) {
		t.Parallel()

		sender := NewLogEmailSender(testLogger())
		a, err := sender.Send(context.Background(), jobs.EmailMessage{To: "a@b.c"})
		require.NoError(t, err)
		b, err := sender.Send(context.Background(), jobs.EmailMessage{To: "a@b.c"})
		require.NoError(t, err)
		assert.NotEmpty(t, a)
		assert.NotEqual(t, a, b)
	})

	t.Run("local renderer fabricates an artifact", func(t *testing.T) {
		t.Parallel()

		renderer := NewLocalCertificateRenderer(testLogger())
		enrollmentID := uuid.New()
		render, err := renderer.Render(context.Background(),
			enrollmentID, uuid.New(), uuid.New(), time.Now().UTC())
		require.NoError(t, err)
		assert.Contains(t, render.URL, enrollmentID.String())
		assert.NotEmpty(t, render.VerificationCode)
	})

	t.Run("log transcode provider fabricates job ids", func(t *testing.T) {
		t.Parallel()

		provider := NewLogTranscodeProvider(testLogger())
		jobID, err := provider.StartTranscode(context.Background(), "s3://raw/video.mp4")
		require.NoError(t, err)
		assert.NotEmpty(t, jobID)
	})
}
