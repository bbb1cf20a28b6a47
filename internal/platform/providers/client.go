package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lumenlearn/lumen-api/internal/queue"
)

// Error definitions for the providers package.
var (
	// ErrMissingBaseURL is returned when a client is constructed without a
	// base URL.
	ErrMissingBaseURL = errors.New("provider base URL cannot be empty")

	// ErrProviderUnavailable is returned when the provider answers with a
	// 5xx status. Callers treat it as transient and retry.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrProviderRejected is returned when the provider answers with a 4xx
	// status. Retrying the same request will not help.
	ErrProviderRejected = errors.New("provider rejected request")
)

const defaultRequestTimeout = 30 * time.Second

// apiClient is the shared JSON-over-HTTP plumbing for the provider clients.
type apiClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func newAPIClient(baseURL, apiKey string, timeout time.Duration) (*apiClient, error) {
	if baseURL == "" {
		return nil, ErrMissingBaseURL
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &apiClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// postJSON sends the request body to path and decodes the response into
// out. Non-2xx statuses map onto the package error sentinels.
func (c *apiClient) postJSON(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal provider request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		// A rejection will not succeed on retry, so the job engine should
		// not spend its attempt budget on it.
		return queue.Unretryable(
			fmt.Errorf("%w: status %d: %s", ErrProviderRejected, resp.StatusCode, detail))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode provider response: %w", err)
	}
	return nil
}
