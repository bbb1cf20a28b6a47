package queue

import (
	"math"
	"math/rand/v2"
	"time"
)

// BackoffType identifies the delay growth curve between retry attempts.
type BackoffType string

// Possible backoff types
const (
	// BackoffExponential doubles the base delay on each attempt with
	// bounded jitter. This is the default for every queue.
	BackoffExponential BackoffType = "exponential"
	// BackoffFixed retries after the same base delay every time.
	BackoffFixed BackoffType = "fixed"
)

// BackoffPolicy decides the delay before the next retry attempt. The policy
// is stored with each job so requeued and recovered jobs keep their
// original retry schedule.
type BackoffPolicy struct {
	Type      BackoffType   `json:"type"`
	BaseDelay time.Duration `json:"base_delay"`
	MaxDelay  time.Duration `json:"max_delay"`
}

// IsZero reports whether the policy is unset and queue defaults apply.
func (p BackoffPolicy) IsZero() bool {
	return p.Type == "" && p.BaseDelay == 0 && p.MaxDelay == 0
}

// Delay returns how long to wait before retry attempt n (1-indexed).
// Attempt 1 is the first retry after the initial failure.
//
// For the exponential policy the raw delay is BaseDelay * 2^(n-1), plus
// uniform jitter bounded at a quarter of the raw delay so concurrent
// failures do not retry in lockstep. The jitter bound keeps the delay
// sequence non-decreasing across attempts. Once the raw delay reaches
// MaxDelay the result is exactly MaxDelay.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	if p.Type == BackoffFixed {
		return p.BaseDelay
	}

	raw := time.Duration(float64(p.BaseDelay) * math.Pow(2, float64(attempt-1)))
	if p.MaxDelay > 0 && raw >= p.MaxDelay {
		return p.MaxDelay
	}

	jitter := time.Duration(rand.Float64() * float64(raw) / 4)
	d := raw + jitter
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// DefaultBackoff returns the engine-wide default retry policy:
// exponential starting at 5s, capped at 5 minutes.
func DefaultBackoff() BackoffPolicy {
	return BackoffPolicy{
		Type:      BackoffExponential,
		BaseDelay: 5 * time.Second,
		MaxDelay:  5 * time.Minute,
	}
}
