package queue

import (
	"errors"
	"fmt"
)

// Common errors returned by the job engine.
var (
	// ErrJobNotFound is returned when no job exists for the given id.
	ErrJobNotFound = errors.New("job not found")

	// ErrUnknownQueue is returned when an operation names a queue that was
	// never registered with the manager.
	ErrUnknownQueue = errors.New("unknown queue")

	// ErrUnknownJobType is returned at enqueue time when no handler is
	// registered for the job type.
	ErrUnknownJobType = errors.New("unknown job type")

	// ErrJobTerminal is returned when an operation requires a non-terminal
	// job (e.g. cancel) but the job already completed, failed or was
	// cancelled.
	ErrJobTerminal = errors.New("job is in a terminal state")

	// ErrJobNotFailed is returned when retrying a job that is not in the
	// failed state.
	ErrJobNotFailed = errors.New("job is not failed")

	// ErrManagerClosed is returned when enqueueing after shutdown began.
	ErrManagerClosed = errors.New("queue manager is shut down")
)

// Handler error classification. Handlers wrap their errors with these
// sentinels to tell the worker pool whether a failure should consume the
// retry budget. Anything not marked unretryable is treated as transient
// and retried per the backoff policy.
var (
	// ErrUnretryable marks a failure that retrying cannot fix. The job
	// transitions straight to failed.
	ErrUnretryable = errors.New("unretryable")

	// ErrInvalidPayload marks a malformed job payload. Unretryable.
	ErrInvalidPayload = fmt.Errorf("%w: invalid payload", ErrUnretryable)
)

// Unretryable wraps err so the worker pool fails the job immediately
// instead of scheduling a retry.
func Unretryable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrUnretryable, err)
}

// IsUnretryable reports whether err (or anything it wraps) was marked
// unretryable.
func IsUnretryable(err error) bool {
	return errors.Is(err, ErrUnretryable)
}
