package delivery

import "errors"

// Common errors returned by the delivery tracker.
var (
	// ErrNotCompleted is returned when a bounce or complaint targets a
	// delivery that never completed. A message must have been sent before
	// it can bounce.
	ErrNotCompleted = errors.New("delivery has not completed")

	// ErrMissingMessageID is returned when a provider event carries no
	// external message id to correlate on.
	ErrMissingMessageID = errors.New("provider event has no external message id")

	// ErrUnknownEventType is returned for provider event types the tracker
	// does not understand.
	ErrUnknownEventType = errors.New("unknown provider event type")

	// ErrInvalidTransition is returned when a requested status change
	// violates the delivery state machine.
	ErrInvalidTransition = errors.New("invalid delivery status transition")
)
