package queue

import (
	"context"

	"github.com/google/uuid"
)

// jobIDContextKey is a private type for the job id context key to prevent
// collisions with other packages.
type jobIDContextKey struct{}

// WithJobID returns a context carrying the executing job's id. The worker
// pool attaches it before invoking a handler.
func WithJobID(ctx context.Context, jobID uuid.UUID) context.Context {
	return context.WithValue(ctx, jobIDContextKey{}, jobID)
}

// JobIDFromContext extracts the executing job's id from the context.
// Handlers use it to correlate side-channel records (delivery status) with
// the job without widening the handler signature.
func JobIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(jobIDContextKey{}).(uuid.UUID)
	return id, ok
}
