package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// ProgressFunc reports handler progress as a percentage (0-100). The worker
// pool persists it so operators can see where long-running jobs are stuck.
type ProgressFunc func(pct int)

// HandlerFunc is a type-erased job handler taking the raw JSON payload.
// It returns the job result to persist on completion. Typed handlers are
// converted to HandlerFuncs at registration time.
type HandlerFunc func(ctx context.Context, payload json.RawMessage, report ProgressFunc) (json.RawMessage, error)

// Registry maps job type identifiers to type-erased handler functions.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRegistry creates an empty job handler registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
	}
}

// Register registers a raw handler for the given job type, replacing any
// previous registration.
func (r *Registry) Register(jobType string, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[jobType] = handler
}

// RegisterHandler registers a typed handler for the given job type. The
// handler is wrapped in a closure that JSON-unmarshals the payload into T
// before invoking it; a payload that does not decode is an unretryable
// failure.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func RegisterHandler[T any](
	r *Registry,
	jobType string,
	handler func(ctx context.Context, payload T, report ProgressFunc) (json.RawMessage, error),
) {
	wrapped := func(ctx context.Context, payload json.RawMessage, report ProgressFunc) (json.RawMessage, error) {
		var t T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &t); err != nil {
				return nil, fmt.Errorf("%w: job type %q: %w", ErrInvalidPayload, jobType, err)
			}
		}
		return handler(ctx, t, report)
	}

	r.Register(jobType, wrapped)
}

// Get returns the handler for the given job type.
// Returns false if no handler is registered.
func (r *Registry) Get(jobType string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[jobType]
	return h, ok
}

// Has reports whether a handler is registered for the job type. The
// manager uses it to reject unknown types at enqueue time.
func (r *Registry) Has(jobType string) bool {
	_, ok := r.Get(jobType)
	return ok
}

// Types returns all registered job type identifiers.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}
