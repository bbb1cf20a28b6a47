package singleflight

import (
	"context"
	"sync"
	"time"

	xsingleflight "golang.org/x/sync/singleflight"
)

// Group coalesces concurrent computations of the same key and memoizes the
// result for a short TTL. The first caller computes; callers arriving while
// the computation runs share its result; callers arriving within the TTL
// get the cached result without computing at all.
//
// The dashboard aggregator sits behind a Group so a burst of dashboard
// requests produces one snapshot computation instead of one per request.
type Group struct {
	flight xsingleflight.Group

	mu      sync.Mutex
	ttl     time.Duration
	results map[string]cachedResult
	now     func() time.Time
}

type cachedResult struct {
	value     any
	expiresAt time.Time
}

// NewGroup creates a Group caching results for ttl. A non-positive ttl
// disables caching; concurrent calls still coalesce.
func NewGroup(ttl time.Duration) *Group {
	return &Group{
		ttl:     ttl,
		results: make(map[string]cachedResult),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the group's clock. Test helper.
func (g *Group) SetNowFunc(now func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
}

// Do returns the value for key, computing it with fn at most once per TTL
// window regardless of how many callers ask concurrently. The shared return
// reports whether the caller received a result it did not compute itself
// (cached, or coalesced onto another caller's computation).
//
// Errors are never cached: a failed computation leaves the key cold so the
// next caller retries.
func (g *Group) Do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, bool, error) {
	if v, ok := g.cached(key); ok {
		return v, true, nil
	}

	v, err, shared := g.flight.Do(key, func() (any, error) {
		// Re-check under flight: a previous flight may have populated the
		// cache between the miss above and this call actually running.
		if v, ok := g.cached(key); ok {
			return v, nil
		}

		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		g.put(key, v)
		return v, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v, shared, nil
}

// Forget drops the cached result for key so the next Do recomputes.
func (g *Group) Forget(key string) {
	g.mu.Lock()
	delete(g.results, key)
	g.mu.Unlock()
	g.flight.Forget(key)
}

func (g *Group) cached(key string) (any, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.results[key]
	if !ok {
		return nil, false
	}
	if g.now().After(r.expiresAt) {
		delete(g.results, key)
		return nil, false
	}
	return r.value, true
}

func (g *Group) put(key string, value any) {
	if g.ttl <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.results[key] = cachedResult{value: value, expiresAt: g.now().Add(g.ttl)}
}
