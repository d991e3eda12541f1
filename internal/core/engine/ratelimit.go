package engine

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/itemtally/itemtally/internal/core"
	"github.com/itemtally/itemtally/internal/metrics"
)

// RateLimiter enforces a minimum interval between dispatches to the same
// origin. Origins without a registered rule are never throttled.
type RateLimiter struct {
	Clock func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	origins map[core.Origin]*originState
}

type originState struct {
	// mu serializes the wait, stamp and call sequence for one origin.
	mu         sync.Mutex
	interval   time.Duration
	last       time.Time
	dispatches int64
}

// NewRateLimiter returns a limiter using the wall clock.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{}
}

// Register installs or replaces the pacing rule for an origin. The existing
// lock and last dispatch time are kept, so re-registering never lets a
// concurrent caller skip its wait.
func (r *RateLimiter) Register(origin core.Origin, interval time.Duration) {
	if r == nil || origin == "" {
		return
	}
	if interval < 0 {
		interval = 0
	}

	r.mu.Lock()
	if r.origins == nil {
		r.origins = make(map[core.Origin]*originState)
	}
	state, ok := r.origins[origin]
	if !ok {
		state = &originState{}
		r.origins[origin] = state
	}
	r.mu.Unlock()

	state.mu.Lock()
	state.interval = interval
	state.mu.Unlock()
}

// Dispatch runs action no sooner than the origin's interval after the previous
// dispatch to that origin started. The timestamp is taken before the action
// runs, so failed actions still count against the interval.
func (r *RateLimiter) Dispatch(ctx context.Context, origin core.Origin, action func(ctx context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	state := r.lookup(origin)
	if state == nil {
		metrics.RecordDispatch(string(origin), 0, false)
		return action(ctx)
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	var waited time.Duration
	if !state.last.IsZero() {
		wait := state.last.Add(state.interval).Sub(r.now())
		if wait > 0 {
			if err := r.sleep(ctx, wait); err != nil {
				return err
			}
			waited = wait
		}
	}

	state.last = r.now()
	state.dispatches++
	metrics.RecordDispatch(string(origin), waited, true)

	return action(ctx)
}

// Snapshot returns the state of every registered origin sorted by origin.
func (r *RateLimiter) Snapshot() []core.RateLimitState {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	origins := make(map[core.Origin]*originState, len(r.origins))
	for origin, state := range r.origins {
		origins[origin] = state
	}
	r.mu.Unlock()

	states := make([]core.RateLimitState, 0, len(origins))
	for origin, state := range origins {
		state.mu.Lock()
		states = append(states, core.RateLimitState{
			Origin:       origin,
			Interval:     state.interval,
			LastDispatch: state.last,
			Dispatches:   state.dispatches,
		})
		state.mu.Unlock()
	}

	sort.Slice(states, func(i, j int) bool { return states[i].Origin < states[j].Origin })
	return states
}

func (r *RateLimiter) lookup(origin core.Origin) *originState {
	if r == nil || origin == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.origins[origin]
}

func (r *RateLimiter) now() time.Time {
	if r != nil && r.Clock != nil {
		return r.Clock()
	}
	return time.Now()
}

func (r *RateLimiter) sleep(ctx context.Context, d time.Duration) error {
	if r != nil && r.Sleep != nil {
		return r.Sleep(ctx, d)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Transport is an http.RoundTripper that dispatches every request through a
// RateLimiter keyed by the request URL's origin.
type Transport struct {
	Limiter *RateLimiter
	Base    http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Limiter == nil {
		return base.RoundTrip(req)
	}

	var resp *http.Response
	err := t.Limiter.Dispatch(req.Context(), core.OriginOf(req.URL), func(ctx context.Context) error {
		var rtErr error
		resp, rtErr = base.RoundTrip(req)
		return rtErr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// NewHTTPClient returns an http.Client whose requests are paced by limiter.
func NewHTTPClient(limiter *RateLimiter, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &Transport{Limiter: limiter},
	}
}
