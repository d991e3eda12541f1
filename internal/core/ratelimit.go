package core

import "time"

// RateLimitState captures the pacing rule and last dispatch for an origin.
type RateLimitState struct {
	Origin       Origin        `json:"origin"`
	Interval     time.Duration `json:"interval"`
	LastDispatch time.Time     `json:"last_dispatch,omitempty"`
	Dispatches   int64         `json:"dispatches"`
}
