package ratelimit

import (
	"context"
	"time"
)

// Result describes the outcome of a window check.
type Result struct {
	// Allowed reports whether the call fits in the current window.
	Allowed bool
	// Remaining is the number of calls left in the current window.
	Remaining int
	// RetryAfter is how long until the window resets. Zero when Allowed.
	RetryAfter time.Duration
}

// Limiter counts events per key inside a fixed time window.
//
// The first event for a key opens a window; every event inside that window
// increments the same counter. When the window elapses the next event opens
// a fresh one. Counting is best effort fail-closed: the event is counted
// before the limit comparison, so a burst at the boundary can not sneak past.
type Limiter interface {
	// Check records one event for key and reports whether it fits within
	// limit events per window.
	Check(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
	// Reset discards the current window for key.
	Reset(ctx context.Context, key string) error
}
