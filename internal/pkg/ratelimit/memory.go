package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
)

type memoryWindow struct {
	start time.Time
	until time.Time
	count int
}

// Memory is an in-process fixed-window limiter.
//
// Expired windows are dropped lazily on Check and in bulk by Sweep, which is
// meant to run on its own interval independent of any window duration.
type Memory struct {
	clock clock.Clocker

	mu      sync.Mutex
	windows map[string]*memoryWindow

	swept atomic.Int64
}

// NewMemory creates an in-memory limiter using the provided clock.
func NewMemory(clk clock.Clocker) *Memory {
	return &Memory{
		clock:   clk,
		windows: make(map[string]*memoryWindow),
	}
}

// Check records one event for key and evaluates it against limit per window.
func (m *Memory) Check(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	win, ok := m.windows[key]
	if !ok || !now.Before(win.until) {
		win = &memoryWindow{start: now, until: now.Add(window)}
		m.windows[key] = win
	}

	win.count++

	if win.count > limit {
		return Result{Allowed: false, Remaining: 0, RetryAfter: win.until.Sub(now)}, nil
	}

	return Result{Allowed: true, Remaining: limit - win.count}, nil
}

// Reset discards the current window for key.
func (m *Memory) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.windows, key)
	m.mu.Unlock()

	return nil
}

// Sweep removes windows that have already elapsed and returns how many were
// dropped. It snapshots the expired keys first so the lock is never held
// while the map is being walked and mutated at the same time.
func (m *Memory) Sweep() int {
	now := m.clock.Now()

	m.mu.Lock()
	expired := make([]string, 0)
	for key, win := range m.windows {
		if !now.Before(win.until) {
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		delete(m.windows, key)
	}
	m.mu.Unlock()

	m.swept.Add(int64(len(expired)))

	return len(expired)
}

// SweptTotal returns the cumulative number of windows removed by Sweep.
func (m *Memory) SweptTotal() int64 {
	return m.swept.Load()
}
