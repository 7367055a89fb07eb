package ratelimit

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	return f.now
}

func TestMemoryCheckWithinLimit(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)}
	lim := NewMemory(clk)

	for i := 0; i < 3; i++ {
		res, err := lim.Check(context.Background(), "otp-issue:alice@example.com", 3, time.Minute)
		if err != nil {
			t.Fatalf("Check returned error: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("attempt %d denied, want allowed", i+1)
		}
		if res.Remaining != 3-(i+1) {
			t.Errorf("attempt %d remaining = %d, want %d", i+1, res.Remaining, 3-(i+1))
		}
	}
}

func TestMemoryCheckOverLimit(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)}
	lim := NewMemory(clk)

	for i := 0; i < 2; i++ {
		if _, err := lim.Check(context.Background(), "k", 2, time.Minute); err != nil {
			t.Fatalf("Check returned error: %v", err)
		}
	}

	clk.now = clk.now.Add(15 * time.Second)
	res, err := lim.Check(context.Background(), "k", 2, time.Minute)
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}

	if res.Allowed {
		t.Fatal("third event in window allowed, want denied")
	}
	if res.RetryAfter != 45*time.Second {
		t.Errorf("RetryAfter = %v, want 45s", res.RetryAfter)
	}
}

func TestMemoryCheckFreshWindow(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)}
	lim := NewMemory(clk)

	for i := 0; i < 3; i++ {
		if _, err := lim.Check(context.Background(), "k", 2, time.Minute); err != nil {
			t.Fatalf("Check returned error: %v", err)
		}
	}

	clk.now = clk.now.Add(time.Minute)
	res, err := lim.Check(context.Background(), "k", 2, time.Minute)
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}

	if !res.Allowed {
		t.Fatal("first event of a fresh window denied")
	}
	if res.Remaining != 1 {
		t.Errorf("Remaining = %d, want 1", res.Remaining)
	}
}

func TestMemoryReset(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)}
	lim := NewMemory(clk)

	for i := 0; i < 2; i++ {
		if _, err := lim.Check(context.Background(), "k", 1, time.Minute); err != nil {
			t.Fatalf("Check returned error: %v", err)
		}
	}

	if err := lim.Reset(context.Background(), "k"); err != nil {
		t.Fatalf("Reset returned error: %v", err)
	}

	res, err := lim.Check(context.Background(), "k", 1, time.Minute)
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if !res.Allowed {
		t.Fatal("event after Reset denied, want allowed")
	}
}

func TestMemorySweep(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)}
	lim := NewMemory(clk)

	if _, err := lim.Check(context.Background(), "a", 5, time.Minute); err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if _, err := lim.Check(context.Background(), "b", 5, 10*time.Minute); err != nil {
		t.Fatalf("Check returned error: %v", err)
	}

	clk.now = clk.now.Add(5 * time.Minute)

	if n := lim.Sweep(); n != 1 {
		t.Errorf("Sweep removed %d windows, want 1", n)
	}
	if got := lim.SweptTotal(); got != 1 {
		t.Errorf("SweptTotal = %d, want 1", got)
	}
}
