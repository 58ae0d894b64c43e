package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestGate_FirstWaitPassesImmediately(t *testing.T) {
	gate := NewGate(500*time.Millisecond, 0, zerolog.Nop())

	start := time.Now()
	if err := gate.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("first Wait blocked for %v, want immediate", elapsed)
	}
}

func TestGate_EnforcesMinimumSpacing(t *testing.T) {
	base := 100 * time.Millisecond
	gate := NewGate(base, 0, zerolog.Nop())
	ctx := context.Background()

	// Simulate three consecutive request cycles and verify spacing between
	// the previous completion and the next wait release.
	if err := gate.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	gate.Completed()

	for i := 0; i < 3; i++ {
		prev := gate.LastCompletion()
		if err := gate.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		if gap := time.Since(prev); gap < base {
			t.Errorf("cycle %d: gap since previous completion = %v, want >= %v", i, gap, base)
		}
		gate.Completed()
	}
}

func TestGate_JitterOnlyAddsDelay(t *testing.T) {
	base := 50 * time.Millisecond
	gate := NewGate(base, 50*time.Millisecond, zerolog.Nop())
	ctx := context.Background()

	if err := gate.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	gate.Completed()

	prev := gate.LastCompletion()
	if err := gate.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if gap := time.Since(prev); gap < base {
		t.Errorf("gap = %v, want >= base interval %v even with jitter", gap, base)
	}
}

func TestGate_NoWaitWhenIntervalElapsed(t *testing.T) {
	gate := NewGate(30*time.Millisecond, 0, zerolog.Nop())
	ctx := context.Background()

	if err := gate.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	gate.Completed()
	time.Sleep(60 * time.Millisecond)

	start := time.Now()
	if err := gate.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Errorf("Wait blocked for %v after interval already elapsed", elapsed)
	}
}

func TestGate_ContextCancellation(t *testing.T) {
	gate := NewGate(5*time.Second, 0, zerolog.Nop())

	if err := gate.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	gate.Completed()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := gate.Wait(ctx)
	if err == nil {
		t.Fatal("Wait() = nil, want context error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Wait did not return promptly on cancellation: %v", elapsed)
	}
}

func TestGate_IndependentInstances(t *testing.T) {
	a := NewGate(time.Hour, 0, zerolog.Nop())
	b := NewGate(time.Hour, 0, zerolog.Nop())

	if err := a.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	a.Completed()

	// Gate b has never completed a request, so it must not inherit a's pacing.
	start := time.Now()
	if err := b.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("independent gate blocked for %v", elapsed)
	}
}
