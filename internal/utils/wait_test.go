package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitFor(t *testing.T) {
	start := time.Now()
	if err := WaitFor(context.Background(), 5*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Fatalf("returned after %s, expected at least 5ms", elapsed)
	}

	if err := WaitFor(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error for zero duration: %v", err)
	}
}

func TestWaitForCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := WaitFor(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := WaitFor(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled for zero duration, got %v", err)
	}
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		base    time.Duration
		limit   time.Duration
		want    time.Duration
	}{
		{attempt: 0, base: time.Second, limit: time.Minute, want: 0},
		{attempt: 1, base: time.Second, limit: time.Minute, want: time.Second},
		{attempt: 3, base: time.Second, limit: time.Minute, want: 4 * time.Second},
		{attempt: 10, base: time.Second, limit: 30 * time.Second, want: 30 * time.Second},
		{attempt: 4, base: time.Second, limit: 0, want: 8 * time.Second},
		{attempt: 2, base: 0, limit: time.Second, want: 0},
	}

	for _, tt := range tests {
		if got := Backoff(tt.attempt, tt.base, tt.limit); got != tt.want {
			t.Fatalf("Backoff(%d, %s, %s) = %s, want %s", tt.attempt, tt.base, tt.limit, got, tt.want)
		}
	}
}
