package utils

import (
	"context"
	"testing"
	"time"
)

func TestJitterStaysWithinBounds(t *testing.T) {
	t.Parallel()

	for i := 0; i < 200; i++ {
		d := Jitter(2*time.Minute, 5*time.Minute)
		if d < 2*time.Minute || d > 5*time.Minute {
			t.Fatalf("jitter out of range: %s", d)
		}
	}

	if got := Jitter(3*time.Second, time.Second); got < time.Second || got > 3*time.Second {
		t.Fatalf("swapped bounds not tolerated: %s", got)
	}

	if got := Jitter(0, 0); got != 0 {
		t.Fatalf("expected zero jitter, got %s", got)
	}
}

func TestWaitForHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := WaitFor(ctx, time.Hour); err == nil {
		t.Fatal("expected context error")
	}

	if err := WaitFor(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
