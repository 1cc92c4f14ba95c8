package expiry

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mossy-p/burner-signaling/internal/clock"
)

func TestSweepNow_CallsEverySweeperWithClockTime(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clk := clock.NewFake(start)
	s := New(clk, time.Minute, nil)

	var seen []time.Time
	s.Register("rooms", SweeperFunc(func(now time.Time) int {
		seen = append(seen, now)
		return 3
	}))
	s.Register("tokens", SweeperFunc(func(now time.Time) int {
		seen = append(seen, now)
		return 0
	}))

	removed := s.SweepNow()
	if removed["rooms"] != 3 || removed["tokens"] != 0 {
		t.Fatalf("removed = %v", removed)
	}
	if len(seen) != 2 || !seen[0].Equal(start) || !seen[1].Equal(start) {
		t.Fatalf("sweepers saw %v, want two calls at %v", seen, start)
	}
}

func TestRun_SweepsOnInterval(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	s := New(clk, 5*time.Minute, nil)

	var calls atomic.Int32
	swept := make(chan struct{}, 4)
	s.Register("counter", SweeperFunc(func(time.Time) int {
		calls.Add(1)
		swept <- struct{}{}
		return 0
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for calls.Load() == 0 {
		clk.Advance(5 * time.Minute)
		select {
		case <-swept:
		case <-deadline:
			t.Fatal("scheduler never swept")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}
