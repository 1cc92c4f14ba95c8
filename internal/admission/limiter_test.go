package admission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mossy-p/burner-signaling/internal/apperr"
	"github.com/mossy-p/burner-signaling/internal/clock"
	"github.com/mossy-p/burner-signaling/internal/metrics"
)

func newTestLimiter(policies map[Class]Policy) (*Limiter, *clock.Fake, *metrics.Metrics) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	m := metrics.New()
	return NewLimiter(policies, nil, clk, nil, m), clk, m
}

func TestLimiter_SixthIdentityRequestIsRateLimited(t *testing.T) {
	l, _, m := newTestLimiter(nil)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if d := l.TryConsume(ctx, ClassIdentity, "fp"); !d.Allowed {
			t.Fatalf("request %d denied, want allowed", i)
		}
	}

	err := l.Check(ctx, ClassIdentity, "fp")
	if apperr.ClassOf(err) != apperr.RateLimited {
		t.Fatalf("6th request err = %v, want rate_limited", err)
	}
	var e *apperr.Error
	if !errors.As(err, &e) || e.RetryAfter <= 0 {
		t.Fatalf("retryAfter = %v, want positive", e.RetryAfter)
	}
	if m.Get(metrics.RateLimited) != 1 {
		t.Fatalf("rate_limited metric = %d, want 1", m.Get(metrics.RateLimited))
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l, _, _ := newTestLimiter(map[Class]Policy{
		ClassMessage: {Points: 1, Window: time.Minute, Block: time.Minute},
		ClassSignal:  {Points: 1, Window: time.Minute, Block: time.Minute},
	})
	ctx := context.Background()

	if !l.TryConsume(ctx, ClassMessage, "a").Allowed {
		t.Fatal("first message from a denied")
	}
	if !l.TryConsume(ctx, ClassMessage, "b").Allowed {
		t.Fatal("fingerprint b should have its own bucket")
	}
	if !l.TryConsume(ctx, ClassSignal, "a").Allowed {
		t.Fatal("signal class should have its own bucket")
	}
	if l.TryConsume(ctx, ClassMessage, "a").Allowed {
		t.Fatal("second message from a allowed")
	}
}

func TestLimiter_WindowResetAndBlock(t *testing.T) {
	l, clk, _ := newTestLimiter(map[Class]Policy{
		ClassRoomJoin: {Points: 2, Window: 10 * time.Second, Block: 30 * time.Second},
	})
	ctx := context.Background()

	l.TryConsume(ctx, ClassRoomJoin, "fp")
	l.TryConsume(ctx, ClassRoomJoin, "fp")

	// Past the window: the count resets.
	clk.Advance(11 * time.Second)
	if !l.TryConsume(ctx, ClassRoomJoin, "fp").Allowed {
		t.Fatal("count did not reset after the window")
	}
	l.TryConsume(ctx, ClassRoomJoin, "fp")

	d := l.TryConsume(ctx, ClassRoomJoin, "fp")
	if d.Allowed || d.RetryAfter != 30*time.Second {
		t.Fatalf("over budget: %+v, want denied with 30s block", d)
	}

	// Denial while blocked extends the block by one window.
	clk.Advance(5 * time.Second)
	d = l.TryConsume(ctx, ClassRoomJoin, "fp")
	if d.Allowed || d.RetryAfter != 35*time.Second {
		t.Fatalf("while blocked: %+v, want 35s remaining", d)
	}

	clk.Advance(35 * time.Second)
	if !l.TryConsume(ctx, ClassRoomJoin, "fp").Allowed {
		t.Fatal("still denied after the block lapsed")
	}
}

func TestLimiter_BlockExtensionIsCapped(t *testing.T) {
	l, _, _ := newTestLimiter(map[Class]Policy{
		ClassInfo: {Points: 1, Window: time.Minute, Block: time.Minute},
	})
	ctx := context.Background()

	l.TryConsume(ctx, ClassInfo, "fp")
	var d Decision
	for i := 0; i < 20; i++ {
		d = l.TryConsume(ctx, ClassInfo, "fp")
	}
	if d.RetryAfter != 4*time.Minute {
		t.Fatalf("RetryAfter = %v, want cap of 4m", d.RetryAfter)
	}
}

func TestLimiter_NoBlockDeniesUntilWindowEnds(t *testing.T) {
	l, clk, _ := newTestLimiter(map[Class]Policy{
		ClassSignal: {Points: 1, Window: 10 * time.Second},
	})
	ctx := context.Background()

	l.TryConsume(ctx, ClassSignal, "fp")
	clk.Advance(4 * time.Second)
	d := l.TryConsume(ctx, ClassSignal, "fp")
	if d.Allowed || d.RetryAfter != 6*time.Second {
		t.Fatalf("%+v, want denied for the remaining 6s", d)
	}
}

func TestLimiter_ConcurrentConsumersNeverExceedBudget(t *testing.T) {
	l, _, _ := newTestLimiter(map[Class]Policy{
		ClassRoomCreate: {Points: 10, Window: time.Minute, Block: time.Minute},
	})
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.TryConsume(ctx, ClassRoomCreate, "fp").Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if allowed != 10 {
		t.Fatalf("allowed = %d, want 10", allowed)
	}
}

func TestLimiter_UnknownClassIsAllowed(t *testing.T) {
	l, _, _ := newTestLimiter(map[Class]Policy{})
	if !l.TryConsume(context.Background(), Class("nope"), "fp").Allowed {
		t.Fatal("unknown class should not be gated")
	}
}

type failingStore struct{}

func (failingStore) Take(context.Context, string, Policy, time.Time) (Decision, error) {
	return Decision{}, errors.New("store down")
}

func TestLimiter_StoreFailureFailsOpen(t *testing.T) {
	l := NewLimiter(nil, failingStore{}, clock.NewFake(time.Unix(0, 0)), nil, nil)
	if !l.TryConsume(context.Background(), ClassIdentity, "fp").Allowed {
		t.Fatal("store failure should allow the request")
	}
}

func TestMemoryStore_SweepDropsIdleBuckets(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p := Policy{Points: 1, Window: time.Minute, Block: 5 * time.Minute}
	ctx := context.Background()

	s.Take(ctx, "a", p, now)
	s.Take(ctx, "b", p, now)
	s.Take(ctx, "b", p, now) // blocked until now+5m

	if removed := s.Sweep(now.Add(2 * time.Minute)); removed != 1 {
		t.Fatalf("Sweep at +2m removed %d, want 1", removed)
	}
	if removed := s.Sweep(now.Add(5 * time.Minute)); removed != 1 {
		t.Fatalf("Sweep at +5m removed %d, want 1", removed)
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d, want 0", s.Len())
	}
}
