package admission

import (
	"context"
	"testing"
	"time"

	"github.com/mossy-p/burner-signaling/internal/clock"
)

func TestAdjust_StepsAndClamps(t *testing.T) {
	l, _, _ := newTestLimiter(nil)

	if got := l.Adjust(0.95); got != 0.9 {
		t.Fatalf("high load: multiplier = %v, want 0.9", got)
	}
	if got := l.Adjust(0.7); got != 0.9 {
		t.Fatalf("steady load: multiplier = %v, want unchanged 0.9", got)
	}
	for i := 0; i < 20; i++ {
		l.Adjust(1.0)
	}
	if got := l.Multiplier(); got != 0.5 {
		t.Fatalf("after sustained high load: %v, want floor 0.5", got)
	}
	for i := 0; i < 30; i++ {
		l.Adjust(0.1)
	}
	if got := l.Multiplier(); got != 2.0 {
		t.Fatalf("after sustained low load: %v, want ceiling 2.0", got)
	}
}

func TestEffective_ScalesPoints(t *testing.T) {
	l, _, _ := newTestLimiter(map[Class]Policy{
		ClassIdentity: {Points: 5, Window: time.Minute},
		ClassSignal:   {Points: 1, Window: time.Minute},
	})
	for i := 0; i < 10; i++ {
		l.Adjust(0.0)
	}
	p, _ := l.Effective(ClassIdentity)
	if p.Points != 10 {
		t.Fatalf("scaled points = %d, want 10", p.Points)
	}

	for i := 0; i < 20; i++ {
		l.Adjust(1.0)
	}
	p, _ = l.Effective(ClassSignal)
	if p.Points != 1 {
		t.Fatalf("scaled points = %d, want minimum of 1", p.Points)
	}
}

func TestAdjuster_RunSamplesOnTick(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	l := NewLimiter(nil, nil, clk, nil, nil)
	samples := make(chan struct{}, 10)
	a := NewAdjuster(l, LoadFunc(func() float64 {
		samples <- struct{}{}
		return 0.0
	}), time.Second, clk)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	// Advance until the ticker registered by Run has fired once.
	deadline := time.After(2 * time.Second)
	for {
		clk.Advance(time.Second)
		select {
		case <-samples:
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("Run: %v", err)
			}
			return
		case <-deadline:
			t.Fatal("adjuster never sampled")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestHeapSampler_ReturnsFraction(t *testing.T) {
	if load := (HeapSampler{Budget: 1 << 40}).Load(); load <= 0 || load >= 1 {
		t.Fatalf("Load = %v, want a fraction in (0, 1)", load)
	}
}
