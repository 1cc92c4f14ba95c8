package clock

import (
	"testing"
	"time"
)

func TestFake_AdvanceMovesNow(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f := NewFake(start)

	f.Advance(90 * time.Second)
	if got := f.Now(); !got.Equal(start.Add(90 * time.Second)) {
		t.Fatalf("Now() = %v, want %v", got, start.Add(90*time.Second))
	}
}

func TestFake_TickerFiresOnDeadline(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	ticker := f.NewTicker(time.Minute)
	defer ticker.Stop()

	f.Advance(30 * time.Second)
	select {
	case <-ticker.C:
		t.Fatal("ticker fired before its deadline")
	default:
	}

	f.Advance(30 * time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("ticker did not fire at its deadline")
	}
}

func TestFake_StoppedTickerDoesNotFire(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	ticker := f.NewTicker(time.Second)
	ticker.Stop()

	f.Advance(5 * time.Second)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker fired")
	default:
	}
}
