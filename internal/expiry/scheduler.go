// Package expiry drives the periodic sweep that deletes state past its
// expiry instant. Owners of expiring state register a Sweeper; the lazy
// on-access checks live with the owners and share their delete routine.
package expiry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mossy-p/burner-signaling/internal/clock"
	"github.com/mossy-p/burner-signaling/internal/logging"
)

// DefaultInterval is the sweep period.
const DefaultInterval = 5 * time.Minute

// Sweeper deletes everything it owns that is expired at now and reports
// how many entities it removed.
type Sweeper interface {
	Sweep(now time.Time) int
}

// SweeperFunc adapts a function to Sweeper.
type SweeperFunc func(now time.Time) int

func (f SweeperFunc) Sweep(now time.Time) int { return f(now) }

type registration struct {
	name    string
	sweeper Sweeper
}

// Scheduler runs registered sweepers on one ticker.
type Scheduler struct {
	clock    clock.Clock
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	sweepers []registration
}

func New(clk clock.Clock, interval time.Duration, logger *slog.Logger) *Scheduler {
	if clk == nil {
		clk = clock.Real()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Scheduler{clock: clk, interval: interval, logger: logger}
}

// Register adds a sweeper. Sweepers run in registration order.
func (s *Scheduler) Register(name string, sw Sweeper) {
	s.mu.Lock()
	s.sweepers = append(s.sweepers, registration{name: name, sweeper: sw})
	s.mu.Unlock()
}

// SweepNow runs every sweeper once and returns removals per sweeper.
func (s *Scheduler) SweepNow() map[string]int {
	s.mu.Lock()
	regs := append([]registration(nil), s.sweepers...)
	s.mu.Unlock()

	now := s.clock.Now()
	removed := make(map[string]int, len(regs))
	for _, r := range regs {
		n := r.sweeper.Sweep(now)
		removed[r.name] = n
		if n > 0 {
			s.logger.Debug("expiry sweep", "sweeper", r.name, "removed", n)
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("expiry scheduler started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.SweepNow()
		}
	}
}
