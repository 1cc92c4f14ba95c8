package admission

import (
	"context"
	"math"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/mossy-p/burner-signaling/internal/clock"
)

const (
	highLoad = 0.85
	lowLoad  = 0.5

	DefaultAdjustPeriod = 30 * time.Second
	// defaultHeapBudget is used when no GOMEMLIMIT is set.
	defaultHeapBudget = 512 << 20
)

// LoadSampler reports load as a fraction of capacity.
type LoadSampler interface {
	Load() float64
}

// LoadFunc adapts a function to LoadSampler.
type LoadFunc func() float64

func (f LoadFunc) Load() float64 { return f() }

// HeapSampler measures heap usage against the runtime memory limit, or
// Budget bytes when none is configured.
type HeapSampler struct {
	Budget uint64
}

func (h HeapSampler) Load() float64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	limit := uint64(defaultHeapBudget)
	if h.Budget > 0 {
		limit = h.Budget
	}
	if l := debug.SetMemoryLimit(-1); l > 0 && l != math.MaxInt64 {
		limit = uint64(l)
	}
	return float64(ms.HeapAlloc) / float64(limit)
}

// Adjuster periodically feeds a load sample into a Limiter.
type Adjuster struct {
	limiter *Limiter
	sampler LoadSampler
	period  time.Duration
	clock   clock.Clock
}

func NewAdjuster(l *Limiter, sampler LoadSampler, period time.Duration, clk clock.Clock) *Adjuster {
	if period <= 0 {
		period = DefaultAdjustPeriod
	}
	if clk == nil {
		clk = clock.Real()
	}
	if sampler == nil {
		sampler = HeapSampler{}
	}
	return &Adjuster{limiter: l, sampler: sampler, period: period, clock: clk}
}

// Step takes one sample and applies it.
func (a *Adjuster) Step() float64 {
	return a.limiter.Adjust(a.sampler.Load())
}

// Run samples every period until ctx is done.
func (a *Adjuster) Run(ctx context.Context) error {
	ticker := a.clock.NewTicker(a.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.Step()
		}
	}
}
