package admission

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/mossy-p/burner-signaling/internal/apperr"
	"github.com/mossy-p/burner-signaling/internal/clock"
	"github.com/mossy-p/burner-signaling/internal/logging"
	"github.com/mossy-p/burner-signaling/internal/metrics"
)

// Capacity multiplier bounds, in tenths.
const (
	minMultiplierTenths     = 5
	maxMultiplierTenths     = 20
	defaultMultiplierTenths = 10
)

// Limiter evaluates attempts against per-class policies scaled by an
// advisory capacity multiplier.
type Limiter struct {
	policies map[Class]Policy
	store    Store
	clock    clock.Clock
	logger   *slog.Logger
	metrics  *metrics.Metrics

	multiplier atomic.Int64
}

// NewLimiter returns a Limiter. A nil store means an in-memory store.
func NewLimiter(policies map[Class]Policy, store Store, clk clock.Clock, logger *slog.Logger, m *metrics.Metrics) *Limiter {
	if policies == nil {
		policies = DefaultPolicies()
	}
	if store == nil {
		store = NewMemoryStore()
	}
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	l := &Limiter{
		policies: policies,
		store:    store,
		clock:    clk,
		logger:   logger,
		metrics:  m,
	}
	l.multiplier.Store(defaultMultiplierTenths)
	return l
}

// TryConsume spends one point of class for fingerprint. Store failures
// are logged and the attempt is allowed.
func (l *Limiter) TryConsume(ctx context.Context, class Class, fingerprint string) Decision {
	p, ok := l.Effective(class)
	if !ok {
		l.logger.Warn("admission: no policy for class", "class", class)
		return Decision{Allowed: true}
	}

	d, err := l.store.Take(ctx, string(class)+":"+fingerprint, p, l.clock.Now())
	if err != nil {
		l.logger.Error("admission: store failure, allowing", "class", class, "err", err)
		return Decision{Allowed: true}
	}
	if !d.Allowed {
		l.metrics.Inc(metrics.RateLimited)
		l.logger.Debug("admission: denied", "class", class, "retry_after", d.RetryAfter)
	}
	return d
}

// Check is TryConsume as an error: nil or a rate_limited *apperr.Error.
func (l *Limiter) Check(ctx context.Context, class Class, fingerprint string) error {
	d := l.TryConsume(ctx, class, fingerprint)
	if d.Allowed {
		return nil
	}
	return apperr.Limited(d.RetryAfter)
}

// Effective returns class's policy with the current multiplier applied.
func (l *Limiter) Effective(class Class) (Policy, bool) {
	p, ok := l.policies[class]
	if !ok {
		return Policy{}, false
	}
	tenths := l.multiplier.Load()
	scaled := int(math.Round(float64(p.Points) * float64(tenths) / 10))
	if scaled < 1 {
		scaled = 1
	}
	p.Points = scaled
	return p, true
}

// Multiplier is the current capacity scale factor.
func (l *Limiter) Multiplier() float64 {
	return float64(l.multiplier.Load()) / 10
}

// Adjust moves the multiplier one step according to load (0 = idle,
// 1 = at the memory limit) and returns the new value.
func (l *Limiter) Adjust(load float64) float64 {
	cur := l.multiplier.Load()
	next := cur
	switch {
	case load > highLoad:
		next--
	case load < lowLoad:
		next++
	}
	if next < minMultiplierTenths {
		next = minMultiplierTenths
	}
	if next > maxMultiplierTenths {
		next = maxMultiplierTenths
	}
	if next != cur {
		l.multiplier.Store(next)
		l.logger.Info("admission: capacity multiplier changed",
			"from", float64(cur)/10, "to", float64(next)/10, "load", load)
	}
	return float64(next) / 10
}
