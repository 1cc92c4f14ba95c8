// Package admission gates operations by a per-class consumption budget
// keyed by a request fingerprint. A denial never touches room or identity
// state; it is evaluated before the gated operation runs.
package admission

import "time"

// Class is an operation class with its own budget.
type Class string

const (
	ClassIdentity   Class = "identity"
	ClassConnect    Class = "connect"
	ClassRoomCreate Class = "room_create"
	ClassRoomJoin   Class = "room_join"
	ClassMessage    Class = "message"
	ClassSignal     Class = "signal"
	ClassInfo       Class = "info"
)

// Policy is a fixed-window budget: Points operations per Window, after
// which the key is blocked for Block.
type Policy struct {
	Points int           `yaml:"points"`
	Window time.Duration `yaml:"window"`
	Block  time.Duration `yaml:"block"`
}

// DefaultPolicies returns the built-in budget for every class.
func DefaultPolicies() map[Class]Policy {
	return map[Class]Policy{
		ClassIdentity:   {Points: 5, Window: 15 * time.Minute, Block: 15 * time.Minute},
		ClassConnect:    {Points: 20, Window: time.Minute, Block: 5 * time.Minute},
		ClassRoomCreate: {Points: 10, Window: time.Minute, Block: 5 * time.Minute},
		ClassRoomJoin:   {Points: 20, Window: time.Minute, Block: time.Minute},
		ClassMessage:    {Points: 30, Window: 10 * time.Second, Block: 30 * time.Second},
		ClassSignal:     {Points: 300, Window: 10 * time.Second, Block: 10 * time.Second},
		ClassInfo:       {Points: 60, Window: time.Minute, Block: time.Minute},
	}
}

// MaxBlockFactor caps how far repeated denials can push a block out.
const MaxBlockFactor = 4

// Bucket is the counter state for one (class, fingerprint) key.
type Bucket struct {
	WindowStart  time.Time
	Count        int
	BlockedUntil time.Time
}

// Decision is the outcome of one consumption attempt.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Remaining  int
}

// take applies one attempt to b. Every Store implementation must follow
// these rules:
//   - while blocked, the attempt is denied and the block is extended by one
//     window from its current end, capped at now+4*block;
//   - once a block has lapsed the window restarts;
//   - the count resets when now-windowStart exceeds the window;
//   - exceeding Points denies and starts a block (or, with no block
//     configured, denies until the window ends).
func take(b *Bucket, p Policy, now time.Time) Decision {
	if !b.BlockedUntil.IsZero() {
		if now.Before(b.BlockedUntil) {
			b.BlockedUntil = extendBlock(b.BlockedUntil, p, now)
			return Decision{RetryAfter: b.BlockedUntil.Sub(now)}
		}
		b.BlockedUntil = time.Time{}
		b.WindowStart = now
		b.Count = 0
	}

	if b.WindowStart.IsZero() || now.Sub(b.WindowStart) > p.Window {
		b.WindowStart = now
		b.Count = 0
	}

	if b.Count >= p.Points {
		if p.Block <= 0 {
			return Decision{RetryAfter: b.WindowStart.Add(p.Window).Sub(now)}
		}
		b.BlockedUntil = now.Add(p.Block)
		return Decision{RetryAfter: p.Block}
	}

	b.Count++
	return Decision{Allowed: true, Remaining: p.Points - b.Count}
}

func extendBlock(blockedUntil time.Time, p Policy, now time.Time) time.Time {
	next := blockedUntil.Add(p.Window)
	limit := now.Add(MaxBlockFactor * p.Block)
	if next.After(limit) {
		next = limit
	}
	if next.Before(blockedUntil) {
		return blockedUntil
	}
	return next
}

// idleAt is when b no longer carries any state worth keeping.
func idleAt(b *Bucket, p Policy) time.Time {
	end := b.WindowStart.Add(p.Window)
	if b.BlockedUntil.After(end) {
		return b.BlockedUntil
	}
	return end
}
