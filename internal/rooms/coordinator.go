// Package rooms owns every room, connection and back-reference in the
// process. A single goroutine (Coordinator.Run) applies all mutations;
// the exported methods hand it a closure and wait for the result, so a
// check-then-act sequence such as capacity admission is one step.
package rooms

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mossy-p/burner-signaling/internal/clock"
	"github.com/mossy-p/burner-signaling/internal/identity"
	"github.com/mossy-p/burner-signaling/internal/logging"
	"github.com/mossy-p/burner-signaling/internal/metrics"
	"github.com/mossy-p/burner-signaling/internal/models"
)

const (
	DefaultEndedGrace     = 30 * time.Second
	DefaultMessageTTL     = 5 * time.Minute
	DefaultMessageHistory = 200
)

// Outbox receives events for one connection. Deliver must not block; it
// reports false when the event was dropped.
type Outbox interface {
	Deliver(ev models.Event) bool
}

// Config tunes the coordinator. Zero values take the defaults.
type Config struct {
	EndedGrace     time.Duration
	MessageTTL     time.Duration
	MessageHistory int
	PasscodeKey    [32]byte
}

func (c Config) withDefaults() Config {
	if c.EndedGrace <= 0 {
		c.EndedGrace = DefaultEndedGrace
	}
	if c.MessageTTL <= 0 {
		c.MessageTTL = DefaultMessageTTL
	}
	if c.MessageHistory <= 0 {
		c.MessageHistory = DefaultMessageHistory
	}
	return c
}

// conn is a ConnectionRef: one live real-time channel.
type conn struct {
	id          string
	identity    identity.Identity
	connectedAt time.Time
	out         Outbox
	rooms       map[Kind]string
}

// Coordinator is the room hub.
type Coordinator struct {
	cfg       Config
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *metrics.Metrics
	mirror    *Mirror
	passcodes passcodes

	ops     chan func()
	stopped chan struct{}

	// Owned by the Run goroutine.
	rooms map[string]*Room
	conns map[string]*conn
}

// New returns a Coordinator. It does nothing until Run is called.
func New(cfg Config, mirror *Mirror, clk clock.Clock, logger *slog.Logger, m *metrics.Metrics) *Coordinator {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	cfg = cfg.withDefaults()
	return &Coordinator{
		cfg:       cfg,
		clock:     clk,
		logger:    logger,
		metrics:   m,
		mirror:    mirror,
		passcodes: passcodes{key: cfg.PasscodeKey},
		ops:       make(chan func()),
		stopped:   make(chan struct{}),
		rooms:     make(map[string]*Room),
		conns:     make(map[string]*conn),
	}
}

// Run applies submitted operations until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info("room coordinator started")
	defer func() {
		close(c.stopped)
		c.logger.Info("room coordinator stopped", "rooms", len(c.rooms), "connections", len(c.conns))
	}()
	for {
		select {
		case op := <-c.ops:
			op()
		case <-ctx.Done():
			return nil
		}
	}
}

// Done is closed once Run has returned. Connections watch it to close
// their sockets on shutdown.
func (c *Coordinator) Done() <-chan struct{} { return c.stopped }

// exec runs fn on the coordinator goroutine and waits for it. Once fn
// has been handed over it always runs to completion, so callers may read
// what it wrote after exec returns nil.
func (c *Coordinator) exec(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	op := func() {
		defer close(done)
		fn()
	}
	select {
	case c.ops <- op:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		return ErrStopped
	}
	<-done
	return nil
}

// Connect registers a live connection and returns its id.
func (c *Coordinator) Connect(ctx context.Context, id identity.Identity, out Outbox) (string, error) {
	cn := &conn{
		id:       uuid.NewString(),
		identity: id,
		out:      out,
		rooms:    make(map[Kind]string),
	}
	err := c.exec(ctx, func() {
		cn.connectedAt = c.clock.Now()
		c.conns[cn.id] = cn
	})
	if err != nil {
		return "", err
	}
	c.logger.Debug("connection registered", "conn_id", cn.id, "display_id", id.DisplayID)
	return cn.id, nil
}

// Disconnect leaves every room the connection still occupies and forgets
// it. Calling it again is a no-op.
func (c *Coordinator) Disconnect(ctx context.Context, connID string) error {
	return c.exec(ctx, func() {
		cn, ok := c.conns[connID]
		if !ok {
			return
		}
		now := c.clock.Now()
		for _, roomID := range cn.rooms {
			c.leave(cn, roomID, now)
		}
		delete(c.conns, connID)
		c.logger.Debug("connection unregistered", "conn_id", connID)
	})
}

// Stats reports how many rooms and connections are live.
func (c *Coordinator) Stats(ctx context.Context) (rooms, conns int, err error) {
	err = c.exec(ctx, func() {
		rooms, conns = len(c.rooms), len(c.conns)
	})
	return rooms, conns, err
}

func (c *Coordinator) deliver(cn *conn, ev models.Event) {
	if cn.out == nil {
		return
	}
	if !cn.out.Deliver(ev) {
		c.metrics.Inc(metrics.DeliveriesDropped)
		c.logger.Warn("delivery dropped, outbox full", "conn_id", cn.id, "event", ev.Type)
	}
}

// broadcast delivers ev to every member of r except skip.
func (c *Coordinator) broadcast(r *Room, ev models.Event, skip string) {
	for _, id := range r.order {
		if id == skip {
			continue
		}
		c.deliver(r.members[id].conn, ev)
	}
}

func (c *Coordinator) connection(connID string) (*conn, error) {
	cn, ok := c.conns[connID]
	if !ok {
		return nil, ErrUnknownConn
	}
	return cn, nil
}
