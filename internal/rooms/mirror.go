package rooms

import (
	"context"
	"log/slog"
	"time"

	"github.com/mossy-p/burner-signaling/internal/logging"
	"github.com/mossy-p/burner-signaling/internal/metrics"
	"github.com/mossy-p/burner-signaling/internal/models"
)

// MirrorSink stores room summaries outside the process, for example so
// operators can list live rooms. Entries must expire on their own after
// ttl.
type MirrorSink interface {
	Put(ctx context.Context, s models.RoomSummary, ttl time.Duration) error
	Delete(ctx context.Context, roomID string) error
}

const (
	defaultMirrorBuffer = 256
	mirrorWriteTimeout  = 2 * time.Second
)

type mirrorOp struct {
	summary models.RoomSummary
	ttl     time.Duration
	remove  string
}

// Mirror copies room summaries to a sink from its own goroutine so the
// coordinator never waits on I/O. When the queue is full updates are
// dropped; the sink's TTLs bound how stale it can get.
type Mirror struct {
	sink    MirrorSink
	ops     chan mirrorOp
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewMirror(sink MirrorSink, buffer int, logger *slog.Logger, m *metrics.Metrics) *Mirror {
	if buffer <= 0 {
		buffer = defaultMirrorBuffer
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Mirror{sink: sink, ops: make(chan mirrorOp, buffer), logger: logger, metrics: m}
}

// Run writes queued updates until ctx is cancelled.
func (m *Mirror) Run(ctx context.Context) error {
	for {
		select {
		case op := <-m.ops:
			m.apply(ctx, op)
		case <-ctx.Done():
			return nil
		}
	}
}

func (m *Mirror) apply(ctx context.Context, op mirrorOp) {
	ctx, cancel := context.WithTimeout(ctx, mirrorWriteTimeout)
	defer cancel()

	var err error
	if op.remove != "" {
		err = m.sink.Delete(ctx, op.remove)
	} else {
		err = m.sink.Put(ctx, op.summary, op.ttl)
	}
	if err != nil {
		roomID := op.remove
		if roomID == "" {
			roomID = op.summary.RoomID
		}
		m.logger.Warn("room mirror write failed", "room_id", roomID, "err", err)
	}
}

func (m *Mirror) publish(s models.RoomSummary, ttl time.Duration) {
	if ttl <= 0 {
		m.remove(s.RoomID)
		return
	}
	m.enqueue(mirrorOp{summary: s, ttl: ttl})
}

func (m *Mirror) remove(roomID string) {
	m.enqueue(mirrorOp{remove: roomID})
}

func (m *Mirror) enqueue(op mirrorOp) {
	if m == nil {
		return
	}
	select {
	case m.ops <- op:
	default:
		m.metrics.Inc(metrics.MirrorDropped)
	}
}
