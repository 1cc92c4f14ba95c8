package rooms

import (
	"context"

	"github.com/mossy-p/burner-signaling/internal/apperr"
	"github.com/mossy-p/burner-signaling/internal/metrics"
	"github.com/mossy-p/burner-signaling/internal/models"
	"github.com/mossy-p/burner-signaling/internal/signaling"
)

// Relay forwards env from the connection to a peer in the connection's
// room of the given kind and returns the peer's connection id. In
// signaling rooms the envelope is buffered first, so a peer that joins
// later still receives the offer even if this call reports no target.
func (c *Coordinator) Relay(ctx context.Context, connID string, kind Kind, env signaling.Envelope) (string, error) {
	if kind != KindSignaling && kind != KindMeeting {
		return "", apperr.Invalid("signals are relayed only in signaling rooms and meetings")
	}
	if err := env.Validate(); err != nil {
		return "", err
	}

	var target string
	var opErr error
	err := c.exec(ctx, func() {
		cn, err := c.connection(connID)
		if err != nil {
			opErr = err
			return
		}
		roomID, ok := cn.rooms[kind]
		if !ok {
			opErr = signaling.ErrNoRoom
			return
		}
		r, err := c.lookup(roomID, c.clock.Now(), false)
		if err != nil {
			opErr = signaling.ErrNoRoom
			return
		}

		switch p := r.Payload.(type) {
		case *MeetingPayload:
			if env.Media == signaling.MediaScreen && !p.Settings.AllowScreenShare {
				opErr = ErrScreenOff
				return
			}
		case *SignalingPayload:
			if buf := p.Buffers[cn.id]; buf != nil {
				buf.Record(env)
			}
		}

		target, opErr = signaling.ResolveTarget(r.participants(), cn.id, env.Target)
		if opErr != nil {
			return
		}
		c.deliver(r.members[target].conn, deliveryEvent(cn, env))
		c.metrics.Inc(metrics.SignalsRelayed)
	})
	if err != nil {
		return "", err
	}
	return target, opErr
}

func deliveryEvent(from *conn, env signaling.Envelope) models.Event {
	return models.Event{
		Type: models.EventType(env.Type),
		Data: signaling.Delivery{
			Type:           env.Type,
			Payload:        env.Payload,
			FromConnection: from.id,
			FromIdentity:   from.identity.DisplayID,
			Media:          env.Media,
		},
	}
}
