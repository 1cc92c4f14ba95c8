package rooms

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mossy-p/burner-signaling/internal/apperr"
	"github.com/mossy-p/burner-signaling/internal/metrics"
	"github.com/mossy-p/burner-signaling/internal/models"
	"github.com/mossy-p/burner-signaling/internal/signaling"
)

// Deletion and end reasons, as sent in room_ended.
const (
	ReasonExpired    = "expired"
	ReasonEmpty      = "empty"
	ReasonEnded      = "ended"
	ReasonTerminated = "terminated"
)

// CreateParams describes a room to create. Zero values take the kind's
// defaults.
type CreateParams struct {
	Kind            Kind
	MaxParticipants int
	Passcode        string
	TTL             time.Duration
	Settings        *models.SettingsPatch
}

// Created is the result of Create. Passcode is the plaintext, returned
// only here.
type Created struct {
	Room      models.RoomSummary
	Passcode  string
	ExpiresIn int
}

// Joined is the result of Join. Replay holds negotiation messages the
// joiner missed, to be sent after the join reply.
type Joined struct {
	Room             models.RoomSummary
	ParticipantCount int
	Role             Role
	Replay           []models.Event
}

// Create allocates a room and registers the caller as its host and
// first participant.
func (c *Coordinator) Create(ctx context.Context, connID string, p CreateParams) (Created, error) {
	pol, ok := kindPolicies[p.Kind]
	if !ok {
		return Created{}, apperr.Invalid(fmt.Sprintf("unknown room kind %q", p.Kind))
	}

	capacity := p.MaxParticipants
	switch {
	case capacity == 0:
		capacity = pol.defaultCapacity
	case pol.fixedCapacity && capacity != pol.defaultCapacity:
		return Created{}, apperr.Invalid(fmt.Sprintf("%s rooms hold exactly %d participants", p.Kind, pol.defaultCapacity))
	case capacity < 1 || capacity > pol.maxCapacity:
		return Created{}, apperr.Invalid(fmt.Sprintf("maxParticipants must be between 1 and %d", pol.maxCapacity))
	}

	ttl := p.TTL
	switch {
	case ttl == 0:
		ttl = pol.defaultTTL
	case ttl < 0 || ttl > pol.maxTTL:
		return Created{}, apperr.Invalid(fmt.Sprintf("ttl must be positive and at most %s", pol.maxTTL))
	}

	if p.Settings != nil && p.Kind != KindMeeting {
		return Created{}, apperr.Invalid("settings apply only to meetings")
	}
	settings := models.DefaultMeetingSettings()
	if p.Settings != nil {
		settings = p.Settings.Apply(settings)
	}

	var plaintext string
	var digest *passcodeDigest
	if p.Kind == KindSignaling {
		if p.Passcode != "" {
			return Created{}, apperr.Invalid("signaling rooms do not take a passcode")
		}
	} else {
		plaintext = p.Passcode
		if plaintext == "" {
			code, err := generatePasscode()
			if err != nil {
				return Created{}, err
			}
			plaintext = code
		} else if n := utf8.RuneCountInString(plaintext); n < minPasscodeLength || n > maxPasscodeLength {
			return Created{}, apperr.Invalid(fmt.Sprintf("passcode must be %d to %d characters", minPasscodeLength, maxPasscodeLength))
		}
		d, err := c.passcodes.digest(plaintext)
		if err != nil {
			return Created{}, err
		}
		digest = d
	}

	var out Created
	var opErr error
	err := c.exec(ctx, func() {
		cn, err := c.connection(connID)
		if err != nil {
			opErr = err
			return
		}
		now := c.clock.Now()
		r := &Room{
			ID:              uuid.NewString(),
			Kind:            p.Kind,
			Creator:         cn.identity,
			CreatedAt:       now,
			ExpiresAt:       now.Add(ttl),
			MaxParticipants: capacity,
			Status:          StatusForming,
			Payload:         newPayload(p.Kind, settings),
			passcode:        digest,
			members:         make(map[string]*member),
		}
		c.rooms[r.ID] = r
		if err := c.admit(r, cn, RoleHost, now); err != nil {
			delete(c.rooms, r.ID)
			opErr = err
			return
		}
		c.metrics.Inc(metrics.RoomsCreated)
		c.publish(r, now)
		c.logger.Info("room created", "room_id", r.ID, "kind", r.Kind, "max_participants", capacity, "ttl", ttl)

		out = Created{Room: r.summary(now), Passcode: plaintext, ExpiresIn: secondsUntil(now, r.ExpiresAt)}
	})
	if err != nil {
		return Created{}, err
	}
	return out, opErr
}

// Join admits the connection into roomID. Checks run in a fixed order:
// existence, ended, expiry, passcode, existing membership, capacity.
func (c *Coordinator) Join(ctx context.Context, connID, roomID, passcode string) (Joined, error) {
	var out Joined
	var opErr error
	err := c.exec(ctx, func() {
		out, opErr = c.join(connID, roomID, passcode)
	})
	if err != nil {
		return Joined{}, err
	}
	return out, opErr
}

func (c *Coordinator) join(connID, roomID, passcode string) (Joined, error) {
	cn, err := c.connection(connID)
	if err != nil {
		return Joined{}, err
	}
	now := c.clock.Now()
	r, err := c.lookup(roomID, now, false)
	if err != nil {
		return Joined{}, err
	}
	if r.passcodeRequired() && !c.passcodes.matches(r.passcode, passcode) {
		c.metrics.Inc(metrics.JoinsDeniedPasscode)
		return Joined{}, ErrBadPasscode
	}
	if m, ok := r.members[cn.id]; ok {
		return Joined{Room: r.summary(now), ParticipantCount: len(r.members), Role: m.role}, nil
	}
	if len(r.members) >= r.MaxParticipants {
		c.metrics.Inc(metrics.JoinsDeniedFull)
		return Joined{}, ErrFull
	}

	role := RoleParticipant
	if r.isHost(cn.identity) {
		role = RoleHost
	}
	replay := c.replayFor(r)
	if err := c.admit(r, cn, role, now); err != nil {
		return Joined{}, err
	}

	c.broadcast(r, models.Event{Type: models.EventParticipantJoined, Data: models.ParticipantEvent{
		RoomID:           r.ID,
		ConnectionID:     cn.id,
		DisplayID:        cn.identity.DisplayID,
		Role:             string(role),
		ParticipantCount: len(r.members),
	}}, cn.id)
	c.publish(r, now)
	c.logger.Debug("room joined", "room_id", r.ID, "kind", r.Kind, "conn_id", cn.id, "participants", len(r.members))

	return Joined{Room: r.summary(now), ParticipantCount: len(r.members), Role: role, Replay: replay}, nil
}

// replayFor collects the buffered negotiation of everyone already in a
// signaling room.
func (c *Coordinator) replayFor(r *Room) []models.Event {
	sp, ok := r.Payload.(*SignalingPayload)
	if !ok {
		return nil
	}
	var out []models.Event
	for _, id := range r.order {
		buf := sp.Buffers[id]
		if buf == nil {
			continue
		}
		from := r.members[id].conn
		for _, env := range buf.Replay() {
			out = append(out, deliveryEvent(from, env))
		}
	}
	return out
}

// admit adds cn to r, leaving any other room of the same kind first.
// Capacity has already been checked; it is checked again after the add
// and a breach is reported as an internal error.
func (c *Coordinator) admit(r *Room, cn *conn, role Role, now time.Time) error {
	if prev, ok := cn.rooms[r.Kind]; ok && prev != r.ID {
		c.leave(cn, prev, now)
	}
	r.add(&member{conn: cn, role: role, joinedAt: now})
	if len(r.members) > r.MaxParticipants {
		r.remove(cn.id)
		c.logger.Error("capacity invariant violated", "room_id", r.ID, "participants", len(r.members), "max", r.MaxParticipants)
		return errInvariant
	}
	cn.rooms[r.Kind] = r.ID

	if r.Status == StatusForming {
		r.Status = StatusActive
		if mp, ok := r.Payload.(*MeetingPayload); ok {
			mp.StartedAt = now
		}
	}
	if sp, ok := r.Payload.(*SignalingPayload); ok {
		sp.Buffers[cn.id] = &signaling.Buffer{}
	}
	return nil
}

// Leave removes the connection from roomID. Leaving a room one is not
// in, or one that no longer exists, succeeds and changes nothing.
func (c *Coordinator) Leave(ctx context.Context, connID, roomID string) error {
	return c.exec(ctx, func() {
		cn, ok := c.conns[connID]
		if !ok {
			return
		}
		c.leave(cn, roomID, c.clock.Now())
	})
}

func (c *Coordinator) leave(cn *conn, roomID string, now time.Time) {
	for k, id := range cn.rooms {
		if id == roomID {
			delete(cn.rooms, k)
		}
	}
	r, ok := c.rooms[roomID]
	if !ok {
		return
	}
	m := r.remove(cn.id)
	if m == nil {
		return
	}
	if sp, ok := r.Payload.(*SignalingPayload); ok {
		delete(sp.Buffers, cn.id)
	}
	if r.expired(now) {
		c.deleteRoom(r, ReasonExpired)
		return
	}

	c.broadcast(r, models.Event{Type: models.EventParticipantLeft, Data: models.ParticipantEvent{
		RoomID:           r.ID,
		ConnectionID:     cn.id,
		DisplayID:        cn.identity.DisplayID,
		ParticipantCount: len(r.members),
	}}, "")
	c.logger.Debug("room left", "room_id", r.ID, "kind", r.Kind, "conn_id", cn.id, "participants", len(r.members))

	if len(r.members) > 0 || r.Status == StatusEnded {
		c.publish(r, now)
		return
	}
	switch p := r.Payload.(type) {
	case *MeetingPayload:
		if p.Settings.AutoDelete {
			c.endRoom(r, now)
		} else {
			c.publish(r, now)
		}
	default:
		c.deleteRoom(r, ReasonEmpty)
	}
}

// UpdateSettings applies patch to a meeting. Only the host may do so.
func (c *Coordinator) UpdateSettings(ctx context.Context, connID, roomID string, patch models.SettingsPatch) (models.MeetingSettings, error) {
	var out models.MeetingSettings
	var opErr error
	err := c.exec(ctx, func() {
		cn, err := c.connection(connID)
		if err != nil {
			opErr = err
			return
		}
		now := c.clock.Now()
		r, err := c.lookup(roomID, now, false)
		if err != nil {
			opErr = err
			return
		}
		mp, ok := r.Payload.(*MeetingPayload)
		if !ok {
			opErr = apperr.Invalid("settings apply only to meetings")
			return
		}
		if !r.isHost(cn.identity) {
			opErr = ErrForbidden
			return
		}
		mp.Settings = patch.Apply(mp.Settings)
		out = mp.Settings

		c.broadcast(r, models.Event{Type: models.EventSettingsUpdated, Data: models.SettingsUpdated{
			RoomID:   r.ID,
			Settings: mp.Settings,
		}}, cn.id)
		c.logger.Info("meeting settings updated", "room_id", r.ID, "conn_id", cn.id)

		if len(r.members) == 0 && mp.Settings.AutoDelete {
			c.endRoom(r, now)
			return
		}
		c.publish(r, now)
	})
	if err != nil {
		return models.MeetingSettings{}, err
	}
	return out, opErr
}

// Terminate evicts everyone from the room and ends it. Host only.
func (c *Coordinator) Terminate(ctx context.Context, connID, roomID string) error {
	var opErr error
	err := c.exec(ctx, func() {
		cn, err := c.connection(connID)
		if err != nil {
			opErr = err
			return
		}
		now := c.clock.Now()
		r, err := c.lookup(roomID, now, false)
		if err != nil {
			opErr = err
			return
		}
		if !r.isHost(cn.identity) {
			opErr = ErrForbidden
			return
		}
		c.evict(r, ReasonTerminated, cn.id)
		c.metrics.Inc(metrics.RoomsTerminated)
		c.endRoom(r, now)
		c.logger.Info("room terminated", "room_id", r.ID, "kind", r.Kind, "conn_id", cn.id)
	})
	if err != nil {
		return err
	}
	return opErr
}

// Info returns the sanitized summary of roomID. Ended rooms stay
// visible until their grace period runs out.
func (c *Coordinator) Info(ctx context.Context, roomID string) (models.RoomSummary, error) {
	var out models.RoomSummary
	var opErr error
	err := c.exec(ctx, func() {
		now := c.clock.Now()
		r, err := c.lookup(roomID, now, true)
		if err != nil {
			opErr = err
			return
		}
		out = r.summary(now)
	})
	if err != nil {
		return models.RoomSummary{}, err
	}
	return out, opErr
}

// Sweep deletes expired rooms, ended rooms past their grace period and
// expired messages. It reports how many entities were removed.
func (c *Coordinator) Sweep(now time.Time) int {
	var n int
	err := c.exec(context.Background(), func() {
		for _, r := range c.rooms {
			switch {
			case r.Status == StatusEnded && !now.Before(r.deleteAt):
				c.deleteRoom(r, ReasonEnded)
				n++
			case r.expired(now):
				c.deleteRoom(r, ReasonExpired)
				n++
			default:
				if tp, ok := r.Payload.(*TextPayload); ok {
					n += c.pruneMessages(tp, now)
				}
			}
		}
	})
	if err != nil {
		return 0
	}
	return n
}

// lookup is the lazy expiry check every room access goes through.
func (c *Coordinator) lookup(roomID string, now time.Time, allowEnded bool) (*Room, error) {
	r, ok := c.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	if r.Status == StatusEnded {
		if !now.Before(r.deleteAt) || r.expired(now) {
			c.deleteRoom(r, ReasonEnded)
			return nil, ErrNotFound
		}
		if !allowEnded {
			return nil, ErrNotFound
		}
		return r, nil
	}
	if r.expired(now) {
		c.deleteRoom(r, ReasonExpired)
		return nil, ErrExpired
	}
	return r, nil
}

// evict removes every member, telling each one why, except skip who
// already knows.
func (c *Coordinator) evict(r *Room, reason, skip string) {
	ev := models.Event{Type: models.EventRoomEnded, Data: models.RoomEnded{RoomID: r.ID, Reason: reason}}
	for _, id := range r.participants() {
		m := r.remove(id)
		if m.conn.rooms[r.Kind] == r.ID {
			delete(m.conn.rooms, r.Kind)
		}
		if id != skip {
			c.deliver(m.conn, ev)
		}
	}
	if sp, ok := r.Payload.(*SignalingPayload); ok {
		clear(sp.Buffers)
	}
}

// endRoom marks r ended and schedules its deletion after the grace
// period.
func (c *Coordinator) endRoom(r *Room, now time.Time) {
	r.Status = StatusEnded
	r.deleteAt = now.Add(c.cfg.EndedGrace)
	if mp, ok := r.Payload.(*MeetingPayload); ok {
		mp.EndedAt = now
	}
	c.publish(r, now)
	c.logger.Debug("room ended", "room_id", r.ID, "kind", r.Kind, "delete_at", r.deleteAt)
}

// deleteRoom is the only way a room leaves the registry. Lazy checks and
// the sweep both end here.
func (c *Coordinator) deleteRoom(r *Room, reason string) {
	c.evict(r, reason, "")
	delete(c.rooms, r.ID)
	switch reason {
	case ReasonExpired:
		c.metrics.Inc(metrics.RoomsDeletedExpired)
	case ReasonEmpty:
		c.metrics.Inc(metrics.RoomsDeletedEmpty)
	}
	c.mirror.remove(r.ID)
	c.logger.Info("room deleted", "room_id", r.ID, "kind", r.Kind, "reason", reason)
}

func (c *Coordinator) publish(r *Room, now time.Time) {
	until := r.ExpiresAt
	if r.Status == StatusEnded && r.deleteAt.Before(until) {
		until = r.deleteAt
	}
	c.mirror.publish(r.summary(now), until.Sub(now))
}
