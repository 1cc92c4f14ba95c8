package rooms

import (
	"time"

	"github.com/mossy-p/burner-signaling/internal/identity"
	"github.com/mossy-p/burner-signaling/internal/models"
	"github.com/mossy-p/burner-signaling/internal/signaling"
)

// Kind discriminates the three room shapes.
type Kind string

const (
	KindText      Kind = "text"
	KindSignaling Kind = "signaling"
	KindMeeting   Kind = "meeting"
)

// ParseKind validates a kind name from the wire.
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(s); k {
	case KindText, KindSignaling, KindMeeting:
		return k, true
	}
	return "", false
}

// Status is the lifecycle position of a room.
type Status string

const (
	StatusForming Status = "forming"
	StatusActive  Status = "active"
	StatusEnded   Status = "ended"
)

// Role of a participant within a room.
type Role string

const (
	RoleHost        Role = "host"
	RoleParticipant Role = "participant"
)

// kindPolicy holds the per-kind lifetime and capacity rules.
type kindPolicy struct {
	defaultTTL      time.Duration
	maxTTL          time.Duration
	defaultCapacity int
	maxCapacity     int
	fixedCapacity   bool
}

var kindPolicies = map[Kind]kindPolicy{
	KindText:      {defaultTTL: 24 * time.Hour, maxTTL: 24 * time.Hour, defaultCapacity: 10, maxCapacity: 50},
	KindSignaling: {defaultTTL: time.Hour, maxTTL: 6 * time.Hour, defaultCapacity: 2, maxCapacity: 2, fixedCapacity: true},
	KindMeeting:   {defaultTTL: 4 * time.Hour, maxTTL: 24 * time.Hour, defaultCapacity: 10, maxCapacity: 50},
}

// Payload is the kind-specific part of a room. The set of
// implementations is closed.
type Payload interface {
	kind() Kind
}

// TextPayload holds a text room's messages, oldest first.
type TextPayload struct {
	Messages []Message
}

// SignalingPayload holds each member's most recent negotiation state.
type SignalingPayload struct {
	Buffers map[string]*signaling.Buffer
}

// MeetingPayload holds meeting settings and timing.
type MeetingPayload struct {
	Settings  models.MeetingSettings
	StartedAt time.Time
	EndedAt   time.Time
}

func (*TextPayload) kind() Kind { return KindText }
func (*SignalingPayload) kind() Kind { return KindSignaling }
func (*MeetingPayload) kind() Kind { return KindMeeting }

func newPayload(k Kind, settings models.MeetingSettings) Payload {
	switch k {
	case KindText:
		return &TextPayload{}
	case KindSignaling:
		return &SignalingPayload{Buffers: make(map[string]*signaling.Buffer)}
	default:
		return &MeetingPayload{Settings: settings}
	}
}

// Message is one stored text-room message.
type Message struct {
	ID        string
	Sender    identity.Identity
	Text      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (m Message) expired(now time.Time) bool { return !now.Before(m.ExpiresAt) }

type member struct {
	conn     *conn
	role     Role
	joinedAt time.Time
}

// Room is owned by the coordinator goroutine and never shared.
type Room struct {
	ID              string
	Kind            Kind
	Creator         identity.Identity
	CreatedAt       time.Time
	ExpiresAt       time.Time
	MaxParticipants int
	Status          Status
	Payload         Payload

	passcode *passcodeDigest
	members  map[string]*member
	order    []string
	deleteAt time.Time
}

func (r *Room) expired(now time.Time) bool { return !now.Before(r.ExpiresAt) }

// passcodeRequired reports whether joins must present the passcode.
func (r *Room) passcodeRequired() bool {
	if r.passcode == nil {
		return false
	}
	if p, ok := r.Payload.(*MeetingPayload); ok {
		return p.Settings.RequirePasscode
	}
	return true
}

func (r *Room) isHost(id identity.Identity) bool { return r.Creator.Same(id) }

func (r *Room) has(connID string) bool {
	_, ok := r.members[connID]
	return ok
}

// participants returns member connection ids in join order.
func (r *Room) participants() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Room) add(m *member) {
	r.members[m.conn.id] = m
	r.order = append(r.order, m.conn.id)
}

func (r *Room) remove(connID string) *member {
	m, ok := r.members[connID]
	if !ok {
		return nil
	}
	delete(r.members, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return m
}

func (r *Room) summary(now time.Time) models.RoomSummary {
	s := models.RoomSummary{
		RoomID:           r.ID,
		Kind:             string(r.Kind),
		Status:           string(r.Status),
		ParticipantCount: len(r.members),
		MaxParticipants:  r.MaxParticipants,
		PasscodeRequired: r.passcodeRequired(),
		CreatedAt:        r.CreatedAt,
		ExpiresAt:        r.ExpiresAt,
		ExpiresIn:        secondsUntil(now, r.ExpiresAt),
	}
	if p, ok := r.Payload.(*MeetingPayload); ok {
		s.Host = r.Creator.DisplayID
		settings := p.Settings
		s.Settings = &settings
		if !p.StartedAt.IsZero() {
			started := p.StartedAt
			s.StartedAt = &started
		}
		if !p.EndedAt.IsZero() {
			ended := p.EndedAt
			s.EndedAt = &ended
		}
	}
	return s
}

func secondsUntil(now, t time.Time) int {
	d := t.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
