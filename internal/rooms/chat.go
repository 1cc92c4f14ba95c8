package rooms

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mossy-p/burner-signaling/internal/apperr"
	"github.com/mossy-p/burner-signaling/internal/metrics"
	"github.com/mossy-p/burner-signaling/internal/models"
)

// MaxMessageRunes bounds a chat message after trimming.
const MaxMessageRunes = 2000

// SendMessage posts text to a room the connection is in. Text rooms
// store the message until it expires; meetings relay it live when chat
// is allowed.
func (c *Coordinator) SendMessage(ctx context.Context, connID, roomID, text string) (models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if n := utf8.RuneCountInString(text); n == 0 || n > MaxMessageRunes {
		return models.ChatMessage{}, apperr.Invalid(fmt.Sprintf("message must be 1 to %d characters", MaxMessageRunes))
	}

	var out models.ChatMessage
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
		if !r.has(cn.id) {
			opErr = ErrNotMember
			return
		}

		switch p := r.Payload.(type) {
		case *TextPayload:
			c.pruneMessages(p, now)
			msg := Message{
				ID:        uuid.NewString(),
				Sender:    cn.identity,
				Text:      text,
				CreatedAt: now,
				ExpiresAt: now.Add(c.cfg.MessageTTL),
			}
			p.Messages = append(p.Messages, msg)
			if over := len(p.Messages) - c.cfg.MessageHistory; over > 0 {
				p.Messages = append(p.Messages[:0], p.Messages[over:]...)
			}
			out = messageView(r.ID, msg)
		case *MeetingPayload:
			if !p.Settings.AllowChat {
				opErr = ErrChatOff
				return
			}
			out = models.ChatMessage{
				ID:        uuid.NewString(),
				RoomID:    r.ID,
				Sender:    cn.identity.DisplayID,
				Text:      text,
				CreatedAt: now,
			}
		default:
			opErr = apperr.Invalid("signaling rooms do not carry chat")
			return
		}

		c.broadcast(r, models.Event{Type: models.EventNewMessage, Data: out}, cn.id)
		c.metrics.Inc(metrics.MessagesSent)
	})
	if err != nil {
		return models.ChatMessage{}, err
	}
	return out, opErr
}

// Messages returns the unexpired messages of a text room, oldest first.
func (c *Coordinator) Messages(ctx context.Context, connID, roomID string) ([]models.ChatMessage, error) {
	var out []models.ChatMessage
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
		if !r.has(cn.id) {
			opErr = ErrNotMember
			return
		}
		p, ok := r.Payload.(*TextPayload)
		if !ok {
			opErr = apperr.Invalid("only text rooms keep messages")
			return
		}
		c.pruneMessages(p, now)
		out = make([]models.ChatMessage, 0, len(p.Messages))
		for _, m := range p.Messages {
			out = append(out, messageView(r.ID, m))
		}
	})
	if err != nil {
		return nil, err
	}
	return out, opErr
}

// pruneMessages drops expired messages. Messages are appended in time
// order with a fixed TTL, so expired ones are always a prefix.
func (c *Coordinator) pruneMessages(p *TextPayload, now time.Time) int {
	n := 0
	for n < len(p.Messages) && p.Messages[n].expired(now) {
		n++
	}
	if n > 0 {
		p.Messages = append(p.Messages[:0], p.Messages[n:]...)
		c.metrics.Add(metrics.MessagesExpired, uint64(n))
	}
	return n
}

func messageView(roomID string, m Message) models.ChatMessage {
	return models.ChatMessage{
		ID:        m.ID,
		RoomID:    roomID,
		Sender:    m.Sender.DisplayID,
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
		ExpiresAt: m.ExpiresAt,
	}
}
