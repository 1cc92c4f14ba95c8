package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/mossy-p/burner-signaling/internal/admission"
	"github.com/mossy-p/burner-signaling/internal/apperr"
	"github.com/mossy-p/burner-signaling/internal/identity"
	"github.com/mossy-p/burner-signaling/internal/middleware"
	"github.com/mossy-p/burner-signaling/internal/models"
	"github.com/mossy-p/burner-signaling/internal/rooms"
	"github.com/mossy-p/burner-signaling/internal/signaling"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = signaling.MaxPayloadBytes + 4<<10
	sendBufferSize = 256

	defaultFramesPerSecond = 50
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware
		return true
	},
}

// SignalingDeps are the collaborators of the real-time endpoint.
type SignalingDeps struct {
	Hub       *rooms.Coordinator
	Authority *identity.Authority
	Limiter   *admission.Limiter
	Logger    *slog.Logger

	// MaxFramesPerSecond bounds inbound frames per connection. A client
	// that exceeds it is disconnected.
	MaxFramesPerSecond int
}

// Client represents a WebSocket client connection
type Client struct {
	ID          string
	Conn        *websocket.Conn
	Credential  identity.Credential
	Fingerprint string
	Send        chan models.Event

	// lifetime is how long the credential had left at connect time.
	lifetime time.Duration
	codec    models.Codec
	deps     *SignalingDeps
	inbound  *rate.Limiter
	logger   *slog.Logger

	// Send is never closed; closed tells both pumps to stop.
	closed    chan struct{}
	closeOnce sync.Once
}

// HandleSignaling upgrades an authenticated request to the real-time
// channel. The credential comes from WebSocketAuth; ?encoding=msgpack
// switches the connection to binary MessagePack frames.
func HandleSignaling(deps SignalingDeps) gin.HandlerFunc {
	if deps.MaxFramesPerSecond <= 0 {
		deps.MaxFramesPerSecond = defaultFramesPerSecond
	}
	return func(c *gin.Context) {
		cred, ok := middleware.CredentialFrom(c)
		if !ok {
			middleware.AbortWithError(c, apperr.New(apperr.AuthInvalid, "User not authenticated"))
			return
		}
		codec, err := models.CodecFor(c.Query("encoding"))
		if err != nil {
			middleware.AbortWithError(c, apperr.Invalid(err.Error()))
			return
		}

		// Upgrade HTTP connection to WebSocket
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			deps.Logger.Warn("failed to upgrade connection", "err", err)
			return
		}

		client := &Client{
			Conn:        conn,
			Credential:  cred,
			Fingerprint: middleware.FingerprintFrom(c),
			Send:        make(chan models.Event, sendBufferSize),
			lifetime:    cred.ExpiresIn(deps.Authority.Now()),
			codec:       codec,
			deps:        &deps,
			inbound:     rate.NewLimiter(rate.Limit(deps.MaxFramesPerSecond), deps.MaxFramesPerSecond),
			closed:      make(chan struct{}),
		}

		ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
		defer cancel()

		connID, err := deps.Hub.Connect(ctx, cred.Identity, client)
		if err != nil {
			deps.Logger.Error("failed to register connection", "err", err)
			client.closeWith(websocket.CloseTryAgainLater, "server unavailable")
			conn.Close()
			return
		}
		client.ID = connID
		client.logger = deps.Logger.With("conn_id", connID, "display_id", cred.Identity.DisplayID)
		client.logger.Info("peer connected", "encoding", codec.Name())

		client.reply(models.Event{Type: models.EventConnected, Data: models.ConnectedData{
			ConnectionID: connID,
			DisplayID:    cred.Identity.DisplayID,
			ExpiresIn:    int(client.lifetime.Seconds()),
		}})

		go client.writePump()
		client.readPump(ctx)
	}
}

// Deliver queues ev without blocking. It is called from the room
// coordinator goroutine.
func (c *Client) Deliver(ev models.Event) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.Send <- ev:
		return true
	default:
		return false
	}
}

// reply queues a response to this client's own request, waiting for
// room in the buffer.
func (c *Client) reply(ev models.Event) {
	select {
	case c.Send <- ev:
	case <-c.closed:
	}
}

func (c *Client) replyError(requestID string, err error) {
	class := apperr.ClassOf(err)
	if class == apperr.Unexpected {
		c.logger.Error("request failed", "err", err)
	}
	c.reply(models.Event{Type: models.EventError, RequestID: requestID, Data: models.ErrorBody{
		Error:             apperr.PublicMessage(err),
		Class:             string(class),
		RetryAfterSeconds: apperr.RetryAfterSeconds(err),
	}})
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// closeWith sends a close frame with code and stops the pumps.
func (c *Client) closeWith(code int, text string) {
	_ = c.Conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
	c.close()
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.close()
		c.Conn.Close()

		if err := c.deps.Hub.Disconnect(ctx, c.ID); err != nil && !errors.Is(err, rooms.ErrStopped) {
			c.logger.Error("failed to disconnect", "err", err)
		}
		c.logger.Info("peer disconnected")
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket error", "err", err)
			}
			return
		}

		if !c.inbound.Allow() {
			c.logger.Warn("inbound frame rate exceeded, closing")
			c.closeWith(websocket.ClosePolicyViolation, "too many messages")
			return
		}

		var frame models.Frame
		if err := c.codec.Unmarshal(message, &frame); err != nil {
			c.replyError("", apperr.Invalid("malformed frame"))
			continue
		}
		c.dispatch(ctx, frame)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	expiry := time.NewTimer(c.lifetime)
	defer func() {
		ticker.Stop()
		expiry.Stop()
		c.Conn.Close()
	}()

	messageType := websocket.TextMessage
	if c.codec.Binary() {
		messageType = websocket.BinaryMessage
	}

	for {
		select {
		case ev := <-c.Send:
			data, err := c.codec.Marshal(ev.Frame())
			if err != nil {
				c.logger.Error("failed to marshal event", "event", ev.Type, "err", err)
				continue
			}
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(messageType, data); err != nil {
				c.logger.Debug("failed to write message", "err", err)
				c.close()
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}

		case <-expiry.C:
			c.logger.Info("credential expired, closing")
			c.closeWith(websocket.ClosePolicyViolation, "credential expired")
			return

		case <-c.deps.Hub.Done():
			c.closeWith(websocket.CloseGoingAway, "server shutting down")
			return

		case <-c.closed:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// eventHandler serves one inbound event. A non-empty class is charged
// against the client's admission budget before the handler runs.
type eventHandler struct {
	class  admission.Class
	handle func(c *Client, ctx context.Context, f models.Frame) error
}

var eventHandlers = map[models.EventType]eventHandler{
	models.EventCreateRoom:     {admission.ClassRoomCreate, (*Client).createRoom},
	models.EventJoinRoom:       {admission.ClassRoomJoin, (*Client).joinRoom},
	models.EventLeaveRoom:      {"", (*Client).leaveRoom},
	models.EventRoomInfo:       {admission.ClassInfo, (*Client).roomInfo},
	models.EventSendMessage:    {admission.ClassMessage, (*Client).sendMessage},
	models.EventGetMessages:    {admission.ClassInfo, (*Client).getMessages},
	models.EventUpdateSettings: {"", (*Client).updateSettings},
	models.EventEndRoom:        {"", (*Client).endRoom},
	models.EventOffer:          {admission.ClassSignal, (*Client).signal},
	models.EventAnswer:         {admission.ClassSignal, (*Client).signal},
	models.EventICECandidate:   {admission.ClassSignal, (*Client).signal},
}

func (c *Client) dispatch(ctx context.Context, f models.Frame) {
	if canonical, ok := models.LegacyReplacement(string(f.Event)); ok {
		c.replyError(f.RequestID, apperr.Invalid(fmt.Sprintf("event %q is no longer supported, use %q", f.Event, canonical)))
		return
	}
	h, ok := eventHandlers[f.Event]
	if !ok {
		c.replyError(f.RequestID, apperr.Invalid(fmt.Sprintf("unknown event %q", f.Event)))
		return
	}
	if h.class != "" {
		if err := c.deps.Limiter.Check(ctx, h.class, c.Fingerprint); err != nil {
			c.replyError(f.RequestID, err)
			return
		}
	}
	if err := h.handle(c, ctx, f); err != nil {
		c.replyError(f.RequestID, err)
	}
}

func (c *Client) decode(f models.Frame, v any) error {
	if err := models.DecodeData(c.codec, f.Data, v); err != nil {
		return apperr.Invalid(fmt.Sprintf("malformed data for %s", f.Event))
	}
	return nil
}

func (c *Client) createRoom(ctx context.Context, f models.Frame) error {
	var req models.CreateRoomRequest
	if err := c.decode(f, &req); err != nil {
		return err
	}
	kind, ok := rooms.ParseKind(req.Kind)
	if !ok {
		return apperr.Invalid(fmt.Sprintf("unknown room kind %q", req.Kind))
	}

	created, err := c.deps.Hub.Create(ctx, c.ID, rooms.CreateParams{
		Kind:            kind,
		MaxParticipants: req.MaxParticipants,
		Passcode:        req.Passcode,
		TTL:             time.Duration(req.TTLSeconds) * time.Second,
		Settings:        req.Settings,
	})
	if err != nil {
		return err
	}
	c.reply(models.Event{Type: models.EventRoomCreated, RequestID: f.RequestID, Data: models.CreateRoomResponse{
		RoomID:    created.Room.RoomID,
		Passcode:  created.Passcode,
		ExpiresIn: created.ExpiresIn,
		Room:      created.Room,
	}})
	return nil
}

func (c *Client) joinRoom(ctx context.Context, f models.Frame) error {
	var req models.JoinRoomRequest
	if err := c.decode(f, &req); err != nil {
		return err
	}
	if req.RoomID == "" {
		return apperr.Invalid("roomId is required")
	}

	joined, err := c.deps.Hub.Join(ctx, c.ID, req.RoomID, req.Passcode)
	if err != nil {
		return err
	}
	c.reply(models.Event{Type: models.EventRoomJoined, RequestID: f.RequestID, Data: models.JoinRoomResponse{
		RoomID:           joined.Room.RoomID,
		ParticipantCount: joined.ParticipantCount,
		Role:             string(joined.Role),
		Room:             joined.Room,
	}})
	for _, ev := range joined.Replay {
		c.reply(ev)
	}
	return nil
}

func (c *Client) leaveRoom(ctx context.Context, f models.Frame) error {
	var req models.RoomRef
	if err := c.decode(f, &req); err != nil {
		return err
	}
	if err := c.deps.Hub.Leave(ctx, c.ID, req.RoomID); err != nil {
		return err
	}
	c.reply(models.Event{Type: models.EventRoomLeft, RequestID: f.RequestID, Data: req})
	return nil
}

func (c *Client) roomInfo(ctx context.Context, f models.Frame) error {
	var req models.RoomRef
	if err := c.decode(f, &req); err != nil {
		return err
	}
	summary, err := c.deps.Hub.Info(ctx, req.RoomID)
	if err != nil {
		return err
	}
	c.reply(models.Event{Type: models.EventRoomInfo, RequestID: f.RequestID, Data: summary})
	return nil
}

func (c *Client) sendMessage(ctx context.Context, f models.Frame) error {
	var req models.SendMessageRequest
	if err := c.decode(f, &req); err != nil {
		return err
	}
	msg, err := c.deps.Hub.SendMessage(ctx, c.ID, req.RoomID, req.Text)
	if err != nil {
		return err
	}
	c.reply(models.Event{Type: models.EventMessageSent, RequestID: f.RequestID, Data: msg})
	return nil
}

func (c *Client) getMessages(ctx context.Context, f models.Frame) error {
	var req models.RoomRef
	if err := c.decode(f, &req); err != nil {
		return err
	}
	msgs, err := c.deps.Hub.Messages(ctx, c.ID, req.RoomID)
	if err != nil {
		return err
	}
	c.reply(models.Event{Type: models.EventMessages, RequestID: f.RequestID, Data: models.MessagesResponse{
		RoomID:   req.RoomID,
		Messages: msgs,
	}})
	return nil
}

func (c *Client) updateSettings(ctx context.Context, f models.Frame) error {
	var req models.UpdateSettingsRequest
	if err := c.decode(f, &req); err != nil {
		return err
	}
	if req.Settings.IsEmpty() {
		return apperr.Invalid("settings must change at least one field")
	}
	settings, err := c.deps.Hub.UpdateSettings(ctx, c.ID, req.RoomID, req.Settings)
	if err != nil {
		return err
	}
	c.reply(models.Event{Type: models.EventSettingsUpdated, RequestID: f.RequestID, Data: models.SettingsUpdated{
		RoomID:   req.RoomID,
		Settings: settings,
	}})
	return nil
}

func (c *Client) endRoom(ctx context.Context, f models.Frame) error {
	var req models.RoomRef
	if err := c.decode(f, &req); err != nil {
		return err
	}
	if err := c.deps.Hub.Terminate(ctx, c.ID, req.RoomID); err != nil {
		return err
	}
	c.reply(models.Event{Type: models.EventRoomEnded, RequestID: f.RequestID, Data: models.RoomEnded{
		RoomID: req.RoomID,
		Reason: rooms.ReasonTerminated,
	}})
	return nil
}

// signal relays an offer, answer or candidate. Only requests that carry
// a requestId are acknowledged.
func (c *Client) signal(ctx context.Context, f models.Frame) error {
	var req models.SignalRequest
	if err := c.decode(f, &req); err != nil {
		return err
	}
	kind := rooms.KindSignaling
	if req.Kind != "" {
		k, ok := rooms.ParseKind(req.Kind)
		if !ok {
			return apperr.Invalid(fmt.Sprintf("unknown room kind %q", req.Kind))
		}
		kind = k
	}

	target, err := c.deps.Hub.Relay(ctx, c.ID, kind, signaling.Envelope{
		Type:    signaling.Type(f.Event),
		Payload: req.Payload,
		Target:  req.Target,
		Media:   signaling.Media(req.Media),
	})
	if err != nil {
		return err
	}
	if f.RequestID != "" {
		c.reply(models.Event{Type: f.Event, RequestID: f.RequestID, Data: models.SignalAck{Target: target}})
	}
	return nil
}
