package models

// EventType names a real-time frame.
type EventType string

// Client to server.
const (
	EventCreateRoom     EventType = "create_room"
	EventJoinRoom       EventType = "join_room"
	EventLeaveRoom      EventType = "leave_room"
	EventRoomInfo       EventType = "room_info"
	EventSendMessage    EventType = "send_message"
	EventGetMessages    EventType = "get_messages"
	EventUpdateSettings EventType = "update_settings"
	EventEndRoom        EventType = "end_room"
	EventOffer          EventType = "offer"
	EventAnswer         EventType = "answer"
	EventICECandidate   EventType = "ice_candidate"
)

// Server to client. room_info, offer, answer and ice_candidate are
// shared with the client direction.
const (
	EventConnected         EventType = "connected"
	EventRoomCreated       EventType = "room_created"
	EventRoomJoined        EventType = "room_joined"
	EventRoomLeft          EventType = "room_left"
	EventParticipantJoined EventType = "participant_joined"
	EventParticipantLeft   EventType = "participant_left"
	EventMessageSent       EventType = "message_sent"
	EventNewMessage        EventType = "new_message"
	EventMessages          EventType = "messages"
	EventSettingsUpdated   EventType = "settings_updated"
	EventRoomEnded         EventType = "room_ended"
	EventError             EventType = "error"
)

// legacyEvents maps names from the older socket surface to the event
// that replaced them. They are answered with an error, never served.
var legacyEvents = map[string]EventType{
	"anon_msg":      EventSendMessage,
	"msg_sent":      EventMessageSent,
	"create_burner": EventCreateRoom,
	"join_burner":   EventJoinRoom,
	"video_offer":   EventOffer,
	"video_answer":  EventAnswer,
	"video_ice":     EventICECandidate,
}

// LegacyReplacement reports the canonical event for a retired name.
func LegacyReplacement(name string) (EventType, bool) {
	e, ok := legacyEvents[name]
	return e, ok
}

// Frame is one message on the real-time channel in either direction.
// Data is decoded lazily with Codec.DecodeData once the event is known.
type Frame struct {
	Event     EventType `json:"event"`
	RequestID string    `json:"requestId,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// Event is a server-originated frame queued for one connection.
type Event struct {
	Type      EventType
	RequestID string
	Data      any
}

// Frame converts e for the wire.
func (e Event) Frame() Frame {
	return Frame{Event: e.Type, RequestID: e.RequestID, Data: e.Data}
}

// ErrorBody is the data of an error event and of REST error responses.
type ErrorBody struct {
	Error             string `json:"error"`
	Class             string `json:"class"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
}

// ConnectedData greets a freshly upgraded connection.
type ConnectedData struct {
	ConnectionID string `json:"connectionId"`
	DisplayID    string `json:"displayId"`
	ExpiresIn    int    `json:"expiresIn"`
}

// SignalRequest is the data of an inbound offer, answer or
// ice_candidate. Kind selects which of the sender's rooms it belongs
// to and defaults to signaling.
type SignalRequest struct {
	Kind    string `json:"kind,omitempty"`
	Payload any    `json:"payload"`
	Target  string `json:"target,omitempty"`
	Media   string `json:"media,omitempty"`
}

// SignalAck confirms which connection a signal was handed to.
type SignalAck struct {
	Target string `json:"target"`
}
