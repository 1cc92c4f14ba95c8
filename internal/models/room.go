package models

import "time"

// MeetingSettings are the host-controlled switches of a meeting.
type MeetingSettings struct {
	AllowChat        bool `json:"allowChat"`
	AllowScreenShare bool `json:"allowScreenShare"`
	AutoDelete       bool `json:"autoDelete"`
	RequirePasscode  bool `json:"requirePasscode"`
}

// DefaultMeetingSettings is what a meeting starts with.
func DefaultMeetingSettings() MeetingSettings {
	return MeetingSettings{AllowChat: true, AllowScreenShare: true, AutoDelete: true, RequirePasscode: true}
}

// SettingsPatch changes only the fields that are set.
type SettingsPatch struct {
	AllowChat        *bool `json:"allowChat,omitempty"`
	AllowScreenShare *bool `json:"allowScreenShare,omitempty"`
	AutoDelete       *bool `json:"autoDelete,omitempty"`
	RequirePasscode  *bool `json:"requirePasscode,omitempty"`
}

// Apply returns s with p's fields applied.
func (p SettingsPatch) Apply(s MeetingSettings) MeetingSettings {
	if p.AllowChat != nil {
		s.AllowChat = *p.AllowChat
	}
	if p.AllowScreenShare != nil {
		s.AllowScreenShare = *p.AllowScreenShare
	}
	if p.AutoDelete != nil {
		s.AutoDelete = *p.AutoDelete
	}
	if p.RequirePasscode != nil {
		s.RequirePasscode = *p.RequirePasscode
	}
	return s
}

// IsEmpty reports whether p changes nothing.
func (p SettingsPatch) IsEmpty() bool {
	return p.AllowChat == nil && p.AllowScreenShare == nil && p.AutoDelete == nil && p.RequirePasscode == nil
}

// CreateRoomRequest is the data of create_room.
type CreateRoomRequest struct {
	Kind            string         `json:"kind"`
	MaxParticipants int            `json:"maxParticipants,omitempty"`
	Passcode        string         `json:"passcode,omitempty"`
	TTLSeconds      int            `json:"ttlSeconds,omitempty"`
	Settings        *SettingsPatch `json:"settings,omitempty"`
}

// CreateRoomResponse is the data of room_created. Passcode is only ever
// sent here, to the creator.
type CreateRoomResponse struct {
	RoomID    string      `json:"roomId"`
	Passcode  string      `json:"passcode,omitempty"`
	ExpiresIn int         `json:"expiresIn"`
	Room      RoomSummary `json:"room"`
}

// JoinRoomRequest is the data of join_room.
type JoinRoomRequest struct {
	RoomID   string `json:"roomId"`
	Passcode string `json:"passcode,omitempty"`
}

// JoinRoomResponse is the data of room_joined.
type JoinRoomResponse struct {
	RoomID           string      `json:"roomId"`
	ParticipantCount int         `json:"participantCount"`
	Role             string      `json:"role"`
	Room             RoomSummary `json:"room"`
}

// RoomRef is the data of events that only name a room.
type RoomRef struct {
	RoomID string `json:"roomId"`
}

// UpdateSettingsRequest is the data of update_settings.
type UpdateSettingsRequest struct {
	RoomID   string        `json:"roomId"`
	Settings SettingsPatch `json:"settings"`
}

// SettingsUpdated is broadcast to a meeting when its settings change.
type SettingsUpdated struct {
	RoomID   string          `json:"roomId"`
	Settings MeetingSettings `json:"settings"`
}

// ParticipantEvent announces a join or leave to the rest of a room.
// Only the display id is shared.
type ParticipantEvent struct {
	RoomID           string `json:"roomId"`
	ConnectionID     string `json:"connectionId"`
	DisplayID        string `json:"displayId"`
	Role             string `json:"role,omitempty"`
	ParticipantCount int    `json:"participantCount"`
}

// RoomEnded tells a participant the room is gone.
type RoomEnded struct {
	RoomID string `json:"roomId"`
	Reason string `json:"reason"`
}

// RoomSummary is the sanitized view of a room. It never carries the
// passcode or participant identities; meetings expose the host's
// display id.
type RoomSummary struct {
	RoomID           string           `json:"roomId"`
	Kind             string           `json:"kind"`
	Status           string           `json:"status"`
	ParticipantCount int              `json:"participantCount"`
	MaxParticipants  int              `json:"maxParticipants"`
	PasscodeRequired bool             `json:"passcodeRequired"`
	CreatedAt        time.Time        `json:"createdAt"`
	ExpiresAt        time.Time        `json:"expiresAt"`
	ExpiresIn        int              `json:"expiresIn"`
	Host             string           `json:"host,omitempty"`
	Settings         *MeetingSettings `json:"settings,omitempty"`
	StartedAt        *time.Time       `json:"startedAt,omitempty"`
	EndedAt          *time.Time       `json:"endedAt,omitempty"`
}

// SendMessageRequest is the data of send_message.
type SendMessageRequest struct {
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
}

// ChatMessage is one chat line as delivered to clients.
type ChatMessage struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// MessagesResponse is the data of messages.
type MessagesResponse struct {
	RoomID   string        `json:"roomId"`
	Messages []ChatMessage `json:"messages"`
}
