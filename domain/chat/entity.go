package chat

import (
	"encoding/json"
	"time"
)

// RoomKind determines which external entity, if any, a room is linked to.
type RoomKind string

// Room kinds.
const (
	RoomKindTeam    RoomKind = "team"
	RoomKindEvent   RoomKind = "event"
	RoomKindPrivate RoomKind = "private"
)

// Valid reports whether k is a known room kind.
func (k RoomKind) Valid() bool {
	switch k {
	case RoomKindTeam, RoomKindEvent, RoomKindPrivate:
		return true
	}
	return false
}

// MessageType classifies message content.
type MessageType string

// Message types.
const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeSystem MessageType = "system"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeSystem:
		return true
	}
	return false
}

// Room is a named channel optionally owned by a team or an event.
type Room struct {
	ID            int64      `gorm:"primarykey" json:"id"`
	Name          string     `gorm:"size:100;not null" json:"name"`
	Kind          RoomKind   `gorm:"size:16;not null;index" json:"kind"`
	TeamID        *int64     `gorm:"index" json:"teamId,omitempty"`
	EventID       *int64     `gorm:"index" json:"eventId,omitempty"`
	LastSequence  int64      `gorm:"not null;default:0" json:"lastSequence"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// TableName returns the table name for Room.
func (Room) TableName() string {
	return "chat_rooms"
}

// Validate checks the room's name and that its kind matches its entity link.
func (r *Room) Validate() error {
	if err := ValidateRoomName(r.Name); err != nil {
		return err
	}
	switch r.Kind {
	case RoomKindTeam:
		if r.TeamID == nil || r.EventID != nil {
			return ErrInvalidRoomLink
		}
	case RoomKindEvent:
		if r.EventID == nil || r.TeamID != nil {
			return ErrInvalidRoomLink
		}
	case RoomKindPrivate:
		if r.TeamID != nil || r.EventID != nil {
			return ErrInvalidRoomLink
		}
	default:
		return ErrInvalidRoomKind
	}
	return nil
}

// Participant binds a user to a room and carries the user's read state.
type Participant struct {
	ID               int64      `gorm:"primarykey" json:"id"`
	RoomID           int64      `gorm:"not null;uniqueIndex:idx_participant_room_user" json:"chatRoomId"`
	UserID           int64      `gorm:"not null;uniqueIndex:idx_participant_room_user;index" json:"userId"`
	IsAdmin          bool       `gorm:"not null;default:false" json:"isAdmin"`
	LastReadAt       *time.Time `json:"lastReadAt,omitempty"`
	LastReadSequence int64      `gorm:"not null;default:0" json:"lastReadSequence"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// TableName returns the table name for Participant.
func (Participant) TableName() string {
	return "chat_participants"
}

// Message is a persisted chat message. CreatedAt and Sequence are assigned by the store.
type Message struct {
	ID        int64           `gorm:"primarykey" json:"id"`
	RoomID    int64           `gorm:"not null;uniqueIndex:idx_message_room_sequence" json:"chatRoomId"`
	UserID    int64           `gorm:"not null;index" json:"userId"`
	Sequence  int64           `gorm:"not null;uniqueIndex:idx_message_room_sequence" json:"sequence"`
	Content   string          `gorm:"type:text;not null" json:"content"`
	Type      MessageType     `gorm:"size:16;not null;default:text" json:"messageType"`
	Metadata  json.RawMessage `gorm:"type:blob" json:"metadata,omitempty"`
	CreatedAt time.Time       `gorm:"not null" json:"createdAt"`
}

// TableName returns the table name for Message.
func (Message) TableName() string {
	return "chat_messages"
}

// Before reports whether m is ordered before other within the same room.
func (m *Message) Before(other *Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.Sequence < other.Sequence
	}
	return m.CreatedAt.Before(other.CreatedAt)
}

// RoomSummary is a room as seen by one participant.
type RoomSummary struct {
	Room
	IsAdmin     bool  `json:"isAdmin"`
	UnreadCount int64 `json:"unreadCount"`
}
