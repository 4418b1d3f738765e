package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// MessageSentEvent is emitted after a message is persisted and fanned out.
type MessageSentEvent struct {
	MessageID   int64     `json:"message_id"`
	RoomID      int64     `json:"room_id"`
	UserID      int64     `json:"user_id"`
	Sequence    int64     `json:"sequence"`
	MessageType string    `json:"message_type"`
	Delivered   int       `json:"delivered"`
	Evicted     int       `json:"evicted"`
	Timestamp   time.Time `json:"timestamp"`
}

// RoomReadEvent is emitted when a participant marks a room read.
type RoomReadEvent struct {
	RoomID           int64     `json:"room_id"`
	UserID           int64     `json:"user_id"`
	LastReadSequence int64     `json:"last_read_sequence"`
	Timestamp        time.Time `json:"timestamp"`
}

// ParticipantAddedEvent is emitted when a user is invited to a room.
type ParticipantAddedEvent struct {
	RoomID    int64     `json:"room_id"`
	UserID    int64     `json:"user_id"`
	AddedBy   int64     `json:"added_by"`
	Timestamp time.Time `json:"timestamp"`
}

// RoomCreatedEvent is emitted when a new room is created.
type RoomCreatedEvent struct {
	RoomID    int64     `json:"room_id"`
	RoomName  string    `json:"room_name"`
	Kind      string    `json:"kind"`
	CreatedBy int64     `json:"created_by"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the chat domain.
var (
	MessageSentV1 = helper.EventDefinition[MessageSentEvent](
		"chat",
		"MessageSent",
		"v1",
	)

	RoomReadV1 = helper.EventDefinition[RoomReadEvent](
		"chat",
		"RoomRead",
		"v1",
	)

	ParticipantAddedV1 = helper.EventDefinition[ParticipantAddedEvent](
		"chat",
		"ParticipantAdded",
		"v1",
	)

	RoomCreatedV1 = helper.EventDefinition[RoomCreatedEvent](
		"chat",
		"RoomCreated",
		"v1",
	)
)
