package chat

import (
	domain "github.com/example/tournament-chat/domain/chat"
)

// Service names registered by the chat module.
const (
	ServiceListRooms      = "list-rooms"
	ServiceGetRoom        = "get-room"
	ServiceListMessages   = "list-messages"
	ServiceMarkRead       = "mark-read"
	ServiceCreateRoom     = "create-room"
	ServiceAddParticipant = "add-participant"
)

// ErrorReply carries a domain error across the service container.
type ErrorReply struct {
	Error *domain.Error `json:"error,omitempty"`
}

// Err returns the carried error, if any.
func (r ErrorReply) Err() error {
	if r.Error == nil {
		return nil
	}
	return r.Error
}

func replyError(err error) ErrorReply {
	if err == nil {
		return ErrorReply{}
	}
	return ErrorReply{Error: domain.NewError(err)}
}

// ListRoomsRequest is the request for listing a user's rooms.
type ListRoomsRequest struct {
	UserID int64 `json:"user_id"`
}

// ListRoomsResponse is the response for listing rooms.
type ListRoomsResponse struct {
	ErrorReply
	Rooms []*domain.RoomSummary `json:"rooms"`
}

// GetRoomRequest is the request for room details.
type GetRoomRequest struct {
	RoomID int64 `json:"room_id"`
	UserID int64 `json:"user_id"`
}

// GetRoomResponse is the response for room details.
type GetRoomResponse struct {
	ErrorReply
	Detail *RoomDetail `json:"detail,omitempty"`
}

// ListMessagesRequest is the request for message backfill.
type ListMessagesRequest struct {
	RoomID        int64 `json:"room_id"`
	UserID        int64 `json:"user_id"`
	SinceSequence int64 `json:"since_sequence"`
	Limit         int   `json:"limit"`
}

// ListMessagesResponse is the response for message backfill.
type ListMessagesResponse struct {
	ErrorReply
	Messages []*domain.Message `json:"messages"`
}

// MarkReadRequest is the request for marking a room read.
type MarkReadRequest struct {
	RoomID int64 `json:"room_id"`
	UserID int64 `json:"user_id"`
}

// MarkReadResponse is the response for marking a room read.
type MarkReadResponse struct {
	ErrorReply
	Participant *domain.Participant `json:"participant,omitempty"`
	UnreadCount int64               `json:"unread_count"`
}

// CreateRoomRequest is the request for creating a room.
type CreateRoomRequest struct {
	Name      string          `json:"name"`
	Kind      domain.RoomKind `json:"kind"`
	TeamID    *int64          `json:"team_id,omitempty"`
	EventID   *int64          `json:"event_id,omitempty"`
	CreatedBy int64           `json:"created_by"`
}

// CreateRoomResponse is the response for creating a room.
type CreateRoomResponse struct {
	ErrorReply
	Room *domain.Room `json:"room,omitempty"`
}

// AddParticipantRequest is the request for inviting a user to a room.
type AddParticipantRequest struct {
	RoomID  int64 `json:"room_id"`
	ActorID int64 `json:"actor_id"`
	UserID  int64 `json:"user_id"`
}

// AddParticipantResponse is the response for inviting a user.
type AddParticipantResponse struct {
	ErrorReply
	Participant *domain.Participant `json:"participant,omitempty"`
	Created     bool                `json:"created"`
}
