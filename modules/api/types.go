package api

import (
	"time"

	domain "github.com/example/tournament-chat/domain/chat"
	"github.com/example/tournament-chat/modules/activity"
)

// CreateRoomRequest is the API request to create a room.
type CreateRoomRequest struct {
	Name    string          `json:"name"`
	Kind    domain.RoomKind `json:"kind"`
	TeamID  *int64          `json:"teamId,omitempty"`
	EventID *int64          `json:"eventId,omitempty"`
}

// AddParticipantRequest is the API request to invite a user.
type AddParticipantRequest struct {
	UserID int64 `json:"userId"`
}

// RoomListResponse is the API response for listing rooms.
type RoomListResponse struct {
	Rooms []*domain.RoomSummary `json:"rooms"`
}

// RoomResponse is the API response for a single room.
type RoomResponse struct {
	Room         *domain.Room          `json:"room"`
	Participants []*domain.Participant `json:"participants,omitempty"`
	Online       int                   `json:"online"`
	Activity     *activity.RoomStats   `json:"activity,omitempty"`
}

// MessagesResponse is the API response for message backfill.
type MessagesResponse struct {
	ChatRoomID int64             `json:"chatRoomId"`
	Messages   []*domain.Message `json:"messages"`
}

// ReadResponse is the API response after marking a room read.
type ReadResponse struct {
	ChatRoomID       int64      `json:"chatRoomId"`
	LastReadSequence int64      `json:"lastReadSequence"`
	LastReadAt       *time.Time `json:"lastReadAt,omitempty"`
	UnreadCount      int64      `json:"unreadCount"`
}

// ParticipantResponse is the API response after an invite.
type ParticipantResponse struct {
	Participant *domain.Participant `json:"participant"`
	Created     bool                `json:"created"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}
