package chat

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/tournament-chat/domain/chat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ChatPort defines the room operations available to driving adapters.
type ChatPort interface {
	ListRooms(ctx context.Context, userID int64) ([]*domain.RoomSummary, error)
	GetRoom(ctx context.Context, roomID, userID int64) (*RoomDetail, error)
	ListMessages(ctx context.Context, roomID, userID, sinceSequence int64, limit int) ([]*domain.Message, error)
	MarkRead(ctx context.Context, roomID, userID int64) (*domain.Participant, int64, error)
	CreateRoom(ctx context.Context, req CreateRoomRequest) (*domain.Room, error)
	AddParticipant(ctx context.Context, roomID, actorID, userID int64) (*domain.Participant, bool, error)
}

// ChatAdapter implements ChatPort using the service container.
type ChatAdapter struct {
	container mono.ServiceContainer
}

// NewChatAdapter creates a new ChatAdapter.
func NewChatAdapter(container mono.ServiceContainer) ChatPort {
	if container == nil {
		panic("chat: ServiceContainer is nil")
	}
	return &ChatAdapter{container: container}
}

func call[Req, Resp any](ctx context.Context, container mono.ServiceContainer, service string, req *Req, resp *Resp) error {
	if err := helper.CallRequestReplyService(
		ctx,
		container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return fmt.Errorf("failed to call %s: %w", service, err)
	}
	return nil
}

// ListRooms returns the rooms a user participates in.
func (a *ChatAdapter) ListRooms(ctx context.Context, userID int64) ([]*domain.RoomSummary, error) {
	req := ListRoomsRequest{UserID: userID}
	var resp ListRoomsResponse
	if err := call(ctx, a.container, ServiceListRooms, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Rooms, nil
}

// GetRoom retrieves a room with its participants.
func (a *ChatAdapter) GetRoom(ctx context.Context, roomID, userID int64) (*RoomDetail, error) {
	req := GetRoomRequest{RoomID: roomID, UserID: userID}
	var resp GetRoomResponse
	if err := call(ctx, a.container, ServiceGetRoom, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Detail, nil
}

// ListMessages retrieves messages after sinceSequence.
func (a *ChatAdapter) ListMessages(ctx context.Context, roomID, userID, sinceSequence int64, limit int) ([]*domain.Message, error) {
	req := ListMessagesRequest{RoomID: roomID, UserID: userID, SinceSequence: sinceSequence, Limit: limit}
	var resp ListMessagesResponse
	if err := call(ctx, a.container, ServiceListMessages, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// MarkRead marks a room read for a user.
func (a *ChatAdapter) MarkRead(ctx context.Context, roomID, userID int64) (*domain.Participant, int64, error) {
	req := MarkReadRequest{RoomID: roomID, UserID: userID}
	var resp MarkReadResponse
	if err := call(ctx, a.container, ServiceMarkRead, &req, &resp); err != nil {
		return nil, 0, err
	}
	if err := resp.Err(); err != nil {
		return nil, 0, err
	}
	return resp.Participant, resp.UnreadCount, nil
}

// CreateRoom creates a new room.
func (a *ChatAdapter) CreateRoom(ctx context.Context, req CreateRoomRequest) (*domain.Room, error) {
	var resp CreateRoomResponse
	if err := call(ctx, a.container, ServiceCreateRoom, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Room, nil
}

// AddParticipant invites a user to a room.
func (a *ChatAdapter) AddParticipant(ctx context.Context, roomID, actorID, userID int64) (*domain.Participant, bool, error) {
	req := AddParticipantRequest{RoomID: roomID, ActorID: actorID, UserID: userID}
	var resp AddParticipantResponse
	if err := call(ctx, a.container, ServiceAddParticipant, &req, &resp); err != nil {
		return nil, false, err
	}
	if err := resp.Err(); err != nil {
		return nil, false, err
	}
	return resp.Participant, resp.Created, nil
}
