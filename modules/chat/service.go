package chat

import (
	"context"
	"time"

	domain "github.com/example/tournament-chat/domain/chat"
	"github.com/example/tournament-chat/modules/store"
	"github.com/example/tournament-chat/modules/unread"
	"github.com/go-monolith/mono/pkg/types"
)

// Notifier is told about committed state changes.
type Notifier interface {
	MessageSent(ctx context.Context, msg *domain.Message, report DeliveryReport)
	RoomRead(ctx context.Context, participant *domain.Participant)
	ParticipantAdded(ctx context.Context, participant *domain.Participant, addedBy int64)
	RoomCreated(ctx context.Context, room *domain.Room, createdBy int64)
}

type nopNotifier struct{}

func (nopNotifier) MessageSent(context.Context, *domain.Message, DeliveryReport) {}
func (nopNotifier) RoomRead(context.Context, *domain.Participant)                {}
func (nopNotifier) ParticipantAdded(context.Context, *domain.Participant, int64) {}
func (nopNotifier) RoomCreated(context.Context, *domain.Room, int64)             {}

// RoomDetail is a room together with its participants.
type RoomDetail struct {
	Room         *domain.Room          `json:"room"`
	Participants []*domain.Participant `json:"participants"`
	Online       int                   `json:"online"`
}

// OnlineCounter reports how many live connections joined a room.
type OnlineCounter interface {
	RoomCount(roomID int64) int
}

// Service provides the room operations behind the REST surface and the
// session protocol. Every method acts on behalf of userID.
type Service struct {
	store    store.MessageStore
	tracker  *unread.Tracker
	online   OnlineCounter
	notifier Notifier
	now      func() time.Time
	logger   types.Logger
}

// NewService creates a new chat service.
func NewService(
	st store.MessageStore,
	tracker *unread.Tracker,
	online OnlineCounter,
	notifier Notifier,
	logger types.Logger,
) *Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Service{
		store:    st,
		tracker:  tracker,
		online:   online,
		notifier: notifier,
		now:      time.Now,
		logger:   logger,
	}
}

// requireMember returns the room when it exists and userID participates in it.
func (s *Service) requireMember(ctx context.Context, roomID, userID int64) (*domain.Room, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	ok, err := s.store.IsParticipant(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotAMember
	}
	return room, nil
}

// ListRooms returns the rooms userID participates in with their unread counts.
func (s *Service) ListRooms(ctx context.Context, userID int64) ([]*domain.RoomSummary, error) {
	rooms, err := s.store.ListRoomsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, room := range rooms {
		count, err := s.tracker.Count(ctx, room.ID, userID)
		if err != nil {
			return nil, err
		}
		room.UnreadCount = count
	}
	return rooms, nil
}

// GetRoom returns a room with its participants.
func (s *Service) GetRoom(ctx context.Context, roomID, userID int64) (*RoomDetail, error) {
	room, err := s.requireMember(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	participants, err := s.store.ListParticipants(ctx, roomID)
	if err != nil {
		return nil, err
	}
	detail := &RoomDetail{Room: room, Participants: participants}
	if s.online != nil {
		detail.Online = s.online.RoomCount(roomID)
	}
	return detail, nil
}

// ListMessages returns messages after sinceSequence, oldest first.
func (s *Service) ListMessages(ctx context.Context, roomID, userID, sinceSequence int64, limit int) ([]*domain.Message, error) {
	if _, err := s.requireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, roomID, sinceSequence, limit)
}

// MarkRead marks the room read for userID at the current server time and
// returns the updated participant with the remaining unread count.
func (s *Service) MarkRead(ctx context.Context, roomID, userID int64) (*domain.Participant, int64, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, 0, err
	}
	// stored timestamps are clamped forward, so a lagging clock still has to
	// cover the newest message
	at := s.now()
	if room.LastMessageAt != nil && room.LastMessageAt.After(at) {
		at = *room.LastMessageAt
	}
	participant, count, err := s.tracker.MarkRead(ctx, roomID, userID, at)
	if err != nil {
		return nil, 0, err
	}
	s.notifier.RoomRead(ctx, participant)
	return participant, count, nil
}

// CreateRoom creates a room with creatorID as its admin participant.
func (s *Service) CreateRoom(ctx context.Context, room *domain.Room, creatorID int64) (*domain.Room, error) {
	if err := s.store.CreateRoom(ctx, room, creatorID); err != nil {
		return nil, err
	}
	s.logger.Info("Room created", "roomID", room.ID, "kind", room.Kind, "createdBy", creatorID)
	s.notifier.RoomCreated(ctx, room, creatorID)
	return room, nil
}

// AddParticipant lets a room admin invite userID. Inviting an existing
// participant is a no-op.
func (s *Service) AddParticipant(ctx context.Context, roomID, actorID, userID int64) (*domain.Participant, bool, error) {
	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return nil, false, err
	}
	actor, err := s.store.GetParticipant(ctx, roomID, actorID)
	if err != nil {
		return nil, false, err
	}
	if !actor.IsAdmin {
		return nil, false, domain.ErrForbidden
	}

	participant, created, err := s.store.AddParticipant(ctx, roomID, userID, false)
	if err != nil {
		return nil, false, err
	}
	if created {
		s.logger.Info("Participant added", "roomID", roomID, "userID", userID, "addedBy", actorID)
		s.notifier.ParticipantAdded(ctx, participant, actorID)
	}
	return participant, created, nil
}
