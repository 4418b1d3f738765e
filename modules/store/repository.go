package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/example/tournament-chat/domain/chat"
	"gorm.io/gorm"
)

// Listing bounds for ListMessages.
const (
	DefaultPageSize = 100
	MaxPageSize     = 500
)

// MessageStore is the durable record of rooms, participants and messages.
type MessageStore interface {
	AppendMessage(ctx context.Context, roomID, userID int64, content string, msgType domain.MessageType, metadata json.RawMessage) (*domain.Message, error)
	ListMessages(ctx context.Context, roomID, sinceSequence int64, limit int) ([]*domain.Message, error)
	ListParticipants(ctx context.Context, roomID int64) ([]*domain.Participant, error)
	MarkRead(ctx context.Context, roomID, userID int64, at time.Time) (*domain.Participant, error)

	CreateRoom(ctx context.Context, room *domain.Room, creatorID int64) error
	GetRoom(ctx context.Context, roomID int64) (*domain.Room, error)
	ListRoomsForUser(ctx context.Context, userID int64) ([]*domain.RoomSummary, error)
	AddParticipant(ctx context.Context, roomID, userID int64, isAdmin bool) (*domain.Participant, bool, error)
	GetParticipant(ctx context.Context, roomID, userID int64) (*domain.Participant, error)
	IsParticipant(ctx context.Context, roomID, userID int64) (bool, error)
	CountUnread(ctx context.Context, roomID, userID int64) (int64, error)
}

var _ MessageStore = (*Repository)(nil)

// Repository is the GORM implementation of MessageStore.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository creates a new repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

// AppendMessage persists a message as the next one in its room. The room's
// sequence counter and the message row are written in one transaction and the
// timestamp never precedes the room's previous message.
func (r *Repository) AppendMessage(
	ctx context.Context,
	roomID, userID int64,
	content string,
	msgType domain.MessageType,
	metadata json.RawMessage,
) (*domain.Message, error) {
	if msgType == "" {
		msgType = domain.MessageTypeText
	}
	if err := domain.ValidateMessage(content, msgType, metadata); err != nil {
		return nil, err
	}

	var msg *domain.Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room domain.Room
		if err := tx.First(&room, "id = ?", roomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrRoomNotFound
			}
			return err
		}

		createdAt := r.now().UTC()
		if room.LastMessageAt != nil && createdAt.Before(*room.LastMessageAt) {
			createdAt = room.LastMessageAt.UTC()
		}
		seq := room.LastSequence + 1

		res := tx.Model(&domain.Room{}).
			Where("id = ? AND last_sequence = ?", roomID, room.LastSequence).
			Updates(map[string]any{
				"last_sequence":   seq,
				"last_message_at": createdAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("sequence %d of room %d was taken concurrently", seq, roomID)
		}

		msg = &domain.Message{
			RoomID:    roomID,
			UserID:    userID,
			Sequence:  seq,
			Content:   content,
			Type:      msgType,
			Metadata:  metadata,
			CreatedAt: createdAt,
		}
		return tx.Create(msg).Error
	})
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			return nil, err
		}
		return nil, unavailable("append message", err)
	}
	return msg, nil
}

// ListMessages returns up to limit messages of a room with a sequence greater
// than sinceSequence, oldest first.
func (r *Repository) ListMessages(ctx context.Context, roomID, sinceSequence int64, limit int) ([]*domain.Message, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	var messages []*domain.Message
	if err := r.db.WithContext(ctx).
		Where("room_id = ? AND sequence > ?", roomID, sinceSequence).
		Order("sequence ASC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, unavailable("list messages", err)
	}
	return messages, nil
}

// ListParticipants returns all participants of a room.
func (r *Repository) ListParticipants(ctx context.Context, roomID int64) ([]*domain.Participant, error) {
	var participants []*domain.Participant
	if err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("id ASC").
		Find(&participants).Error; err != nil {
		return nil, unavailable("list participants", err)
	}
	return participants, nil
}

// MarkRead advances the participant's read position to at. Neither the read
// timestamp nor the read sequence ever move backward.
func (r *Repository) MarkRead(ctx context.Context, roomID, userID int64, at time.Time) (*domain.Participant, error) {
	at = at.UTC()

	var participant domain.Participant
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&participant, "room_id = ? AND user_id = ?", roomID, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotAMember
			}
			return err
		}

		var seq int64
		if err := tx.Model(&domain.Message{}).
			Select("COALESCE(MAX(sequence), 0)").
			Where("room_id = ? AND created_at <= ?", roomID, at).
			Scan(&seq).Error; err != nil {
			return err
		}

		readAt := at
		if participant.LastReadAt != nil && participant.LastReadAt.After(at) {
			readAt = participant.LastReadAt.UTC()
		}
		if participant.LastReadSequence > seq {
			seq = participant.LastReadSequence
		}

		if err := tx.Model(&participant).Updates(map[string]any{
			"last_read_at":       readAt,
			"last_read_sequence": seq,
		}).Error; err != nil {
			return err
		}
		participant.LastReadAt = &readAt
		participant.LastReadSequence = seq
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotAMember) {
			return nil, err
		}
		return nil, unavailable("mark read", err)
	}
	return &participant, nil
}

// CreateRoom saves a new room and makes its creator an admin participant.
func (r *Repository) CreateRoom(ctx context.Context, room *domain.Room, creatorID int64) error {
	if err := room.Validate(); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}
		return tx.Create(&domain.Participant{
			RoomID:  room.ID,
			UserID:  creatorID,
			IsAdmin: true,
		}).Error
	})
	if err != nil {
		return unavailable("create room", err)
	}
	return nil
}

// GetRoom retrieves a room by its ID.
func (r *Repository) GetRoom(ctx context.Context, roomID int64) (*domain.Room, error) {
	var room domain.Room
	if err := r.db.WithContext(ctx).First(&room, "id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, unavailable("get room", err)
	}
	return &room, nil
}

// ListRoomsForUser returns the rooms a user participates in, most recently
// active first. UnreadCount is left at zero.
func (r *Repository) ListRoomsForUser(ctx context.Context, userID int64) ([]*domain.RoomSummary, error) {
	var participants []*domain.Participant
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&participants).Error; err != nil {
		return nil, unavailable("list participations", err)
	}
	if len(participants) == 0 {
		return []*domain.RoomSummary{}, nil
	}

	admin := make(map[int64]bool, len(participants))
	ids := make([]int64, 0, len(participants))
	for _, p := range participants {
		admin[p.RoomID] = p.IsAdmin
		ids = append(ids, p.RoomID)
	}

	var rooms []*domain.Room
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("last_message_at DESC, id ASC").
		Find(&rooms).Error; err != nil {
		return nil, unavailable("list rooms", err)
	}

	summaries := make([]*domain.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summaries = append(summaries, &domain.RoomSummary{Room: *room, IsAdmin: admin[room.ID]})
	}
	return summaries, nil
}

// AddParticipant adds a user to a room. Adding an existing participant is a
// no-op that returns the stored row and created=false.
func (r *Repository) AddParticipant(ctx context.Context, roomID, userID int64, isAdmin bool) (*domain.Participant, bool, error) {
	var (
		participant domain.Participant
		created     bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Room{}).Where("id = ?", roomID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrRoomNotFound
		}

		err := tx.First(&participant, "room_id = ? AND user_id = ?", roomID, userID).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		participant = domain.Participant{RoomID: roomID, UserID: userID, IsAdmin: isAdmin}
		if err := tx.Create(&participant).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			return nil, false, err
		}
		return nil, false, unavailable("add participant", err)
	}
	return &participant, created, nil
}

// GetParticipant retrieves a user's participation in a room.
func (r *Repository) GetParticipant(ctx context.Context, roomID, userID int64) (*domain.Participant, error) {
	var participant domain.Participant
	if err := r.db.WithContext(ctx).
		First(&participant, "room_id = ? AND user_id = ?", roomID, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotAMember
		}
		return nil, unavailable("get participant", err)
	}
	return &participant, nil
}

// IsParticipant reports whether a user participates in a room.
func (r *Repository) IsParticipant(ctx context.Context, roomID, userID int64) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.Participant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error; err != nil {
		return false, unavailable("check participant", err)
	}
	return count > 0, nil
}

// CountUnread counts the messages after the participant's read position that
// were written by someone else.
func (r *Repository) CountUnread(ctx context.Context, roomID, userID int64) (int64, error) {
	participant, err := r.GetParticipant(ctx, roomID, userID)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("room_id = ? AND sequence > ? AND user_id <> ?", roomID, participant.LastReadSequence, userID).
		Count(&count).Error; err != nil {
		return 0, unavailable("count unread", err)
	}
	return count, nil
}
