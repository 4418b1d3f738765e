package chat

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync/atomic"
	"time"

	domain "github.com/example/tournament-chat/domain/chat"
	"github.com/example/tournament-chat/modules/registry"
	"github.com/example/tournament-chat/modules/store"
	"github.com/example/tournament-chat/modules/unread"
	"github.com/go-monolith/mono/pkg/types"
	"golang.org/x/sync/errgroup"
)

// maxParallelDeliveries bounds the goroutines one broadcast may run at once.
const maxParallelDeliveries = 64

// DeliveryReport summarizes one fan-out.
type DeliveryReport struct {
	Delivered int
	Evicted   int
}

// Broadcaster persists messages and fans them out to the connections joined
// to their room.
type Broadcaster struct {
	store          store.MessageStore
	registry       *registry.Registry
	tracker        *unread.Tracker
	notifier       Notifier
	deliverTimeout time.Duration
	logger         types.Logger
}

// NewBroadcaster creates a broadcaster.
func NewBroadcaster(
	st store.MessageStore,
	reg *registry.Registry,
	tracker *unread.Tracker,
	notifier Notifier,
	deliverTimeout time.Duration,
	logger types.Logger,
) *Broadcaster {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Broadcaster{
		store:          st,
		registry:       reg,
		tracker:        tracker,
		notifier:       notifier,
		deliverTimeout: deliverTimeout,
		logger:         logger,
	}
}

// Send persists a message from conn's user to roomID and delivers it to every
// connection joined to the room, the sender's included. The connection must
// have joined the room and its user must still participate in it; otherwise
// nothing is persisted.
func (b *Broadcaster) Send(
	ctx context.Context,
	conn *registry.Connection,
	roomID int64,
	content string,
	msgType domain.MessageType,
	metadata json.RawMessage,
) (*domain.Message, error) {
	if !b.registry.IsJoined(conn, roomID) {
		return nil, domain.ErrNotAMember
	}

	msg, err := b.persist(ctx, roomID, conn.UserID(), content, msgType, metadata)
	if err != nil {
		return nil, err
	}

	// the sender hanging up must not cut delivery to everyone else
	report := b.fanOut(context.WithoutCancel(ctx), msg)
	b.notifier.MessageSent(ctx, msg, report)
	return msg, nil
}

// persist appends the message and records it as unread under the room lock.
func (b *Broadcaster) persist(
	ctx context.Context,
	roomID, userID int64,
	content string,
	msgType domain.MessageType,
	metadata json.RawMessage,
) (*domain.Message, error) {
	unlock := b.tracker.Lock(roomID)
	defer unlock()

	participants, err := b.store.ListParticipants(ctx, roomID)
	if err != nil {
		return nil, err
	}
	isParticipant := slices.ContainsFunc(participants, func(p *domain.Participant) bool {
		return p.UserID == userID
	})
	if !isParticipant {
		return nil, domain.ErrNotAMember
	}

	msg, err := b.store.AppendMessage(ctx, roomID, userID, content, msgType, metadata)
	if err != nil {
		return nil, err
	}
	b.tracker.RecordMessage(ctx, msg, participants)
	return msg, nil
}

// fanOut delivers msg to a snapshot of the room. Each delivery is bounded by
// the deliver timeout; connections that time out or are closed get evicted.
func (b *Broadcaster) fanOut(ctx context.Context, msg *domain.Message) DeliveryReport {
	ev := domain.NewMessageEvent(msg)

	var delivered, evicted atomic.Int64
	var g errgroup.Group
	g.SetLimit(maxParallelDeliveries)

	for conn := range b.registry.ConnectionsInRoom(msg.RoomID) {
		g.Go(func() error {
			if err := conn.Deliver(ctx, ev, b.deliverTimeout); err != nil {
				b.evict(conn, msg.RoomID, err)
				evicted.Add(1)
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return DeliveryReport{Delivered: int(delivered.Load()), Evicted: int(evicted.Load())}
}

// evict treats a failed delivery as a disconnect.
func (b *Broadcaster) evict(conn *registry.Connection, roomID int64, cause error) {
	b.registry.Unregister(conn)
	conn.Close()

	if errors.Is(cause, registry.ErrConnectionClosed) {
		b.logger.Debug("Dropped closed connection during broadcast",
			"connID", conn.ID(),
			"roomID", roomID)
		return
	}
	b.logger.Warn("Evicted unresponsive connection",
		"connID", conn.ID(),
		"userID", conn.UserID(),
		"roomID", roomID,
		"error", cause)
}
