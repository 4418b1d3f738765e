package chat

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	domain "github.com/example/tournament-chat/domain/chat"
	"github.com/example/tournament-chat/modules/registry"
	"github.com/example/tournament-chat/modules/store"
	"github.com/example/tournament-chat/modules/unread"
	"github.com/go-monolith/mono/pkg/types"
	"golang.org/x/time/rate"
)

// State is the lifecycle state of a session.
type State int

// Session states.
const (
	StateConnected State = iota
	StateJoined
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// SessionConfig tunes live sessions.
type SessionConfig struct {
	DeliverTimeout time.Duration
	OutboundBuffer int
	RatePerSecond  float64
	RateBurst      int
}

// DefaultSessionConfig returns the default session configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		DeliverTimeout: 2 * time.Second,
		OutboundBuffer: registry.DefaultOutboundBuffer,
		RatePerSecond:  10,
		RateBurst:      20,
	}
}

// Gateway opens sessions for authenticated users.
type Gateway struct {
	cfg         SessionConfig
	registry    *registry.Registry
	store       store.MessageStore
	tracker     *unread.Tracker
	service     *Service
	broadcaster *Broadcaster
	logger      types.Logger
}

// NewGateway creates a gateway.
func NewGateway(
	cfg SessionConfig,
	reg *registry.Registry,
	st store.MessageStore,
	tracker *unread.Tracker,
	service *Service,
	broadcaster *Broadcaster,
	logger types.Logger,
) *Gateway {
	return &Gateway{
		cfg:         cfg,
		registry:    reg,
		store:       st,
		tracker:     tracker,
		service:     service,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Open registers a new connection for userID and returns its session.
func (g *Gateway) Open(userID int64) (*Session, error) {
	conn := registry.NewConnection(userID, g.cfg.OutboundBuffer)
	if err := g.registry.Register(conn); err != nil {
		g.logger.Error("Connection registration failed",
			"connID", conn.ID(),
			"userID", userID,
			"error", err)
		conn.Close()
		return nil, fmt.Errorf("failed to register connection: %w", err)
	}

	g.logger.Debug("Session opened", "connID", conn.ID(), "userID", userID)
	return &Session{
		gw:      g,
		conn:    conn,
		limiter: rate.NewLimiter(rate.Limit(g.cfg.RatePerSecond), g.cfg.RateBurst),
	}, nil
}

// Connections returns the number of live connections.
func (g *Gateway) Connections() int {
	return g.registry.Count()
}

// ActiveRooms returns the number of rooms with at least one live connection.
func (g *Gateway) ActiveRooms() int {
	return g.registry.ActiveRooms()
}

// Session is the server side of one client connection.
type Session struct {
	gw      *Gateway
	conn    *registry.Connection
	limiter *rate.Limiter
	closed  atomic.Bool
}

// Connection returns the underlying registry connection.
func (s *Session) Connection() *registry.Connection {
	return s.conn
}

// State derives the session state from the registry.
func (s *Session) State() State {
	if s.closed.Load() || s.conn.Closed() || !s.gw.registry.IsRegistered(s.conn) {
		return StateClosed
	}
	if len(s.gw.registry.RoomsOf(s.conn)) > 0 {
		return StateJoined
	}
	return StateConnected
}

// Close unregisters the connection. It is idempotent.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.gw.registry.Unregister(s.conn)
	s.conn.Close()
	s.gw.logger.Debug("Session closed", "connID", s.conn.ID(), "userID", s.conn.UserID())
}

// HandleFrame processes one raw client frame. Request failures are reported
// to the client as error events; the returned error is non-nil only when the
// session can no longer be used.
func (s *Session) HandleFrame(ctx context.Context, data []byte) error {
	if s.State() == StateClosed {
		return ErrSessionClosed
	}

	frame, err := DecodeFrame(data)
	if err != nil {
		var roomID int64
		if frame != nil {
			roomID = frame.ChatRoomID
		}
		return s.reject(ctx, roomID, err)
	}

	switch frame.Type {
	case FrameJoin:
		err = s.join(ctx, frame)
	case FrameLeave:
		err = s.leave(ctx, frame)
	case FrameMessage:
		err = s.message(ctx, frame)
	case FrameRead:
		err = s.read(ctx, frame)
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrTransport) {
		return err
	}
	return s.reject(ctx, frame.ChatRoomID, err)
}

// reject reports err to this connection only.
func (s *Session) reject(ctx context.Context, roomID int64, err error) error {
	ev := errorEvent(roomID, err)
	if ev.Code == domain.CodeInternal || ev.Code == domain.CodeStoreUnavailable {
		s.gw.logger.Error("Frame failed",
			"connID", s.conn.ID(),
			"userID", s.conn.UserID(),
			"roomID", roomID,
			"error", err)
	}
	return s.push(ctx, ev)
}

func (s *Session) push(ctx context.Context, ev domain.Event) error {
	return s.conn.Deliver(ctx, ev, s.gw.cfg.DeliverTimeout)
}

// join subscribes to a room. With since set, every message after since is
// pushed once the connection is registered in the room, so nothing sent in
// between is missed. Clients dedupe the overlap by sequence.
func (s *Session) join(ctx context.Context, f *Frame) error {
	if f.UserID != 0 && f.UserID != s.conn.UserID() {
		return ErrUserMismatch
	}
	room, err := s.gw.store.GetRoom(ctx, f.ChatRoomID)
	if err != nil {
		return err
	}
	if err := s.gw.registry.Join(ctx, s.conn, f.ChatRoomID); err != nil {
		if errors.Is(err, registry.ErrNotRegistered) {
			return fmt.Errorf("%w: %w", ErrSessionClosed, domain.ErrTransport)
		}
		return err
	}

	count, err := s.gw.tracker.Count(ctx, f.ChatRoomID, s.conn.UserID())
	if err != nil {
		return err
	}
	if err := s.push(ctx, &domain.JoinedEvent{
		Type:         domain.EventJoined,
		ChatRoomID:   f.ChatRoomID,
		LastSequence: room.LastSequence,
		UnreadCount:  count,
	}); err != nil {
		return err
	}

	if f.Since != nil {
		return s.backfill(ctx, f.ChatRoomID, *f.Since)
	}
	return nil
}

func (s *Session) backfill(ctx context.Context, roomID, since int64) error {
	for {
		messages, err := s.gw.store.ListMessages(ctx, roomID, since, store.MaxPageSize)
		if err != nil {
			return err
		}
		for _, msg := range messages {
			if err := s.push(ctx, domain.NewMessageEvent(msg)); err != nil {
				return err
			}
			since = msg.Sequence
		}
		if len(messages) < store.MaxPageSize {
			return nil
		}
	}
}

func (s *Session) leave(ctx context.Context, f *Frame) error {
	s.gw.registry.Leave(s.conn, f.ChatRoomID)
	return s.push(ctx, &domain.LeftEvent{Type: domain.EventLeft, ChatRoomID: f.ChatRoomID})
}

func (s *Session) message(ctx context.Context, f *Frame) error {
	if !s.limiter.Allow() {
		return ErrRateLimited
	}
	_, err := s.gw.broadcaster.Send(ctx, s.conn, f.ChatRoomID, f.Content, f.MessageType, f.Metadata)
	return err
}

func (s *Session) read(ctx context.Context, f *Frame) error {
	participant, count, err := s.gw.service.MarkRead(ctx, f.ChatRoomID, s.conn.UserID())
	if err != nil {
		return err
	}
	return s.push(ctx, &domain.ReadEvent{
		Type:             domain.EventRead,
		ChatRoomID:       f.ChatRoomID,
		LastReadSequence: participant.LastReadSequence,
		UnreadCount:      count,
	})
}
