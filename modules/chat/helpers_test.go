package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	domain "github.com/example/tournament-chat/domain/chat"
	"github.com/example/tournament-chat/modules/registry"
	"github.com/example/tournament-chat/modules/store"
	"github.com/example/tournament-chat/modules/unread"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any)         {}
func (m *mockLogger) Info(msg string, args ...any)          {}
func (m *mockLogger) Warn(msg string, args ...any)          {}
func (m *mockLogger) Error(msg string, args ...any)         {}
func (m *mockLogger) With(args ...any) types.Logger         { return m }
func (m *mockLogger) WithError(err error) types.Logger      { return m }
func (m *mockLogger) WithModule(module string) types.Logger { return m }

// recordingNotifier keeps every notification it receives.
type recordingNotifier struct {
	mu           sync.Mutex
	sent         []*domain.Message
	reports      []DeliveryReport
	reads        []*domain.Participant
	added        []*domain.Participant
	createdRooms []*domain.Room
}

func (n *recordingNotifier) MessageSent(_ context.Context, msg *domain.Message, report DeliveryReport) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	n.reports = append(n.reports, report)
}

func (n *recordingNotifier) RoomRead(_ context.Context, p *domain.Participant) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reads = append(n.reads, p)
}

func (n *recordingNotifier) ParticipantAdded(_ context.Context, p *domain.Participant, _ int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.added = append(n.added, p)
}

func (n *recordingNotifier) RoomCreated(_ context.Context, room *domain.Room, _ int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.createdRooms = append(n.createdRooms, room)
}

func (n *recordingNotifier) sentCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type harness struct {
	db          *gorm.DB
	repo        *store.Repository
	registry    *registry.Registry
	tracker     *unread.Tracker
	notifier    *recordingNotifier
	service     *Service
	broadcaster *Broadcaster
	gateway     *Gateway
}

func newHarness(t *testing.T, cfg SessionConfig) *harness {
	t.Helper()

	db, err := store.Open(":memory:", false)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	logger := &mockLogger{}
	h := &harness{
		db:       db,
		repo:     store.NewRepository(db),
		notifier: &recordingNotifier{},
	}
	h.registry = registry.New(h.repo)
	h.tracker = unread.NewTracker(h.repo, unread.NewMemoryCache(), logger)
	h.service = NewService(h.repo, h.tracker, h.registry, h.notifier, logger)
	h.broadcaster = NewBroadcaster(h.repo, h.registry, h.tracker, h.notifier, cfg.DeliverTimeout, logger)
	h.gateway = NewGateway(cfg, h.registry, h.repo, h.tracker, h.service, h.broadcaster, logger)
	return h
}

func testSessionConfig() SessionConfig {
	cfg := DefaultSessionConfig()
	cfg.DeliverTimeout = 50 * time.Millisecond
	return cfg
}

// room creates a private room owned by creatorID with the given members.
func (h *harness) room(t *testing.T, creatorID int64, members ...int64) *domain.Room {
	t.Helper()
	ctx := context.Background()

	room := &domain.Room{Name: "Semi finals", Kind: domain.RoomKindPrivate}
	require.NoError(t, h.repo.CreateRoom(ctx, room, creatorID))
	for _, userID := range members {
		_, _, err := h.repo.AddParticipant(ctx, room.ID, userID, false)
		require.NoError(t, err)
	}
	return room
}

func (h *harness) open(t *testing.T, userID int64) *Session {
	t.Helper()
	s, err := h.gateway.Open(userID)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

// frame sends a raw frame and fails the test on a transport error.
func frame(t *testing.T, s *Session, raw string) {
	t.Helper()
	require.NoError(t, s.HandleFrame(context.Background(), []byte(raw)))
}

// next waits for the next event queued on the session's connection.
func next(t *testing.T, s *Session) domain.Event {
	t.Helper()
	select {
	case ev := <-s.Connection().Outbound():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

// nextOf waits for the next event and asserts its concrete type.
func nextOf[T domain.Event](t *testing.T, s *Session) T {
	t.Helper()
	ev := next(t, s)
	typed, ok := ev.(T)
	require.Truef(t, ok, "unexpected event %T: %+v", ev, ev)
	return typed
}

// drained reports whether no event is queued.
func drained(s *Session) bool {
	select {
	case <-s.Connection().Outbound():
		return false
	default:
		return true
	}
}
