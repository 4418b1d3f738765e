package unread

import (
	"context"
	"sync"
	"time"

	domain "github.com/example/tournament-chat/domain/chat"
	"github.com/go-monolith/mono/pkg/types"
	"golang.org/x/sync/singleflight"
)

// Store is the part of the message store the tracker reconciles against.
type Store interface {
	MarkRead(ctx context.Context, roomID, userID int64, at time.Time) (*domain.Participant, error)
	CountUnread(ctx context.Context, roomID, userID int64) (int64, error)
}

// Tracker maintains unread counts per (room, user). Counts are kept
// incrementally in a CounterCache and rebuilt from the store when a key is
// unknown.
type Tracker struct {
	store  Store
	cache  CounterCache
	logger types.Logger

	group singleflight.Group

	locksMu sync.Mutex
	locks   map[int64]*roomLock
}

// roomLock is released from the map once nobody holds or waits on it.
type roomLock struct {
	mu   sync.Mutex
	refs int
}

// NewTracker creates a tracker.
func NewTracker(store Store, cache CounterCache, logger types.Logger) *Tracker {
	return &Tracker{
		store:  store,
		cache:  cache,
		logger: logger,
		locks:  make(map[int64]*roomLock),
	}
}

// Lock serializes counter updates for a room and returns the unlock func.
// Appending a message and recording it must happen under the same lock so a
// concurrent reconcile sees both or neither.
func (t *Tracker) Lock(roomID int64) func() {
	t.locksMu.Lock()
	l, ok := t.locks[roomID]
	if !ok {
		l = &roomLock{}
		t.locks[roomID] = l
	}
	l.refs++
	t.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		t.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, roomID)
		}
		t.locksMu.Unlock()
	}
}

// RecordMessage counts msg as unread for every participant except its author.
// Callers must hold Lock(msg.RoomID). Cache failures drop the affected key.
func (t *Tracker) RecordMessage(ctx context.Context, msg *domain.Message, participants []*domain.Participant) {
	for _, p := range participants {
		if p.UserID == msg.UserID {
			continue
		}
		key := counterKey(msg.RoomID, p.UserID)
		if err := t.cache.IncrIfPresent(ctx, key); err != nil {
			t.logger.Warn("Failed to increment unread counter",
				"roomID", msg.RoomID,
				"userID", p.UserID,
				"error", err)
			t.drop(ctx, key)
		}
	}
}

// MarkRead persists the read position and resets the counter to what the
// store still considers unread.
func (t *Tracker) MarkRead(ctx context.Context, roomID, userID int64, at time.Time) (*domain.Participant, int64, error) {
	unlock := t.Lock(roomID)
	defer unlock()

	participant, err := t.store.MarkRead(ctx, roomID, userID, at)
	if err != nil {
		return nil, 0, err
	}
	count, err := t.store.CountUnread(ctx, roomID, userID)
	if err != nil {
		t.drop(ctx, counterKey(roomID, userID))
		return participant, 0, err
	}
	t.set(ctx, roomID, userID, count)
	return participant, count, nil
}

// Count returns the unread count, reconciling when the cache does not know it.
func (t *Tracker) Count(ctx context.Context, roomID, userID int64) (int64, error) {
	v, ok, err := t.cache.Get(ctx, counterKey(roomID, userID))
	if err != nil {
		t.logger.Warn("Failed to read unread counter", "roomID", roomID, "userID", userID, "error", err)
	}
	if ok {
		return v, nil
	}
	return t.Reconcile(ctx, roomID, userID)
}

// Reconcile recomputes the unread count from the store and caches it.
// Concurrent reconciles of the same key share one store query.
func (t *Tracker) Reconcile(ctx context.Context, roomID, userID int64) (int64, error) {
	key := counterKey(roomID, userID)
	v, err, _ := t.group.Do(key, func() (any, error) {
		unlock := t.Lock(roomID)
		defer unlock()

		count, err := t.store.CountUnread(ctx, roomID, userID)
		if err != nil {
			return int64(0), err
		}
		t.set(ctx, roomID, userID, count)
		return count, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

func (t *Tracker) set(ctx context.Context, roomID, userID, count int64) {
	key := counterKey(roomID, userID)
	if err := t.cache.Set(ctx, key, count); err != nil {
		t.logger.Warn("Failed to store unread counter", "roomID", roomID, "userID", userID, "error", err)
		t.drop(ctx, key)
	}
}

func (t *Tracker) drop(ctx context.Context, key string) {
	if err := t.cache.Delete(ctx, key); err != nil {
		t.logger.Error("Failed to drop unread counter", "key", key, "error", err)
	}
}
