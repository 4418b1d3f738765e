package registry

import (
	"context"
	"errors"
	"hash/fnv"
	"iter"
	"slices"
	"sync"

	domain "github.com/example/tournament-chat/domain/chat"
)

// Registry errors.
var (
	ErrAlreadyRegistered = errors.New("connection already registered")
	ErrNotRegistered     = errors.New("connection not registered")
)

const shardCount = 32

// MembershipChecker answers whether a user participates in a room.
type MembershipChecker interface {
	IsParticipant(ctx context.Context, roomID, userID int64) (bool, error)
}

type connShard struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

type roomShard struct {
	mu    sync.RWMutex
	rooms map[int64]map[string]*Connection
}

// Registry maps live connections to the rooms they joined.
//
// Connections and rooms are indexed in separate sharded maps. Any operation
// touching both takes the connection shard first and the room shard second.
type Registry struct {
	members MembershipChecker
	conns   [shardCount]connShard
	rooms   [shardCount]roomShard
}

// New creates an empty registry.
func New(members MembershipChecker) *Registry {
	r := &Registry{members: members}
	for i := range r.conns {
		r.conns[i].conns = make(map[string]*Connection)
	}
	for i := range r.rooms {
		r.rooms[i].rooms = make(map[int64]map[string]*Connection)
	}
	return r
}

func (r *Registry) connShard(id string) *connShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &r.conns[h.Sum32()%shardCount]
}

func (r *Registry) roomShard(roomID int64) *roomShard {
	return &r.rooms[uint64(roomID)%shardCount]
}

// Register adds a connection with no joined rooms.
func (r *Registry) Register(conn *Connection) error {
	if conn.Closed() {
		return ErrNotRegistered
	}
	s := r.connShard(conn.id)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conns[conn.id]; exists {
		return ErrAlreadyRegistered
	}
	s.conns[conn.id] = conn
	return nil
}

// Join subscribes a connection to a room after checking that its user
// participates in it. Joining twice is a no-op.
func (r *Registry) Join(ctx context.Context, conn *Connection, roomID int64) error {
	ok, err := r.members.IsParticipant(ctx, roomID, conn.userID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotAMember
	}

	s := r.connShard(conn.id)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conns[conn.id] != conn {
		return ErrNotRegistered
	}
	if _, joined := conn.rooms[roomID]; joined {
		return nil
	}
	conn.rooms[roomID] = struct{}{}

	rs := r.roomShard(roomID)
	rs.mu.Lock()
	members := rs.rooms[roomID]
	if members == nil {
		members = make(map[string]*Connection)
		rs.rooms[roomID] = members
	}
	members[conn.id] = conn
	rs.mu.Unlock()
	return nil
}

// Leave unsubscribes a connection from a room. Leaving a room that was never
// joined is a no-op.
func (r *Registry) Leave(conn *Connection, roomID int64) {
	s := r.connShard(conn.id)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conns[conn.id] != conn {
		return
	}
	if _, joined := conn.rooms[roomID]; !joined {
		return
	}
	delete(conn.rooms, roomID)
	r.removeFromRoom(conn, roomID)
}

// Unregister removes a connection from every room and from the registry.
// It is idempotent and safe to call concurrently with broadcasts.
func (r *Registry) Unregister(conn *Connection) {
	s := r.connShard(conn.id)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conns[conn.id] != conn {
		return
	}
	for roomID := range conn.rooms {
		r.removeFromRoom(conn, roomID)
	}
	clear(conn.rooms)
	delete(s.conns, conn.id)
}

// removeFromRoom must be called with the connection's shard locked.
func (r *Registry) removeFromRoom(conn *Connection, roomID int64) {
	rs := r.roomShard(roomID)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	members := rs.rooms[roomID]
	delete(members, conn.id)
	if len(members) == 0 {
		delete(rs.rooms, roomID)
	}
}

// ConnectionsInRoom returns the connections joined to a room at the time of
// the call. Later joins and leaves do not affect the returned sequence.
func (r *Registry) ConnectionsInRoom(roomID int64) iter.Seq[*Connection] {
	rs := r.roomShard(roomID)
	rs.mu.RLock()
	snapshot := make([]*Connection, 0, len(rs.rooms[roomID]))
	for _, conn := range rs.rooms[roomID] {
		snapshot = append(snapshot, conn)
	}
	rs.mu.RUnlock()

	return slices.Values(snapshot)
}

// IsJoined reports whether a registered connection has joined a room.
func (r *Registry) IsJoined(conn *Connection, roomID int64) bool {
	s := r.connShard(conn.id)
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.conns[conn.id] != conn {
		return false
	}
	_, joined := conn.rooms[roomID]
	return joined
}

// IsRegistered reports whether the connection is currently registered.
func (r *Registry) IsRegistered(conn *Connection) bool {
	s := r.connShard(conn.id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conns[conn.id] == conn
}

// RoomsOf returns the rooms a connection has joined in ascending order.
func (r *Registry) RoomsOf(conn *Connection) []int64 {
	s := r.connShard(conn.id)
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.conns[conn.id] != conn {
		return nil
	}
	rooms := make([]int64, 0, len(conn.rooms))
	for roomID := range conn.rooms {
		rooms = append(rooms, roomID)
	}
	slices.Sort(rooms)
	return rooms
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	total := 0
	for i := range r.conns {
		s := &r.conns[i]
		s.mu.RLock()
		total += len(s.conns)
		s.mu.RUnlock()
	}
	return total
}

// RoomCount returns the number of connections joined to a room.
func (r *Registry) RoomCount(roomID int64) int {
	rs := r.roomShard(roomID)
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.rooms[roomID])
}

// ActiveRooms returns the number of rooms with at least one joined connection.
func (r *Registry) ActiveRooms() int {
	total := 0
	for i := range r.rooms {
		rs := &r.rooms[i]
		rs.mu.RLock()
		total += len(rs.rooms)
		rs.mu.RUnlock()
	}
	return total
}

// CloseAll unregisters and closes every connection.
func (r *Registry) CloseAll() int {
	var conns []*Connection
	for i := range r.conns {
		s := &r.conns[i]
		s.mu.RLock()
		for _, conn := range s.conns {
			conns = append(conns, conn)
		}
		s.mu.RUnlock()
	}

	for _, conn := range conns {
		r.Unregister(conn)
		conn.Close()
	}
	return len(conns)
}
