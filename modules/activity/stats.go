package activity

import (
	"cmp"
	"slices"
	"sync"
	"time"
)

// RoomStats holds activity counters for a single room.
type RoomStats struct {
	RoomID            int64     `json:"room_id"`
	RoomName          string    `json:"room_name,omitempty"`
	Messages          int64     `json:"messages"`
	Reads             int64     `json:"reads"`
	ParticipantsAdded int64     `json:"participants_added"`
	Evictions         int64     `json:"evictions"`
	LastSequence      int64     `json:"last_sequence"`
	LastActivity      time.Time `json:"last_activity,omitempty"`
}

// Summary aggregates activity across all rooms.
type Summary struct {
	Rooms        int   `json:"rooms"`
	RoomsCreated int64 `json:"rooms_created"`
	Messages     int64 `json:"messages"`
	Reads        int64 `json:"reads"`
	Evictions    int64 `json:"evictions"`
}

// Stats provides thread-safe storage for room activity.
type Stats struct {
	mu           sync.RWMutex
	rooms        map[int64]*RoomStats
	roomsCreated int64
}

// NewStats creates an empty activity store.
func NewStats() *Stats {
	return &Stats{rooms: make(map[int64]*RoomStats)}
}

// room returns the stats entry for roomID, creating it. Callers hold mu.
func (s *Stats) room(roomID int64) *RoomStats {
	stats, ok := s.rooms[roomID]
	if !ok {
		stats = &RoomStats{RoomID: roomID}
		s.rooms[roomID] = stats
	}
	return stats
}

func touch(stats *RoomStats, at time.Time) {
	if at.After(stats.LastActivity) {
		stats.LastActivity = at
	}
}

// RecordRoomCreated records a new room.
func (s *Stats) RecordRoomCreated(roomID int64, name string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.roomsCreated++
	stats := s.room(roomID)
	stats.RoomName = name
	touch(stats, at)
}

// RecordMessage records a delivered message.
func (s *Stats) RecordMessage(roomID, sequence int64, evicted int, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.room(roomID)
	stats.Messages++
	stats.Evictions += int64(evicted)
	// events may arrive out of order
	stats.LastSequence = max(stats.LastSequence, sequence)
	touch(stats, at)
}

// RecordRead records a read marker update.
func (s *Stats) RecordRead(roomID int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.room(roomID)
	stats.Reads++
	touch(stats, at)
}

// RecordParticipantAdded records an invite.
func (s *Stats) RecordParticipantAdded(roomID int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.room(roomID)
	stats.ParticipantsAdded++
	touch(stats, at)
}

// Room returns a copy of the stats for roomID.
func (s *Stats) Room(roomID int64) (RoomStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats, ok := s.rooms[roomID]
	if !ok {
		return RoomStats{}, false
	}
	return *stats, true
}

// MostActive returns up to limit rooms ordered by most recent activity.
func (s *Stats) MostActive(limit int) []RoomStats {
	s.mu.RLock()
	result := make([]RoomStats, 0, len(s.rooms))
	for _, stats := range s.rooms {
		result = append(result, *stats)
	}
	s.mu.RUnlock()

	slices.SortFunc(result, func(a, b RoomStats) int {
		if c := b.LastActivity.Compare(a.LastActivity); c != 0 {
			return c
		}
		return cmp.Compare(a.RoomID, b.RoomID)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// Summary returns totals across all rooms.
func (s *Stats) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := Summary{Rooms: len(s.rooms), RoomsCreated: s.roomsCreated}
	for _, stats := range s.rooms {
		sum.Messages += stats.Messages
		sum.Reads += stats.Reads
		sum.Evictions += stats.Evictions
	}
	return sum
}
