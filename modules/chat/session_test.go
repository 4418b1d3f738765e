package chat

import (
	"context"
	"fmt"
	"testing"

	domain "github.com/example/tournament-chat/domain/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func joinFrame(roomID, userID int64) string {
	return fmt.Sprintf(`{"type":"join","chatRoomId":%d,"userId":%d}`, roomID, userID)
}

func messageFrame(roomID int64, content string) string {
	return fmt.Sprintf(`{"type":"message","chatRoomId":%d,"content":%q}`, roomID, content)
}

func readFrame(roomID int64) string {
	return fmt.Sprintf(`{"type":"read","chatRoomId":%d}`, roomID)
}

func TestSession_ScenarioA_BothReceiveAndUnreadResets(t *testing.T) {
	h := newHarness(t, testSessionConfig())
	ctx := context.Background()
	room := h.room(t, 1, 2)

	s1 := h.open(t, 1)
	s2 := h.open(t, 2)

	frame(t, s1, joinFrame(room.ID, 1))
	nextOf[*domain.JoinedEvent](t, s1)
	frame(t, s2, joinFrame(room.ID, 2))
	nextOf[*domain.JoinedEvent](t, s2)

	frame(t, s1, messageFrame(room.ID, "hi"))

	got1 := nextOf[*domain.MessageEvent](t, s1)
	got2 := nextOf[*domain.MessageEvent](t, s2)
	assert.Equal(t, got1.Sequence, got2.Sequence)
	assert.Equal(t, "hi", got2.Content)
	assert.Equal(t, int64(1), got2.UserID)
	assert.Equal(t, domain.EventMessage, got2.Type)

	count, err := h.tracker.Count(ctx, room.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	frame(t, s2, readFrame(room.ID))
	read := nextOf[*domain.ReadEvent](t, s2)
	assert.Zero(t, read.UnreadCount)
	assert.Equal(t, got2.Sequence, read.LastReadSequence)

	count, err = h.tracker.Count(ctx, room.ID, 2)
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = h.tracker.Count(ctx, room.ID, 1)
	require.NoError(t, err)
	assert.Zero(t, count, "own messages never count as unread")

	require.Len(t, h.notifier.reads, 1)
	assert.Equal(t, int64(2), h.notifier.reads[0].UserID)
}

func TestSession_ScenarioB_ReconnectBackfillsGap(t *testing.T) {
	h := newHarness(t, testSessionConfig())
	ctx := context.Background()
	room := h.room(t, 1, 2)

	sender := h.open(t, 1)
	frame(t, sender, joinFrame(room.ID, 1))
	nextOf[*domain.JoinedEvent](t, sender)

	first := h.open(t, 2)
	frame(t, first, joinFrame(room.ID, 2))
	nextOf[*domain.JoinedEvent](t, first)

	frame(t, sender, messageFrame(room.ID, "before"))
	nextOf[*domain.MessageEvent](t, sender)
	lastKnown := nextOf[*domain.MessageEvent](t, first).Sequence
	frame(t, first, readFrame(room.ID))
	nextOf[*domain.ReadEvent](t, first)

	first.Close()
	assert.Equal(t, StateClosed, first.State())

	frame(t, sender, messageFrame(room.ID, "while away"))
	nextOf[*domain.MessageEvent](t, sender)

	missed, err := h.repo.ListMessages(ctx, room.ID, lastKnown, 0)
	require.NoError(t, err)
	require.Len(t, missed, 1)
	assert.Equal(t, "while away", missed[0].Content)

	second := h.open(t, 2)
	frame(t, second, fmt.Sprintf(`{"type":"join","chatRoomId":%d,"userId":2,"since":%d}`, room.ID, lastKnown))

	joined := nextOf[*domain.JoinedEvent](t, second)
	assert.Equal(t, int64(1), joined.UnreadCount)
	assert.Equal(t, missed[0].Sequence, joined.LastSequence)

	backfilled := nextOf[*domain.MessageEvent](t, second)
	assert.Equal(t, missed[0].Sequence, backfilled.Sequence)
	assert.Equal(t, "while away", backfilled.Content)
	assert.True(t, drained(second))
}

func TestSession_ScenarioC_SendWithoutJoin(t *testing.T) {
	h := newHarness(t, testSessionConfig())
	ctx := context.Background()
	room := h.room(t, 1)

	s := h.open(t, 1)
	frame(t, s, messageFrame(room.ID, "hello?"))

	ev := nextOf[*domain.ErrorEvent](t, s)
	assert.Equal(t, domain.CodeNotAMember, ev.Code)
	assert.Equal(t, room.ID, ev.ChatRoomID)

	messages, err := h.repo.ListMessages(ctx, room.ID, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, messages)
	assert.Zero(t, h.notifier.sentCount())
}

func TestSession_ProtocolErrors(t *testing.T) {
	h := newHarness(t, testSessionConfig())
	room := h.room(t, 1)
	h.room(t, 5)

	tests := []struct {
		name     string
		frame    string
		wantCode string
	}{
		{name: "malformed json", frame: `{"type":`, wantCode: domain.CodeBadRequest},
		{name: "missing type", frame: `{"chatRoomId":1}`, wantCode: domain.CodeBadRequest},
		{name: "unknown type", frame: `{"type":"typing","chatRoomId":1}`, wantCode: domain.CodeBadRequest},
		{name: "missing room", frame: `{"type":"join","userId":1}`, wantCode: domain.CodeBadRequest},
		{name: "impersonation", frame: joinFrame(room.ID, 2), wantCode: domain.CodeBadRequest},
		{name: "unknown room", frame: joinFrame(9999, 1), wantCode: domain.CodeRoomNotFound},
		{name: "foreign room", frame: joinFrame(room.ID+1, 1), wantCode: domain.CodeNotAMember},
		{name: "read foreign room", frame: readFrame(room.ID + 1), wantCode: domain.CodeNotAMember},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := h.open(t, 1)
			frame(t, s, tt.frame)

			ev := nextOf[*domain.ErrorEvent](t, s)
			assert.Equal(t, tt.wantCode, ev.Code)
			assert.NotEmpty(t, ev.Detail)
			assert.Equal(t, StateConnected, s.State(), "errors never close the session")
		})
	}
}

func TestSession_InvalidMessage(t *testing.T) {
	h := newHarness(t, testSessionConfig())
	room := h.room(t, 1)

	s := h.open(t, 1)
	frame(t, s, joinFrame(room.ID, 1))
	nextOf[*domain.JoinedEvent](t, s)

	frame(t, s, messageFrame(room.ID, ""))
	ev := nextOf[*domain.ErrorEvent](t, s)
	assert.Equal(t, domain.CodeBadRequest, ev.Code)

	frame(t, s, fmt.Sprintf(`{"type":"message","chatRoomId":%d,"content":"x","messageType":"video"}`, room.ID))
	ev = nextOf[*domain.ErrorEvent](t, s)
	assert.Equal(t, domain.CodeBadRequest, ev.Code)
}

func TestSession_StoreUnavailable(t *testing.T) {
	h := newHarness(t, testSessionConfig())
	room := h.room(t, 1)

	s := h.open(t, 1)
	frame(t, s, joinFrame(room.ID, 1))
	nextOf[*domain.JoinedEvent](t, s)

	sqlDB, err := h.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	frame(t, s, messageFrame(room.ID, "anyone?"))
	ev := nextOf[*domain.ErrorEvent](t, s)
	assert.Equal(t, domain.CodeStoreUnavailable, ev.Code)
	assert.Equal(t, domain.ErrStoreUnavailable.Error(), ev.Detail)
	assert.True(t, drained(s), "nothing is delivered when the append fails")
}

func TestSession_RateLimit(t *testing.T) {
	cfg := testSessionConfig()
	cfg.RatePerSecond = 0.001
	cfg.RateBurst = 2
	h := newHarness(t, cfg)
	room := h.room(t, 1)

	s := h.open(t, 1)
	frame(t, s, joinFrame(room.ID, 1))
	nextOf[*domain.JoinedEvent](t, s)

	frame(t, s, messageFrame(room.ID, "one"))
	frame(t, s, messageFrame(room.ID, "two"))
	frame(t, s, messageFrame(room.ID, "three"))

	nextOf[*domain.MessageEvent](t, s)
	nextOf[*domain.MessageEvent](t, s)
	ev := nextOf[*domain.ErrorEvent](t, s)
	assert.Equal(t, domain.CodeRateLimited, ev.Code)
}

func TestSession_StateTransitions(t *testing.T) {
	h := newHarness(t, testSessionConfig())
	room := h.room(t, 1)

	s := h.open(t, 1)
	assert.Equal(t, StateConnected, s.State())

	frame(t, s, joinFrame(room.ID, 1))
	nextOf[*domain.JoinedEvent](t, s)
	assert.Equal(t, StateJoined, s.State())

	frame(t, s, fmt.Sprintf(`{"type":"leave","chatRoomId":%d}`, room.ID))
	left := nextOf[*domain.LeftEvent](t, s)
	assert.Equal(t, room.ID, left.ChatRoomID)
	assert.Equal(t, StateConnected, s.State())

	s.Close()
	s.Close()
	assert.Equal(t, StateClosed, s.State())
	assert.ErrorIs(t, s.HandleFrame(context.Background(), []byte(joinFrame(room.ID, 1))), ErrSessionClosed)
	assert.Zero(t, h.gateway.Connections())
}

func TestSession_JoinIsIdempotent(t *testing.T) {
	h := newHarness(t, testSessionConfig())
	room := h.room(t, 1)

	s := h.open(t, 1)
	frame(t, s, joinFrame(room.ID, 1))
	frame(t, s, joinFrame(room.ID, 1))
	nextOf[*domain.JoinedEvent](t, s)
	nextOf[*domain.JoinedEvent](t, s)

	assert.Equal(t, 1, h.registry.RoomCount(room.ID))
	assert.Equal(t, 1, h.gateway.ActiveRooms())
}
