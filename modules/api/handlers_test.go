package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	domain "github.com/example/tournament-chat/domain/chat"
	"github.com/example/tournament-chat/modules/activity"
	"github.com/example/tournament-chat/modules/chat"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

// mockChatPort implements chat.ChatPort for testing
type mockChatPort struct {
	listRoomsFunc      func(ctx context.Context, userID int64) ([]*domain.RoomSummary, error)
	getRoomFunc        func(ctx context.Context, roomID, userID int64) (*chat.RoomDetail, error)
	listMessagesFunc   func(ctx context.Context, roomID, userID, since int64, limit int) ([]*domain.Message, error)
	markReadFunc       func(ctx context.Context, roomID, userID int64) (*domain.Participant, int64, error)
	createRoomFunc     func(ctx context.Context, req chat.CreateRoomRequest) (*domain.Room, error)
	addParticipantFunc func(ctx context.Context, roomID, actorID, userID int64) (*domain.Participant, bool, error)
}

var errNotImplemented = errors.New("not implemented")

func (m *mockChatPort) ListRooms(ctx context.Context, userID int64) ([]*domain.RoomSummary, error) {
	if m.listRoomsFunc != nil {
		return m.listRoomsFunc(ctx, userID)
	}
	return nil, errNotImplemented
}

func (m *mockChatPort) GetRoom(ctx context.Context, roomID, userID int64) (*chat.RoomDetail, error) {
	if m.getRoomFunc != nil {
		return m.getRoomFunc(ctx, roomID, userID)
	}
	return nil, errNotImplemented
}

func (m *mockChatPort) ListMessages(ctx context.Context, roomID, userID, since int64, limit int) ([]*domain.Message, error) {
	if m.listMessagesFunc != nil {
		return m.listMessagesFunc(ctx, roomID, userID, since, limit)
	}
	return nil, errNotImplemented
}

func (m *mockChatPort) MarkRead(ctx context.Context, roomID, userID int64) (*domain.Participant, int64, error) {
	if m.markReadFunc != nil {
		return m.markReadFunc(ctx, roomID, userID)
	}
	return nil, 0, errNotImplemented
}

func (m *mockChatPort) CreateRoom(ctx context.Context, req chat.CreateRoomRequest) (*domain.Room, error) {
	if m.createRoomFunc != nil {
		return m.createRoomFunc(ctx, req)
	}
	return nil, errNotImplemented
}

func (m *mockChatPort) AddParticipant(ctx context.Context, roomID, actorID, userID int64) (*domain.Participant, bool, error) {
	if m.addParticipantFunc != nil {
		return m.addParticipantFunc(ctx, roomID, actorID, userID)
	}
	return nil, false, errNotImplemented
}

// newTestModule builds the Fiber app around a mock port and returns it with
// a token for user 7.
func newTestModule(t *testing.T, port chat.ChatPort) (*Module, string) {
	t.Helper()
	m := NewModule(Config{Port: "0", JWTSecret: testSecret, CORSAllowedOrigins: "*"}, &mockLogger{})
	m.chatAdapter = port
	m.newApp()

	token, err := m.verifier.Issue(7, time.Minute)
	require.NoError(t, err)
	return m, token
}

func do(t *testing.T, m *Module, token, method, path, body string) (int, string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := m.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestHandlers_RequireAuth(t *testing.T) {
	m, _ := newTestModule(t, &mockChatPort{})

	status, _ := do(t, m, "", "GET", "/api/v1/rooms", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := do(t, m, "", "GET", "/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"healthy"`)
}

func TestHandlers_HealthReportsActivity(t *testing.T) {
	m, _ := newTestModule(t, &mockChatPort{})
	stats := activity.NewStats()
	base := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	for i := range 7 {
		stats.RecordMessage(int64(i+1), 1, 0, base.Add(time.Duration(i)*time.Minute))
	}
	m.SetActivity(stats)

	status, body := do(t, m, "", "GET", "/health", "")
	require.Equal(t, http.StatusOK, status)

	var resp struct {
		Details struct {
			Messages        int64   `json:"messages"`
			MostActiveRooms []int64 `json:"most_active_rooms"`
		} `json:"details"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	assert.Equal(t, int64(7), resp.Details.Messages)
	assert.Equal(t, []int64{7, 6, 5, 4, 3}, resp.Details.MostActiveRooms)
}

func TestHandlers_ListRooms(t *testing.T) {
	var gotUser int64
	m, token := newTestModule(t, &mockChatPort{
		listRoomsFunc: func(_ context.Context, userID int64) ([]*domain.RoomSummary, error) {
			gotUser = userID
			return []*domain.RoomSummary{
				{Room: domain.Room{ID: 3, Name: "Finals", Kind: domain.RoomKindEvent}, UnreadCount: 4},
			}, nil
		},
	})

	status, body := do(t, m, token, "GET", "/api/v1/rooms", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(7), gotUser, "rooms are listed for the token's user")

	var resp struct {
		Rooms []struct {
			ID          int64 `json:"id"`
			UnreadCount int64 `json:"unreadCount"`
		} `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	require.Len(t, resp.Rooms, 1)
	assert.Equal(t, int64(3), resp.Rooms[0].ID)
	assert.Equal(t, int64(4), resp.Rooms[0].UnreadCount)
}

func TestHandlers_ErrorMapping(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
		hiddenDetail   string
	}{
		{name: "not a member", err: domain.ErrNotAMember, expectedStatus: http.StatusForbidden, expectedCode: domain.CodeNotAMember},
		{name: "forbidden", err: domain.ErrForbidden, expectedStatus: http.StatusForbidden, expectedCode: domain.CodeForbidden},
		{name: "room not found", err: domain.ErrRoomNotFound, expectedStatus: http.StatusNotFound, expectedCode: domain.CodeRoomNotFound},
		{name: "validation", err: domain.ErrRoomNameEmpty, expectedStatus: http.StatusBadRequest, expectedCode: domain.CodeBadRequest},
		{
			name:           "store unavailable",
			err:            fmt.Errorf("failed to get room: %w: %w", domain.ErrStoreUnavailable, errors.New("database is locked")),
			expectedStatus: http.StatusServiceUnavailable,
			expectedCode:   domain.CodeStoreUnavailable,
			hiddenDetail:   "database is locked",
		},
		{
			name:           "coded error from the service container",
			err:            domain.NewError(domain.ErrRoomNotFound),
			expectedStatus: http.StatusNotFound,
			expectedCode:   domain.CodeRoomNotFound,
		},
		{
			name:           "unexpected",
			err:            errors.New("nats: timeout"),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   domain.CodeInternal,
			hiddenDetail:   "nats",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, token := newTestModule(t, &mockChatPort{
				getRoomFunc: func(context.Context, int64, int64) (*chat.RoomDetail, error) {
					return nil, tt.err
				},
			})

			status, body := do(t, m, token, "GET", "/api/v1/rooms/3", "")
			assert.Equal(t, tt.expectedStatus, status)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal([]byte(body), &resp))
			assert.Equal(t, tt.expectedCode, resp.Error)
			if tt.hiddenDetail != "" {
				assert.NotContains(t, resp.Message, tt.hiddenDetail)
			}
		})
	}
}

func TestHandlers_GetRoom(t *testing.T) {
	m, token := newTestModule(t, &mockChatPort{
		getRoomFunc: func(_ context.Context, roomID, userID int64) (*chat.RoomDetail, error) {
			return &chat.RoomDetail{
				Room:         &domain.Room{ID: roomID, Name: "Finals", Kind: domain.RoomKindPrivate},
				Participants: []*domain.Participant{{RoomID: roomID, UserID: userID, IsAdmin: true}},
				Online:       2,
			}, nil
		},
	})
	stats := activity.NewStats()
	stats.RecordMessage(3, 9, 0, time.Now())
	m.SetActivity(stats)

	status, body := do(t, m, token, "GET", "/api/v1/rooms/3", "")
	require.Equal(t, http.StatusOK, status)

	var resp RoomResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	assert.Equal(t, int64(3), resp.Room.ID)
	assert.Equal(t, 2, resp.Online)
	require.Len(t, resp.Participants, 1)
	require.NotNil(t, resp.Activity)
	assert.Equal(t, int64(9), resp.Activity.LastSequence)

	status, _ = do(t, m, token, "GET", "/api/v1/rooms/abc", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHandlers_ListMessages(t *testing.T) {
	var gotSince int64
	var gotLimit int
	m, token := newTestModule(t, &mockChatPort{
		listMessagesFunc: func(_ context.Context, roomID, _ int64, since int64, limit int) ([]*domain.Message, error) {
			gotSince, gotLimit = since, limit
			return []*domain.Message{{ID: 11, RoomID: roomID, Sequence: since + 1, Content: "gg"}}, nil
		},
	})

	tests := []struct {
		name      string
		query     string
		status    int
		wantSince int64
		wantLimit int
	}{
		{name: "defaults", query: "", status: http.StatusOK, wantSince: 0, wantLimit: 100},
		{name: "since and limit", query: "?since=5&limit=20", status: http.StatusOK, wantSince: 5, wantLimit: 20},
		{name: "limit above max is capped", query: "?limit=100000", status: http.StatusOK, wantSince: 0, wantLimit: 500},
		{name: "zero limit uses default", query: "?limit=0", status: http.StatusOK, wantSince: 0, wantLimit: 100},
		{name: "negative since", query: "?since=-1", status: http.StatusBadRequest},
		{name: "non-numeric since", query: "?since=abc", status: http.StatusBadRequest},
		{name: "non-numeric limit", query: "?limit=lots", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, m, token, "GET", "/api/v1/rooms/3/messages"+tt.query, "")
			require.Equal(t, tt.status, status)
			if tt.status != http.StatusOK {
				return
			}
			assert.Equal(t, tt.wantSince, gotSince)
			assert.Equal(t, tt.wantLimit, gotLimit)

			var resp MessagesResponse
			require.NoError(t, json.Unmarshal([]byte(body), &resp))
			assert.Equal(t, int64(3), resp.ChatRoomID)
			require.Len(t, resp.Messages, 1)
		})
	}
}

func TestHandlers_MarkRead(t *testing.T) {
	readAt := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	m, token := newTestModule(t, &mockChatPort{
		markReadFunc: func(_ context.Context, roomID, userID int64) (*domain.Participant, int64, error) {
			return &domain.Participant{RoomID: roomID, UserID: userID, LastReadSequence: 12, LastReadAt: &readAt}, 0, nil
		},
	})

	status, body := do(t, m, token, "POST", "/api/v1/rooms/3/read", "")
	require.Equal(t, http.StatusOK, status)

	var resp ReadResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	assert.Equal(t, int64(12), resp.LastReadSequence)
	assert.Zero(t, resp.UnreadCount)
	require.NotNil(t, resp.LastReadAt)
	assert.True(t, readAt.Equal(*resp.LastReadAt))
}

func TestHandlers_CreateRoom(t *testing.T) {
	var got chat.CreateRoomRequest
	m, token := newTestModule(t, &mockChatPort{
		createRoomFunc: func(_ context.Context, req chat.CreateRoomRequest) (*domain.Room, error) {
			got = req
			return &domain.Room{ID: 5, Name: req.Name, Kind: req.Kind, TeamID: req.TeamID}, nil
		},
	})

	status, body := do(t, m, token, "POST", "/api/v1/rooms", `{"name":"Falcons","kind":"team","teamId":12}`)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, int64(7), got.CreatedBy)
	assert.Equal(t, domain.RoomKindTeam, got.Kind)
	require.NotNil(t, got.TeamID)
	assert.Equal(t, int64(12), *got.TeamID)
	assert.Contains(t, body, `"name":"Falcons"`)

	status, _ = do(t, m, token, "POST", "/api/v1/rooms", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHandlers_AddParticipant(t *testing.T) {
	var calls int
	m, token := newTestModule(t, &mockChatPort{
		addParticipantFunc: func(_ context.Context, roomID, actorID, userID int64) (*domain.Participant, bool, error) {
			calls++
			assert.Equal(t, int64(7), actorID)
			return &domain.Participant{RoomID: roomID, UserID: userID}, calls == 1, nil
		},
	})

	status, _ := do(t, m, token, "POST", "/api/v1/rooms/3/participants", `{"userId":9}`)
	assert.Equal(t, http.StatusCreated, status)

	status, body := do(t, m, token, "POST", "/api/v1/rooms/3/participants", `{"userId":9}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"created":false`)

	status, _ = do(t, m, token, "POST", "/api/v1/rooms/3/participants", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 2, calls)
}

func TestHandlers_WebSocketRequiresUpgrade(t *testing.T) {
	m, token := newTestModule(t, &mockChatPort{})

	status, _ := do(t, m, token, "GET", "/ws", "")
	assert.Equal(t, http.StatusUpgradeRequired, status)
}
