package api

import (
	"strconv"

	domain "github.com/example/tournament-chat/domain/chat"
	"github.com/example/tournament-chat/modules/chat"
	"github.com/example/tournament-chat/modules/store"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// setupRoutes configures all HTTP routes.
func (m *Module) setupRoutes() {
	// Health check
	m.app.Get("/health", m.healthHandler)

	auth := AuthMiddleware(m.verifier)

	// WebSocket endpoint
	m.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}, auth)
	m.app.Get("/ws", websocket.New(m.handleWebSocket))

	// REST API v1
	api := m.app.Group("/api/v1", auth)
	api.Get("/rooms", m.listRooms)
	api.Post("/rooms", m.createRoom)
	api.Get("/rooms/:id", m.getRoom)
	api.Get("/rooms/:id/messages", m.listMessages)
	api.Post("/rooms/:id/read", m.markRead)
	api.Post("/rooms/:id/participants", m.addParticipant)
}

// healthBusiestRooms caps the room ids reported by /health.
const healthBusiestRooms = 5

// healthHandler handles GET /health.
func (m *Module) healthHandler(c *fiber.Ctx) error {
	details := map[string]any{"module": "api"}
	if m.gateway != nil {
		details["connections"] = m.gateway.Connections()
		details["active_rooms"] = m.gateway.ActiveRooms()
	}
	if m.activity != nil {
		sum := m.activity.Summary()
		details["messages"] = sum.Messages
		details["evictions"] = sum.Evictions

		busiest := make([]int64, 0, healthBusiestRooms)
		for _, room := range m.activity.MostActive(healthBusiestRooms) {
			busiest = append(busiest, room.RoomID)
		}
		details["most_active_rooms"] = busiest
	}
	return c.JSON(HealthResponse{Status: "healthy", Details: details})
}

// listRooms handles GET /api/v1/rooms.
func (m *Module) listRooms(c *fiber.Ctx) error {
	rooms, err := m.chatAdapter.ListRooms(c.UserContext(), userIDFrom(c))
	if err != nil {
		return m.errorResponse(c, err)
	}
	return c.JSON(RoomListResponse{Rooms: rooms})
}

// createRoom handles POST /api/v1/rooms.
func (m *Module) createRoom(c *fiber.Ctx) error {
	var req CreateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	room, err := m.chatAdapter.CreateRoom(c.UserContext(), chat.CreateRoomRequest{
		Name:      req.Name,
		Kind:      req.Kind,
		TeamID:    req.TeamID,
		EventID:   req.EventID,
		CreatedBy: userIDFrom(c),
	})
	if err != nil {
		return m.errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(RoomResponse{Room: room})
}

// getRoom handles GET /api/v1/rooms/:id.
func (m *Module) getRoom(c *fiber.Ctx) error {
	roomID, ok := roomIDParam(c)
	if !ok {
		return badRequest(c, "Invalid room id")
	}

	detail, err := m.chatAdapter.GetRoom(c.UserContext(), roomID, userIDFrom(c))
	if err != nil {
		return m.errorResponse(c, err)
	}

	resp := RoomResponse{
		Room:         detail.Room,
		Participants: detail.Participants,
		Online:       detail.Online,
	}
	if m.activity != nil {
		if stats, ok := m.activity.Room(roomID); ok {
			resp.Activity = &stats
		}
	}
	return c.JSON(resp)
}

// listMessages handles GET /api/v1/rooms/:id/messages.
func (m *Module) listMessages(c *fiber.Ctx) error {
	roomID, ok := roomIDParam(c)
	if !ok {
		return badRequest(c, "Invalid room id")
	}

	var since int64
	if raw := c.Query("since"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			return badRequest(c, "since must be a non-negative integer")
		}
		since = v
	}
	limit := store.DefaultPageSize
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return badRequest(c, "limit must be an integer")
		}
		if v > 0 {
			limit = min(v, store.MaxPageSize)
		}
	}

	messages, err := m.chatAdapter.ListMessages(c.UserContext(), roomID, userIDFrom(c), since, limit)
	if err != nil {
		return m.errorResponse(c, err)
	}
	return c.JSON(MessagesResponse{ChatRoomID: roomID, Messages: messages})
}

// markRead handles POST /api/v1/rooms/:id/read.
func (m *Module) markRead(c *fiber.Ctx) error {
	roomID, ok := roomIDParam(c)
	if !ok {
		return badRequest(c, "Invalid room id")
	}

	participant, count, err := m.chatAdapter.MarkRead(c.UserContext(), roomID, userIDFrom(c))
	if err != nil {
		return m.errorResponse(c, err)
	}
	return c.JSON(ReadResponse{
		ChatRoomID:       roomID,
		LastReadSequence: participant.LastReadSequence,
		LastReadAt:       participant.LastReadAt,
		UnreadCount:      count,
	})
}

// addParticipant handles POST /api/v1/rooms/:id/participants.
func (m *Module) addParticipant(c *fiber.Ctx) error {
	roomID, ok := roomIDParam(c)
	if !ok {
		return badRequest(c, "Invalid room id")
	}

	var req AddParticipantRequest
	if err := c.BodyParser(&req); err != nil || req.UserID <= 0 {
		return badRequest(c, "userId is required")
	}

	participant, created, err := m.chatAdapter.AddParticipant(c.UserContext(), roomID, userIDFrom(c), req.UserID)
	if err != nil {
		return m.errorResponse(c, err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(ParticipantResponse{Participant: participant, Created: created})
}

// roomIDParam parses the :id route parameter.
func roomIDParam(c *fiber.Ctx) (int64, bool) {
	roomID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || roomID <= 0 {
		return 0, false
	}
	return roomID, true
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:   domain.CodeBadRequest,
		Message: message,
	})
}

// statusFor maps a wire error code to an HTTP status.
func statusFor(code string) int {
	switch code {
	case domain.CodeNotAMember, domain.CodeForbidden:
		return fiber.StatusForbidden
	case domain.CodeRoomNotFound:
		return fiber.StatusNotFound
	case domain.CodeBadRequest:
		return fiber.StatusBadRequest
	case domain.CodeStoreUnavailable:
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

// errorResponse writes err as an ErrorResponse with the mapped status.
func (m *Module) errorResponse(c *fiber.Ctx, err error) error {
	code := domain.CodeOf(err)
	message := err.Error()
	switch code {
	case domain.CodeStoreUnavailable:
		message = domain.ErrStoreUnavailable.Error()
		m.logger.Error("Request failed", "path", c.Path(), "error", err)
	case domain.CodeInternal, domain.CodeTransport:
		code = domain.CodeInternal
		message = "internal error"
		m.logger.Error("Request failed", "path", c.Path(), "error", err)
	}
	return c.Status(statusFor(code)).JSON(ErrorResponse{Error: code, Message: message})
}
