package api

import (
	"context"
	"errors"
	"time"

	domain "github.com/example/tournament-chat/domain/chat"
	"github.com/example/tournament-chat/modules/chat"
	"github.com/example/tournament-chat/modules/registry"
	"github.com/gofiber/contrib/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
	maxFrameSize = 32 << 10
)

// handleWebSocket serves one authenticated client at /ws. The handler
// goroutine reads frames; a writer goroutine owns every socket write.
func (m *Module) handleWebSocket(c *websocket.Conn) {
	userID, _ := c.Locals(UserIDKey).(int64)

	session, err := m.gateway.Open(userID)
	if err != nil {
		_ = c.WriteJSON(&domain.ErrorEvent{
			Type:   domain.EventError,
			Code:   domain.CodeInternal,
			Detail: "internal error",
		})
		return
	}
	connID := session.Connection().ID()
	m.logger.Info("WebSocket client connected", "connID", connID, "userID", userID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		m.writePump(c, session.Connection())
	}()
	defer func() {
		session.Close()
		<-writerDone
		m.logger.Info("WebSocket client disconnected", "connID", connID, "userID", userID)
	}()

	c.SetReadLimit(maxFrameSize)
	_ = c.SetReadDeadline(time.Now().Add(pongWait))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Warn("WebSocket read failed", "connID", connID, "error", err)
			}
			return
		}
		if err := session.HandleFrame(ctx, data); err != nil {
			if !errors.Is(err, chat.ErrSessionClosed) {
				m.logger.Warn("WebSocket session failed", "connID", connID, "error", err)
			}
			return
		}
	}
}

// writePump drains the connection's outbound events onto the socket until
// the connection is closed, either by the reader or by eviction.
func (m *Module) writePump(c *websocket.Conn, conn *registry.Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev := <-conn.Outbound():
			_ = c.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WriteJSON(ev); err != nil {
				m.logger.Debug("WebSocket write failed", "connID", conn.ID(), "error", err)
				conn.Close()
				_ = c.Close()
				return
			}
		case <-ticker.C:
			_ = c.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				_ = c.Close()
				return
			}
		case <-conn.Done():
			// unblocks the reader when the connection was evicted
			_ = c.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "connection closed"))
			_ = c.Close()
			return
		}
	}
}
