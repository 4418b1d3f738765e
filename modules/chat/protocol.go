package chat

import (
	"encoding/json"
	"errors"
	"fmt"

	domain "github.com/example/tournament-chat/domain/chat"
)

// Frame types sent by clients.
const (
	FrameJoin    = "join"
	FrameLeave   = "leave"
	FrameMessage = "message"
	FrameRead    = "read"
)

// Protocol errors. All map to the bad_request code.
var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownFrame   = errors.New("unknown frame type")
	ErrMissingRoom    = errors.New("chatRoomId is required")
	ErrUserMismatch   = errors.New("userId does not match the authenticated user")
	ErrRateLimited    = errors.New("too many frames, slow down")
	ErrSessionClosed  = errors.New("session closed")
)

// Frame is one client to server frame.
type Frame struct {
	Type        string             `json:"type"`
	ChatRoomID  int64              `json:"chatRoomId"`
	UserID      int64              `json:"userId,omitempty"`
	Since       *int64             `json:"since,omitempty"`
	Content     string             `json:"content,omitempty"`
	MessageType domain.MessageType `json:"messageType,omitempty"`
	Metadata    json.RawMessage    `json:"metadata,omitempty"`
}

// DecodeFrame parses and shape-checks a client frame.
func DecodeFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	switch f.Type {
	case FrameJoin, FrameLeave, FrameMessage, FrameRead:
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFrame, f.Type)
	}
	if f.ChatRoomID <= 0 {
		return &f, ErrMissingRoom
	}
	if f.Type == FrameMessage && f.MessageType == "" {
		f.MessageType = domain.MessageTypeText
	}
	return &f, nil
}

// errorCode maps session errors onto wire codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return domain.CodeRateLimited
	case errors.Is(err, ErrMalformedFrame),
		errors.Is(err, ErrUnknownFrame),
		errors.Is(err, ErrMissingRoom),
		errors.Is(err, ErrUserMismatch):
		return domain.CodeBadRequest
	}
	return domain.CodeOf(err)
}

// errorEvent builds the error event sent back to the offending connection.
func errorEvent(roomID int64, err error) *domain.ErrorEvent {
	ev := domain.NewErrorEvent(roomID, err)
	ev.Code = errorCode(err)
	// driver and runtime details stay in the logs
	switch ev.Code {
	case domain.CodeStoreUnavailable:
		ev.Detail = domain.ErrStoreUnavailable.Error()
	case domain.CodeInternal:
		ev.Detail = "internal error"
	}
	return ev
}
