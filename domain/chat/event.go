package chat

// EventType discriminates server to client events.
type EventType string

// Server event types.
const (
	EventMessage EventType = "message"
	EventError   EventType = "error"
	EventJoined  EventType = "joined"
	EventLeft    EventType = "left"
	EventRead    EventType = "read"
)

// Event is one server to client event. The set of implementations is closed.
type Event interface {
	EventType() EventType
}

// MessageEvent carries a persisted message.
type MessageEvent struct {
	Type EventType `json:"type"`
	Message
}

// NewMessageEvent wraps a persisted message.
func NewMessageEvent(msg *Message) *MessageEvent {
	return &MessageEvent{Type: EventMessage, Message: *msg}
}

// EventType implements Event.
func (e *MessageEvent) EventType() EventType { return EventMessage }

// ErrorEvent reports a failed request to the offending connection.
type ErrorEvent struct {
	Type       EventType `json:"type"`
	Code       string    `json:"code"`
	Detail     string    `json:"detail"`
	ChatRoomID int64     `json:"chatRoomId,omitempty"`
}

// NewErrorEvent builds an error event from an error.
func NewErrorEvent(roomID int64, err error) *ErrorEvent {
	return &ErrorEvent{Type: EventError, Code: CodeOf(err), Detail: err.Error(), ChatRoomID: roomID}
}

// EventType implements Event.
func (e *ErrorEvent) EventType() EventType { return EventError }

// JoinedEvent acknowledges a join.
type JoinedEvent struct {
	Type         EventType `json:"type"`
	ChatRoomID   int64     `json:"chatRoomId"`
	LastSequence int64     `json:"lastSequence"`
	UnreadCount  int64     `json:"unreadCount"`
}

// EventType implements Event.
func (e *JoinedEvent) EventType() EventType { return EventJoined }

// LeftEvent acknowledges a leave.
type LeftEvent struct {
	Type       EventType `json:"type"`
	ChatRoomID int64     `json:"chatRoomId"`
}

// EventType implements Event.
func (e *LeftEvent) EventType() EventType { return EventLeft }

// ReadEvent acknowledges a read marker update.
type ReadEvent struct {
	Type             EventType `json:"type"`
	ChatRoomID       int64     `json:"chatRoomId"`
	LastReadSequence int64     `json:"lastReadSequence"`
	UnreadCount      int64     `json:"unreadCount"`
}

// EventType implements Event.
func (e *ReadEvent) EventType() EventType { return EventRead }
