package chat

import (
	"errors"
	"unicode/utf8"
)

// Validation constants
const (
	MaxRoomNameLength = 100
	MaxMessageLength  = 5000
	MaxMetadataLength = 4096
)

// Chat error taxonomy.
var (
	ErrNotAMember       = errors.New("user is not a participant of the room")
	ErrRoomNotFound     = errors.New("room not found")
	ErrTransport        = errors.New("connection transport failed")
	ErrStoreUnavailable = errors.New("message store unavailable")
)

// Validation errors
var (
	ErrRoomNameEmpty    = errors.New("room name cannot be empty")
	ErrRoomNameTooLong  = errors.New("room name exceeds maximum length")
	ErrRoomNameInvalid  = errors.New("room name contains invalid characters")
	ErrInvalidRoomKind  = errors.New("room kind must be team, event or private")
	ErrInvalidRoomLink  = errors.New("room link does not match its kind")
	ErrMessageEmpty     = errors.New("message content cannot be empty")
	ErrMessageTooLong   = errors.New("message exceeds maximum length")
	ErrMessageInvalid   = errors.New("message contains invalid characters")
	ErrInvalidType      = errors.New("message type must be text, image or system")
	ErrMetadataTooLarge = errors.New("message metadata exceeds maximum length")
	ErrForbidden        = errors.New("operation requires room admin")
)

// Wire error codes.
const (
	CodeNotAMember       = "not_a_member"
	CodeRoomNotFound     = "room_not_found"
	CodeStoreUnavailable = "store_unavailable"
	CodeTransport        = "transport_error"
	CodeBadRequest       = "bad_request"
	CodeForbidden        = "forbidden"
	CodeRateLimited      = "rate_limited"
	CodeInternal         = "internal"
)

var validationErrors = []error{
	ErrRoomNameEmpty, ErrRoomNameTooLong, ErrRoomNameInvalid,
	ErrInvalidRoomKind, ErrInvalidRoomLink,
	ErrMessageEmpty, ErrMessageTooLong, ErrMessageInvalid,
	ErrInvalidType, ErrMetadataTooLarge,
}

// Error is an error that crossed a service boundary as a wire code.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewError captures err as a coded error.
func NewError(err error) *Error {
	return &Error{Code: CodeOf(err), Message: err.Error()}
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the sentinel for the code, if any.
func (e *Error) Unwrap() error {
	return ErrorFromCode(e.Code)
}

// CodeOf maps an error to its wire code.
func CodeOf(err error) string {
	var coded *Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &coded):
		return coded.Code
	case errors.Is(err, ErrNotAMember):
		return CodeNotAMember
	case errors.Is(err, ErrRoomNotFound):
		return CodeRoomNotFound
	case errors.Is(err, ErrStoreUnavailable):
		return CodeStoreUnavailable
	case errors.Is(err, ErrTransport):
		return CodeTransport
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return CodeBadRequest
		}
	}
	return CodeInternal
}

// ErrorFromCode rebuilds the sentinel for a wire code. Unknown codes yield nil.
func ErrorFromCode(code string) error {
	switch code {
	case CodeNotAMember:
		return ErrNotAMember
	case CodeRoomNotFound:
		return ErrRoomNotFound
	case CodeStoreUnavailable:
		return ErrStoreUnavailable
	case CodeTransport:
		return ErrTransport
	case CodeForbidden:
		return ErrForbidden
	}
	return nil
}

// ValidateRoomName validates a room name.
func ValidateRoomName(name string) error {
	if name == "" {
		return ErrRoomNameEmpty
	}
	if len(name) > MaxRoomNameLength {
		return ErrRoomNameTooLong
	}
	if !utf8.ValidString(name) {
		return ErrRoomNameInvalid
	}
	return nil
}

// ValidateMessage validates message content, type and metadata.
func ValidateMessage(content string, msgType MessageType, metadata []byte) error {
	if content == "" {
		return ErrMessageEmpty
	}
	if len(content) > MaxMessageLength {
		return ErrMessageTooLong
	}
	if !utf8.ValidString(content) {
		return ErrMessageInvalid
	}
	if !msgType.Valid() {
		return ErrInvalidType
	}
	if len(metadata) > MaxMetadataLength {
		return ErrMetadataTooLarge
	}
	return nil
}
