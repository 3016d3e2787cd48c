package core

import "errors"

// Error codes for domain errors, as seen on the wire.
const (
	ErrCodeRoomNotFound       = "room_not_found"
	ErrCodeRoomFull           = "room_full"
	ErrCodeAlreadyJoined      = "already_joined"
	ErrCodeNotAMember         = "not_a_member"
	ErrCodeMessageTooLong     = "message_too_long"
	ErrCodeBadRequest         = "bad_request"
	ErrCodeCodeSpaceExhausted = "code_space_exhausted"
	ErrCodeConnectivity       = "connectivity_failure"
)

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomFull           = errors.New("room full")
	ErrAlreadyJoined      = errors.New("already joined a room")
	ErrNotAMember         = errors.New("not a member of this room")
	ErrMessageTooLong     = errors.New("message too long")
	ErrBadRequest         = errors.New("bad request")
	ErrCodeSpaceExhausted = errors.New("room code space exhausted")

	// errRoomClosed marks a room that lost its last member and is being
	// removed from the registry; joiners see it as not found.
	errRoomClosed = errors.New("room closed")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// CodeOf maps a domain error to its wire code.
func CodeOf(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, errRoomClosed):
		return ErrCodeRoomNotFound
	case errors.Is(err, ErrRoomFull):
		return ErrCodeRoomFull
	case errors.Is(err, ErrAlreadyJoined):
		return ErrCodeAlreadyJoined
	case errors.Is(err, ErrNotAMember):
		return ErrCodeNotAMember
	case errors.Is(err, ErrMessageTooLong):
		return ErrCodeMessageTooLong
	case errors.Is(err, ErrCodeSpaceExhausted):
		return ErrCodeCodeSpaceExhausted
	default:
		return ErrCodeBadRequest
	}
}

// ErrorFromCode maps a wire code back to the matching domain error.
// Used by clients interpreting acknowledgement payloads.
func ErrorFromCode(code string) error {
	switch code {
	case ErrCodeRoomNotFound:
		return ErrRoomNotFound
	case ErrCodeRoomFull:
		return ErrRoomFull
	case ErrCodeAlreadyJoined:
		return ErrAlreadyJoined
	case ErrCodeNotAMember:
		return ErrNotAMember
	case ErrCodeMessageTooLong:
		return ErrMessageTooLong
	case ErrCodeCodeSpaceExhausted:
		return ErrCodeSpaceExhausted
	default:
		return ErrBadRequest
	}
}
