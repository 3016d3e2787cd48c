package core

// EventKind is a notification the core emits to connections.
type EventKind int

const (
	// EventAck answers a createRoom/joinRoom request.
	EventAck EventKind = iota
	// EventRoomSnapshot carries the full membership list of a room.
	EventRoomSnapshot
	// EventChatMessage appends one chat message.
	EventChatMessage
	// EventHistory replays retained messages to a late joiner.
	EventHistory
	// EventError reports a request-level fault to one connection.
	EventError
)

// MemberInfo is one entry of a membership snapshot.
type MemberInfo struct {
	ConnectionID string
	DisplayName  string
}

// Ack is the result of an acknowledged request.
type Ack struct {
	Success  bool
	RoomCode string
	ErrCode  string
}

// Event is sent to connections to describe what happened. Snapshots are
// full state, never diffs: a connection that missed events is consistent
// again after the next snapshot it receives.
type Event struct {
	Kind     EventKind
	Room     string
	Ack      *Ack
	Members  []MemberInfo
	Message  ChatMessage
	Messages []ChatMessage
	Error    *CoreError
}
