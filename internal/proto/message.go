package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	// Acknowledged verbs.
	InboundTypeCreateRoom = "createRoom"
	InboundTypeJoinRoom   = "joinRoom"
	// Fire-and-forget verbs. leaveRoom gets no ack (the client is
	// departing anyway); postMessage is observed via the broadcast.
	InboundTypeLeaveRoom   = "leaveRoom"
	InboundTypePostMessage = "postMessage"

	OutboundTypeAck   = "ack"
	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventRoomSnapshot = "roomSnapshot"
	EventChat         = "chatEvent"
	EventHistory      = "history"
)

// CreateRoomData requests a fresh room with the sender as first member.
type CreateRoomData struct {
	DisplayName string `json:"displayName"`
}

// JoinRoomData requests membership in an existing room.
type JoinRoomData struct {
	RoomCode    string `json:"roomCode"`
	DisplayName string `json:"displayName"`
}

// LeaveRoomData announces departure from a room.
type LeaveRoomData struct {
	RoomCode string `json:"roomCode"`
}

// PostMessageData is a chat message from the client.
type PostMessageData struct {
	RoomCode    string `json:"roomCode"`
	DisplayName string `json:"displayName"`
	Body        string `json:"body"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// AckData answers createRoom and joinRoom requests.
type AckData struct {
	Success  bool   `json:"success"`
	RoomCode string `json:"roomCode,omitempty"`
	Error    string `json:"error,omitempty"`
}

// SnapshotMember is one entry of a membership snapshot.
type SnapshotMember struct {
	ConnectionID string `json:"connectionId"`
	DisplayName  string `json:"displayName"`
}

// RoomSnapshotData is the full membership of a room. Clients replace
// their member list wholesale; the protocol never sends diffs.
type RoomSnapshotData struct {
	RoomCode string           `json:"roomCode"`
	Members  []SnapshotMember `json:"members"`
}

// ChatEventData is one chat message append. Timestamp is server-assigned,
// milliseconds since epoch.
type ChatEventData struct {
	DisplayName string `json:"displayName"`
	Body        string `json:"body"`
	Timestamp   int64  `json:"timestamp"`
}

// HistoryData replays retained messages to a late joiner, oldest first.
type HistoryData struct {
	RoomCode string          `json:"roomCode"`
	Messages []ChatEventData `json:"messages"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
