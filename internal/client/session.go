// Package client implements the session controller a chat client runs:
// it issues create/join/leave/post requests over one WebSocket
// connection, surfaces acknowledgements and pushed events through an
// explicit handler table, and replays the join after a dropped
// connection. A reconnect is a brand-new connection identity; the
// server never resumes sessions.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/dungeonparty/room-server/internal/core"
	"github.com/dungeonparty/room-server/internal/proto"
)

const (
	// DialTimeout bounds connection establishment; past it the user
	// gets a connectivity error, not a spinner.
	DialTimeout = 5 * time.Second

	ackTimeout        = 5 * time.Second
	maxRejoinAttempts = 5
	rejoinBackoff     = time.Second
)

// ErrConnectivity is returned for handshake failures, ack timeouts, and
// transport drops. It is the whole story the user needs.
var ErrConnectivity = errors.New("unable to reach the server, check your network")

// Member is one entry of a membership snapshot.
type Member struct {
	ConnectionID string
	DisplayName  string
}

// ChatMessage is one received chat message.
type ChatMessage struct {
	DisplayName string
	Body        string
	SentAt      time.Time
}

// Handlers is the table of callbacks a session invokes for pushed
// events. Passed at construction; nil entries are skipped.
type Handlers struct {
	OnSnapshot   func(roomCode string, members []Member)
	OnChat       func(msg ChatMessage)
	OnHistory    func(roomCode string, msgs []ChatMessage)
	OnError      func(code, msg string)
	OnDisconnect func(err error)
}

// Options tunes session behavior.
type Options struct {
	// Rejoin replays the join request on a new connection after an
	// unexpected drop while in a room.
	Rejoin bool
}

// Session is one client's connection to the room server. A session owns
// exactly one live connection at a time; Close is idempotent, so a
// transient session used only for a create/join either hands its
// connection to the room view or is released on failure, never both.
type Session struct {
	url      string
	handlers Handlers
	opts     Options

	mu          sync.Mutex
	conn        *websocket.Conn
	state       core.ConnState
	roomCode    string
	displayName string
	closed      bool
	cancelRead  context.CancelFunc

	acks chan proto.AckData
}

// Dial connects to the server and starts the read pump.
func Dial(ctx context.Context, url string, handlers Handlers, opts Options) (*Session, error) {
	s := &Session{
		url:      url,
		handlers: handlers,
		opts:     opts,
		state:    core.StateDisconnected,
		acks:     make(chan proto.AckData, 1),
	}
	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) connect(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, DialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, s.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectivity, err)
	}

	readCtx, cancelRead := context.WithCancel(context.Background())

	s.mu.Lock()
	s.conn = conn
	s.state = core.StateConnected
	s.cancelRead = cancelRead
	s.mu.Unlock()

	go s.readPump(readCtx, conn)
	return nil
}

// CreateRoom asks the server for a fresh room and waits for the
// acknowledgement. On success the session is in the room and the new
// room code is returned.
func (s *Session) CreateRoom(ctx context.Context, displayName string) (string, error) {
	payload, err := json.Marshal(proto.CreateRoomData{DisplayName: displayName})
	if err != nil {
		return "", err
	}
	ack, err := s.request(ctx, proto.Inbound{Type: proto.InboundTypeCreateRoom, Data: payload})
	if err != nil {
		return "", err
	}
	if !ack.Success {
		return "", core.ErrorFromCode(ack.Error)
	}

	s.mu.Lock()
	s.state = core.StateInRoom
	s.roomCode = ack.RoomCode
	s.displayName = displayName
	s.mu.Unlock()
	return ack.RoomCode, nil
}

// JoinRoom joins an existing room by code and waits for the
// acknowledgement.
func (s *Session) JoinRoom(ctx context.Context, roomCode, displayName string) error {
	payload, err := json.Marshal(proto.JoinRoomData{RoomCode: roomCode, DisplayName: displayName})
	if err != nil {
		return err
	}
	ack, err := s.request(ctx, proto.Inbound{Type: proto.InboundTypeJoinRoom, Data: payload})
	if err != nil {
		return err
	}
	if !ack.Success {
		return core.ErrorFromCode(ack.Error)
	}

	s.mu.Lock()
	s.state = core.StateInRoom
	s.roomCode = core.NormalizeRoomCode(roomCode)
	s.displayName = displayName
	s.mu.Unlock()
	return nil
}

// Leave announces departure and detaches from the room. No ack is
// expected; the session stays connected and may join again.
func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	if s.state != core.StateInRoom {
		s.mu.Unlock()
		return nil
	}
	roomCode := s.roomCode
	s.state = core.StateLeaving
	s.mu.Unlock()

	payload, err := json.Marshal(proto.LeaveRoomData{RoomCode: roomCode})
	if err != nil {
		return err
	}
	err = s.write(ctx, proto.Inbound{Type: proto.InboundTypeLeaveRoom, Data: payload})

	s.mu.Lock()
	s.roomCode = ""
	s.state = core.StateConnected
	s.mu.Unlock()
	return err
}

// Post sends a chat message. Its effect is observed via the chat-event
// broadcast, not a direct acknowledgement.
func (s *Session) Post(ctx context.Context, body string) error {
	s.mu.Lock()
	roomCode, displayName := s.roomCode, s.displayName
	inRoom := s.state == core.StateInRoom
	s.mu.Unlock()
	if !inRoom {
		return core.ErrNotAMember
	}

	payload, err := json.Marshal(proto.PostMessageData{
		RoomCode:    roomCode,
		DisplayName: displayName,
		Body:        body,
	})
	if err != nil {
		return err
	}
	return s.write(ctx, proto.Inbound{Type: proto.InboundTypePostMessage, Data: payload})
}

// RoomCode returns the code of the joined room, or empty.
func (s *Session) RoomCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomCode
}

// Close tears the connection down. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.conn = nil
	s.state = core.StateDisconnected
	if s.cancelRead != nil {
		s.cancelRead()
	}
	s.mu.Unlock()

	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "bye")
	}
	return nil
}

// request writes an acknowledged verb and blocks on the ack.
func (s *Session) request(ctx context.Context, frame proto.Inbound) (proto.AckData, error) {
	s.mu.Lock()
	if s.state != core.StateConnected {
		s.mu.Unlock()
		return proto.AckData{}, fmt.Errorf("cannot issue %s while %s", frame.Type, s.state)
	}
	s.state = core.StateJoining
	s.mu.Unlock()

	// Drain a stale ack left over from a dropped request.
	select {
	case <-s.acks:
	default:
	}

	if err := s.write(ctx, frame); err != nil {
		s.failJoin()
		return proto.AckData{}, err
	}

	select {
	case ack := <-s.acks:
		if !ack.Success {
			s.failJoin()
		}
		return ack, nil
	case <-time.After(ackTimeout):
		s.failJoin()
		return proto.AckData{}, ErrConnectivity
	case <-ctx.Done():
		s.failJoin()
		return proto.AckData{}, fmt.Errorf("%w: %v", ErrConnectivity, ctx.Err())
	}
}

func (s *Session) failJoin() {
	s.mu.Lock()
	if s.state == core.StateJoining {
		s.state = core.StateConnected
	}
	s.mu.Unlock()
}

func (s *Session) write(ctx context.Context, frame proto.Inbound) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrConnectivity
	}
	if err := wsjson.Write(ctx, conn, frame); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	return nil
}

// serverFrame mirrors proto.Outbound with the payload left raw.
type serverFrame struct {
	Type  string          `json:"type"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *proto.Error    `json:"error,omitempty"`
}

func (s *Session) readPump(ctx context.Context, conn *websocket.Conn) {
	for {
		var frame serverFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			s.handleDrop(err)
			return
		}
		s.dispatch(frame)
	}
}

func (s *Session) dispatch(frame serverFrame) {
	switch frame.Type {
	case proto.OutboundTypeAck:
		var ack proto.AckData
		if err := json.Unmarshal(frame.Data, &ack); err != nil {
			return
		}
		select {
		case s.acks <- ack:
		default:
		}

	case proto.OutboundTypeEvent:
		s.dispatchEvent(frame)

	case proto.OutboundTypeError:
		if frame.Error != nil && s.handlers.OnError != nil {
			s.handlers.OnError(frame.Error.Code, frame.Error.Msg)
		}
	}
}

func (s *Session) dispatchEvent(frame serverFrame) {
	switch frame.Event {
	case proto.EventRoomSnapshot:
		var data proto.RoomSnapshotData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			return
		}
		if s.handlers.OnSnapshot != nil {
			members := make([]Member, 0, len(data.Members))
			for _, m := range data.Members {
				members = append(members, Member{ConnectionID: m.ConnectionID, DisplayName: m.DisplayName})
			}
			s.handlers.OnSnapshot(data.RoomCode, members)
		}

	case proto.EventChat:
		var data proto.ChatEventData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			return
		}
		if s.handlers.OnChat != nil {
			s.handlers.OnChat(chatFromWire(data))
		}

	case proto.EventHistory:
		var data proto.HistoryData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			return
		}
		if s.handlers.OnHistory != nil {
			msgs := make([]ChatMessage, 0, len(data.Messages))
			for _, m := range data.Messages {
				msgs = append(msgs, chatFromWire(m))
			}
			s.handlers.OnHistory(data.RoomCode, msgs)
		}
	}
}

func chatFromWire(data proto.ChatEventData) ChatMessage {
	return ChatMessage{
		DisplayName: data.DisplayName,
		Body:        data.Body,
		SentAt:      time.UnixMilli(data.Timestamp),
	}
}

// handleDrop reacts to a read failure: an explicit Close is quiet,
// anything else either triggers the rejoin flow or surfaces through
// OnDisconnect.
func (s *Session) handleDrop(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	wasInRoom := s.state == core.StateInRoom
	s.state = core.StateDisconnected
	roomCode, displayName := s.roomCode, s.displayName
	s.mu.Unlock()

	if s.opts.Rejoin && wasInRoom && roomCode != "" {
		go s.rejoin(roomCode, displayName, err)
		return
	}
	if s.handlers.OnDisconnect != nil {
		s.handlers.OnDisconnect(err)
	}
}

// rejoin re-dials and replays the join request. The server sees a new
// connection identity; membership is re-acquired, never resumed. Gives
// up after maxRejoinAttempts or when the room is gone.
func (s *Session) rejoin(roomCode, displayName string, cause error) {
	for attempt := 1; attempt <= maxRejoinAttempts; attempt++ {
		time.Sleep(rejoinBackoff)

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		if err := s.connect(context.Background()); err != nil {
			continue
		}

		err := s.JoinRoom(context.Background(), roomCode, displayName)
		if err == nil {
			return
		}
		if errors.Is(err, core.ErrRoomNotFound) || errors.Is(err, core.ErrRoomFull) {
			// The room moved on without us; reconnecting cannot fix it.
			if s.handlers.OnError != nil {
				s.handlers.OnError(core.CodeOf(err), err.Error())
			}
			break
		}
	}
	if s.handlers.OnDisconnect != nil {
		s.handlers.OnDisconnect(cause)
	}
}
