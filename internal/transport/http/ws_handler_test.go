package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/dungeonparty/room-server/internal/config"
	"github.com/dungeonparty/room-server/internal/core"
	"github.com/dungeonparty/room-server/internal/proto"
)

type outboundFrame struct {
	Type  string          `json:"type"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *proto.Error    `json:"error,omitempty"`
}

func startTestServer(t *testing.T) (*httptest.Server, *core.Registry) {
	t.Helper()

	logger := zerolog.Nop()
	registry := core.NewRegistry(core.DefaultSettings(), nil, &logger)

	server := NewServer(registry, nil, config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
	}, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts, registry
}

func dialWS(t *testing.T, ctx context.Context, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) outboundFrame {
	t.Helper()

	var frame outboundFrame
	if err := wsjson.Read(ctx, conn, &frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

// readSnapshot skips frames until the next roomSnapshot and returns it.
func readSnapshot(t *testing.T, ctx context.Context, conn *websocket.Conn) proto.RoomSnapshotData {
	t.Helper()

	for i := 0; i < 10; i++ {
		frame := readFrame(t, ctx, conn)
		if frame.Type == proto.OutboundTypeEvent && frame.Event == proto.EventRoomSnapshot {
			var snap proto.RoomSnapshotData
			if err := json.Unmarshal(frame.Data, &snap); err != nil {
				t.Fatalf("unmarshal snapshot: %v", err)
			}
			return snap
		}
	}
	t.Fatal("no snapshot received")
	return proto.RoomSnapshotData{}
}

func readAck(t *testing.T, ctx context.Context, conn *websocket.Conn) proto.AckData {
	t.Helper()

	frame := readFrame(t, ctx, conn)
	if frame.Type != proto.OutboundTypeAck {
		t.Fatalf("expected ack frame, got %+v", frame)
	}
	var ack proto.AckData
	if err := json.Unmarshal(frame.Data, &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	return ack
}

func TestCreateJoinAndChat(t *testing.T) {
	ts, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := dialWS(t, ctx, ts)
	defer connA.Close(websocket.StatusNormalClosure, "done")

	send(t, ctx, connA, proto.InboundTypeCreateRoom, proto.CreateRoomData{DisplayName: "alice"})
	ack := readAck(t, ctx, connA)
	if !ack.Success || len(ack.RoomCode) != 6 {
		t.Fatalf("unexpected create ack: %+v", ack)
	}
	code := ack.RoomCode

	snapA := readSnapshot(t, ctx, connA)
	if len(snapA.Members) != 1 || snapA.Members[0].DisplayName != "alice" {
		t.Fatalf("unexpected creator snapshot: %+v", snapA)
	}

	connB := dialWS(t, ctx, ts)
	defer connB.Close(websocket.StatusNormalClosure, "done")

	send(t, ctx, connB, proto.InboundTypeJoinRoom, proto.JoinRoomData{RoomCode: strings.ToLower(code), DisplayName: "bob"})
	if ack := readAck(t, ctx, connB); !ack.Success {
		t.Fatalf("join failed: %+v", ack)
	}

	if snap := readSnapshot(t, ctx, connB); len(snap.Members) != 2 {
		t.Fatalf("joiner snapshot: %+v", snap)
	}
	if snap := readSnapshot(t, ctx, connA); len(snap.Members) != 2 {
		t.Fatalf("creator did not see the join: %+v", snap)
	}

	send(t, ctx, connA, proto.InboundTypePostMessage, proto.PostMessageData{RoomCode: code, DisplayName: "alice", Body: "hi there"})

	for _, conn := range []*websocket.Conn{connA, connB} {
		frame := readFrame(t, ctx, conn)
		if frame.Event != proto.EventChat {
			t.Fatalf("expected chat event, got %+v", frame)
		}
		var chat proto.ChatEventData
		if err := json.Unmarshal(frame.Data, &chat); err != nil {
			t.Fatalf("unmarshal chat: %v", err)
		}
		if chat.DisplayName != "alice" || chat.Body != "hi there" || chat.Timestamp == 0 {
			t.Fatalf("unexpected chat payload: %+v", chat)
		}
	}
}

func TestJoinUnknownRoom(t *testing.T) {
	ts, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, ts)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	send(t, ctx, conn, proto.InboundTypeJoinRoom, proto.JoinRoomData{RoomCode: "ZZZZZZ", DisplayName: "ghost"})
	ack := readAck(t, ctx, conn)
	if ack.Success || ack.Error != core.ErrCodeRoomNotFound {
		t.Fatalf("expected room_not_found ack, got %+v", ack)
	}
}

func TestDisconnectCleansUpMembership(t *testing.T) {
	ts, registry := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := dialWS(t, ctx, ts)
	send(t, ctx, connA, proto.InboundTypeCreateRoom, proto.CreateRoomData{DisplayName: "alice"})
	ack := readAck(t, ctx, connA)
	if !ack.Success {
		t.Fatalf("create failed: %+v", ack)
	}
	readSnapshot(t, ctx, connA)

	connB := dialWS(t, ctx, ts)
	defer connB.Close(websocket.StatusNormalClosure, "done")
	send(t, ctx, connB, proto.InboundTypeJoinRoom, proto.JoinRoomData{RoomCode: ack.RoomCode, DisplayName: "bob"})
	if ack := readAck(t, ctx, connB); !ack.Success {
		t.Fatalf("join failed: %+v", ack)
	}
	readSnapshot(t, ctx, connB)

	// Kill alice's transport without any leave request.
	connA.CloseNow()

	snap := readSnapshot(t, ctx, connB)
	if len(snap.Members) != 1 || snap.Members[0].DisplayName != "bob" {
		t.Fatalf("expected bob alone after alice's drop, got %+v", snap)
	}

	if members, _, ok := registry.Lookup(ack.RoomCode); !ok || members != 1 {
		t.Fatalf("registry still counts %d members", members)
	}
}

func TestOverlongMessageRejected(t *testing.T) {
	ts, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, ts)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	send(t, ctx, conn, proto.InboundTypeCreateRoom, proto.CreateRoomData{DisplayName: "alice"})
	ack := readAck(t, ctx, conn)
	readSnapshot(t, ctx, conn)

	send(t, ctx, conn, proto.InboundTypePostMessage, proto.PostMessageData{
		RoomCode:    ack.RoomCode,
		DisplayName: "alice",
		Body:        strings.Repeat("x", 201),
	})

	frame := readFrame(t, ctx, conn)
	if frame.Type != proto.OutboundTypeError || frame.Error == nil || frame.Error.Code != core.ErrCodeMessageTooLong {
		t.Fatalf("expected message_too_long error frame, got %+v", frame)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := startTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestRoomOccupancyEndpoint(t *testing.T) {
	ts, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, ts)
	defer conn.Close(websocket.StatusNormalClosure, "done")
	send(t, ctx, conn, proto.InboundTypeCreateRoom, proto.CreateRoomData{DisplayName: "alice"})
	ack := readAck(t, ctx, conn)

	resp, err := ts.Client().Get(ts.URL + "/api/rooms/" + strings.ToLower(ack.RoomCode))
	if err != nil {
		t.Fatalf("room request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var room RoomResponse
	if err := json.NewDecoder(resp.Body).Decode(&room); err != nil {
		t.Fatalf("decode room: %v", err)
	}
	if room.Code != ack.RoomCode || room.Members != 1 || room.Capacity != 4 {
		t.Fatalf("unexpected room response: %+v", room)
	}

	missing, err := ts.Client().Get(ts.URL + "/api/rooms/NOPE99")
	if err != nil {
		t.Fatalf("missing room request failed: %v", err)
	}
	defer missing.Body.Close()
	if missing.StatusCode != 404 {
		t.Fatalf("expected 404 for unknown room, got %d", missing.StatusCode)
	}
}
