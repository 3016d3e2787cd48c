package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dungeonparty/room-server/internal/core"
	"github.com/dungeonparty/room-server/internal/proto"
)

// WSHandler upgrades HTTP connections and owns the per-connection state
// machine binding a transport connection to at most one room membership.
type WSHandler struct {
	registry *core.Registry
	log      *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(registry *core.Registry, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{registry: registry, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client := core.NewClient(uuid.NewString(), core.StateConnected)

	// Membership cleanup must not depend on the client sending an
	// explicit leave: whatever ends this connection, the member goes.
	defer h.registry.Leave(client)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("conn", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		req, protoErr, err := parseInbound(inbound)
		if err != nil {
			h.log.Warn().Err(err).Str("conn", client.ID).Msg("failed to decode inbound")
			return err
		}
		if protoErr != nil {
			client.Events <- &core.Event{
				Kind:  core.EventError,
				Error: &core.CoreError{Code: protoErr.Code, Message: protoErr.Msg},
			}
			continue
		}
		h.apply(client, req)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("conn", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// apply runs one client request against the registry, driving the
// connection state machine. Acks for successful create/join are enqueued
// by the room itself, under its lock, so no later event overtakes them.
func (h *WSHandler) apply(client *core.Client, req *request) {
	switch req.verb {
	case proto.InboundTypeCreateRoom:
		client.SetName(req.displayName)
		h.joinFlow(client, func() (string, error) {
			return h.registry.CreateRoom(client)
		})

	case proto.InboundTypeJoinRoom:
		client.SetName(req.displayName)
		h.joinFlow(client, func() (string, error) {
			return req.roomCode, h.registry.JoinRoom(req.roomCode, client)
		})

	case proto.InboundTypeLeaveRoom:
		if client.State() != core.StateInRoom {
			// Leaving twice, or without a membership, is a no-op.
			return
		}
		_ = client.Transition(core.StateLeaving)
		h.registry.Leave(client)
		_ = client.Transition(core.StateConnected)

	case proto.InboundTypePostMessage:
		h.post(client, req.body)
	}
}

func (h *WSHandler) joinFlow(client *core.Client, op func() (string, error)) {
	if err := client.Transition(core.StateJoining); err != nil {
		h.log.Warn().Err(err).Str("conn", client.ID).Msg("join in illegal state")
		client.Events <- failureAck(core.ErrCodeBadRequest)
		return
	}

	if _, err := op(); err != nil {
		_ = client.Transition(core.StateConnected)
		client.Events <- failureAck(core.CodeOf(err))
		return
	}
	_ = client.Transition(core.StateInRoom)
}

func (h *WSHandler) post(client *core.Client, body string) {
	room := client.Room()
	if room == nil || client.State() != core.StateInRoom {
		// Not reachable through the normal client flow; treat as a
		// defensive fault and drop without telling the sender.
		h.log.Warn().Str("conn", client.ID).Msg("postMessage without membership dropped")
		return
	}

	switch err := room.PostMessage(client, body); {
	case err == nil:
	case errors.Is(err, core.ErrMessageTooLong):
		client.Events <- &core.Event{
			Kind:  core.EventError,
			Error: &core.CoreError{Code: core.ErrCodeMessageTooLong, Message: "message exceeds length limit"},
		}
	case errors.Is(err, core.ErrNotAMember):
		h.log.Warn().Str("conn", client.ID).Str("room", room.Code()).Msg("postMessage from non-member dropped")
	default:
		h.log.Error().Err(err).Str("conn", client.ID).Msg("postMessage failed")
	}
}

func failureAck(code string) *core.Event {
	return &core.Event{
		Kind: core.EventAck,
		Ack:  &core.Ack{Success: false, ErrCode: code},
	}
}
