package http

import (
	"encoding/json"

	"github.com/dungeonparty/room-server/internal/core"
	"github.com/dungeonparty/room-server/internal/proto"
)

// request is one decoded, validated client verb.
type request struct {
	verb        string
	displayName string
	roomCode    string
	body        string
}

// parseInbound decodes an envelope into a request. A nil request with a
// non-nil proto.Error means the input was well-formed JSON but invalid;
// a non-nil error means the frame itself was undecodable.
func parseInbound(inbound proto.Inbound) (*request, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeCreateRoom:
		var data proto.CreateRoomData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		if data.DisplayName == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "displayName is required"}, nil
		}
		return &request{verb: inbound.Type, displayName: data.DisplayName}, nil, nil

	case proto.InboundTypeJoinRoom:
		var data proto.JoinRoomData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		if data.RoomCode == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "roomCode is required"}, nil
		}
		if data.DisplayName == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "displayName is required"}, nil
		}
		return &request{verb: inbound.Type, roomCode: data.RoomCode, displayName: data.DisplayName}, nil, nil

	case proto.InboundTypeLeaveRoom:
		var data proto.LeaveRoomData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		return &request{verb: inbound.Type, roomCode: data.RoomCode}, nil, nil

	case proto.InboundTypePostMessage:
		var data proto.PostMessageData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		if data.Body == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "body is required"}, nil
		}
		// The display name in the payload is ignored: the member's
		// registered name is authoritative for attribution.
		return &request{verb: inbound.Type, roomCode: data.RoomCode, body: data.Body}, nil, nil

	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}, nil
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventAck:
		ack := proto.AckData{}
		if event.Ack != nil {
			ack.Success = event.Ack.Success
			ack.RoomCode = event.Ack.RoomCode
			ack.Error = event.Ack.ErrCode
		}
		return proto.Outbound{Type: proto.OutboundTypeAck, Data: ack}

	case core.EventRoomSnapshot:
		members := make([]proto.SnapshotMember, 0, len(event.Members))
		for _, m := range event.Members {
			members = append(members, proto.SnapshotMember{
				ConnectionID: m.ConnectionID,
				DisplayName:  m.DisplayName,
			})
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventRoomSnapshot,
			Data:  proto.RoomSnapshotData{RoomCode: event.Room, Members: members},
		}

	case core.EventChatMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventChat,
			Data:  chatEventData(event.Message),
		}

	case core.EventHistory:
		messages := make([]proto.ChatEventData, 0, len(event.Messages))
		for _, msg := range event.Messages {
			messages = append(messages, chatEventData(msg))
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventHistory,
			Data:  proto.HistoryData{RoomCode: event.Room, Messages: messages},
		}

	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}

	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func chatEventData(msg core.ChatMessage) proto.ChatEventData {
	return proto.ChatEventData{
		DisplayName: msg.From,
		Body:        msg.Body,
		Timestamp:   msg.SentAt.UnixMilli(),
	}
}
