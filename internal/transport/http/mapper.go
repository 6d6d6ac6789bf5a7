package http

import (
	"encoding/json"

	"github.com/vovakirdan/callrelay/internal/core"
	"github.com/vovakirdan/callrelay/internal/proto"
)

func badRequest(msg string) *proto.Error {
	return &proto.Error{Code: core.ErrCodeBadRequest, Msg: msg}
}

func decode(data json.RawMessage, v any) *proto.Error {
	if len(data) == 0 {
		return badRequest("data is required")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return badRequest("malformed data")
	}
	return nil
}

// inboundToCommand maps a client frame to a hub command. Frames that are
// structurally invalid come back as a protocol error instead.
func inboundToCommand(client *core.Client, inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeUpdateCallStatus:
		var data proto.UpdateCallStatusData
		if perr := decode(inbound.Data, &data); perr != nil {
			return nil, perr
		}
		return &core.Command{Kind: core.CommandSetBusy, Busy: data.IsInCall}, nil
	case proto.InboundTypeUpdateUserInfo:
		var data proto.UpdateUserInfoData
		if perr := decode(inbound.Data, &data); perr != nil {
			return nil, perr
		}
		if data.UserName == "" {
			return nil, badRequest("userName is required")
		}
		target := data.UserID
		if target == "" {
			target = client.UserID
		}
		return &core.Command{Kind: core.CommandRename, TargetID: target, Name: data.UserName}, nil
	case proto.InboundTypeMakeCall:
		var data proto.MakeCallData
		if perr := decode(inbound.Data, &data); perr != nil {
			return nil, perr
		}
		if data.CallID == "" || data.To == "" || data.ChannelName == "" {
			return nil, badRequest("callId, to and channelName are required")
		}
		return &core.Command{
			Kind:        core.CommandInitiateCall,
			CallID:      data.CallID,
			CalleeID:    data.To,
			From:        core.Peer{ID: data.From.ID, Name: data.From.Name},
			ChannelName: data.ChannelName,
		}, nil
	case proto.InboundTypeAcceptCall:
		var data proto.AcceptCallData
		if perr := decode(inbound.Data, &data); perr != nil {
			return nil, perr
		}
		if data.CallID == "" {
			return nil, badRequest("callId is required")
		}
		return &core.Command{Kind: core.CommandAcceptCall, CallID: data.CallID, ChannelName: data.ChannelName}, nil
	case proto.InboundTypeRejectCall:
		var data proto.RejectCallData
		if perr := decode(inbound.Data, &data); perr != nil {
			return nil, perr
		}
		if data.CallID == "" {
			return nil, badRequest("callId is required")
		}
		return &core.Command{Kind: core.CommandRejectCall, CallID: data.CallID, Reason: data.Reason}, nil
	case proto.InboundTypeEndCall:
		return &core.Command{Kind: core.CommandHangup}, nil
	case proto.InboundTypeNotify:
		var data proto.NotifyData
		if perr := decode(inbound.Data, &data); perr != nil {
			return nil, perr
		}
		if data.To == "" || data.Message == "" {
			return nil, badRequest("to and message are required")
		}
		return &core.Command{Kind: core.CommandNotify, TargetID: data.To, Message: data.Message}, nil
	case proto.InboundTypePoke:
		var data proto.PokeData
		if perr := decode(inbound.Data, &data); perr != nil {
			return nil, perr
		}
		if data.To == "" {
			return nil, badRequest("to is required")
		}
		return &core.Command{Kind: core.CommandPoke, TargetID: data.To, Message: data.Message}, nil
	case proto.InboundTypePageChange:
		var data proto.PageChangeData
		if perr := decode(inbound.Data, &data); perr != nil {
			return nil, perr
		}
		return &core.Command{Kind: core.CommandPageChange, Page: data.Page}, nil
	default:
		return nil, &proto.Error{Code: core.ErrCodeInvalidMessage, Msg: "unknown message type"}
	}
}

func userStatuses(entries []core.PresenceEntry) []proto.UserStatus {
	out := make([]proto.UserStatus, 0, len(entries))
	for _, e := range entries {
		out = append(out, proto.UserStatus{
			ID:       e.ID,
			Name:     e.DisplayName,
			IsOnline: e.Online,
			IsInCall: e.InCall,
		})
	}
	return out
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	call := event.Call
	if call == nil {
		call = &core.CallEvent{}
	}

	switch event.Kind {
	case core.EventPresence:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUsersOnline,
			Data:  userStatuses(event.Presence),
		}
	case core.EventCallIncoming:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventIncomingCall,
			Data: proto.IncomingCallData{
				CallID:      call.CallID,
				From:        proto.Peer{ID: call.From.ID, Name: call.From.Name},
				ChannelName: call.ChannelName,
			},
		}
	case core.EventCallAccepted:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventCallAccepted,
			Data:  proto.CallAcceptedData{CallID: call.CallID, ChannelName: call.ChannelName},
		}
	case core.EventCallRejected:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventCallRejected,
			Data:  proto.CallRejectedData{CallID: call.CallID, Reason: call.Reason},
		}
	case core.EventCallEnded:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventCallEnded,
			Data:  proto.CallEndedData{CallID: call.CallID},
		}
	case core.EventCallFailed:
		failure := event.Failure
		if failure == nil {
			failure = &core.CallFailure{Message: "Call failed"}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventCallFailed,
			Data: proto.CallFailedData{
				Message:    failure.Message,
				Reason:     failure.Reason,
				TargetUser: failure.TargetUser,
			},
		}
	case core.EventSessionReplaced:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventSessionReplaced}
	case core.EventNotification, core.EventPoke:
		notice := event.Notice
		if notice == nil {
			notice = &core.Notice{}
		}
		if event.Kind == core.EventPoke {
			return proto.Outbound{
				Type:  proto.OutboundTypeEvent,
				Event: proto.EventPokeFrom,
				Data:  proto.PokeFromData{From: notice.From.ID, FromName: notice.From.Name, Message: notice.Message},
			}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNotification,
			Data:  proto.NotificationData{From: notice.From.ID, Message: notice.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
