package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeUpdateCallStatus = "update-call-status"
	InboundTypeUpdateUserInfo   = "update-user-info"
	InboundTypeMakeCall         = "make-call"
	InboundTypeAcceptCall       = "accept-call"
	InboundTypeRejectCall       = "reject-call"
	InboundTypeEndCall          = "end-call"
	InboundTypeNotify           = "notify"
	InboundTypePoke             = "poke"
	InboundTypePageChange       = "page-change"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventUsersOnline     = "users-online"
	EventIncomingCall    = "incoming-call"
	EventCallAccepted    = "call-accepted"
	EventCallRejected    = "call-rejected"
	EventCallEnded       = "call-ended"
	EventCallFailed      = "call-failed"
	EventSessionReplaced = "session-replaced"
	EventNotification    = "notification"
	EventPokeFrom        = "poke-from"
)

// UpdateCallStatusData toggles the sender's in-call flag.
type UpdateCallStatusData struct {
	IsInCall bool `json:"isInCall"`
}

// UpdateUserInfoData renames a user. Only self-renames are honored.
type UpdateUserInfoData struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// Peer identifies a call participant on the wire.
type Peer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MakeCallData asks the relay to ring another user.
type MakeCallData struct {
	CallID      string `json:"callId"`
	To          string `json:"to"`
	From        Peer   `json:"from"`
	ChannelName string `json:"channelName"`
}

// AcceptCallData answers an incoming call.
type AcceptCallData struct {
	CallID      string `json:"callId"`
	ChannelName string `json:"channelName"`
}

// RejectCallData declines an incoming call.
type RejectCallData struct {
	CallID string `json:"callId"`
	Reason string `json:"reason,omitempty"`
}

// NotifyData sends a message to one user.
type NotifyData struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// PokeData nudges one user. Message is optional.
type PokeData struct {
	To      string `json:"to"`
	Message string `json:"message,omitempty"`
}

// PageChangeData reports the page the client is on.
type PageChangeData struct {
	Page string `json:"page"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// UserStatus is one entry of the users-online list.
type UserStatus struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsOnline bool   `json:"isOnline"`
	IsInCall bool   `json:"isInCall"`
}

type IncomingCallData struct {
	CallID      string `json:"callId"`
	From        Peer   `json:"from"`
	ChannelName string `json:"channelName"`
}

type CallAcceptedData struct {
	CallID      string `json:"callId,omitempty"`
	ChannelName string `json:"channelName"`
}

type CallRejectedData struct {
	CallID string `json:"callId,omitempty"`
	Reason string `json:"reason"`
}

type CallEndedData struct {
	CallID string `json:"callId,omitempty"`
}

// CallFailedData explains why a make-call was refused or went unanswered.
type CallFailedData struct {
	Message    string `json:"message"`
	Reason     string `json:"reason,omitempty"`
	TargetUser string `json:"targetUser,omitempty"`
}

type NotificationData struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

type PokeFromData struct {
	From     string `json:"from"`
	FromName string `json:"fromName"`
	Message  string `json:"message"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
