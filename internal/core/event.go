package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventPresence carries the full presence snapshot. Broadcast to everyone.
	EventPresence EventKind = iota
	// EventCallIncoming notifies the callee of a new call.
	EventCallIncoming
	// EventCallAccepted notifies the caller that the callee accepted.
	EventCallAccepted
	// EventCallRejected notifies the caller that the callee rejected.
	EventCallRejected
	// EventCallEnded notifies the remaining participant that the call is over.
	EventCallEnded
	// EventCallFailed tells the requester why a call could not be placed.
	EventCallFailed
	// EventSessionReplaced tells a connection that a newer one took over its identity.
	EventSessionReplaced
	// EventNotification carries a message from another identity.
	EventNotification
	// EventPoke tells the target someone poked it.
	EventPoke
)

func (k EventKind) String() string {
	switch k {
	case EventPresence:
		return "presence"
	case EventCallIncoming:
		return "call_incoming"
	case EventCallAccepted:
		return "call_accepted"
	case EventCallRejected:
		return "call_rejected"
	case EventCallEnded:
		return "call_ended"
	case EventCallFailed:
		return "call_failed"
	case EventSessionReplaced:
		return "session_replaced"
	case EventNotification:
		return "notification"
	case EventPoke:
		return "poke"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind     EventKind
	Presence []PresenceEntry // EventPresence
	Call     *CallEvent      // call events
	Failure  *CallFailure    // EventCallFailed
	Notice   *Notice         // EventNotification, EventPoke
}

// CallEvent holds data specific to call events.
type CallEvent struct {
	CallID      string
	From        Peer
	ChannelName string
	Reason      string
}

// CallFailure describes why an initiate request was refused.
type CallFailure struct {
	Message    string
	Reason     string
	TargetUser string
}

// Notice is a message relayed from one identity to another.
type Notice struct {
	From    Peer
	Message string
}

// PresenceEntry is one row of the presence snapshot.
// Page is mirrored to the presence store only.
type PresenceEntry struct {
	ID          string
	DisplayName string
	Online      bool
	InCall      bool
	Page        string
}
