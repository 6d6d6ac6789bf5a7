package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandSetBusy overrides the client's own in-call flag.
	CommandSetBusy CommandKind = iota
	// CommandRename changes the client's display name.
	CommandRename
	// CommandInitiateCall asks the relay to ring another identity.
	CommandInitiateCall
	// CommandAcceptCall accepts an incoming call.
	CommandAcceptCall
	// CommandRejectCall rejects an incoming call.
	CommandRejectCall
	// CommandHangup ends whatever call the client is part of.
	CommandHangup
	// CommandNotify sends a free-form message to one identity.
	CommandNotify
	// CommandPoke nudges one identity.
	CommandPoke
	// CommandPageChange records which page the client is looking at.
	CommandPageChange
)

func (k CommandKind) String() string {
	switch k {
	case CommandSetBusy:
		return "set_busy"
	case CommandRename:
		return "rename"
	case CommandInitiateCall:
		return "initiate_call"
	case CommandAcceptCall:
		return "accept_call"
	case CommandRejectCall:
		return "reject_call"
	case CommandHangup:
		return "hangup"
	case CommandNotify:
		return "notify"
	case CommandPoke:
		return "poke"
	case CommandPageChange:
		return "page_change"
	default:
		return "unknown"
	}
}

// Command represents an action requested by a client.
type Command struct {
	Kind CommandKind

	Busy     bool   // CommandSetBusy
	TargetID string // CommandRename, CommandNotify, CommandPoke
	Name     string // CommandRename
	Message  string // CommandNotify, CommandPoke
	Page     string // CommandPageChange

	CallID      string
	CalleeID    string
	From        Peer // CommandInitiateCall: caller's self description
	ChannelName string
	Reason      string // CommandRejectCall
}

// Peer is the short identity description carried in call payloads.
type Peer struct {
	ID   string
	Name string
}
