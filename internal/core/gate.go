package core

// AuthResult answers whether an identity may join a media channel.
type AuthResult struct {
	Authorized  bool
	Reason      string
	CallID      string
	DisplayName string
}

const reasonNotAuthorized = "Not authorized for this channel"

// Gate authorizes channel joins from live session state. It holds no state
// of its own.
type Gate struct {
	sessions *SessionManager
	registry *Registry
}

// NewGate builds a gate over the session manager and registry.
func NewGate(sessions *SessionManager, registry *Registry) *Gate {
	return &Gate{sessions: sessions, registry: registry}
}

// Authorize reports whether identityID is a participant of the live call
// bound to channelName.
func (g *Gate) Authorize(channelName, identityID string) AuthResult {
	if channelName == "" || identityID == "" {
		return AuthResult{Reason: reasonNotAuthorized}
	}
	s, ok := g.sessions.FindByChannel(channelName)
	if !ok || !s.Involves(identityID) {
		return AuthResult{Reason: reasonNotAuthorized}
	}

	res := AuthResult{Authorized: true, CallID: s.CallID, DisplayName: identityID}
	if ident, ok := g.registry.Get(identityID); ok {
		res.DisplayName = ident.DisplayName
	}
	return res
}
