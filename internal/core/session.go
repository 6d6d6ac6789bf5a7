package core

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// CallStatus is the state of a live call session.
// Rejected and ended sessions are deleted, so they have no status.
type CallStatus int

const (
	StatusCalling CallStatus = iota
	StatusActive
)

func (s CallStatus) String() string {
	switch s {
	case StatusCalling:
		return "calling"
	case StatusActive:
		return "active"
	default:
		return "unknown"
	}
}

// CallSession is the negotiation record for one call attempt.
type CallSession struct {
	CallID      string
	CallerID    string
	CalleeID    string
	ChannelName string
	Status      CallStatus
	CreatedAt   time.Time
	AcceptedAt  time.Time
}

// Involves reports whether id is the caller or the callee.
func (s *CallSession) Involves(id string) bool {
	return s.CallerID == id || s.CalleeID == id
}

// Other returns the participant that is not id.
func (s *CallSession) Other(id string) string {
	if s.CallerID == id {
		return s.CalleeID
	}
	return s.CallerID
}

// CallRequest is an initiate request as received from the caller.
type CallRequest struct {
	CallID      string
	CalleeID    string
	ChannelName string
	From        Peer
}

// SessionManager owns the lifecycle of in-flight call negotiations.
// Like the registry it is driven by the hub loop only.
type SessionManager struct {
	registry *Registry
	presence *Broadcaster
	rec      Recorder
	log      *zerolog.Logger

	sessions map[string]*CallSession
	order    []string
	now      func() time.Time
}

// NewSessionManager builds a session manager. rec may be nil.
func NewSessionManager(registry *Registry, presence *Broadcaster, rec Recorder, logger *zerolog.Logger) *SessionManager {
	if rec == nil {
		rec = nopRecorder{}
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &SessionManager{
		registry: registry,
		presence: presence,
		rec:      rec,
		log:      logger,
		sessions: make(map[string]*CallSession),
		now:      time.Now,
	}
}

// Initiate validates a call request and rings the callee.
// Failures that concern the requester are pushed to it as call-failed and
// returned as *CallError; malformed or dangling requests are only returned.
func (m *SessionManager) Initiate(callerID string, req CallRequest) (*CallSession, error) {
	caller, ok := m.registry.Get(callerID)
	if !ok {
		return nil, fmt.Errorf("initiate %s: %w", req.CallID, ErrUnknownIdentity)
	}
	if _, exists := m.sessions[req.CallID]; exists {
		m.log.Warn().Str("call_id", req.CallID).Str("user_id", callerID).Msg("duplicate call id")
		return nil, fmt.Errorf("initiate %s: %w", req.CallID, ErrDuplicateCall)
	}

	callee, cerr := m.checkInitiate(caller, req)
	if cerr != nil {
		m.rec.CallFailed(cerr.Reason)
		caller.Conn.Deliver(&Event{Kind: EventCallFailed, Failure: cerr.Failure()})
		m.log.Info().
			Str("call_id", req.CallID).
			Str("from", callerID).
			Str("to", req.CalleeID).
			Str("reason", cerr.Reason).
			Msg("call refused")
		return nil, cerr
	}

	fromName := req.From.Name
	if fromName == "" {
		fromName = caller.DisplayName
	}

	session := &CallSession{
		CallID:      req.CallID,
		CallerID:    callerID,
		CalleeID:    callee.ID,
		ChannelName: req.ChannelName,
		Status:      StatusCalling,
		CreatedAt:   m.now(),
	}
	m.sessions[session.CallID] = session
	m.order = append(m.order, session.CallID)

	callee.Conn.Deliver(&Event{
		Kind: EventCallIncoming,
		Call: &CallEvent{
			CallID:      session.CallID,
			From:        Peer{ID: callerID, Name: fromName},
			ChannelName: session.ChannelName,
		},
	})
	m.rec.CallInitiated()

	m.log.Info().
		Str("call_id", session.CallID).
		Str("from", callerID).
		Str("to", callee.ID).
		Str("channel", session.ChannelName).
		Msg("incoming call sent to callee")
	return session, nil
}

func (m *SessionManager) checkInitiate(caller *Identity, req CallRequest) (*Identity, *CallError) {
	if req.CalleeID == caller.ID {
		return nil, callError(ErrSelfCall, ReasonSelfCall, "You cannot call yourself")
	}
	callee, ok := m.registry.Get(req.CalleeID)
	if !ok {
		return nil, callError(ErrTargetNotFound, ReasonUserNotFound, "User not found")
	}
	if !callee.Online {
		return nil, callError(ErrTargetOffline, ReasonUserOffline, "User is offline")
	}
	if callee.InCall {
		cerr := callError(ErrTargetBusy, ReasonUserBusy, "User is busy")
		cerr.TargetUser = callee.DisplayName
		return nil, cerr
	}
	if caller.InCall {
		return nil, callError(ErrCallerBusy, ReasonCallerBusy, "You are already in a call")
	}
	if _, taken := m.FindByChannel(req.ChannelName); taken {
		return nil, callError(ErrChannelInUse, ReasonChannelInUse, "Channel is already in use")
	}
	return callee, nil
}

// Accept moves a ringing session to Active. Only the callee may accept.
func (m *SessionManager) Accept(calleeID, callID, channelName string) error {
	s, ok := m.sessions[callID]
	if !ok || s.CalleeID != calleeID {
		m.log.Warn().Str("call_id", callID).Str("user_id", calleeID).Msg("unauthorized call acceptance attempt")
		return fmt.Errorf("accept %s: %w", callID, ErrUnauthorized)
	}
	if s.Status != StatusCalling {
		m.log.Debug().Str("call_id", callID).Msg("call already active")
		return fmt.Errorf("accept %s: %w", callID, ErrInvalidState)
	}
	if channelName != "" && channelName != s.ChannelName {
		m.log.Warn().
			Str("call_id", callID).
			Str("channel", s.ChannelName).
			Str("requested_channel", channelName).
			Msg("accept names a different channel, keeping the session channel")
	}

	s.Status = StatusActive
	s.AcceptedAt = m.now()
	m.registry.SetBusy(s.CallerID, true)
	m.registry.SetBusy(s.CalleeID, true)
	m.endOthers(s)

	if caller, ok := m.registry.Get(s.CallerID); ok {
		caller.Conn.Deliver(&Event{
			Kind: EventCallAccepted,
			Call: &CallEvent{CallID: s.CallID, ChannelName: s.ChannelName},
		})
	}
	m.rec.CallAccepted()

	m.log.Info().Str("call_id", callID).Str("channel", s.ChannelName).Msg("call accepted, notified caller")
	m.presence.BroadcastAll()
	return nil
}

// endOthers drops every other live session that shares a participant with
// the now active session. Participants outside s are told the call ended.
func (m *SessionManager) endOthers(active *CallSession) {
	for _, callID := range append([]string(nil), m.order...) {
		other := m.sessions[callID]
		if other == active {
			continue
		}
		if !other.Involves(active.CallerID) && !other.Involves(active.CalleeID) {
			continue
		}
		for _, id := range []string{other.CallerID, other.CalleeID} {
			if active.Involves(id) {
				continue
			}
			if ident, ok := m.registry.Get(id); ok {
				ident.Conn.Deliver(&Event{Kind: EventCallEnded, Call: &CallEvent{CallID: other.CallID}})
			}
		}
		m.remove(callID)
		m.rec.CallEnded(EndCauseSuperseded)
		m.log.Info().Str("call_id", callID).Str("by_call_id", active.CallID).Msg("pending call superseded")
	}
}

// Reject drops a ringing session. Only the callee may reject.
func (m *SessionManager) Reject(calleeID, callID, reason string) error {
	s, ok := m.sessions[callID]
	if !ok || s.CalleeID != calleeID {
		m.log.Warn().Str("call_id", callID).Str("user_id", calleeID).Msg("unauthorized call rejection attempt")
		return fmt.Errorf("reject %s: %w", callID, ErrUnauthorized)
	}
	if s.Status != StatusCalling {
		m.log.Warn().Str("call_id", callID).Msg("reject on an active call ignored")
		return fmt.Errorf("reject %s: %w", callID, ErrInvalidState)
	}

	if caller, ok := m.registry.Get(s.CallerID); ok {
		caller.Conn.Deliver(&Event{
			Kind: EventCallRejected,
			Call: &CallEvent{CallID: s.CallID, Reason: reason},
		})
	}
	m.remove(callID)
	m.rec.CallRejected()

	m.log.Info().Str("call_id", callID).Str("reason", reason).Msg("call rejected, notified caller")
	return nil
}

// Hangup ends the call userID is part of and tells the other participant.
func (m *SessionManager) Hangup(userID string) error {
	s, ok := m.SessionOf(userID)
	if !ok {
		m.log.Info().Str("user_id", userID).Msg("hangup without a call")
		return fmt.Errorf("hangup by %s: %w", userID, ErrNoActiveCall)
	}

	other := s.Other(userID)
	m.registry.SetBusy(userID, false)
	m.registry.SetBusy(other, false)
	if ident, ok := m.registry.Get(other); ok {
		ident.Conn.Deliver(&Event{Kind: EventCallEnded, Call: &CallEvent{CallID: s.CallID}})
	}
	m.remove(s.CallID)
	m.rec.CallEnded(EndCauseHangup)

	m.log.Info().Str("call_id", s.CallID).Str("user_id", userID).Str("other", other).Msg("call ended")
	m.presence.BroadcastAll()
	return nil
}

// DisconnectCleanup terminates every session userID participates in and
// frees the other participants. It does not touch userID's own record and
// does not broadcast; the caller unregisters and broadcasts afterwards.
func (m *SessionManager) DisconnectCleanup(userID, cause string) int {
	ended := 0
	for _, s := range m.sessionsOf(userID) {
		other := s.Other(userID)
		if ident, ok := m.registry.Get(other); ok {
			ident.InCall = false
			ident.Conn.Deliver(&Event{Kind: EventCallEnded, Call: &CallEvent{CallID: s.CallID}})
		}
		m.remove(s.CallID)
		m.rec.CallEnded(cause)
		ended++
		m.log.Info().Str("call_id", s.CallID).Str("user_id", userID).Str("other", other).Str("cause", cause).Msg("call torn down")
	}
	return ended
}

// Expire drops ringing sessions older than timeout. The caller learns the
// call went unanswered and the callee's incoming call is withdrawn.
func (m *SessionManager) Expire(now time.Time, timeout time.Duration) int {
	if timeout <= 0 {
		return 0
	}
	expired := 0
	for _, callID := range append([]string(nil), m.order...) {
		s := m.sessions[callID]
		if s.Status != StatusCalling || now.Sub(s.CreatedAt) < timeout {
			continue
		}
		if caller, ok := m.registry.Get(s.CallerID); ok {
			caller.Conn.Deliver(&Event{
				Kind:    EventCallFailed,
				Failure: &CallFailure{Message: "No answer", Reason: ReasonNoAnswer},
			})
		}
		if callee, ok := m.registry.Get(s.CalleeID); ok {
			callee.Conn.Deliver(&Event{Kind: EventCallEnded, Call: &CallEvent{CallID: s.CallID}})
		}
		m.remove(callID)
		m.rec.CallEnded(EndCauseTimeout)
		expired++
		m.log.Info().Str("call_id", callID).Dur("timeout", timeout).Msg("unanswered call expired")
	}
	return expired
}

// Get returns the session with the given call id.
func (m *SessionManager) Get(callID string) (*CallSession, bool) {
	s, ok := m.sessions[callID]
	return s, ok
}

// FindByChannel returns the live session bound to channelName.
func (m *SessionManager) FindByChannel(channelName string) (*CallSession, bool) {
	for _, callID := range m.order {
		if s := m.sessions[callID]; s.ChannelName == channelName {
			return s, true
		}
	}
	return nil, false
}

// SessionOf returns the session userID is in: the active one if any,
// otherwise the oldest ringing one.
func (m *SessionManager) SessionOf(userID string) (*CallSession, bool) {
	var pending *CallSession
	for _, callID := range m.order {
		s := m.sessions[callID]
		if !s.Involves(userID) {
			continue
		}
		if s.Status == StatusActive {
			return s, true
		}
		if pending == nil {
			pending = s
		}
	}
	return pending, pending != nil
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	return len(m.sessions)
}

func (m *SessionManager) sessionsOf(userID string) []*CallSession {
	var out []*CallSession
	for _, callID := range m.order {
		if s := m.sessions[callID]; s.Involves(userID) {
			out = append(out, s)
		}
	}
	return out
}

func (m *SessionManager) remove(callID string) {
	if _, ok := m.sessions[callID]; !ok {
		return
	}
	delete(m.sessions, callID)
	for i, id := range m.order {
		if id == callID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}
