package core

import "errors"

// Wire reasons carried in call-failed payloads.
const (
	ReasonUserNotFound = "user_not_found"
	ReasonUserOffline  = "user_offline"
	ReasonUserBusy     = "user_busy"
	ReasonCallerBusy   = "caller_busy"
	ReasonSelfCall     = "self_call"
	ReasonChannelInUse = "channel_in_use"
	ReasonNoAnswer     = "no_answer"
)

// Error codes for protocol-level errors.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeInvalidMessage = "invalid_message"
)

var (
	ErrTargetNotFound  = errors.New("target user not found")
	ErrTargetOffline   = errors.New("target user is offline")
	ErrTargetBusy      = errors.New("target user is busy")
	ErrCallerBusy      = errors.New("caller is already in a call")
	ErrSelfCall        = errors.New("cannot call yourself")
	ErrChannelInUse    = errors.New("channel is bound to another call")
	ErrDuplicateCall   = errors.New("call id already in use")
	ErrUnauthorized    = errors.New("not authorized for this call")
	ErrInvalidState    = errors.New("call is not in a state that allows this")
	ErrNoActiveCall    = errors.New("identity is not part of any call")
	ErrUnknownIdentity = errors.New("unknown identity")
	ErrHubStopped      = errors.New("hub stopped")
)

// CallError is an initiate failure that is reported back to the requester.
type CallError struct {
	Err        error
	Reason     string
	Message    string
	TargetUser string
}

func (e *CallError) Error() string {
	return e.Err.Error()
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// Failure converts the error into its wire payload.
func (e *CallError) Failure() *CallFailure {
	return &CallFailure{
		Message:    e.Message,
		Reason:     e.Reason,
		TargetUser: e.TargetUser,
	}
}

func callError(err error, reason, msg string) *CallError {
	return &CallError{Err: err, Reason: reason, Message: msg}
}
