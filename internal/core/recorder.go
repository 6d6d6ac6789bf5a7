package core

// Recorder observes call lifecycle outcomes, typically for metrics.
type Recorder interface {
	CallInitiated()
	CallFailed(reason string)
	CallAccepted()
	CallRejected()
	CallEnded(cause string)
	IdentitiesOnline(n int)
}

// Causes passed to Recorder.CallEnded.
const (
	EndCauseHangup     = "hangup"
	EndCauseDisconnect = "disconnect"
	EndCauseReplaced   = "replaced"
	EndCauseSuperseded = "superseded"
	EndCauseTimeout    = "timeout"
)

type nopRecorder struct{}

func (nopRecorder) CallInitiated() {}
func (nopRecorder) CallFailed(string) {}
func (nopRecorder) CallAccepted() {}
func (nopRecorder) CallRejected() {}
func (nopRecorder) CallEnded(string) {}
func (nopRecorder) IdentitiesOnline(int) {}
