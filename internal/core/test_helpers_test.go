package core

import (
	"testing"
	"time"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// drain empties the event buffer and returns what was in it.
func drain(c *Client) []*Event {
	var out []*Event
	for {
		select {
		case ev := <-c.Events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

// callEvents filters out presence broadcasts.
func callEvents(c *Client) []*Event {
	var out []*Event
	for _, ev := range drain(c) {
		if ev.Kind != EventPresence {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	registry *Registry
	sessions *SessionManager
	gate     *Gate
	rec      *countingRecorder
	clients  map[string]*Client
}

func newFixture(t *testing.T, ids ...string) *fixture {
	t.Helper()

	registry := NewRegistry()
	rec := &countingRecorder{failures: map[string]int{}, ended: map[string]int{}}
	sessions := NewSessionManager(registry, NewBroadcaster(registry), rec, nil)
	f := &fixture{
		registry: registry,
		sessions: sessions,
		gate:     NewGate(sessions, registry),
		rec:      rec,
		clients:  make(map[string]*Client),
	}
	for _, id := range ids {
		f.connect(id)
	}
	return f
}

func (f *fixture) connect(id string) *Client {
	c := NewClient("conn-"+id, id, "name-"+id)
	f.registry.Register(id, c.Name, c)
	f.clients[id] = c
	return c
}

func (f *fixture) disconnect(id string) {
	f.sessions.DisconnectCleanup(id, EndCauseDisconnect)
	f.registry.Unregister(id)
	delete(f.clients, id)
}

func (f *fixture) drainAll() {
	for _, c := range f.clients {
		drain(c)
	}
}

// checkInvariants asserts the registry/session invariants that must hold
// after every operation.
func (f *fixture) checkInvariants(t *testing.T) {
	t.Helper()

	seen := map[string]bool{}
	for _, entry := range f.registry.Snapshot() {
		if seen[entry.ID] {
			t.Fatalf("duplicate identity %q in registry", entry.ID)
		}
		seen[entry.ID] = true

		active := false
		for _, callID := range f.sessions.order {
			s := f.sessions.sessions[callID]
			if s.Status == StatusActive && s.Involves(entry.ID) {
				active = true
			}
		}
		if entry.InCall != active {
			t.Fatalf("identity %q: inCall=%v but active session=%v", entry.ID, entry.InCall, active)
		}
	}
	for _, callID := range f.sessions.order {
		s := f.sessions.sessions[callID]
		if s.CallerID == s.CalleeID {
			t.Fatalf("session %q calls itself", callID)
		}
	}
	if len(f.sessions.order) != len(f.sessions.sessions) {
		t.Fatalf("session order out of sync: %d vs %d", len(f.sessions.order), len(f.sessions.sessions))
	}
}

type countingRecorder struct {
	initiated, accepted, rejected int
	failures                      map[string]int
	ended                         map[string]int
	online                        int
}

func (r *countingRecorder) CallInitiated() { r.initiated++ }
func (r *countingRecorder) CallFailed(reason string) { r.failures[reason]++ }
func (r *countingRecorder) CallAccepted() { r.accepted++ }
func (r *countingRecorder) CallRejected() { r.rejected++ }
func (r *countingRecorder) CallEnded(cause string) { r.ended[cause]++ }
func (r *countingRecorder) IdentitiesOnline(n int) { r.online = n }
