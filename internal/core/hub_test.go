package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func startHub(t *testing.T, opts HubOptions) (*Hub, context.Context) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	hub := NewHub(opts, nil)
	go hub.Run(ctx)
	return hub, ctx
}

// waitPresence reads events until a presence list satisfying match shows up.
func waitPresence(t *testing.T, c *Client, match func([]PresenceEntry) bool) []PresenceEntry {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-c.Events:
			if ev != nil && ev.Kind == EventPresence && match(ev.Presence) {
				return ev.Presence
			}
		case <-deadline:
			t.Fatalf("presence for %s never matched", c.UserID)
			return nil
		}
	}
}

func entryFor(list []PresenceEntry, id string) (PresenceEntry, bool) {
	for _, e := range list {
		if e.ID == id {
			return e, true
		}
	}
	return PresenceEntry{}, false
}

func TestHubRegisterBroadcastsPresence(t *testing.T) {
	hub, _ := startHub(t, HubOptions{})

	alice := NewClient("c1", "alice", "Alice")
	bob := NewClient("c2", "bob", "")
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	list := waitPresence(t, alice, func(l []PresenceEntry) bool { return len(l) == 2 })
	if list[0].ID != "alice" || list[0].DisplayName != "Alice" {
		t.Fatalf("unexpected first entry: %+v", list[0])
	}
	if list[1].ID != "bob" || list[1].DisplayName != "bob" || !list[1].Online || list[1].InCall {
		t.Fatalf("unexpected second entry: %+v", list[1])
	}
}

func TestHubCallFlow(t *testing.T) {
	hub, ctx := startHub(t, HubOptions{})

	alice := NewClient("c1", "alice", "Alice")
	bob := NewClient("c2", "bob", "Bob")
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	alice.Commands <- &Command{
		Kind:        CommandInitiateCall,
		CallID:      "call-1",
		CalleeID:    "bob",
		ChannelName: "room-1",
		From:        Peer{ID: "alice", Name: "Alice"},
	}

	incoming := mustEvent(t, bob.Events, EventCallIncoming)
	if incoming.Call.CallID != "call-1" || incoming.Call.From.ID != "alice" || incoming.Call.ChannelName != "room-1" {
		t.Fatalf("unexpected incoming call: %+v", incoming.Call)
	}

	bob.Commands <- &Command{Kind: CommandAcceptCall, CallID: "call-1", ChannelName: "room-1"}
	accepted := mustEvent(t, alice.Events, EventCallAccepted)
	if accepted.Call.ChannelName != "room-1" {
		t.Fatalf("unexpected accepted event: %+v", accepted.Call)
	}

	res, err := hub.Authorize(ctx, "room-1", "alice")
	if err != nil || !res.Authorized || res.DisplayName != "Alice" {
		t.Fatalf("alice should be authorized: %+v, %v", res, err)
	}
	res, err = hub.Authorize(ctx, "room-1", "carol")
	if err != nil || res.Authorized {
		t.Fatalf("carol must not be authorized: %+v, %v", res, err)
	}

	list, err := hub.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	for _, e := range list {
		if !e.InCall {
			t.Fatalf("%s should be in call: %+v", e.ID, list)
		}
	}

	alice.Commands <- &Command{Kind: CommandHangup}
	mustEvent(t, bob.Events, EventCallEnded)

	res, err = hub.Authorize(ctx, "room-1", "bob")
	if err != nil || res.Authorized {
		t.Fatalf("channel should be closed after hangup: %+v, %v", res, err)
	}
}

func TestHubBusyCalleeFails(t *testing.T) {
	hub, _ := startHub(t, HubOptions{})

	alice := NewClient("c1", "alice", "Alice")
	bob := NewClient("c2", "bob", "Bob")
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	bob.Commands <- &Command{Kind: CommandSetBusy, Busy: true}
	waitPresence(t, alice, func(l []PresenceEntry) bool {
		e, ok := entryFor(l, "bob")
		return ok && e.InCall
	})

	alice.Commands <- &Command{Kind: CommandInitiateCall, CallID: "call-1", CalleeID: "bob", ChannelName: "room-1"}
	ev := mustEvent(t, alice.Events, EventCallFailed)
	if ev.Failure.Reason != ReasonUserBusy || ev.Failure.TargetUser != "Bob" {
		t.Fatalf("unexpected failure: %+v", ev.Failure)
	}
}

func TestHubRenameBroadcasts(t *testing.T) {
	hub, _ := startHub(t, HubOptions{})

	alice := NewClient("c1", "alice", "Alice")
	bob := NewClient("c2", "bob", "Bob")
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	alice.Commands <- &Command{Kind: CommandRename, TargetID: "alice", Name: "Alice Liddell"}
	waitPresence(t, bob, func(l []PresenceEntry) bool {
		e, ok := entryFor(l, "alice")
		return ok && e.DisplayName == "Alice Liddell"
	})
}

func TestHubDisconnectEndsCall(t *testing.T) {
	hub, ctx := startHub(t, HubOptions{})

	alice := NewClient("c1", "alice", "Alice")
	bob := NewClient("c2", "bob", "Bob")
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	alice.Commands <- &Command{Kind: CommandInitiateCall, CallID: "call-1", CalleeID: "bob", ChannelName: "room-1"}
	mustEvent(t, bob.Events, EventCallIncoming)
	bob.Commands <- &Command{Kind: CommandAcceptCall, CallID: "call-1"}
	mustEvent(t, alice.Events, EventCallAccepted)

	hub.UnregisterClient(alice)
	mustEvent(t, bob.Events, EventCallEnded)

	list, err := hub.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(list) != 1 || list[0].ID != "bob" || list[0].InCall {
		t.Fatalf("unexpected presence after disconnect: %+v", list)
	}

	select {
	case <-alice.Done():
	case <-time.After(time.Second):
		t.Fatal("unregistered client was not closed")
	}
}

func TestHubReconnectReplacesConnection(t *testing.T) {
	hub, ctx := startHub(t, HubOptions{})

	first := NewClient("c1", "alice", "Alice")
	bob := NewClient("c2", "bob", "Bob")
	hub.RegisterClient(first)
	hub.RegisterClient(bob)

	first.Commands <- &Command{Kind: CommandInitiateCall, CallID: "call-1", CalleeID: "bob", ChannelName: "room-1"}
	mustEvent(t, bob.Events, EventCallIncoming)
	bob.Commands <- &Command{Kind: CommandAcceptCall, CallID: "call-1"}
	mustEvent(t, first.Events, EventCallAccepted)

	second := NewClient("c3", "alice", "Alice (phone)")
	hub.RegisterClient(second)

	mustEvent(t, first.Events, EventSessionReplaced)
	mustEvent(t, bob.Events, EventCallEnded)
	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatal("replaced connection was not closed")
	}

	// The old transport noticing its closure must not evict the new one.
	hub.UnregisterClient(first)

	list, err := hub.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 identities, got %+v", list)
	}
	alice, _ := entryFor(list, "alice")
	if !alice.Online || alice.InCall || alice.DisplayName != "Alice (phone)" {
		t.Fatalf("unexpected alice entry: %+v", alice)
	}
	if b, _ := entryFor(list, "bob"); b.InCall {
		t.Fatalf("bob should be free again: %+v", b)
	}

	second.Commands <- &Command{Kind: CommandInitiateCall, CallID: "call-2", CalleeID: "bob", ChannelName: "room-2"}
	incoming := mustEvent(t, bob.Events, EventCallIncoming)
	if incoming.Call.CallID != "call-2" {
		t.Fatalf("unexpected incoming call: %+v", incoming.Call)
	}
}

func TestHubExpiresUnansweredCall(t *testing.T) {
	hub, _ := startHub(t, HubOptions{CallingTimeout: 50 * time.Millisecond, SweepInterval: 10 * time.Millisecond})

	alice := NewClient("c1", "alice", "Alice")
	bob := NewClient("c2", "bob", "Bob")
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	alice.Commands <- &Command{Kind: CommandInitiateCall, CallID: "call-1", CalleeID: "bob", ChannelName: "room-1"}
	mustEvent(t, bob.Events, EventCallIncoming)

	ev := mustEvent(t, alice.Events, EventCallFailed)
	if ev.Failure.Reason != ReasonNoAnswer {
		t.Fatalf("expected no_answer, got %+v", ev.Failure)
	}
	mustEvent(t, bob.Events, EventCallEnded)
}

func TestHubQueriesAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(HubOptions{}, nil)
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	if _, err := hub.Snapshot(context.Background()); !errors.Is(err, ErrHubStopped) {
		t.Fatalf("expected ErrHubStopped, got %v", err)
	}

	c := NewClient("c1", "alice", "")
	hub.UnregisterClient(c)
	select {
	case <-c.Done():
	default:
		t.Fatal("client should be closed when the hub is gone")
	}
}

func TestHubReleasesClientsOnStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(HubOptions{}, nil)
	go hub.Run(ctx)

	alice := NewClient("c1", "alice", "Alice")
	hub.RegisterClient(alice)
	waitPresence(t, alice, func(l []PresenceEntry) bool { return len(l) == 1 })

	cancel()
	select {
	case <-alice.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("registered client not released when the hub stopped")
	}
}

func TestHubNotifyReachesOnlyTarget(t *testing.T) {
	hub, _ := startHub(t, HubOptions{})

	alice := NewClient("c1", "alice", "Alice")
	bob := NewClient("c2", "bob", "Bob")
	carol := NewClient("c3", "carol", "Carol")
	for _, c := range []*Client{alice, bob, carol} {
		hub.RegisterClient(c)
	}
	waitPresence(t, carol, func(l []PresenceEntry) bool { return len(l) == 3 })

	alice.Commands <- &Command{Kind: CommandNotify, TargetID: "bob", Message: "meeting in 5"}
	ev := mustEvent(t, bob.Events, EventNotification)
	if ev.Notice.From.ID != "alice" || ev.Notice.From.Name != "Alice" || ev.Notice.Message != "meeting in 5" {
		t.Fatalf("unexpected notification: %+v", ev.Notice)
	}

	alice.Commands <- &Command{Kind: CommandNotify, TargetID: "nobody", Message: "lost"}
	alice.Commands <- &Command{Kind: CommandPoke, TargetID: "bob"}
	poke := mustEvent(t, bob.Events, EventPoke)
	if poke.Notice.Message != defaultPokeMessage || poke.Notice.From.ID != "alice" {
		t.Fatalf("unexpected poke: %+v", poke.Notice)
	}

	for _, c := range []*Client{alice, carol} {
		for _, ev := range drain(c) {
			if ev.Kind == EventNotification || ev.Kind == EventPoke {
				t.Fatalf("%s received a notice meant for bob: %+v", c.UserID, ev.Notice)
			}
		}
	}
}

type chanSink chan []PresenceEntry

func (s chanSink) Publish(snapshot []PresenceEntry) {
	select {
	case s <- snapshot:
	default:
	}
}

func TestHubPageChangeFeedsSinksOnly(t *testing.T) {
	sink := make(chanSink, 16)
	hub, _ := startHub(t, HubOptions{Sinks: []PresenceSink{sink}})

	alice := NewClient("c1", "alice", "Alice")
	hub.RegisterClient(alice)
	alice.Commands <- &Command{Kind: CommandPageChange, Page: "/pricing"}

	deadline := time.After(2 * time.Second)
	for found := false; !found; {
		select {
		case snap := <-sink:
			if e, ok := entryFor(snap, "alice"); ok && e.Page == "/pricing" {
				found = true
			}
		case <-deadline:
			t.Fatal("page change never reached the sink")
		}
	}

	presence := 0
	for _, ev := range drain(alice) {
		if ev.Kind == EventPresence {
			presence++
		}
	}
	if presence != 1 {
		t.Fatalf("expected only the registration broadcast, got %d presence events", presence)
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestHubLogsDuplicateCallOnce(t *testing.T) {
	var out lockedBuffer
	logger := zerolog.New(&out).Level(zerolog.DebugLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(HubOptions{}, &logger)
	go hub.Run(ctx)

	alice := NewClient("c1", "alice", "Alice")
	bob := NewClient("c2", "bob", "Bob")
	carol := NewClient("c3", "carol", "Carol")
	for _, c := range []*Client{alice, bob, carol} {
		hub.RegisterClient(c)
	}

	alice.Commands <- &Command{Kind: CommandInitiateCall, CallID: "call-1", CalleeID: "bob", ChannelName: "room-1"}
	mustEvent(t, bob.Events, EventCallIncoming)
	alice.Commands <- &Command{Kind: CommandInitiateCall, CallID: "call-1", CalleeID: "carol", ChannelName: "room-2"}

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), "duplicate call id") {
		if time.Now().After(deadline) {
			t.Fatal("duplicate call id was never logged")
		}
		time.Sleep(5 * time.Millisecond)
	}
	// The query is served only after the duplicate command has been handled.
	if _, err := hub.Snapshot(ctx); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	logs := out.String()
	if n := strings.Count(logs, `"call_id":"call-1"`); n != 2 {
		t.Fatalf("expected the ring and the duplicate warning for call-1, got %d lines:\n%s", n, logs)
	}
	if strings.Contains(logs, "call id already in use") {
		t.Fatalf("duplicate call logged twice:\n%s", logs)
	}
}
