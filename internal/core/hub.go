package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultSweepInterval = time.Second
	defaultPokeMessage   = "You have been poked!"
)

// HubOptions tunes the hub. The zero value is usable.
type HubOptions struct {
	// CallingTimeout expires unanswered calls. Zero keeps them forever.
	CallingTimeout time.Duration
	// SweepInterval is how often expiry is checked.
	SweepInterval time.Duration
	Recorder      Recorder
	Sinks         []PresenceSink
}

type envelope struct {
	client *Client
	cmd    *Command
}

// Hub serializes every connect, disconnect and call-control event through a
// single loop, so registry and session state never need locking.
type Hub struct {
	log         *zerolog.Logger
	registry    *Registry
	sessions    *SessionManager
	gate        *Gate
	broadcaster *Broadcaster
	rec         Recorder

	callingTimeout time.Duration
	sweepInterval  time.Duration

	register   chan *Client
	unregister chan *Client
	inbox      chan envelope
	queries    chan func()
	done       chan struct{}
}

// NewHub creates a hub. Run must be started before clients register.
func NewHub(opts HubOptions, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	rec := opts.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}
	sweep := opts.SweepInterval
	if sweep <= 0 {
		sweep = defaultSweepInterval
	}

	registry := NewRegistry()
	broadcaster := NewBroadcaster(registry, opts.Sinks...)
	sessions := NewSessionManager(registry, broadcaster, rec, logger)

	return &Hub{
		log:            logger,
		registry:       registry,
		sessions:       sessions,
		gate:           NewGate(sessions, registry),
		broadcaster:    broadcaster,
		rec:            rec,
		callingTimeout: opts.CallingTimeout,
		sweepInterval:  sweep,
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		inbox:          make(chan envelope, 64),
		queries:        make(chan func()),
		done:           make(chan struct{}),
	}
}

// Run processes events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer h.releaseAll()

	var sweep <-chan time.Time
	if h.callingTimeout > 0 {
		ticker := time.NewTicker(h.sweepInterval)
		defer ticker.Stop()
		sweep = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.handleRegister(ctx, c)
		case c := <-h.unregister:
			h.handleUnregister(c)
		case env := <-h.inbox:
			h.handleCommand(env.client, env.cmd)
		case q := <-h.queries:
			q()
		case now := <-sweep:
			h.sessions.Expire(now, h.callingTimeout)
		}
	}
}

// RegisterClient announces a new connection.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// UnregisterClient announces that a connection is gone.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
		c.close()
	}
}

// Authorize asks the channel gate whether userID may join channelName.
func (h *Hub) Authorize(ctx context.Context, channelName, userID string) (AuthResult, error) {
	return query(ctx, h, func() AuthResult {
		return h.gate.Authorize(channelName, userID)
	})
}

// Snapshot returns the current presence list.
func (h *Hub) Snapshot(ctx context.Context) ([]PresenceEntry, error) {
	return query(ctx, h, h.registry.Snapshot)
}

func query[T any](ctx context.Context, h *Hub, fn func() T) (T, error) {
	var zero T
	out := make(chan T, 1)

	select {
	case h.queries <- func() { out <- fn() }:
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-h.done:
		return zero, ErrHubStopped
	}

	select {
	case v := <-out:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-h.done:
		select {
		case v := <-out:
			return v, nil
		default:
			return zero, ErrHubStopped
		}
	}
}

func (h *Hub) handleRegister(ctx context.Context, c *Client) {
	if h.registry.IsCurrent(c) {
		return
	}
	if prev, ok := h.registry.Get(c.UserID); ok {
		ended := h.sessions.DisconnectCleanup(c.UserID, EndCauseReplaced)
		prev.Conn.Deliver(&Event{Kind: EventSessionReplaced})
		prev.Conn.close()
		h.log.Info().
			Str("user_id", c.UserID).
			Str("old_conn", prev.Conn.ID).
			Str("new_conn", c.ID).
			Int("calls_ended", ended).
			Msg("identity reconnected, previous connection replaced")
	}

	h.registry.Register(c.UserID, c.Name, c)
	h.rec.IdentitiesOnline(h.registry.Len())
	h.log.Info().Str("user_id", c.UserID).Str("name", c.Name).Str("conn", c.ID).Msg("user connected")

	go h.pump(ctx, c)
	h.broadcaster.BroadcastAll()
}

func (h *Hub) handleUnregister(c *Client) {
	c.close()
	if !h.registry.IsCurrent(c) {
		h.log.Debug().Str("user_id", c.UserID).Str("conn", c.ID).Msg("superseded connection closed")
		return
	}

	h.sessions.DisconnectCleanup(c.UserID, EndCauseDisconnect)
	h.registry.Unregister(c.UserID)
	h.rec.IdentitiesOnline(h.registry.Len())
	h.log.Info().Str("user_id", c.UserID).Str("conn", c.ID).Msg("user disconnected")
	h.broadcaster.BroadcastAll()
}

func (h *Hub) handleCommand(c *Client, cmd *Command) {
	if !h.registry.IsCurrent(c) {
		h.log.Debug().Str("conn", c.ID).Stringer("command", cmd.Kind).Msg("command from stale connection dropped")
		return
	}

	// The session manager logs its own refusals.
	switch cmd.Kind {
	case CommandSetBusy:
		if h.registry.SetBusy(c.UserID, cmd.Busy) {
			h.log.Info().Str("user_id", c.UserID).Bool("in_call", cmd.Busy).Msg("call status updated")
			h.broadcaster.BroadcastAll()
		}
	case CommandRename:
		if h.registry.Rename(c.UserID, cmd.TargetID, cmd.Name) {
			h.log.Info().Str("user_id", c.UserID).Str("name", cmd.Name).Msg("user renamed")
			h.broadcaster.BroadcastAll()
		} else {
			h.log.Warn().Str("user_id", c.UserID).Str("target", cmd.TargetID).Msg("rename ignored")
		}
	case CommandInitiateCall:
		_, _ = h.sessions.Initiate(c.UserID, CallRequest{
			CallID:      cmd.CallID,
			CalleeID:    cmd.CalleeID,
			ChannelName: cmd.ChannelName,
			From:        cmd.From,
		})
	case CommandAcceptCall:
		_ = h.sessions.Accept(c.UserID, cmd.CallID, cmd.ChannelName)
	case CommandRejectCall:
		_ = h.sessions.Reject(c.UserID, cmd.CallID, cmd.Reason)
	case CommandHangup:
		_ = h.sessions.Hangup(c.UserID)
	case CommandNotify, CommandPoke:
		h.relayNotice(c, cmd)
	case CommandPageChange:
		if h.registry.SetPage(c.UserID, cmd.Page) {
			h.log.Debug().Str("user_id", c.UserID).Str("page", cmd.Page).Msg("page changed")
			h.broadcaster.PublishSinks()
		}
	default:
		h.log.Warn().Int("kind", int(cmd.Kind)).Msg("unknown command")
	}
}

// relayNotice delivers a notify or poke to its target only.
func (h *Hub) relayNotice(c *Client, cmd *Command) {
	target, ok := h.registry.Get(cmd.TargetID)
	if !ok {
		h.log.Warn().
			Str("user_id", c.UserID).
			Str("target", cmd.TargetID).
			Stringer("command", cmd.Kind).
			Msg("notice target not connected, dropped")
		return
	}

	from := Peer{ID: c.UserID, Name: c.Name}
	if sender, ok := h.registry.Get(c.UserID); ok {
		from.Name = sender.DisplayName
	}
	ev := &Event{Kind: EventNotification, Notice: &Notice{From: from, Message: cmd.Message}}
	if cmd.Kind == CommandPoke {
		ev.Kind = EventPoke
		if ev.Notice.Message == "" {
			ev.Notice.Message = defaultPokeMessage
		}
	}

	delivered := target.Conn.Deliver(ev)
	h.log.Info().
		Str("user_id", c.UserID).
		Str("target", cmd.TargetID).
		Stringer("command", cmd.Kind).
		Bool("delivered", delivered).
		Msg("notice relayed")
}

// releaseAll closes every registered client once the loop stops.
func (h *Hub) releaseAll() {
	for _, conn := range h.registry.connections() {
		conn.close()
	}
}

func (h *Hub) pump(ctx context.Context, c *Client) {
	for {
		select {
		case cmd := <-c.Commands:
			if cmd == nil {
				continue
			}
			select {
			case h.inbox <- envelope{client: c, cmd: cmd}:
			case <-c.done:
				return
			case <-ctx.Done():
				return
			}
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}
