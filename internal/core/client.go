package core

import "sync"

// Client is one live connection as seen by the core layer.
// ID identifies the connection itself; UserID is the identity it asserted.
type Client struct {
	ID       string
	UserID   string
	Name     string
	Commands chan *Command
	Events   chan *Event

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a client with initialized channels.
func NewClient(id, userID, name string) *Client {
	if name == "" {
		name = userID
	}
	return &Client{
		ID:       id,
		UserID:   userID,
		Name:     name,
		Commands: make(chan *Command, 16),
		Events:   make(chan *Event, 32),
		done:     make(chan struct{}),
	}
}

// Deliver pushes an event to this connection only.
// Delivery is best effort: a full buffer or a closed client drops the event.
func (c *Client) Deliver(ev *Event) bool {
	if c == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}

// Done is closed once the hub has processed the client's disconnect.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}
