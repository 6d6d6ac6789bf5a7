package core

import "time"

// Identity is one connected user.
type Identity struct {
	ID          string
	DisplayName string
	Conn        *Client
	Online      bool
	InCall      bool
	Page        string
	ConnectedAt time.Time
}

// Registry maps identities to their live connection and presence flags.
// It is owned by the hub loop and is not safe for concurrent use.
type Registry struct {
	identities map[string]*Identity
	order      []string
	now        func() time.Time
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		identities: make(map[string]*Identity),
		now:        time.Now,
	}
}

// Register creates or replaces the identity record for id.
// A replaced record keeps its position in the snapshot order.
func (r *Registry) Register(id, displayName string, conn *Client) *Identity {
	if displayName == "" {
		displayName = id
	}
	ident := &Identity{
		ID:          id,
		DisplayName: displayName,
		Conn:        conn,
		Online:      true,
		InCall:      false,
		ConnectedAt: r.now(),
	}
	if _, exists := r.identities[id]; !exists {
		r.order = append(r.order, id)
	}
	r.identities[id] = ident
	return ident
}

// Unregister removes the identity record. No-op if absent.
func (r *Registry) Unregister(id string) {
	if _, exists := r.identities[id]; !exists {
		return
	}
	delete(r.identities, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Rename changes the display name of id. Only the identity itself may rename
// itself; anything else is ignored. Returns true if the name changed.
func (r *Registry) Rename(requesterID, id, newName string) bool {
	if requesterID != id || newName == "" {
		return false
	}
	ident, ok := r.identities[id]
	if !ok || ident.DisplayName == newName {
		return false
	}
	ident.DisplayName = newName
	return true
}

// SetBusy sets the in-call flag. Returns false if the identity is unknown.
func (r *Registry) SetBusy(id string, busy bool) bool {
	ident, ok := r.identities[id]
	if !ok {
		return false
	}
	ident.InCall = busy
	return true
}

// SetPage records the page id is on. Returns true if it changed.
func (r *Registry) SetPage(id, page string) bool {
	ident, ok := r.identities[id]
	if !ok || ident.Page == page {
		return false
	}
	ident.Page = page
	return true
}

// Get returns the identity record for id.
func (r *Registry) Get(id string) (*Identity, bool) {
	ident, ok := r.identities[id]
	return ident, ok
}

// IsCurrent reports whether c is the live connection of its identity.
func (r *Registry) IsCurrent(c *Client) bool {
	if c == nil {
		return false
	}
	ident, ok := r.identities[c.UserID]
	return ok && ident.Conn == c
}

// Len returns the number of registered identities.
func (r *Registry) Len() int {
	return len(r.identities)
}

// Snapshot returns the presence list in registration order.
func (r *Registry) Snapshot() []PresenceEntry {
	out := make([]PresenceEntry, 0, len(r.order))
	for _, id := range r.order {
		ident := r.identities[id]
		out = append(out, PresenceEntry{
			ID:          ident.ID,
			DisplayName: ident.DisplayName,
			Online:      ident.Online,
			InCall:      ident.InCall,
			Page:        ident.Page,
		})
	}
	return out
}

// connections returns every registered connection in registration order.
func (r *Registry) connections() []*Client {
	out := make([]*Client, 0, len(r.order))
	for _, id := range r.order {
		if conn := r.identities[id].Conn; conn != nil {
			out = append(out, conn)
		}
	}
	return out
}
