package core

// PresenceSink receives every snapshot the broadcaster pushes.
// Implementations must not block; the hub loop calls Publish inline.
type PresenceSink interface {
	Publish(snapshot []PresenceEntry)
}

// Broadcaster pushes the registry snapshot to every registered connection.
type Broadcaster struct {
	registry *Registry
	sinks    []PresenceSink
}

// NewBroadcaster builds a broadcaster over the given registry.
func NewBroadcaster(registry *Registry, sinks ...PresenceSink) *Broadcaster {
	return &Broadcaster{registry: registry, sinks: sinks}
}

// BroadcastAll sends the current snapshot to all connections and sinks.
// Returns the number of connections the snapshot was queued for.
func (b *Broadcaster) BroadcastAll() int {
	snapshot := b.registry.Snapshot()
	ev := &Event{Kind: EventPresence, Presence: snapshot}

	delivered := 0
	for _, conn := range b.registry.connections() {
		if conn.Deliver(ev) {
			delivered++
		}
	}
	b.publish(snapshot)
	return delivered
}

// PublishSinks hands the snapshot to the sinks only. Used for changes
// that are not part of the users-online payload.
func (b *Broadcaster) PublishSinks() {
	b.publish(b.registry.Snapshot())
}

func (b *Broadcaster) publish(snapshot []PresenceEntry) {
	for _, sink := range b.sinks {
		cp := make([]PresenceEntry, len(snapshot))
		copy(cp, snapshot)
		sink.Publish(cp)
	}
}
