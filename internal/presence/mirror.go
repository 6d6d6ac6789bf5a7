package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/callrelay/internal/core"
	"github.com/vovakirdan/callrelay/internal/store"
)

// Mirror copies presence snapshots into the users_status table for
// external readers. It implements core.PresenceSink.
type Mirror struct {
	rows    store.RowStore
	log     *zerolog.Logger
	pending chan []core.PresenceEntry
	now     func() time.Time

	// known is the status last written per user, owned by Run.
	known map[string]store.PresenceRow
}

var _ core.PresenceSink = (*Mirror)(nil)

// NewMirror builds a mirror over rows.
func NewMirror(rows store.RowStore, logger *zerolog.Logger) *Mirror {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Mirror{
		rows:    rows,
		log:     logger,
		pending: make(chan []core.PresenceEntry, 1),
		now:     time.Now,
		known:   make(map[string]store.PresenceRow),
	}
}

// Publish queues a snapshot. Only the newest unsynced snapshot is kept.
func (m *Mirror) Publish(snapshot []core.PresenceEntry) {
	for {
		select {
		case m.pending <- snapshot:
			return
		default:
		}
		select {
		case <-m.pending:
		default:
		}
	}
}

// Run clears the table and then syncs snapshots until ctx is cancelled.
func (m *Mirror) Run(ctx context.Context) error {
	if err := m.Reset(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-m.pending:
			if err := m.Sync(ctx, snap); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				m.log.Error().Err(err).Msg("presence sync failed")
			}
		}
	}
}

// Reset deletes every mirrored row. Presence does not survive a restart.
func (m *Mirror) Reset(ctx context.Context) error {
	n, err := m.rows.Delete(ctx, store.PresenceTable, nil)
	if err != nil {
		return fmt.Errorf("clear presence: %w", err)
	}
	m.known = make(map[string]store.PresenceRow)
	m.log.Info().Int64("rows", n).Msg("presence table cleared")
	return nil
}

// Sync writes one snapshot: listed users are upserted as online, users
// that vanished since the last sync are marked offline.
func (m *Mirror) Sync(ctx context.Context, snapshot []core.PresenceEntry) error {
	now := m.now()
	seen := make(map[string]bool, len(snapshot))

	for _, entry := range snapshot {
		seen[entry.ID] = true
		status := store.StatusOffline
		if entry.Online {
			status = store.StatusOnline
		}

		prev, exists := m.known[entry.ID]
		next := store.PresenceRow{
			UserID:      entry.ID,
			Name:        entry.DisplayName,
			Status:      status,
			InCall:      entry.InCall,
			WhichPage:   entry.Page,
			ConnectedAt: now,
			UpdatedAt:   now,
		}
		if exists && prev.Status == store.StatusOnline {
			next.ConnectedAt = prev.ConnectedAt
		}
		if exists && prev.Name == next.Name && prev.Status == next.Status &&
			prev.InCall == next.InCall && prev.WhichPage == next.WhichPage {
			continue
		}

		if err := m.upsert(ctx, next, exists); err != nil {
			return err
		}
		m.known[entry.ID] = next
	}

	for id, prev := range m.known {
		if seen[id] || prev.Status == store.StatusOffline {
			continue
		}
		_, err := m.rows.Update(ctx, store.PresenceTable, store.Row{
			store.ColStatus:    store.StatusOffline,
			store.ColInCall:    false,
			store.ColUpdatedAt: now.UTC(),
		}, store.Eq(store.ColUserID, id))
		if err != nil {
			return fmt.Errorf("mark %s offline: %w", id, err)
		}
		prev.Status = store.StatusOffline
		prev.InCall = false
		prev.UpdatedAt = now
		m.known[id] = prev
		m.log.Debug().Str("user_id", id).Msg("presence row marked offline")
	}
	return nil
}

func (m *Mirror) upsert(ctx context.Context, row store.PresenceRow, exists bool) error {
	if exists {
		n, err := m.rows.Update(ctx, store.PresenceTable, row.Row(), store.Eq(store.ColUserID, row.UserID))
		if err != nil {
			return fmt.Errorf("update presence %s: %w", row.UserID, err)
		}
		if n > 0 {
			return nil
		}
	}
	if err := m.rows.Create(ctx, store.PresenceTable, row.Row()); err != nil {
		return fmt.Errorf("insert presence %s: %w", row.UserID, err)
	}
	return nil
}
