package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/callrelay/internal/store"
)

// PresenceHandlers exposes presence to dashboards.
type PresenceHandlers struct {
	hub  Hub
	rows store.RowStore
	log  *zerolog.Logger
}

// NewPresenceHandlers creates presence handlers. rows may be nil.
func NewPresenceHandlers(hub Hub, rows store.RowStore, logger *zerolog.Logger) *PresenceHandlers {
	return &PresenceHandlers{hub: hub, rows: rows, log: logger}
}

// Snapshot returns the live presence list.
// GET /api/presence
func (h *PresenceHandlers) Snapshot(c *gin.Context) {
	entries, err := h.hub.Snapshot(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("presence snapshot unavailable")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "relay unavailable"})
		return
	}
	c.JSON(http.StatusOK, userStatuses(entries))
}

// Rows returns the mirrored users_status rows, optionally filtered by status.
// GET /api/presence/rows?status=online
func (h *PresenceHandlers) Rows(c *gin.Context) {
	if h.rows == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "presence store not configured"})
		return
	}

	var where *store.Predicate
	switch status := c.Query("status"); status {
	case "":
	case store.StatusOnline, store.StatusOffline:
		where = store.Eq(store.ColStatus, status)
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "status must be online or offline"})
		return
	}

	raw, err := h.rows.Read(c.Request.Context(), store.PresenceTable, where)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to read presence rows")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	out := make([]store.PresenceRow, 0, len(raw))
	for _, r := range raw {
		out = append(out, store.PresenceRowFrom(r))
	}
	c.JSON(http.StatusOK, out)
}
