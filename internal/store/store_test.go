package store

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateIdentifier(t *testing.T) {
	for _, ok := range []string{"users_status", "in_call", "_x", "T1"} {
		assert.NoError(t, ValidateIdentifier(ok), ok)
	}
	for _, bad := range []string{"", "1abc", "users status", `x"; DROP TABLE y; --`, "a.b", "[id]"} {
		err := ValidateIdentifier(bad)
		assert.True(t, errors.Is(err, ErrInvalidIdentifier), bad)
	}
}

func TestPresenceRowRoundTripsThroughBackendTypes(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		row  Row
	}{
		{
			name: "native types",
			row: Row{
				ColID: int64(7), ColUserID: "u1", ColName: "Alice", ColStatus: StatusOnline,
				ColInCall: true, ColWhichPage: "/lobby", ColConnectedAt: at, ColUpdatedAt: at,
			},
		},
		{
			name: "sqlite integers and text",
			row: Row{
				ColID: int64(7), ColUserID: []byte("u1"), ColName: "Alice", ColStatus: StatusOnline,
				ColInCall: int64(1), ColWhichPage: []byte("/lobby"), ColConnectedAt: "2026-03-01T10:30:00Z", ColUpdatedAt: "2026-03-01 10:30:00",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := PresenceRowFrom(tt.row)
			assert.Equal(t, int64(7), p.ID)
			assert.Equal(t, "u1", p.UserID)
			assert.Equal(t, "Alice", p.Name)
			assert.Equal(t, StatusOnline, p.Status)
			assert.True(t, p.InCall)
			assert.Equal(t, "/lobby", p.WhichPage)
			assert.True(t, at.Equal(p.ConnectedAt))
			assert.True(t, at.Equal(p.UpdatedAt))
		})
	}
}

func TestPresenceRowOmitsID(t *testing.T) {
	r := PresenceRow{ID: 3, UserID: "u"}.Row()
	_, ok := r[ColID]
	assert.False(t, ok)
}
