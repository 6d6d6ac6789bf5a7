package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var (
	// ErrInvalidIdentifier is returned for table or column names that are
	// not plain identifiers.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrEmptyRow is returned when a write carries no columns.
	ErrEmptyRow = errors.New("row has no columns")
	// ErrUnknownTable is returned by backends that only serve known tables.
	ErrUnknownTable = errors.New("unknown table")
)

// Row is one record as a column/value map.
type Row map[string]any

// Predicate is a single equality condition. A nil predicate matches every row.
type Predicate struct {
	Column string
	Value  any
}

// Eq builds the predicate column = value.
func Eq(column string, value any) *Predicate {
	return &Predicate{Column: column, Value: value}
}

// RowStore is a keyed row store addressed by table name.
type RowStore interface {
	Create(ctx context.Context, table string, row Row) error
	Read(ctx context.Context, table string, where *Predicate) ([]Row, error)
	Update(ctx context.Context, table string, row Row, where *Predicate) (int64, error)
	Delete(ctx context.Context, table string, where *Predicate) (int64, error)
	Close() error
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateIdentifier rejects anything that is not safe to quote as a
// table or column name.
func ValidateIdentifier(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

// PresenceTable is the table the presence mirror maintains.
const PresenceTable = "users_status"

// Presence row columns.
const (
	ColID          = "id"
	ColUserID      = "user_id"
	ColName        = "name"
	ColStatus      = "status"
	ColInCall      = "in_call"
	ColWhichPage   = "which_page"
	ColConnectedAt = "connected_at"
	ColUpdatedAt   = "updated_at"
)

// Presence statuses.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// PresenceRow is the typed view of a users_status row.
type PresenceRow struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	InCall      bool      `json:"in_call"`
	WhichPage   string    `json:"which_page"`
	ConnectedAt time.Time `json:"connected_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Row converts p into a writable row. The id column is left to the backend.
func (p PresenceRow) Row() Row {
	return Row{
		ColUserID:      p.UserID,
		ColName:        p.Name,
		ColStatus:      p.Status,
		ColInCall:      p.InCall,
		ColWhichPage:   p.WhichPage,
		ColConnectedAt: p.ConnectedAt.UTC(),
		ColUpdatedAt:   p.UpdatedAt.UTC(),
	}
}

// PresenceRowFrom reads a row returned by any backend.
func PresenceRowFrom(r Row) PresenceRow {
	return PresenceRow{
		ID:          asInt64(r[ColID]),
		UserID:      asString(r[ColUserID]),
		Name:        asString(r[ColName]),
		Status:      asString(r[ColStatus]),
		InCall:      asBool(r[ColInCall]),
		WhichPage:   asString(r[ColWhichPage]),
		ConnectedAt: asTime(r[ColConnectedAt]),
		UpdatedAt:   asTime(r[ColUpdatedAt]),
	}
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func asInt64(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case float64:
		return int64(x)
	case []byte:
		n, _ := strconv.ParseInt(string(x), 10, 64)
		return n
	case string:
		n, _ := strconv.ParseInt(x, 10, 64)
		return n
	default:
		return 0
	}
}

func asBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case int64, int, int32, uint, float64:
		return asInt64(x) != 0
	case []byte:
		b, _ := strconv.ParseBool(string(x))
		return b
	case string:
		b, _ := strconv.ParseBool(x)
		return b
	default:
		return false
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func asTime(v any) time.Time {
	var s string
	switch x := v.(type) {
	case time.Time:
		return x
	case string:
		s = x
	case []byte:
		s = string(x)
	default:
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
