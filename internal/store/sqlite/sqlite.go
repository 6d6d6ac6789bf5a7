package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/callrelay/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users_status (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id      TEXT NOT NULL UNIQUE,
	name         TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'offline',
	in_call      BOOLEAN NOT NULL DEFAULT 0,
	which_page   TEXT NOT NULL DEFAULT '',
	connected_at DATETIME,
	updated_at   DATETIME
);
CREATE INDEX IF NOT EXISTS idx_users_status_status ON users_status(status);
`

// SQLiteStore implements store.RowStore for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ store.RowStore = (*SQLiteStore)(nil)

// New opens the database at dbPath and makes sure the presence table exists.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, ApplySchema)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply extra tables.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Single connection: keeps :memory: databases alive and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// ApplySchema creates the presence table if it is missing.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Create inserts one row.
func (s *SQLiteStore) Create(ctx context.Context, table string, row store.Row) error {
	query, args, err := buildInsert(table, row)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

// Read returns every row matching where.
func (s *SQLiteStore) Read(ctx context.Context, table string, where *store.Predicate) ([]store.Row, error) {
	query, args, err := buildSelect(table, where)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}

	var out []store.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		row := make(store.Row, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}

// Update sets the given columns on every row matching where.
func (s *SQLiteStore) Update(ctx context.Context, table string, row store.Row, where *store.Predicate) (int64, error) {
	query, args, err := buildUpdate(table, row, where)
	if err != nil {
		return 0, err
	}
	return s.exec(ctx, "update "+table, query, args)
}

// Delete removes every row matching where.
func (s *SQLiteStore) Delete(ctx context.Context, table string, where *store.Predicate) (int64, error) {
	query, args, err := buildDelete(table, where)
	if err != nil {
		return 0, err
	}
	return s.exec(ctx, "delete from "+table, query, args)
}

func (s *SQLiteStore) exec(ctx context.Context, op, query string, args []any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s rows affected: %w", op, err)
	}
	return n, nil
}
