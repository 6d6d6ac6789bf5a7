package gormstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vovakirdan/callrelay/internal/store"
)

// PresenceRecord is the users_status table as gorm sees it.
type PresenceRecord struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UserID      string    `gorm:"column:user_id;uniqueIndex;not null"`
	Name        string    `gorm:"column:name;not null;default:''"`
	Status      string    `gorm:"column:status;index;not null;default:'offline'"`
	InCall      bool      `gorm:"column:in_call;not null;default:false"`
	WhichPage   string    `gorm:"column:which_page;not null;default:''"`
	ConnectedAt time.Time `gorm:"column:connected_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

// TableName pins the table name shared with the sqlite backend.
func (PresenceRecord) TableName() string {
	return store.PresenceTable
}

func (r PresenceRecord) row() store.Row {
	return store.Row{
		store.ColID:          r.ID,
		store.ColUserID:      r.UserID,
		store.ColName:        r.Name,
		store.ColStatus:      r.Status,
		store.ColInCall:      r.InCall,
		store.ColWhichPage:   r.WhichPage,
		store.ColConnectedAt: r.ConnectedAt,
		store.ColUpdatedAt:   r.UpdatedAt,
	}
}

// Store implements store.RowStore on gorm. It serves the tables it migrates.
type Store struct {
	db *gorm.DB
}

var _ store.RowStore = (*Store)(nil)

// New opens dsn with the postgres or sqlite dialector and migrates the
// presence table.
func New(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported gorm driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("sqlite handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&PresenceRecord{}); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", store.PresenceTable, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// scoped returns a session on the presence model filtered by where.
// A nil predicate lifts gorm's guard against unconditional writes.
func (s *Store) scoped(ctx context.Context, table string, where *store.Predicate) (*gorm.DB, error) {
	if table != store.PresenceTable {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownTable, table)
	}
	db := s.db.WithContext(ctx).Model(&PresenceRecord{})
	if where == nil {
		return db.Session(&gorm.Session{AllowGlobalUpdate: true}), nil
	}
	if err := store.ValidateIdentifier(where.Column); err != nil {
		return nil, err
	}
	return db.Where(clause.Eq{Column: clause.Column{Name: where.Column}, Value: where.Value}), nil
}

func validateRow(row store.Row) error {
	if len(row) == 0 {
		return store.ErrEmptyRow
	}
	for col := range row {
		if err := store.ValidateIdentifier(col); err != nil {
			return err
		}
	}
	return nil
}

// Create inserts one row.
func (s *Store) Create(ctx context.Context, table string, row store.Row) error {
	if err := validateRow(row); err != nil {
		return err
	}
	db, err := s.scoped(ctx, table, nil)
	if err != nil {
		return err
	}
	if err := db.Create(map[string]any(row)).Error; err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

// Read returns every row matching where.
func (s *Store) Read(ctx context.Context, table string, where *store.Predicate) ([]store.Row, error) {
	db, err := s.scoped(ctx, table, where)
	if err != nil {
		return nil, err
	}
	var records []PresenceRecord
	if err := db.Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("select from %s: %w", table, err)
	}
	out := make([]store.Row, 0, len(records))
	for _, r := range records {
		out = append(out, r.row())
	}
	return out, nil
}

// Update sets the given columns on every row matching where.
func (s *Store) Update(ctx context.Context, table string, row store.Row, where *store.Predicate) (int64, error) {
	if err := validateRow(row); err != nil {
		return 0, err
	}
	db, err := s.scoped(ctx, table, where)
	if err != nil {
		return 0, err
	}
	res := db.Updates(map[string]any(row))
	if res.Error != nil {
		return 0, fmt.Errorf("update %s: %w", table, res.Error)
	}
	return res.RowsAffected, nil
}

// Delete removes every row matching where.
func (s *Store) Delete(ctx context.Context, table string, where *store.Predicate) (int64, error) {
	db, err := s.scoped(ctx, table, where)
	if err != nil {
		return 0, err
	}
	res := db.Delete(&PresenceRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete from %s: %w", table, res.Error)
	}
	return res.RowsAffected, nil
}
