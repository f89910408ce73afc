package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	apperrors "paisa-trader/internal/errors"
	"paisa-trader/internal/models"
)

// Snapshot kinds persisted by the SQLite store.
const (
	kindQuote     = "quote"
	kindMargin    = "margin"
	kindBook      = "book"
	kindPositions = "positions"
	kindOrders    = "orders"
)

// SQLiteStore implements SnapshotStore on a SQLite database. Each
// snapshot is one row keyed by (kind, key) and upserted whole, so any
// process with file-system access can read the latest snapshots
// independently.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed snapshot store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		kind TEXT NOT NULL,
		key TEXT NOT NULL,
		payload TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (kind, key)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) put(ctx context.Context, kind, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshaling %s snapshot: %w", kind, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (kind, key, payload, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(kind, key) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, kind, key, string(payload))
	if err != nil {
		return fmt.Errorf("storing %s snapshot: %w: %v", kind, apperrors.ErrSnapshotStore, err)
	}
	return nil
}

func (s *SQLiteStore) get(ctx context.Context, kind, key string, target interface{}) (bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots WHERE kind = ? AND key = ?`,
		kind, key).Scan(&payload)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s snapshot: %w: %v", kind, apperrors.ErrSnapshotStore, err)
	}
	if err := json.Unmarshal([]byte(payload), target); err != nil {
		return false, fmt.Errorf("unmarshaling %s snapshot: %w", kind, err)
	}
	return true, nil
}

// PutQuote replaces the quote snapshot for the snapshot's index.
func (s *SQLiteStore) PutQuote(ctx context.Context, snap models.QuoteSnapshot) error {
	return s.put(ctx, kindQuote, snap.Index, snap)
}

// Quote returns the latest quote snapshot for an index.
func (s *SQLiteStore) Quote(ctx context.Context, index string) (models.QuoteSnapshot, bool, error) {
	var snap models.QuoteSnapshot
	ok, err := s.get(ctx, kindQuote, index, &snap)
	return snap, ok, err
}

// PutMargin replaces the margin snapshot for the snapshot's account.
func (s *SQLiteStore) PutMargin(ctx context.Context, snap models.MarginSnapshot) error {
	return s.put(ctx, kindMargin, snap.Account, snap)
}

// Margin returns the latest margin snapshot for an account.
func (s *SQLiteStore) Margin(ctx context.Context, account string) (models.MarginSnapshot, bool, error) {
	var snap models.MarginSnapshot
	ok, err := s.get(ctx, kindMargin, account, &snap)
	return snap, ok, err
}

// PutBook replaces the option book for an (account, index) pair.
func (s *SQLiteStore) PutBook(ctx context.Context, account, index string, entries []models.BookEntry) error {
	return s.put(ctx, kindBook, bookKey(account, index), entries)
}

// Book returns the latest option book for an (account, index) pair.
func (s *SQLiteStore) Book(ctx context.Context, account, index string) ([]models.BookEntry, bool, error) {
	var entries []models.BookEntry
	ok, err := s.get(ctx, kindBook, bookKey(account, index), &entries)
	return entries, ok, err
}

// PutPositions replaces the open positions for an account.
func (s *SQLiteStore) PutPositions(ctx context.Context, account string, positions []models.Position) error {
	return s.put(ctx, kindPositions, account, positions)
}

// Positions returns the latest open positions for an account.
func (s *SQLiteStore) Positions(ctx context.Context, account string) ([]models.Position, bool, error) {
	var positions []models.Position
	ok, err := s.get(ctx, kindPositions, account, &positions)
	return positions, ok, err
}

// PutOrders replaces the order book snapshot for an account.
func (s *SQLiteStore) PutOrders(ctx context.Context, account string, orders []models.OrderRecord) error {
	return s.put(ctx, kindOrders, account, orders)
}

// Orders returns the latest order book snapshot for an account.
func (s *SQLiteStore) Orders(ctx context.Context, account string) ([]models.OrderRecord, bool, error) {
	var orders []models.OrderRecord
	ok, err := s.get(ctx, kindOrders, account, &orders)
	return orders, ok, err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
