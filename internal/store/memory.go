package store

import (
	"context"
	"fmt"
	"sync"

	"paisa-trader/internal/models"
)

// MemoryStore implements SnapshotStore with in-process maps.
type MemoryStore struct {
	mu        sync.RWMutex
	quotes    map[string]models.QuoteSnapshot
	margins   map[string]models.MarginSnapshot
	books     map[string][]models.BookEntry
	positions map[string][]models.Position
	orders    map[string][]models.OrderRecord
}

// NewMemoryStore creates a new in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		quotes:    make(map[string]models.QuoteSnapshot),
		margins:   make(map[string]models.MarginSnapshot),
		books:     make(map[string][]models.BookEntry),
		positions: make(map[string][]models.Position),
		orders:    make(map[string][]models.OrderRecord),
	}
}

func bookKey(account, index string) string {
	return fmt.Sprintf("%s/%s", account, index)
}

// PutQuote replaces the quote snapshot for the snapshot's index.
func (s *MemoryStore) PutQuote(_ context.Context, snap models.QuoteSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[snap.Index] = snap
	return nil
}

// Quote returns the latest quote snapshot for an index.
func (s *MemoryStore) Quote(_ context.Context, index string) (models.QuoteSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.quotes[index]
	return snap, ok, nil
}

// PutMargin replaces the margin snapshot for the snapshot's account.
func (s *MemoryStore) PutMargin(_ context.Context, snap models.MarginSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.margins[snap.Account] = snap
	return nil
}

// Margin returns the latest margin snapshot for an account.
func (s *MemoryStore) Margin(_ context.Context, account string) (models.MarginSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.margins[account]
	return snap, ok, nil
}

// PutBook replaces the option book for an (account, index) pair.
func (s *MemoryStore) PutBook(_ context.Context, account, index string, entries []models.BookEntry) error {
	copied := make([]models.BookEntry, len(entries))
	copy(copied, entries)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books[bookKey(account, index)] = copied
	return nil
}

// Book returns the latest option book for an (account, index) pair.
func (s *MemoryStore) Book(_ context.Context, account, index string) ([]models.BookEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, ok := s.books[bookKey(account, index)]
	if !ok {
		return nil, false, nil
	}
	copied := make([]models.BookEntry, len(entries))
	copy(copied, entries)
	return copied, true, nil
}

// PutPositions replaces the open positions for an account.
func (s *MemoryStore) PutPositions(_ context.Context, account string, positions []models.Position) error {
	copied := make([]models.Position, len(positions))
	copy(copied, positions)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[account] = copied
	return nil
}

// Positions returns the latest open positions for an account.
func (s *MemoryStore) Positions(_ context.Context, account string) ([]models.Position, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	positions, ok := s.positions[account]
	if !ok {
		return nil, false, nil
	}
	copied := make([]models.Position, len(positions))
	copy(copied, positions)
	return copied, true, nil
}

// PutOrders replaces the order book snapshot for an account.
func (s *MemoryStore) PutOrders(_ context.Context, account string, orders []models.OrderRecord) error {
	copied := make([]models.OrderRecord, len(orders))
	copy(copied, orders)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[account] = copied
	return nil
}

// Orders returns the latest order book snapshot for an account.
func (s *MemoryStore) Orders(_ context.Context, account string) ([]models.OrderRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orders, ok := s.orders[account]
	if !ok {
		return nil, false, nil
	}
	copied := make([]models.OrderRecord, len(orders))
	copy(copied, orders)
	return copied, true, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
