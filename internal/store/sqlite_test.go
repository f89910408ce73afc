package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paisa-trader/internal/models"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_QuoteRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	snap := models.QuoteSnapshot{
		Index:     "NIFTY",
		LTP:       22070.55,
		Expiry:    time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC),
		Timestamp: time.Date(2024, 1, 22, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.PutQuote(ctx, snap))

	got, ok, err := s.Quote(ctx, "NIFTY")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snap.LTP, got.LTP)
	assert.True(t, snap.Expiry.Equal(got.Expiry))
}

func TestSQLiteStore_UpsertOverwrites(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutMargin(ctx, models.MarginSnapshot{Account: "acc1", Available: 10000}))
	require.NoError(t, s.PutMargin(ctx, models.MarginSnapshot{Account: "acc1", Available: 37000}))

	got, ok, err := s.Margin(ctx, "acc1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 37000.0, got.Available)
}

func TestSQLiteStore_BookSurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	entry := models.BookEntry{
		Contract: models.OptionContract{Symbol: "NIFTY 25 Jan 2024 CE 22000.00", Strike: 22000},
		Quantity: 75,
	}
	require.NoError(t, s.PutBook(ctx, "acc1", "NIFTY", []models.BookEntry{entry}))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	entries, ok, err := reopened.Book(ctx, "acc1", "NIFTY")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, entries, 1)
	assert.Equal(t, 75, entries[0].Quantity)
	assert.Equal(t, 22000, entries[0].Contract.Strike)
}

func TestSQLiteStore_MissingKey(t *testing.T) {
	s := newTestSQLiteStore(t)

	_, ok, err := s.Orders(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}
