// Package store provides the shared snapshot store between the
// background producers and their consumers.
package store

import (
	"context"

	"paisa-trader/internal/models"
)

// SnapshotStore is a keyed last-write-wins snapshot slot store.
//
// Each key is written by exactly one producer and read by any number
// of consumers. Every Put replaces the prior value wholesale, so a
// reader never observes a partially updated snapshot. There is no
// freshness enforcement: snapshots carry timestamps and callers decide
// what stale means.
type SnapshotStore interface {
	PutQuote(ctx context.Context, snap models.QuoteSnapshot) error
	Quote(ctx context.Context, index string) (models.QuoteSnapshot, bool, error)

	PutMargin(ctx context.Context, snap models.MarginSnapshot) error
	Margin(ctx context.Context, account string) (models.MarginSnapshot, bool, error)

	PutBook(ctx context.Context, account, index string, entries []models.BookEntry) error
	Book(ctx context.Context, account, index string) ([]models.BookEntry, bool, error)

	PutPositions(ctx context.Context, account string, positions []models.Position) error
	Positions(ctx context.Context, account string) ([]models.Position, bool, error)

	PutOrders(ctx context.Context, account string, orders []models.OrderRecord) error
	Orders(ctx context.Context, account string) ([]models.OrderRecord, bool, error)

	Close() error
}
