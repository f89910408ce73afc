// Package broker provides broker integration interfaces and implementations.
package broker

import (
	"context"

	"paisa-trader/internal/models"
)

// Broker defines the brokerage operations the trading core depends on.
// One Broker instance corresponds to one authenticated account session.
type Broker interface {
	// Authentication
	Login(ctx context.Context) error
	IsAuthenticated() bool
	AccountKey() string

	// Market data
	GetIndexQuote(ctx context.Context, index models.IndexConfig) (float64, error)
	FetchMarketFeed(ctx context.Context, queries []models.ContractQuery) ([]models.MarketQuote, error)

	// Account state
	GetMargin(ctx context.Context) (float64, error)
	GetPositions(ctx context.Context) ([]models.Position, error)
	GetOrderBook(ctx context.Context) ([]models.OrderRecord, error)

	// Orders
	PlaceOrder(ctx context.Context, leg models.OrderLeg) (*models.OrderAck, error)
	PlaceOrderBulk(ctx context.Context, legs []models.OrderLeg) ([]models.OrderAck, error)
	CancelOrderBulk(ctx context.Context, exchOrderIDs []string) ([]models.CancelAck, error)
}
