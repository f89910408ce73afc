package trading

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paisa-trader/internal/broker"
	"paisa-trader/internal/config"
	"paisa-trader/internal/models"
	"paisa-trader/internal/store"
	"paisa-trader/pkg/utils"
)

func testMarginPolicy() config.MarginConfig {
	return config.MarginConfig{
		Buffer:           5000,
		Placeholder:      10000,
		MaintenanceStart: "11:55",
		MaintenanceEnd:   "15:45",
	}
}

func TestMarginFeed_SubtractsBuffer(t *testing.T) {
	paper := broker.NewPaperBroker("acc1")
	paper.SetMargin(42000)
	feed := NewMarginFeed(paper, store.NewMemoryStore(), testMarginPolicy(), time.Second, zerolog.Nop())
	feed.now = func() time.Time {
		return time.Date(2024, 1, 22, 10, 0, 0, 0, utils.IST)
	}

	snap, err := feed.snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 37000.0, snap.Available)
	assert.False(t, snap.Placeholder)
}

func TestMarginFeed_ClampsNegativeMargin(t *testing.T) {
	paper := broker.NewPaperBroker("acc1")
	paper.SetMargin(3000)
	feed := NewMarginFeed(paper, store.NewMemoryStore(), testMarginPolicy(), time.Second, zerolog.Nop())
	feed.now = func() time.Time {
		return time.Date(2024, 1, 22, 10, 0, 0, 0, utils.IST)
	}

	snap, err := feed.snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0, snap.Available)
}

func TestMarginFeed_PlaceholderDuringMaintenance(t *testing.T) {
	paper := broker.NewPaperBroker("acc1")
	paper.SetMargin(42000)
	feed := NewMarginFeed(paper, store.NewMemoryStore(), testMarginPolicy(), time.Second, zerolog.Nop())
	feed.now = func() time.Time {
		return time.Date(2024, 1, 22, 12, 30, 0, 0, utils.IST)
	}

	snap, err := feed.snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10000.0, snap.Available)
	assert.True(t, snap.Placeholder)
}

func TestPositionFeed_PublishesPositionsAndOrders(t *testing.T) {
	paper := broker.NewPaperBroker("acc1")
	paper.SetPositions([]models.Position{{ScripName: "NIFTY 25 Jan 2024 CE 22000.00", NetQty: 75}})
	paper.SetOrders([]models.OrderRecord{{ExchOrderID: "1001", OrderStatus: models.OrderStatusPending}})
	snapStore := store.NewMemoryStore()
	feed := NewPositionFeed(paper, snapStore, time.Second, zerolog.Nop())

	require.NoError(t, feed.poll(context.Background()))

	positions, ok, err := snapStore.Positions(context.Background(), "acc1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 75, positions[0].NetQty)

	orders, ok, err := snapStore.Orders(context.Background(), "acc1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1001", orders[0].ExchOrderID)
}

func TestQuoteFeed_PublishesQuoteWithExpiry(t *testing.T) {
	paper := broker.NewPaperBroker("acc1")
	paper.SetQuote("NIFTY", 22070)
	snapStore := store.NewMemoryStore()
	feed := NewQuoteFeed(paper, snapStore, niftyConfig(), NewHolidaySet(nil), time.Second, zerolog.Nop())

	require.NoError(t, feed.poll(context.Background()))

	quote, ok, err := snapStore.Quote(context.Background(), "NIFTY")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 22070.0, quote.LTP)
	assert.NotEqual(t, time.Saturday, quote.Expiry.Weekday())
	assert.NotEqual(t, time.Sunday, quote.Expiry.Weekday())
	assert.False(t, quote.Timestamp.IsZero())
}

func TestRunLoop_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		runLoop(ctx, 10*time.Millisecond, zerolog.Nop(), func(context.Context) error {
			return nil
		})
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run loop did not stop on context cancel")
	}
}
