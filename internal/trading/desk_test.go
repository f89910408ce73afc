package trading

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paisa-trader/internal/broker"
	"paisa-trader/internal/config"
	apperrors "paisa-trader/internal/errors"
	"paisa-trader/internal/instruments"
	"paisa-trader/internal/models"
	"paisa-trader/internal/store"
)

func testDeskConfig() *config.Config {
	return &config.Config{
		Trading: config.TradingConfig{Mode: "paper", ChainDepth: 2, Intraday: true},
		Feeds: config.FeedConfig{
			QuoteInterval:    10 * time.Millisecond,
			MarginInterval:   10 * time.Millisecond,
			PositionInterval: 10 * time.Millisecond,
			BookInterval:     10 * time.Millisecond,
		},
		Margin: config.MarginConfig{
			Buffer:           5000,
			Placeholder:      10000,
			MaintenanceStart: "11:55",
			MaintenanceEnd:   "15:45",
		},
		Indices: map[string]config.IndexSpec{
			"NIFTY": {
				Symbol: "NIFTY", WeeklyExpiry: "Thursday", MonthlyExpiry: "Thursday",
				LotSize: 25, MaxLotSize: 720, MaxMultiplier: 5, StepSize: 50,
				Exchange: "N", ExchangeIdentifier: "Nifty 50",
			},
		},
		Accounts: map[string]config.AccountConfig{
			"acc1": {ClientCode: "C1"},
			"acc2": {ClientCode: "C2"},
		},
	}
}

func newTestDesk(t *testing.T) (*Desk, map[string]*broker.PaperBroker, store.SnapshotStore) {
	t.Helper()
	master, err := instruments.Parse(strings.NewReader(testMasterCSV))
	require.NoError(t, err)

	brokers := make(map[string]*broker.PaperBroker)
	factory := func(account string) (broker.Broker, error) {
		paper := broker.NewPaperBroker(account)
		paper.SetQuote("NIFTY", 22070)
		paper.SetMargin(42000)
		brokers[account] = paper
		return paper, nil
	}

	snapStore := store.NewMemoryStore()
	desk, err := NewDesk(testDeskConfig(), snapStore, master, factory, zerolog.Nop())
	require.NoError(t, err)
	return desk, brokers, snapStore
}

func TestDesk_LoginAuthenticatesAllAccounts(t *testing.T) {
	desk, _, _ := newTestDesk(t)

	require.NoError(t, desk.Login(context.Background()))
	for account, ok := range desk.Authenticated() {
		assert.True(t, ok, "account %s not authenticated", account)
	}
	assert.ElementsMatch(t, []string{"acc1", "acc2"}, desk.Accounts())
}

func TestDesk_FeedsPublishSnapshots(t *testing.T) {
	desk, _, snapStore := newTestDesk(t)
	require.NoError(t, desk.Login(context.Background()))
	require.NoError(t, desk.Start(context.Background()))
	defer desk.Stop()

	require.Eventually(t, func() bool {
		quote, ok, err := snapStore.Quote(context.Background(), "NIFTY")
		return err == nil && ok && quote.LTP == 22070
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		margin, ok, err := snapStore.Margin(context.Background(), "acc1")
		return err == nil && ok && margin.Available == 37000
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		margin, ok, err := snapStore.Margin(context.Background(), "acc2")
		return err == nil && ok && margin.Available == 37000
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDesk_StopTerminatesFeeds(t *testing.T) {
	desk, _, _ := newTestDesk(t)
	require.NoError(t, desk.Login(context.Background()))
	require.NoError(t, desk.Start(context.Background()))

	done := make(chan struct{})
	go func() {
		desk.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("desk did not stop")
	}

	// A second Stop is a no-op.
	desk.Stop()
}

func TestDesk_UnknownAccount(t *testing.T) {
	desk, _, _ := newTestDesk(t)

	_, err := desk.SubmitSellAll(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrAccountNotFound))
}

func TestDesk_AccountIsolationOnSellAll(t *testing.T) {
	desk, brokers, _ := newTestDesk(t)
	require.NoError(t, desk.Login(context.Background()))

	brokers["acc1"].SetPositions([]models.Position{{
		Exchange:     models.NSE,
		ExchangeType: models.SegmentDerivative,
		ScripName:    "NIFTY 25 Jan 2024 CE 22000.00",
		ScripCode:    51003,
		NetQty:       75,
		BuyQty:       75,
	}})

	// Flattening acc2 never touches acc1's broker.
	report, err := desk.SubmitSellAll(context.Background(), "acc2")
	require.NoError(t, err)
	assert.Empty(t, report.Intents)
	assert.Equal(t, 0, brokers["acc1"].PlaceCalls())
}
