package trading

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"paisa-trader/internal/broker"
	"paisa-trader/internal/config"
	"paisa-trader/internal/logging"
	"paisa-trader/internal/models"
	"paisa-trader/internal/store"
	"paisa-trader/pkg/utils"
)

// QuoteFeed polls the index spot price and resolved expiry, publishing
// a fresh QuoteSnapshot every interval. One feed runs per index.
type QuoteFeed struct {
	broker   broker.Broker
	store    store.SnapshotStore
	index    models.IndexConfig
	holidays HolidaySet
	interval time.Duration
	log      zerolog.Logger
}

// NewQuoteFeed creates a quote feed for one index.
func NewQuoteFeed(b broker.Broker, s store.SnapshotStore, index models.IndexConfig, holidays HolidaySet, interval time.Duration, log zerolog.Logger) *QuoteFeed {
	return &QuoteFeed{
		broker:   b,
		store:    s,
		index:    index,
		holidays: holidays,
		interval: interval,
		log:      logging.WithIndex(log.With().Str("feed", "quote").Logger(), index.Symbol),
	}
}

// Run polls until the context is cancelled. Poll errors are logged and
// the previous snapshot stays in place until the next success.
func (f *QuoteFeed) Run(ctx context.Context) {
	runLoop(ctx, f.interval, f.log, f.poll)
}

func (f *QuoteFeed) poll(ctx context.Context) error {
	ltp, err := f.broker.GetIndexQuote(ctx, f.index)
	if err != nil {
		return err
	}
	expiry, err := ResolveExpiry(f.index, f.holidays, utils.NowIST())
	if err != nil {
		return err
	}
	snap := models.QuoteSnapshot{
		Index:     f.index.Symbol,
		LTP:       ltp,
		Expiry:    expiry,
		Timestamp: utils.NowIST(),
	}
	if err := f.store.PutQuote(ctx, snap); err != nil {
		return err
	}
	logging.LogSnapshot(f.log, "quote", snap.Index, snap.Timestamp)
	return nil
}

// MarginFeed polls the available margin for one account. During the
// broker's midday maintenance window the margin endpoint returns junk,
// so a configured placeholder value is published instead.
type MarginFeed struct {
	broker   broker.Broker
	store    store.SnapshotStore
	policy   config.MarginConfig
	interval time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// NewMarginFeed creates a margin feed for one account.
func NewMarginFeed(b broker.Broker, s store.SnapshotStore, policy config.MarginConfig, interval time.Duration, log zerolog.Logger) *MarginFeed {
	return &MarginFeed{
		broker:   b,
		store:    s,
		policy:   policy,
		interval: interval,
		log:      logging.WithAccount(log.With().Str("feed", "margin").Logger(), b.AccountKey()),
		now:      utils.NowIST,
	}
}

// Run polls until the context is cancelled.
func (f *MarginFeed) Run(ctx context.Context) {
	runLoop(ctx, f.interval, f.log, f.poll)
}

func (f *MarginFeed) poll(ctx context.Context) error {
	snap, err := f.snapshot(ctx)
	if err != nil {
		return err
	}
	if err := f.store.PutMargin(ctx, snap); err != nil {
		return err
	}
	logging.LogSnapshot(f.log, "margin", snap.Account, snap.Timestamp)
	return nil
}

func (f *MarginFeed) snapshot(ctx context.Context) (models.MarginSnapshot, error) {
	now := f.now()
	if f.inMaintenanceWindow(now) {
		return models.MarginSnapshot{
			Account:     f.broker.AccountKey(),
			Available:   f.policy.Placeholder,
			Placeholder: true,
			Timestamp:   now,
		}, nil
	}

	margin, err := f.broker.GetMargin(ctx)
	if err != nil {
		return models.MarginSnapshot{}, err
	}
	available := margin - f.policy.Buffer
	if available < 0 {
		available = 0
	}
	return models.MarginSnapshot{
		Account:   f.broker.AccountKey(),
		Available: available,
		Timestamp: now,
	}, nil
}

func (f *MarginFeed) inMaintenanceWindow(now time.Time) bool {
	return utils.InWindow(now, f.policy.MaintenanceStart, f.policy.MaintenanceEnd)
}

// PositionFeed polls net positions and the order book for one account.
type PositionFeed struct {
	broker   broker.Broker
	store    store.SnapshotStore
	interval time.Duration
	log      zerolog.Logger
}

// NewPositionFeed creates a position feed for one account.
func NewPositionFeed(b broker.Broker, s store.SnapshotStore, interval time.Duration, log zerolog.Logger) *PositionFeed {
	return &PositionFeed{
		broker:   b,
		store:    s,
		interval: interval,
		log:      logging.WithAccount(log.With().Str("feed", "position").Logger(), b.AccountKey()),
	}
}

// Run polls until the context is cancelled.
func (f *PositionFeed) Run(ctx context.Context) {
	runLoop(ctx, f.interval, f.log, f.poll)
}

func (f *PositionFeed) poll(ctx context.Context) error {
	positions, err := f.broker.GetPositions(ctx)
	if err != nil {
		return err
	}
	if err := f.store.PutPositions(ctx, f.broker.AccountKey(), positions); err != nil {
		return err
	}

	orders, err := f.broker.GetOrderBook(ctx)
	if err != nil {
		return err
	}
	return f.store.PutOrders(ctx, f.broker.AccountKey(), orders)
}

// runLoop runs poll once per interval until ctx is cancelled. One
// failed poll never stops the loop.
func runLoop(ctx context.Context, interval time.Duration, log zerolog.Logger, poll func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := poll(ctx); err != nil && ctx.Err() == nil {
		log.Warn().Err(err).Msg("poll failed")
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := poll(ctx); err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Msg("poll failed")
			}
		}
	}
}
