package trading

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"paisa-trader/internal/broker"
	apperrors "paisa-trader/internal/errors"
	"paisa-trader/internal/instruments"
	"paisa-trader/internal/models"
	"paisa-trader/internal/store"
	"paisa-trader/pkg/utils"
)

// BookBuilder maintains the option book for one (account, index) pair:
// the priced chain with per-contract purchasable quantities and
// ready-to-fire order batches, rebuilt every cycle from the latest
// quote and margin snapshots.
type BookBuilder struct {
	pricer   *ContractPricer
	store    store.SnapshotStore
	account  string
	index    models.IndexConfig
	depth    int
	intraday bool
	interval time.Duration
	log      zerolog.Logger
}

// NewBookBuilder creates a book builder for one account and index.
func NewBookBuilder(b broker.Broker, s store.SnapshotStore, master *instruments.Master, index models.IndexConfig, depth int, intraday bool, interval time.Duration, log zerolog.Logger) *BookBuilder {
	log = log.With().Str("feed", "book").
		Str("account", b.AccountKey()).
		Str("index", index.Symbol).Logger()
	return &BookBuilder{
		pricer:   NewContractPricer(b, master, log),
		store:    s,
		account:  b.AccountKey(),
		index:    index,
		depth:    depth,
		intraday: intraday,
		interval: interval,
		log:      log,
	}
}

// Run rebuilds the book once per interval until ctx is cancelled.
func (b *BookBuilder) Run(ctx context.Context) {
	runLoop(ctx, b.interval, b.log, b.rebuild)
}

func (b *BookBuilder) rebuild(ctx context.Context) error {
	quote, ok, err := b.store.Quote(ctx, b.index.Symbol)
	if err != nil {
		return err
	}
	if !ok {
		b.log.Debug().Msg("no quote snapshot yet, skipping cycle")
		return nil
	}
	margin, ok, err := b.store.Margin(ctx, b.account)
	if err != nil {
		return err
	}
	if !ok {
		b.log.Debug().Msg("no margin snapshot yet, skipping cycle")
		return nil
	}
	b.warnIfStale(quote.Timestamp, margin.Timestamp)

	strikes := StrikeLadder(b.index.StepSize, b.depth, quote.LTP)
	contracts, err := b.pricer.PriceChain(ctx, b.index, quote.Expiry, strikes)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrUnresolvedContract) || apperrors.Is(err, apperrors.ErrMarketDataUnavailable) {
			b.log.Warn().Err(err).Msg("chain unavailable, keeping previous book")
			return nil
		}
		return err
	}

	entries := b.buildEntries(contracts, margin, quote)
	return b.store.PutBook(ctx, b.account, b.index.Symbol, entries)
}

// buildEntries sizes every contract against the margin snapshot. The
// entry timestamp is the later of the two input snapshots so identical
// inputs always produce an identical book.
func (b *BookBuilder) buildEntries(contracts []models.OptionContract, margin models.MarginSnapshot, quote models.QuoteSnapshot) []models.BookEntry {
	ts := quote.Timestamp
	if margin.Timestamp.After(ts) {
		ts = margin.Timestamp
	}

	entries := make([]models.BookEntry, 0, len(contracts))
	for _, c := range contracts {
		if c.LastRate <= 0 {
			b.log.Debug().Str("symbol", c.Symbol).Msg("no traded rate, contract skipped")
			continue
		}
		qty := PurchasableQuantity(margin.Available, c.LastRate, b.index.LotSize)
		template := models.OrderLeg{
			Exchange:     c.Exchange,
			ExchangeType: models.SegmentDerivative,
			ScripCode:    c.ScripCode,
			Side:         models.OrderSideBuy,
			Intraday:     b.intraday,
		}
		entries = append(entries, models.BookEntry{
			Contract:  c,
			Quantity:  qty,
			Batches:   SplitBatches(b.index, template, qty),
			Margin:    margin.Available,
			Timestamp: ts,
		})
	}
	return entries
}

// warnIfStale flags input snapshots older than three build intervals.
func (b *BookBuilder) warnIfStale(timestamps ...time.Time) {
	limit := 3 * b.interval
	now := utils.NowIST()
	for _, ts := range timestamps {
		if age := now.Sub(ts); age > limit {
			b.log.Warn().Dur("age", age).Msg("building book from stale snapshot")
			return
		}
	}
}
