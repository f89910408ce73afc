package trading

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"paisa-trader/internal/broker"
	"paisa-trader/internal/config"
	apperrors "paisa-trader/internal/errors"
	"paisa-trader/internal/instruments"
	"paisa-trader/internal/models"
	"paisa-trader/internal/store"
)

// BrokerFactory creates a broker session for an account key.
type BrokerFactory func(account string) (broker.Broker, error)

// accountSession holds the running components of one account.
type accountSession struct {
	broker   broker.Broker
	executor *Executor
}

// Desk runs the whole trading loop: one quote feed per index, plus
// margin feed, position feed and book builders per account. Accounts
// are fully isolated; one account's broker failing never touches the
// others.
type Desk struct {
	cfg      *config.Config
	store    store.SnapshotStore
	master   *instruments.Master
	holidays HolidaySet
	log      zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*accountSession

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDesk creates a desk over logged-in broker sessions built by the
// factory, one per configured account.
func NewDesk(cfg *config.Config, s store.SnapshotStore, master *instruments.Master, factory BrokerFactory, log zerolog.Logger) (*Desk, error) {
	d := &Desk{
		cfg:      cfg,
		store:    s,
		master:   master,
		holidays: NewHolidaySet(cfg.Holidays),
		log:      log,
		sessions: make(map[string]*accountSession),
	}

	indices := cfg.IndexConfigs()
	for _, account := range cfg.AccountKeys() {
		b, err := factory(account)
		if err != nil {
			return nil, apperrors.Wrapf(err, "creating session for %s", account)
		}
		d.sessions[account] = &accountSession{
			broker:   b,
			executor: NewExecutor(b, s, indices, log),
		}
	}
	if len(d.sessions) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrAccountNotFound, "no accounts configured")
	}
	return d, nil
}

// Login authenticates every account session.
func (d *Desk) Login(ctx context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for account, sess := range d.sessions {
		if err := sess.broker.Login(ctx); err != nil {
			return apperrors.Wrapf(err, "logging in %s", account)
		}
		d.log.Info().Str("account", account).Msg("logged in")
	}
	return nil
}

// Start launches all feeds and book builders. They run until Stop.
func (d *Desk) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return nil
	}
	for account, sess := range d.sessions {
		if !sess.broker.IsAuthenticated() {
			return apperrors.Wrapf(apperrors.ErrNotAuthenticated, "account %q", account)
		}
	}
	ctx, d.cancel = context.WithCancel(ctx)

	// Quote feeds are per index, not per account; any authenticated
	// session can serve them.
	quoteSession := d.anySession()
	for _, index := range d.cfg.IndexConfigs() {
		feed := NewQuoteFeed(quoteSession.broker, d.store, index, d.holidays,
			d.cfg.Feeds.QuoteInterval, d.log)
		d.spawn(ctx, feed.Run)
	}

	for _, sess := range d.sessions {
		margin := NewMarginFeed(sess.broker, d.store, d.cfg.Margin,
			d.cfg.Feeds.MarginInterval, d.log)
		d.spawn(ctx, margin.Run)

		position := NewPositionFeed(sess.broker, d.store,
			d.cfg.Feeds.PositionInterval, d.log)
		d.spawn(ctx, position.Run)

		for _, index := range d.cfg.IndexConfigs() {
			builder := NewBookBuilder(sess.broker, d.store, d.master, index,
				d.cfg.Trading.ChainDepth, d.cfg.Trading.Intraday,
				d.cfg.Feeds.BookInterval, d.log)
			d.spawn(ctx, builder.Run)
		}
	}

	d.log.Info().Int("accounts", len(d.sessions)).Msg("desk started")
	return nil
}

// Stop cancels every feed and waits for them to exit.
func (d *Desk) Stop() {
	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	d.wg.Wait()
	d.log.Info().Msg("desk stopped")
}

// OptionBook returns the current book for one account and index.
func (d *Desk) OptionBook(ctx context.Context, account, index string) ([]models.BookEntry, error) {
	if _, err := d.session(account); err != nil {
		return nil, err
	}
	entries, ok, err := d.store.Book(ctx, account, index)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrInsufficientSnapshot,
			"no option book for %s/%s", account, index)
	}
	return entries, nil
}

// SubmitBuy fires the book batches for one contract on one account.
func (d *Desk) SubmitBuy(ctx context.Context, account, index string, strike int, optType models.OptionType) (*ExecutionReport, error) {
	sess, err := d.session(account)
	if err != nil {
		return nil, err
	}
	return sess.executor.SubmitBuy(ctx, index, strike, optType)
}

// SubmitSellAll flattens every open position on one account.
func (d *Desk) SubmitSellAll(ctx context.Context, account string) (*ExecutionReport, error) {
	sess, err := d.session(account)
	if err != nil {
		return nil, err
	}
	return sess.executor.SellAll(ctx, d.cfg.Trading.Intraday)
}

// SubmitCancelAll cancels every pending order on one account.
func (d *Desk) SubmitCancelAll(ctx context.Context, account string) (*ExecutionReport, error) {
	sess, err := d.session(account)
	if err != nil {
		return nil, err
	}
	return sess.executor.CancelAll(ctx)
}

// Positions fetches the live net positions for one account.
func (d *Desk) Positions(ctx context.Context, account string) ([]models.Position, error) {
	sess, err := d.session(account)
	if err != nil {
		return nil, err
	}
	return sess.broker.GetPositions(ctx)
}

// Orders fetches the live order book for one account.
func (d *Desk) Orders(ctx context.Context, account string) ([]models.OrderRecord, error) {
	sess, err := d.session(account)
	if err != nil {
		return nil, err
	}
	return sess.broker.GetOrderBook(ctx)
}

// AvailableMargin fetches the live margin for one account.
func (d *Desk) AvailableMargin(ctx context.Context, account string) (float64, error) {
	sess, err := d.session(account)
	if err != nil {
		return 0, err
	}
	return sess.broker.GetMargin(ctx)
}

// Authenticated reports which accounts hold a live session token.
func (d *Desk) Authenticated() map[string]bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]bool, len(d.sessions))
	for k, sess := range d.sessions {
		out[k] = sess.broker.IsAuthenticated()
	}
	return out
}

// Accounts returns the account keys managed by the desk.
func (d *Desk) Accounts() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	keys := make([]string, 0, len(d.sessions))
	for k := range d.sessions {
		keys = append(keys, k)
	}
	return keys
}

func (d *Desk) session(account string) (*accountSession, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	sess, ok := d.sessions[account]
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrAccountNotFound, "account %q", account)
	}
	return sess, nil
}

func (d *Desk) anySession() *accountSession {
	for _, sess := range d.sessions {
		return sess
	}
	return nil
}

func (d *Desk) spawn(ctx context.Context, run func(context.Context)) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		run(ctx)
	}()
}
