package trading

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"paisa-trader/internal/broker"
	apperrors "paisa-trader/internal/errors"
	"paisa-trader/internal/logging"
	"paisa-trader/internal/models"
	"paisa-trader/internal/store"
)

// IntentState tracks one order intent through its lifecycle.
type IntentState string

const (
	IntentPending      IntentState = "pending"
	IntentDispatched   IntentState = "dispatched"
	IntentAcknowledged IntentState = "acknowledged"
	IntentRejected     IntentState = "rejected"
)

// OrderIntent is one dispatched unit of work and its outcome.
type OrderIntent struct {
	ID      string             `json:"id"`
	Account string             `json:"account"`
	Action  string             `json:"action"`
	Legs    []models.OrderLeg  `json:"legs"`
	State   IntentState        `json:"state"`
	Acks    []models.OrderAck  `json:"acks,omitempty"`
	Cancels []models.CancelAck `json:"cancels,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// ExecutionReport collects the intents of one submit call.
type ExecutionReport struct {
	Intents []OrderIntent `json:"intents"`
}

// Rejected returns the intents that failed.
func (r ExecutionReport) Rejected() []OrderIntent {
	var out []OrderIntent
	for _, it := range r.Intents {
		if it.State == IntentRejected {
			out = append(out, it)
		}
	}
	return out
}

// Executor turns book entries and positions into broker orders.
// Legs dispatch concurrently; one rejected leg never blocks or
// cancels its siblings.
type Executor struct {
	broker  broker.Broker
	store   store.SnapshotStore
	indices map[string]models.IndexConfig
	log     zerolog.Logger
}

// NewExecutor creates an executor for one account session.
func NewExecutor(b broker.Broker, s store.SnapshotStore, indices map[string]models.IndexConfig, log zerolog.Logger) *Executor {
	return &Executor{
		broker:  b,
		store:   s,
		indices: indices,
		log:     log.With().Str("account", b.AccountKey()).Logger(),
	}
}

// SubmitBuy fires the pre-built order batches for one contract from
// the current option book. Each leg goes out as its own order call in
// its own goroutine.
func (e *Executor) SubmitBuy(ctx context.Context, index string, strike int, optType models.OptionType) (*ExecutionReport, error) {
	entries, ok, err := e.store.Book(ctx, e.broker.AccountKey(), index)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrInsufficientSnapshot,
			"no option book for %s/%s", e.broker.AccountKey(), index)
	}

	var entry *models.BookEntry
	for i := range entries {
		if entries[i].Contract.Strike == strike && entries[i].Contract.Type == optType {
			entry = &entries[i]
			break
		}
	}
	if entry == nil {
		return nil, apperrors.Wrapf(apperrors.ErrUnresolvedContract,
			"%s %d %s not in option book", index, strike, optType)
	}
	if entry.Quantity <= 0 || len(entry.Batches) == 0 {
		return nil, apperrors.Wrapf(apperrors.ErrOrderRejected,
			"margin %.2f buys no full lot of %s at %.2f",
			entry.Margin, entry.Contract.Symbol, entry.Contract.LastRate)
	}

	return e.dispatchBatches(ctx, "buy", entry.Batches), nil
}

// SellAll flattens every open position. Long positions sell down in
// capped legs; oversold positions get compensating buys for the
// excess so the account ends the day flat.
func (e *Executor) SellAll(ctx context.Context, intraday bool) (*ExecutionReport, error) {
	positions, err := e.broker.GetPositions(ctx)
	if err != nil {
		return nil, err
	}

	var batches []models.OrderBatch
	for _, pos := range positions {
		if !pos.IsOpen() || pos.NetQty == 0 {
			continue
		}
		side := models.OrderSideSell
		qty := pos.NetQty
		if qty < 0 {
			side = models.OrderSideBuy
			qty = -qty
			e.log.Warn().Str("scrip", pos.ScripName).Int("net_qty", pos.NetQty).
				Msg("oversold position, buying back excess")
		}
		template := models.OrderLeg{
			Exchange:     pos.Exchange,
			ExchangeType: pos.ExchangeType,
			ScripCode:    pos.ScripCode,
			Side:         side,
			Intraday:     intraday,
		}
		batches = append(batches, e.positionBatches(pos, template, qty)...)
	}
	if len(batches) == 0 {
		return &ExecutionReport{}, nil
	}
	return e.dispatchBatches(ctx, "sell_all", batches), nil
}

// positionBatches splits a position's quantity using the leg caps of
// the index it belongs to. Positions on unknown scrips go out as one
// uncapped leg.
func (e *Executor) positionBatches(pos models.Position, template models.OrderLeg, qty int) []models.OrderBatch {
	for _, cfg := range e.indices {
		if strings.HasPrefix(strings.ToUpper(pos.ScripName), strings.ToUpper(cfg.Symbol)) {
			return SplitBatches(cfg, template, qty)
		}
	}
	leg := template
	leg.Quantity = qty
	return []models.OrderBatch{{Legs: []models.OrderLeg{leg}}}
}

// cancelAttempts bounds how many times CancelAll retries orders that
// stay pending after a cancel round.
const cancelAttempts = 2

// CancelAll cancels every cancellable order in the account's order
// book. With nothing pending it returns an empty report without
// touching the broker.
func (e *Executor) CancelAll(ctx context.Context) (*ExecutionReport, error) {
	report := &ExecutionReport{}

	for attempt := 1; attempt <= cancelAttempts; attempt++ {
		orders, err := e.broker.GetOrderBook(ctx)
		if err != nil {
			return nil, err
		}
		var ids []string
		for _, o := range orders {
			if o.Cancellable() {
				ids = append(ids, o.ExchOrderID)
			}
		}
		if len(ids) == 0 {
			return report, nil
		}

		intent := OrderIntent{
			ID:      uuid.NewString(),
			Account: e.broker.AccountKey(),
			Action:  "cancel_all",
			State:   IntentDispatched,
		}
		acks, err := e.broker.CancelOrderBulk(ctx, ids)
		if err != nil {
			intent.State = IntentRejected
			intent.Error = err.Error()
			report.Intents = append(report.Intents, intent)
			e.log.Error().Err(err).Int("attempt", attempt).Msg("bulk cancel failed")
			continue
		}
		intent.State = IntentAcknowledged
		intent.Cancels = acks
		report.Intents = append(report.Intents, intent)
		e.log.Info().Int("orders", len(ids)).Int("attempt", attempt).Msg("cancel round dispatched")
	}
	return report, nil
}

// dispatchBatches fans the batches out as one goroutine per leg, each
// placing its own single-leg order call. A rejected leg leaves every
// sibling leg untouched.
func (e *Executor) dispatchBatches(ctx context.Context, action string, batches []models.OrderBatch) *ExecutionReport {
	var legs []models.OrderLeg
	for _, batch := range batches {
		legs = append(legs, batch.Legs...)
	}

	intents := make([]OrderIntent, len(legs))
	var mu sync.Mutex
	var g errgroup.Group

	for i, leg := range legs {
		i, leg := i, leg
		intent := OrderIntent{
			ID:      uuid.NewString(),
			Account: e.broker.AccountKey(),
			Action:  action,
			Legs:    []models.OrderLeg{leg},
			State:   IntentPending,
		}
		g.Go(func() error {
			intent.State = IntentDispatched
			acks, err := e.broker.PlaceOrderBulk(ctx, []models.OrderLeg{leg})
			if err != nil {
				orderErr := apperrors.NewOrderError(intent.ID, intent.Account,
					leg.ScripCode, action, "order rejected", err)
				intent.State = IntentRejected
				intent.Error = orderErr.Error()
				olog := logging.WithOrderID(e.log, intent.ID)
				olog.Error().Err(orderErr).Msg("leg rejected")
			} else {
				intent.State = IntentAcknowledged
				intent.Acks = acks
				logging.LogOrder(e.log, intent.ID, leg.ScripCode,
					leg.Quantity, string(leg.Side), string(IntentAcknowledged))
			}
			mu.Lock()
			intents[i] = intent
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return &ExecutionReport{Intents: intents}
}
