package broker

import (
	"context"
	"fmt"
	"strings"
	"sync"

	apperrors "paisa-trader/internal/errors"
	"paisa-trader/internal/models"
)

// PaperBroker is an in-memory Broker used for dry runs and tests.
// Quotes, margin and positions are set by the caller; placed orders
// are recorded instead of being sent anywhere.
type PaperBroker struct {
	mu sync.Mutex

	account   string
	loggedIn  bool
	quotes    map[string]float64 // index symbol -> LTP
	feed      map[string]models.MarketQuote
	margin    float64
	positions []models.Position
	orders    []models.OrderRecord

	placedLegs   []models.OrderLeg
	cancelledIDs []string
	placeCalls   int
	cancelCalls  int

	failPlace  error
	failScrip  map[int]error
	failCancel error
	nextID     int
}

// NewPaperBroker creates a paper broker for the given account key.
func NewPaperBroker(account string) *PaperBroker {
	return &PaperBroker{
		account: account,
		quotes:  make(map[string]float64),
		feed:    make(map[string]models.MarketQuote),
	}
}

func (p *PaperBroker) AccountKey() string { return p.account }

func (p *PaperBroker) Login(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loggedIn = true
	return nil
}

func (p *PaperBroker) IsAuthenticated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loggedIn
}

// SetQuote sets the index LTP returned by GetIndexQuote.
func (p *PaperBroker) SetQuote(symbol string, ltp float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quotes[symbol] = ltp
}

// SetFeedQuote registers a market feed row keyed by contract symbol.
func (p *PaperBroker) SetFeedQuote(q models.MarketQuote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.feed[strings.ToUpper(q.Symbol)] = q
}

// SetMargin sets the value returned by GetMargin.
func (p *PaperBroker) SetMargin(margin float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.margin = margin
}

// SetPositions sets the positions returned by GetPositions.
func (p *PaperBroker) SetPositions(positions []models.Position) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.positions = positions
}

// SetOrders sets the order book returned by GetOrderBook.
func (p *PaperBroker) SetOrders(orders []models.OrderRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders = orders
}

// FailPlacements makes subsequent order placements return err.
func (p *PaperBroker) FailPlacements(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failPlace = err
}

// FailPlacementsForScrip makes placements touching the given scrip
// return err while every other scrip keeps placing normally.
func (p *PaperBroker) FailPlacementsForScrip(scripCode int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failScrip == nil {
		p.failScrip = make(map[int]error)
	}
	p.failScrip[scripCode] = err
}

// FailCancels makes subsequent cancel calls return err.
func (p *PaperBroker) FailCancels(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failCancel = err
}

// PlacedLegs returns a copy of every leg placed so far.
func (p *PaperBroker) PlacedLegs() []models.OrderLeg {
	p.mu.Lock()
	defer p.mu.Unlock()
	legs := make([]models.OrderLeg, len(p.placedLegs))
	copy(legs, p.placedLegs)
	return legs
}

// CancelledIDs returns a copy of every order ID cancelled so far.
func (p *PaperBroker) CancelledIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, len(p.cancelledIDs))
	copy(ids, p.cancelledIDs)
	return ids
}

// PlaceCalls returns the number of place calls made.
func (p *PaperBroker) PlaceCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.placeCalls
}

// CancelCalls returns the number of cancel calls made.
func (p *PaperBroker) CancelCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelCalls
}

func (p *PaperBroker) GetIndexQuote(ctx context.Context, index models.IndexConfig) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ltp, ok := p.quotes[index.Symbol]
	if !ok {
		return 0, apperrors.Wrapf(apperrors.ErrMarketDataUnavailable, "no quote for %s", index.Symbol)
	}
	return ltp, nil
}

func (p *PaperBroker) FetchMarketFeed(ctx context.Context, queries []models.ContractQuery) ([]models.MarketQuote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	quotes := make([]models.MarketQuote, 0, len(queries))
	for _, q := range queries {
		if row, ok := p.feed[strings.ToUpper(q.Symbol)]; ok {
			quotes = append(quotes, row)
		}
	}
	return quotes, nil
}

func (p *PaperBroker) GetMargin(ctx context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.margin, nil
}

func (p *PaperBroker) GetPositions(ctx context.Context) ([]models.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	positions := make([]models.Position, len(p.positions))
	copy(positions, p.positions)
	return positions, nil
}

func (p *PaperBroker) GetOrderBook(ctx context.Context) ([]models.OrderRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	orders := make([]models.OrderRecord, len(p.orders))
	copy(orders, p.orders)
	return orders, nil
}

func (p *PaperBroker) PlaceOrder(ctx context.Context, leg models.OrderLeg) (*models.OrderAck, error) {
	acks, err := p.PlaceOrderBulk(ctx, []models.OrderLeg{leg})
	if err != nil {
		return nil, err
	}
	return &acks[0], nil
}

func (p *PaperBroker) PlaceOrderBulk(ctx context.Context, legs []models.OrderLeg) ([]models.OrderAck, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.placeCalls++
	if p.failPlace != nil {
		return nil, p.failPlace
	}
	for _, leg := range legs {
		if err, ok := p.failScrip[leg.ScripCode]; ok {
			return nil, err
		}
	}
	acks := make([]models.OrderAck, 0, len(legs))
	for _, leg := range legs {
		p.nextID++
		p.placedLegs = append(p.placedLegs, leg)
		acks = append(acks, models.OrderAck{
			BrokerOrderID: fmt.Sprintf("paper-%d", p.nextID),
			Status:        "Placed",
		})
	}
	return acks, nil
}

func (p *PaperBroker) CancelOrderBulk(ctx context.Context, exchOrderIDs []string) ([]models.CancelAck, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelCalls++
	if p.failCancel != nil {
		return nil, p.failCancel
	}
	acks := make([]models.CancelAck, 0, len(exchOrderIDs))
	for _, id := range exchOrderIDs {
		p.cancelledIDs = append(p.cancelledIDs, id)
		acks = append(acks, models.CancelAck{ExchOrderID: id, Status: "Cancelled"})
	}
	return acks, nil
}
