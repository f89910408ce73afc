// Package models defines the core data types for the trading application.
package models

import "time"

// Exchange represents an exchange code on the 5paisa wire format.
type Exchange string

const (
	NSE Exchange = "N"
	BSE Exchange = "B"
)

// ExchangeType represents an exchange segment.
type ExchangeType string

const (
	SegmentCash       ExchangeType = "C"
	SegmentDerivative ExchangeType = "D"
)

// OptionType represents the option contract type.
type OptionType string

const (
	OptionCall OptionType = "CE"
	OptionPut  OptionType = "PE"
)

// OrderSide represents the order direction.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "B"
	OrderSideSell OrderSide = "S"
)

// IndexConfig describes one tradable index and its F&O contract rules.
// Loaded at startup and treated as immutable.
type IndexConfig struct {
	Symbol             string
	WeeklyExpiry       time.Weekday
	MonthlyExpiry      time.Weekday
	LotSize            int
	MaxLotSize         int
	MaxMultiplier      int
	StepSize           int
	InstrumentToken    uint32
	Exchange           Exchange
	ExchangeIdentifier string // Broker-side display name, e.g. "Nifty 50"
}

// QuoteSnapshot is the latest observed index quote with its resolved expiry.
// Owned by the quote feed; fully replaced on every poll.
type QuoteSnapshot struct {
	Index     string    `json:"index"`
	LTP       float64   `json:"ltp"`
	Expiry    time.Time `json:"expiry"`
	Timestamp time.Time `json:"timestamp"`
}

// MarginSnapshot is the latest available margin for one account.
type MarginSnapshot struct {
	Account     string    `json:"account"`
	Available   float64   `json:"available"`
	Placeholder bool      `json:"placeholder"` // set during the maintenance window
	Timestamp   time.Time `json:"timestamp"`
}

// OptionContract is a fully resolved option contract with live prices.
// Derived fresh each pricing cycle; never persisted beyond the current book.
type OptionContract struct {
	Index     string     `json:"index"`
	Symbol    string     `json:"symbol"` // "NIFTY 29 Aug 2024 CE 22050.00"
	Expiry    time.Time  `json:"expiry"`
	Strike    int        `json:"strike"`
	Type      OptionType `json:"type"`
	Exchange  Exchange   `json:"exchange"`
	ScripCode int        `json:"scrip_code"`
	LastRate  float64    `json:"last_rate"`
	High      float64    `json:"high"`
	Low       float64    `json:"low"`
}

// OrderLeg is one atomic order request.
type OrderLeg struct {
	Exchange     Exchange     `json:"exchange"`
	ExchangeType ExchangeType `json:"exchange_type"`
	ScripCode    int          `json:"scrip_code"`
	Quantity     int          `json:"quantity"`
	Side         OrderSide    `json:"side"`
	Price        float64      `json:"price"` // 0 = market order
	Intraday     bool         `json:"intraday"`
}

// OrderBatch is a bounded group of legs submitted in one broker call.
// Immutable once built; consumed at most once.
type OrderBatch struct {
	Legs []OrderLeg `json:"legs"`
}

// Quantity returns the total quantity across all legs in the batch.
func (b OrderBatch) Quantity() int {
	var total int
	for _, leg := range b.Legs {
		total += leg.Quantity
	}
	return total
}

// BookEntry is one purchasable contract in the option book, sized
// against the margin snapshot it was built from.
type BookEntry struct {
	Contract  OptionContract `json:"contract"`
	Quantity  int            `json:"quantity"`
	Batches   []OrderBatch   `json:"batches"`
	Margin    float64        `json:"margin"`
	Timestamp time.Time      `json:"timestamp"`
}

// Position is an open position as reported by the brokerage.
// Read-only to this system.
type Position struct {
	Exchange     Exchange     `json:"exchange"`
	ExchangeType ExchangeType `json:"exchange_type"`
	ScripName    string       `json:"scrip_name"`
	ScripCode    int          `json:"scrip_code"`
	NetQty       int          `json:"net_qty"`
	BuyQty       int          `json:"buy_qty"`
	SellQty      int          `json:"sell_qty"`
}

// IsOpen reports whether the position still has outstanding quantity.
func (p Position) IsOpen() bool {
	return p.NetQty != 0 || p.BuyQty != p.SellQty
}

// OrderRecord is one row of the brokerage order book.
type OrderRecord struct {
	ExchOrderID string    `json:"exch_order_id"`
	ScripCode   int       `json:"scrip_code"`
	ScripName   string    `json:"scrip_name"`
	Quantity    int       `json:"quantity"`
	TradedQty   int       `json:"traded_qty"`
	OrderStatus string    `json:"order_status"`
	Side        OrderSide `json:"side"`
}

// OrderStatusPending is the broker status of a cancellable order.
const OrderStatusPending = "Pending"

// Cancellable reports whether the order can still be cancelled.
func (r OrderRecord) Cancellable() bool {
	return r.OrderStatus == OrderStatusPending && r.ExchOrderID != ""
}

// OrderAck is the brokerage acknowledgement for a placed order.
type OrderAck struct {
	BrokerOrderID string `json:"broker_order_id"`
	Status        string `json:"status"`
	Message       string `json:"message"`
}

// CancelAck is the brokerage acknowledgement for a cancel request.
type CancelAck struct {
	ExchOrderID string `json:"exch_order_id"`
	Status      string `json:"status"`
}

// ContractQuery identifies one contract in a market feed request.
type ContractQuery struct {
	Exchange     Exchange     `json:"Exch"`
	ExchangeType ExchangeType `json:"ExchType"`
	Symbol       string       `json:"Symbol"`
	Expiry       string       `json:"Expiry"` // YYYYMMDD
	StrikePrice  string       `json:"StrikePrice"`
	OptionType   OptionType   `json:"OptionType"`
}

// MarketQuote is one market feed result row.
type MarketQuote struct {
	Symbol   string  `json:"Symbol"`
	LastRate float64 `json:"LastRate"`
	High     float64 `json:"High"`
	Low      float64 `json:"Low"`
}
