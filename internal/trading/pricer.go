package trading

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"paisa-trader/internal/broker"
	apperrors "paisa-trader/internal/errors"
	"paisa-trader/internal/instruments"
	"paisa-trader/internal/models"
)

// ContractSymbol formats the scrip master name of an option contract,
// e.g. "NIFTY 29 Aug 2024 CE 22050.00".
func ContractSymbol(index string, expiry time.Time, optType models.OptionType, strike int) string {
	return fmt.Sprintf("%s %s %s %d.00", index, expiry.Format("02 Jan 2006"), optType, strike)
}

// ContractPricer resolves and prices an option chain in one market
// feed round trip per cycle.
type ContractPricer struct {
	broker broker.Broker
	master *instruments.Master
	log    zerolog.Logger
}

// NewContractPricer creates a contract pricer backed by the given
// broker session and scrip master.
func NewContractPricer(b broker.Broker, master *instruments.Master, log zerolog.Logger) *ContractPricer {
	return &ContractPricer{broker: b, master: master, log: log}
}

// PriceChain builds the CE and PE contracts for every strike on the
// ladder and fills in live prices with a single market feed call.
// Strikes the scrip master cannot resolve are skipped; a failed feed
// call fails the whole chain.
func (p *ContractPricer) PriceChain(ctx context.Context, cfg models.IndexConfig, expiry time.Time, strikes []int) ([]models.OptionContract, error) {
	var contracts []models.OptionContract
	var queries []models.ContractQuery

	for _, strike := range strikes {
		for _, optType := range []models.OptionType{models.OptionCall, models.OptionPut} {
			symbol := ContractSymbol(cfg.Symbol, expiry, optType, strike)
			scripCode, err := p.master.Resolve(symbol)
			if err != nil {
				p.log.Warn().Str("symbol", symbol).Err(err).Msg("contract not in scrip master, skipping")
				continue
			}
			contracts = append(contracts, models.OptionContract{
				Index:     cfg.Symbol,
				Symbol:    symbol,
				Expiry:    expiry,
				Strike:    strike,
				Type:      optType,
				Exchange:  cfg.Exchange,
				ScripCode: scripCode,
			})
			queries = append(queries, models.ContractQuery{
				Exchange:     cfg.Exchange,
				ExchangeType: models.SegmentDerivative,
				Symbol:       strings.ToUpper(symbol),
				Expiry:       expiry.Format("20060102"),
				StrikePrice:  fmt.Sprintf("%d", strike),
				OptionType:   optType,
			})
		}
	}
	if len(contracts) == 0 {
		return nil, apperrors.Wrapf(apperrors.ErrUnresolvedContract,
			"no %s contracts for expiry %s", cfg.Symbol, expiry.Format("2006-01-02"))
	}

	quotes, err := p.broker.FetchMarketFeed(ctx, queries)
	if err != nil {
		return nil, err
	}

	bySymbol := make(map[string]models.MarketQuote, len(quotes))
	for _, q := range quotes {
		bySymbol[strings.ToUpper(q.Symbol)] = q
	}

	priced := contracts[:0]
	for _, c := range contracts {
		q, ok := bySymbol[strings.ToUpper(c.Symbol)]
		if !ok {
			p.log.Warn().Str("symbol", c.Symbol).Msg("no feed row for contract, skipping")
			continue
		}
		c.LastRate = q.LastRate
		c.High = q.High
		c.Low = q.Low
		priced = append(priced, c)
	}
	if len(priced) == 0 {
		return nil, apperrors.Wrapf(apperrors.ErrMarketDataUnavailable,
			"feed returned no rows for %s chain", cfg.Symbol)
	}
	return priced, nil
}
