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
	apperrors "paisa-trader/internal/errors"
	"paisa-trader/internal/instruments"
	"paisa-trader/internal/models"
)

func TestContractSymbol_Format(t *testing.T) {
	expiry := time.Date(2024, 8, 29, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "NIFTY 29 Aug 2024 CE 22050.00",
		ContractSymbol("NIFTY", expiry, models.OptionCall, 22050))
	assert.Equal(t, "BANKNIFTY 29 Aug 2024 PE 48000.00",
		ContractSymbol("BANKNIFTY", expiry, models.OptionPut, 48000))

	// Single-digit days are zero padded to match the scrip master.
	expiry = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "NIFTY 01 Feb 2024 CE 22050.00",
		ContractSymbol("NIFTY", expiry, models.OptionCall, 22050))
}

func TestPriceChain_SkipsUnresolvedStrikes(t *testing.T) {
	// The master only knows the 22000 strike; 21950 resolves to
	// nothing and is skipped without failing the chain.
	csv := `Exch,ExchType,ScripCode,Name,Expiry,LotSize
N,D,51003,NIFTY 25 Jan 2024 CE 22000.00,2024-01-25,25
N,D,51004,NIFTY 25 Jan 2024 PE 22000.00,2024-01-25,25
`
	master, err := instruments.Parse(strings.NewReader(csv))
	require.NoError(t, err)

	paper := broker.NewPaperBroker("acc1")
	paper.SetFeedQuote(models.MarketQuote{Symbol: "NIFTY 25 Jan 2024 CE 22000.00", LastRate: 120})
	paper.SetFeedQuote(models.MarketQuote{Symbol: "NIFTY 25 Jan 2024 PE 22000.00", LastRate: 95})

	pricer := NewContractPricer(paper, master, zerolog.Nop())
	expiry := time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC)

	contracts, err := pricer.PriceChain(context.Background(), niftyConfig(), expiry, []int{21950, 22000})
	require.NoError(t, err)
	require.Len(t, contracts, 2)
	assert.Equal(t, 22000, contracts[0].Strike)
	assert.Equal(t, 120.0, contracts[0].LastRate)
	assert.Equal(t, 95.0, contracts[1].LastRate)
}

func TestPriceChain_AllUnresolved(t *testing.T) {
	master, err := instruments.Parse(strings.NewReader("Exch,ExchType,ScripCode,Name,Expiry,LotSize\n"))
	require.NoError(t, err)

	pricer := NewContractPricer(broker.NewPaperBroker("acc1"), master, zerolog.Nop())
	expiry := time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC)

	_, err = pricer.PriceChain(context.Background(), niftyConfig(), expiry, []int{22000})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnresolvedContract))
}

func TestPriceChain_EmptyFeed(t *testing.T) {
	csv := `Exch,ExchType,ScripCode,Name,Expiry,LotSize
N,D,51003,NIFTY 25 Jan 2024 CE 22000.00,2024-01-25,25
`
	master, err := instruments.Parse(strings.NewReader(csv))
	require.NoError(t, err)

	pricer := NewContractPricer(broker.NewPaperBroker("acc1"), master, zerolog.Nop())
	expiry := time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC)

	_, err = pricer.PriceChain(context.Background(), niftyConfig(), expiry, []int{22000})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrMarketDataUnavailable))
}
