package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "paisa-trader/internal/errors"
	"paisa-trader/internal/models"
)

const testTOTPSecret = "JBSWY3DPEHPK3PXP"

func newTestBroker(t *testing.T, handler http.HandlerFunc) *FivePaisaBroker {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewFivePaisaBroker(FivePaisaConfig{
		AccountKey: "acc1",
		AppName:    "testapp",
		UserID:     "user",
		Password:   "pass",
		UserKey:    "key",
		ClientCode: "C123",
		TOTPSecret: testTOTPSecret,
		PIN:        "1234",
		BaseURL:    srv.URL,
		TokenPath:  filepath.Join(t.TempDir(), "session.json"),
	})
}

func respond(w http.ResponseWriter, body interface{}) {
	json.NewEncoder(w).Encode(map[string]interface{}{"body": body})
}

func TestLogin_CachesSession(t *testing.T) {
	var logins int
	b := newTestBroker(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/TOTPLogin", r.URL.Path)
		logins++
		respond(w, map[string]interface{}{
			"AccessToken": "token-1",
			"ClientCode":  "C123",
			"Status":      0,
		})
	})

	require.NoError(t, b.Login(context.Background()))
	assert.True(t, b.IsAuthenticated())

	// A held token short-circuits the second login.
	require.NoError(t, b.Login(context.Background()))
	assert.Equal(t, 1, logins)
}

func TestLogin_RejectedCredentials(t *testing.T) {
	b := newTestBroker(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, map[string]interface{}{
			"Status":  1,
			"Message": "Invalid TOTP",
		})
	})

	err := b.Login(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidCredentials))
	assert.False(t, b.IsAuthenticated())
}

func TestSession_ReloadedFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	first := NewFivePaisaBroker(FivePaisaConfig{AccountKey: "acc1", TokenPath: path})
	first.mu.Lock()
	first.accessToken = "token-1"
	first.tokenExpiry = time.Now().Add(time.Hour)
	first.mu.Unlock()
	require.NoError(t, first.saveSession())

	second := NewFivePaisaBroker(FivePaisaConfig{AccountKey: "acc1", TokenPath: path})
	assert.True(t, second.IsAuthenticated())

	require.NoError(t, second.DeleteSession())
	third := NewFivePaisaBroker(FivePaisaConfig{AccountKey: "acc1", TokenPath: path})
	assert.False(t, third.IsAuthenticated())
}

func TestFetchMarketFeed_ReturnsQuotes(t *testing.T) {
	b := newTestBroker(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/MarketFeed", r.URL.Path)

		var req struct {
			Body struct {
				MarketFeedData []models.ContractQuery `json:"MarketFeedData"`
			} `json:"body"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Body.MarketFeedData, 1)

		respond(w, map[string]interface{}{
			"Status": 0,
			"Data": []models.MarketQuote{
				{Symbol: "NIFTY 25 JAN 2024 CE 22000.00", LastRate: 120.5, High: 150, Low: 90},
			},
		})
	})

	quotes, err := b.FetchMarketFeed(context.Background(), []models.ContractQuery{{
		Exchange:     models.NSE,
		ExchangeType: models.SegmentDerivative,
		Symbol:       "NIFTY 25 JAN 2024 CE 22000.00",
	}})
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, 120.5, quotes[0].LastRate)
}

func TestPlaceOrderBulk_MapsAcks(t *testing.T) {
	b := newTestBroker(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/PlaceOrderBulk", r.URL.Path)
		respond(w, map[string]interface{}{
			"Status": 0,
			"OrderResponse": []map[string]interface{}{
				{"BrokerOrderID": 9001, "Status": 0},
				{"BrokerOrderID": 0, "Status": 1, "Message": "Rejected by RMS"},
			},
		})
	})

	legs := []models.OrderLeg{
		{ScripCode: 51001, Quantity: 1800, Side: models.OrderSideBuy},
		{ScripCode: 51001, Quantity: 1800, Side: models.OrderSideBuy},
	}
	acks, err := b.PlaceOrderBulk(context.Background(), legs)
	require.NoError(t, err)
	require.Len(t, acks, 2)
	assert.Equal(t, "Placed", acks[0].Status)
	assert.Equal(t, "9001", acks[0].BrokerOrderID)
	assert.Equal(t, "Rejected", acks[1].Status)
}

func TestGetMargin_ReadsEquityMargin(t *testing.T) {
	b := newTestBroker(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/V4/Margin", r.URL.Path)
		respond(w, map[string]interface{}{
			"Status": 0,
			"EquityMargin": []map[string]interface{}{
				{"NetAvailableMargin": 42000.5},
			},
		})
	})

	margin, err := b.GetMargin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42000.5, margin)
}

func TestCancelOrderBulk_MapsStatuses(t *testing.T) {
	b := newTestBroker(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/CancelOrderBulk", r.URL.Path)
		respond(w, map[string]interface{}{
			"Status": 0,
			"CancelOrderResponse": []map[string]interface{}{
				{"ExchOrderID": "1001", "Status": 0},
				{"ExchOrderID": "1002", "Status": 1, "Message": "Already executed"},
			},
		})
	})

	acks, err := b.CancelOrderBulk(context.Background(), []string{"1001", "1002"})
	require.NoError(t, err)
	require.Len(t, acks, 2)
	assert.Equal(t, "Cancelled", acks[0].Status)
	assert.Equal(t, "Failed", acks[1].Status)
}

func TestDoPost_SessionExpiredOn401(t *testing.T) {
	b := newTestBroker(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := b.GetMargin(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrSessionExpired))
}
