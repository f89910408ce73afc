package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/sony/gobreaker"

	apperrors "paisa-trader/internal/errors"
	"paisa-trader/internal/models"
)

const (
	defaultBaseURL = "https://openapi.5paisa.com/VendorsAPI/Service1.svc"
	requestTimeout = 30 * time.Second
)

// FivePaisaConfig holds configuration for the 5paisa broker.
type FivePaisaConfig struct {
	AccountKey    string
	AppName       string
	AppSource     string
	UserID        string
	Password      string
	UserKey       string
	EncryptionKey string
	ClientCode    string
	TOTPSecret    string
	PIN           string
	BaseURL       string
	TokenPath     string
}

// FivePaisaBroker implements the Broker interface against the 5paisa
// OpenAPI. All HTTP calls go through a circuit breaker so a flapping
// broker endpoint fails fast instead of piling up blocked pollers.
type FivePaisaBroker struct {
	cfg        FivePaisaConfig
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker

	mu          sync.RWMutex
	accessToken string
	tokenExpiry time.Time
}

// session is the on-disk form of a cached login.
type session struct {
	ClientCode  string    `json:"client_code"`
	AccessToken string    `json:"access_token"`
	Expiry      time.Time `json:"expiry"`
}

// NewFivePaisaBroker creates a new 5paisa broker instance.
// It automatically loads any saved session from disk.
func NewFivePaisaBroker(cfg FivePaisaConfig) *FivePaisaBroker {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.TokenPath == "" {
		homeDir, _ := os.UserHomeDir()
		cfg.TokenPath = filepath.Join(homeDir, ".config", "paisa-trader",
			fmt.Sprintf("session-%s.json", cfg.AccountKey))
	}

	b := &FivePaisaBroker{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: requestTimeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        fmt.Sprintf("5paisa-%s", cfg.AccountKey),
			MaxRequests: 3,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}

	_ = b.loadSession()
	return b
}

// AccountKey returns the configured account identifier.
func (b *FivePaisaBroker) AccountKey() string {
	return b.cfg.AccountKey
}

// IsAuthenticated reports whether a usable session token is held.
func (b *FivePaisaBroker) IsAuthenticated() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.accessToken != "" && time.Now().Before(b.tokenExpiry)
}

// Login authenticates with a TOTP-based flow and caches the session
// token on disk. A valid cached session short-circuits the call.
func (b *FivePaisaBroker) Login(ctx context.Context) error {
	if b.IsAuthenticated() {
		return nil
	}

	code, err := totp.GenerateCode(b.cfg.TOTPSecret, time.Now())
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInvalidCredentials, "generating TOTP")
	}

	reqBody := map[string]interface{}{
		"head": b.requestHead(),
		"body": map[string]string{
			"Email_ID": b.cfg.UserID,
			"TOTP":     code,
			"PIN":      b.cfg.PIN,
			"EncryKey": b.cfg.EncryptionKey,
		},
	}

	var resp struct {
		Body struct {
			AccessToken string `json:"AccessToken"`
			ClientCode  string `json:"ClientCode"`
			Message     string `json:"Message"`
			Status      int    `json:"Status"`
		} `json:"body"`
	}
	if err := b.doPost(ctx, "TOTPLogin", reqBody, &resp); err != nil {
		return apperrors.NewBrokerError(b.cfg.AccountKey, "LOGIN", "login request failed", err)
	}
	if resp.Body.Status != 0 || resp.Body.AccessToken == "" {
		return apperrors.NewBrokerError(b.cfg.AccountKey, "LOGIN", resp.Body.Message,
			apperrors.ErrInvalidCredentials)
	}

	b.mu.Lock()
	b.accessToken = resp.Body.AccessToken
	// Broker tokens are valid for the trading day.
	b.tokenExpiry = endOfDay(time.Now())
	b.mu.Unlock()

	return b.saveSession()
}

// GetIndexQuote returns the last traded price of an index.
func (b *FivePaisaBroker) GetIndexQuote(ctx context.Context, index models.IndexConfig) (float64, error) {
	queries := []models.ContractQuery{{
		Exchange:     index.Exchange,
		ExchangeType: models.SegmentCash,
		Symbol:       index.ExchangeIdentifier,
	}}
	quotes, err := b.FetchMarketFeed(ctx, queries)
	if err != nil {
		return 0, err
	}
	if len(quotes) == 0 {
		return 0, apperrors.Wrapf(apperrors.ErrMarketDataUnavailable, "no quote for %s", index.Symbol)
	}
	return quotes[0].LastRate, nil
}

// FetchMarketFeed returns live prices for a batch of contracts in one call.
func (b *FivePaisaBroker) FetchMarketFeed(ctx context.Context, queries []models.ContractQuery) ([]models.MarketQuote, error) {
	reqBody := map[string]interface{}{
		"head": b.requestHead(),
		"body": map[string]interface{}{
			"ClientCode":     b.cfg.ClientCode,
			"MarketFeedData": queries,
		},
	}

	var resp struct {
		Body struct {
			Data    []models.MarketQuote `json:"Data"`
			Message string               `json:"Message"`
			Status  int                  `json:"Status"`
		} `json:"body"`
	}
	if err := b.doPost(ctx, "MarketFeed", reqBody, &resp); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrMarketDataUnavailable, err.Error())
	}
	if resp.Body.Status != 0 {
		return nil, apperrors.Wrap(apperrors.ErrMarketDataUnavailable, resp.Body.Message)
	}
	return resp.Body.Data, nil
}

// GetMargin returns the net available margin for the account.
func (b *FivePaisaBroker) GetMargin(ctx context.Context) (float64, error) {
	reqBody := map[string]interface{}{
		"head": b.requestHead(),
		"body": map[string]string{"ClientCode": b.cfg.ClientCode},
	}

	var resp struct {
		Body struct {
			EquityMargin []struct {
				NetAvailableMargin float64 `json:"NetAvailableMargin"`
			} `json:"EquityMargin"`
			Message string `json:"Message"`
			Status  int    `json:"Status"`
		} `json:"body"`
	}
	if err := b.doPost(ctx, "V4/Margin", reqBody, &resp); err != nil {
		return 0, apperrors.NewBrokerError(b.cfg.AccountKey, "MARGIN", "margin request failed", err)
	}
	if resp.Body.Status != 0 || len(resp.Body.EquityMargin) == 0 {
		return 0, apperrors.NewBrokerError(b.cfg.AccountKey, "MARGIN", resp.Body.Message, nil)
	}
	return resp.Body.EquityMargin[0].NetAvailableMargin, nil
}

// GetPositions returns the account's net positions.
func (b *FivePaisaBroker) GetPositions(ctx context.Context) ([]models.Position, error) {
	reqBody := map[string]interface{}{
		"head": b.requestHead(),
		"body": map[string]string{"ClientCode": b.cfg.ClientCode},
	}

	var resp struct {
		Body struct {
			NetPositionDetail []struct {
				Exch      string `json:"Exch"`
				ExchType  string `json:"ExchType"`
				ScripName string `json:"ScripName"`
				ScripCode int    `json:"ScripCode"`
				NetQty    int    `json:"NetQty"`
				BuyQty    int    `json:"BuyQty"`
				SellQty   int    `json:"SellQty"`
			} `json:"NetPositionDetail"`
			Message string `json:"Message"`
			Status  int    `json:"Status"`
		} `json:"body"`
	}
	if err := b.doPost(ctx, "V2/NetPositionNetWise", reqBody, &resp); err != nil {
		return nil, apperrors.NewBrokerError(b.cfg.AccountKey, "POSITIONS", "position request failed", err)
	}

	positions := make([]models.Position, 0, len(resp.Body.NetPositionDetail))
	for _, p := range resp.Body.NetPositionDetail {
		positions = append(positions, models.Position{
			Exchange:     models.Exchange(p.Exch),
			ExchangeType: models.ExchangeType(p.ExchType),
			ScripName:    p.ScripName,
			ScripCode:    p.ScripCode,
			NetQty:       p.NetQty,
			BuyQty:       p.BuyQty,
			SellQty:      p.SellQty,
		})
	}
	return positions, nil
}

// GetOrderBook returns the account's order book for the day.
func (b *FivePaisaBroker) GetOrderBook(ctx context.Context) ([]models.OrderRecord, error) {
	reqBody := map[string]interface{}{
		"head": b.requestHead(),
		"body": map[string]string{"ClientCode": b.cfg.ClientCode},
	}

	var resp struct {
		Body struct {
			OrderBookDetail []struct {
				ExchOrderID string `json:"ExchOrderID"`
				ScripCode   int    `json:"ScripCode"`
				ScripName   string `json:"ScripName"`
				Qty         int    `json:"Qty"`
				TradedQty   int    `json:"TradedQty"`
				OrderStatus string `json:"OrderStatus"`
				BuySell     string `json:"BuySell"`
			} `json:"OrderBookDetail"`
			Message string `json:"Message"`
			Status  int    `json:"Status"`
		} `json:"body"`
	}
	if err := b.doPost(ctx, "V2/OrderBook", reqBody, &resp); err != nil {
		return nil, apperrors.NewBrokerError(b.cfg.AccountKey, "ORDERBOOK", "order book request failed", err)
	}

	orders := make([]models.OrderRecord, 0, len(resp.Body.OrderBookDetail))
	for _, o := range resp.Body.OrderBookDetail {
		orders = append(orders, models.OrderRecord{
			ExchOrderID: o.ExchOrderID,
			ScripCode:   o.ScripCode,
			ScripName:   o.ScripName,
			Quantity:    o.Qty,
			TradedQty:   o.TradedQty,
			OrderStatus: o.OrderStatus,
			Side:        models.OrderSide(o.BuySell),
		})
	}
	return orders, nil
}

// PlaceOrder places a single order leg.
func (b *FivePaisaBroker) PlaceOrder(ctx context.Context, leg models.OrderLeg) (*models.OrderAck, error) {
	reqBody := map[string]interface{}{
		"head": b.requestHead(),
		"body": b.legPayload(leg),
	}

	var resp struct {
		Body struct {
			BrokerOrderID int    `json:"BrokerOrderID"`
			Message       string `json:"Message"`
			Status        int    `json:"Status"`
		} `json:"body"`
	}
	if err := b.doPost(ctx, "V1/PlaceOrderRequest", reqBody, &resp); err != nil {
		return nil, apperrors.NewBrokerError(b.cfg.AccountKey, "PLACE", "order request failed", err)
	}
	if resp.Body.Status != 0 {
		return nil, apperrors.Wrap(apperrors.ErrOrderRejected, resp.Body.Message)
	}
	return &models.OrderAck{
		BrokerOrderID: strconv.Itoa(resp.Body.BrokerOrderID),
		Status:        "Placed",
		Message:       resp.Body.Message,
	}, nil
}

// PlaceOrderBulk places a list of order legs in one broker call.
func (b *FivePaisaBroker) PlaceOrderBulk(ctx context.Context, legs []models.OrderLeg) ([]models.OrderAck, error) {
	payloads := make([]map[string]interface{}, len(legs))
	for i, leg := range legs {
		payloads[i] = b.legPayload(leg)
	}
	reqBody := map[string]interface{}{
		"head": b.requestHead(),
		"body": map[string]interface{}{
			"ClientCode": b.cfg.ClientCode,
			"OrderList":  payloads,
		},
	}

	var resp struct {
		Body struct {
			OrderResponse []struct {
				BrokerOrderID int    `json:"BrokerOrderID"`
				Message       string `json:"Message"`
				Status        int    `json:"Status"`
			} `json:"OrderResponse"`
			Message string `json:"Message"`
			Status  int    `json:"Status"`
		} `json:"body"`
	}
	if err := b.doPost(ctx, "PlaceOrderBulk", reqBody, &resp); err != nil {
		return nil, apperrors.NewBrokerError(b.cfg.AccountKey, "PLACE_BULK", "bulk order request failed", err)
	}
	if resp.Body.Status != 0 {
		return nil, apperrors.Wrap(apperrors.ErrOrderRejected, resp.Body.Message)
	}

	acks := make([]models.OrderAck, 0, len(resp.Body.OrderResponse))
	for _, r := range resp.Body.OrderResponse {
		status := "Placed"
		if r.Status != 0 {
			status = "Rejected"
		}
		acks = append(acks, models.OrderAck{
			BrokerOrderID: strconv.Itoa(r.BrokerOrderID),
			Status:        status,
			Message:       r.Message,
		})
	}
	return acks, nil
}

// CancelOrderBulk cancels a set of orders by exchange order ID.
func (b *FivePaisaBroker) CancelOrderBulk(ctx context.Context, exchOrderIDs []string) ([]models.CancelAck, error) {
	cancelList := make([]map[string]string, len(exchOrderIDs))
	for i, id := range exchOrderIDs {
		cancelList[i] = map[string]string{"ExchOrderID": id}
	}
	reqBody := map[string]interface{}{
		"head": b.requestHead(),
		"body": map[string]interface{}{
			"ClientCode":      b.cfg.ClientCode,
			"CancelOrderList": cancelList,
		},
	}

	var resp struct {
		Body struct {
			CancelOrderResponse []struct {
				ExchOrderID string `json:"ExchOrderID"`
				Message     string `json:"Message"`
				Status      int    `json:"Status"`
			} `json:"CancelOrderResponse"`
			Message string `json:"Message"`
			Status  int    `json:"Status"`
		} `json:"body"`
	}
	if err := b.doPost(ctx, "CancelOrderBulk", reqBody, &resp); err != nil {
		return nil, apperrors.NewBrokerError(b.cfg.AccountKey, "CANCEL_BULK", "bulk cancel request failed", err)
	}

	acks := make([]models.CancelAck, 0, len(resp.Body.CancelOrderResponse))
	for _, r := range resp.Body.CancelOrderResponse {
		status := "Cancelled"
		if r.Status != 0 {
			status = "Failed"
		}
		acks = append(acks, models.CancelAck{ExchOrderID: r.ExchOrderID, Status: status})
	}
	return acks, nil
}

func (b *FivePaisaBroker) legPayload(leg models.OrderLeg) map[string]interface{} {
	return map[string]interface{}{
		"ClientCode":   b.cfg.ClientCode,
		"Exchange":     string(leg.Exchange),
		"ExchangeType": string(leg.ExchangeType),
		"ScripCode":    leg.ScripCode,
		"Qty":          leg.Quantity,
		"OrderType":    string(leg.Side),
		"Price":        leg.Price,
		"IsIntraday":   leg.Intraday,
	}
}

func (b *FivePaisaBroker) requestHead() map[string]string {
	return map[string]string{
		"appName":     b.cfg.AppName,
		"appSource":   b.cfg.AppSource,
		"appVer":      "1.0",
		"key":         b.cfg.UserKey,
		"osName":      "Linux",
		"requestCode": "5P",
		"userId":      b.cfg.UserID,
		"password":    b.cfg.Password,
	}
}

func (b *FivePaisaBroker) doPost(ctx context.Context, endpoint string, reqBody, respBody interface{}) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		payload, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}

		url := fmt.Sprintf("%s/%s", b.cfg.BaseURL, endpoint)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		b.mu.RLock()
		token := b.accessToken
		b.mu.RUnlock()
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := b.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("calling %s: %w", endpoint, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized {
			return nil, apperrors.ErrSessionExpired
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("calling %s: unexpected status %s", endpoint, resp.Status)
		}

		return nil, json.NewDecoder(resp.Body).Decode(respBody)
	})
	return err
}

func (b *FivePaisaBroker) loadSession() error {
	data, err := os.ReadFile(b.cfg.TokenPath)
	if err != nil {
		return err
	}
	var s session
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if time.Now().After(s.Expiry) {
		return apperrors.ErrSessionExpired
	}

	b.mu.Lock()
	b.accessToken = s.AccessToken
	b.tokenExpiry = s.Expiry
	b.mu.Unlock()
	return nil
}

func (b *FivePaisaBroker) saveSession() error {
	b.mu.RLock()
	s := session{
		ClientCode:  b.cfg.ClientCode,
		AccessToken: b.accessToken,
		Expiry:      b.tokenExpiry,
	}
	b.mu.RUnlock()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(b.cfg.TokenPath), 0700); err != nil {
		return err
	}
	return os.WriteFile(b.cfg.TokenPath, data, 0600)
}

// DeleteSession removes the cached session file and clears the token.
func (b *FivePaisaBroker) DeleteSession() error {
	b.mu.Lock()
	b.accessToken = ""
	b.tokenExpiry = time.Time{}
	b.mu.Unlock()

	err := os.Remove(b.cfg.TokenPath)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
