package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const recvWindowMS = "5000"

// Binance talks to the USDT-M futures REST API. Signed endpoints carry a
// timestamp and an HMAC-SHA256 signature of the query string.
type Binance struct {
	baseURL string
	apiKey  string
	secret  string
	http    *http.Client
	log     *zap.Logger
	now     func() time.Time
}

func NewBinance(baseURL, apiKey, secret string, timeout time.Duration, log *zap.Logger) *Binance {
	if log == nil {
		log = zap.NewNop()
	}
	return &Binance{
		baseURL: baseURL,
		apiKey:  apiKey,
		secret:  secret,
		http: &http.Client{
			Timeout: timeout,
		},
		log: log,
		now: time.Now,
	}
}

type binanceOrderResponse struct {
	OrderID     int64  `json:"orderId"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	Status      string `json:"status"`
	Price       string `json:"price"`
	OrigQty     string `json:"origQty"`
	ExecutedQty string `json:"executedQty"`
	AvgPrice    string `json:"avgPrice"`
}

type binanceTickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

type binanceError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (b *Binance) PlaceLimitOrder(ctx context.Context, symbol, side string, price, quantity float64) (Order, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", side)
	params.Set("type", "LIMIT")
	params.Set("timeInForce", "GTC")
	params.Set("price", formatFloat(price))
	params.Set("quantity", formatFloat(quantity))
	var resp binanceOrderResponse
	if err := b.signedRequest(ctx, http.MethodPost, "/fapi/v1/order", params, &resp); err != nil {
		return Order{}, err
	}
	return resp.toOrder(), nil
}

func (b *Binance) PlaceMarketOrder(ctx context.Context, symbol, side string, quantity float64) (Order, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", side)
	params.Set("type", "MARKET")
	params.Set("quantity", formatFloat(quantity))
	// RESULT includes the average fill price in the placement response.
	params.Set("newOrderRespType", "RESULT")
	var resp binanceOrderResponse
	if err := b.signedRequest(ctx, http.MethodPost, "/fapi/v1/order", params, &resp); err != nil {
		return Order{}, err
	}
	return resp.toOrder(), nil
}

func (b *Binance) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))
	var resp binanceOrderResponse
	return b.signedRequest(ctx, http.MethodDelete, "/fapi/v1/order", params, &resp)
}

func (b *Binance) GetOrder(ctx context.Context, symbol string, orderID int64) (Order, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))
	var resp binanceOrderResponse
	if err := b.signedRequest(ctx, http.MethodGet, "/fapi/v1/order", params, &resp); err != nil {
		return Order{}, err
	}
	return resp.toOrder(), nil
}

func (b *Binance) GetTicker(ctx context.Context, symbol string) (Ticker, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		b.baseURL+"/fapi/v1/ticker/price?"+params.Encode(), nil)
	if err != nil {
		return Ticker{}, err
	}
	var resp binanceTickerResponse
	if err := b.do(req, &resp); err != nil {
		return Ticker{}, err
	}
	return Ticker{Symbol: resp.Symbol, Price: parseFloat(resp.Price)}, nil
}

func (b *Binance) signedRequest(ctx context.Context, method, path string, params url.Values, out any) error {
	params.Set("timestamp", strconv.FormatInt(b.now().UnixMilli(), 10))
	params.Set("recvWindow", recvWindowMS)
	query := params.Encode()
	query += "&signature=" + b.sign(query)

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path+"?"+query, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-MBX-APIKEY", b.apiKey)
	return b.do(req, out)
}

func (b *Binance) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(b.secret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

func (b *Binance) do(req *http.Request, out any) error {
	resp, err := b.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr binanceError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Msg != "" {
			return fmt.Errorf("binance %d (code %d): %s", resp.StatusCode, apiErr.Code, apiErr.Msg)
		}
		return fmt.Errorf("binance http %d: %s", resp.StatusCode, string(body))
	}
	return json.Unmarshal(body, out)
}

func (r binanceOrderResponse) toOrder() Order {
	return Order{
		OrderID:     r.OrderID,
		Symbol:      r.Symbol,
		Side:        r.Side,
		Status:      OrderStatus(r.Status),
		Price:       parseFloat(r.Price),
		OrigQty:     parseFloat(r.OrigQty),
		ExecutedQty: parseFloat(r.ExecutedQty),
		AvgPrice:    parseFloat(r.AvgPrice),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
