// Package market bridges the Binance futures stream to the strategies: it
// subscribes the partial book, aggregate trades and 1m klines for one symbol,
// caches the latest book and price, and fans events out to callbacks.
package market

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"bn-scalp-bot/internal/binance/ws"
	"bn-scalp-bot/internal/strategy"

	"go.uber.org/zap"
)

type Feed struct {
	symbol string
	client *ws.Client
	log    *zap.Logger

	mu        sync.RWMutex
	depth     strategy.Depth
	hasDepth  bool
	lastPrice float64

	onDepth  func(strategy.Depth)
	onTrade  func(price, volume float64)
	onCandle func(high, low, close float64)
}

func NewFeed(client *ws.Client, symbol string, log *zap.Logger) *Feed {
	if log == nil {
		log = zap.NewNop()
	}
	return &Feed{
		symbol: strings.ToUpper(symbol),
		client: client,
		log:    log,
	}
}

// Callback setters must be called before Run.
func (f *Feed) OnDepth(fn func(strategy.Depth))            { f.onDepth = fn }
func (f *Feed) OnTrade(fn func(price, volume float64))     { f.onTrade = fn }
func (f *Feed) OnCandle(fn func(high, low, close float64)) { f.onCandle = fn }

func (f *Feed) Run(ctx context.Context) error {
	lower := strings.ToLower(f.symbol)
	streams := []string{
		lower + "@depth5@100ms",
		lower + "@aggTrade",
		lower + "@kline_1m",
	}
	if err := f.client.Subscribe(ctx, streams...); err != nil {
		return err
	}
	return f.client.Run(ctx, f.handle)
}

func (f *Feed) handle(raw json.RawMessage) {
	// EventTime must be declared: every payload carries a numeric "E" and
	// Go's case-insensitive field match would otherwise shove it into "e".
	var head struct {
		Event     string `json:"e"`
		EventTime int64  `json:"E"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return
	}
	switch head.Event {
	case "depthUpdate":
		depth, err := parseDepthEvent(raw)
		if err != nil {
			f.log.Debug("bad depth event", zap.Error(err))
			return
		}
		f.mu.Lock()
		f.depth = depth
		f.hasDepth = true
		f.mu.Unlock()
		if f.onDepth != nil {
			f.onDepth(depth)
		}
	case "aggTrade":
		price, volume, err := parseAggTrade(raw)
		if err != nil {
			f.log.Debug("bad trade event", zap.Error(err))
			return
		}
		f.mu.Lock()
		f.lastPrice = price
		f.mu.Unlock()
		if f.onTrade != nil {
			f.onTrade(price, volume)
		}
	case "kline":
		high, low, close, closed, err := parseKline(raw)
		if err != nil {
			f.log.Debug("bad kline event", zap.Error(err))
			return
		}
		// Only closed candles feed the ADX.
		if closed && f.onCandle != nil {
			f.onCandle(high, low, close)
		}
	}
}

// LastPrice satisfies the simulator's price source.
func (f *Feed) LastPrice(symbol string) (float64, bool) {
	_ = symbol
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastPrice, f.lastPrice > 0
}

func (f *Feed) Depth() (strategy.Depth, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.depth, f.hasDepth
}

// Mid returns the midpoint of the best bid and ask.
func (f *Feed) Mid() (float64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.hasDepth || len(f.depth.Bids) == 0 || len(f.depth.Asks) == 0 {
		return 0, false
	}
	return (f.depth.Bids[0].Price + f.depth.Asks[0].Price) / 2, true
}

func (f *Feed) Symbol() string {
	return f.symbol
}
