// Package exec wraps the gateway with retries and idempotent entry
// placement. An entry intent key is stored in the ledger kv before the fate
// of the order is known, so a crash-and-restart replays to the same order
// instead of opening a second position.
package exec

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"bn-scalp-bot/internal/gateway"

	"go.uber.org/zap"
)

type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

type Executor struct {
	gw    gateway.Gateway
	store KV
	log   *zap.Logger

	mu    sync.Mutex
	cache map[string]gateway.Order
}

func New(gw gateway.Gateway, store KV, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		gw:    gw,
		store: store,
		log:   log,
		cache: make(map[string]gateway.Order),
	}
}

// PlaceEntry places a limit entry order exactly once per intent key. Replays
// with the same key return the originally placed order.
func (e *Executor) PlaceEntry(ctx context.Context, intentKey, symbol, side string, price, quantity float64) (gateway.Order, error) {
	if intentKey == "" {
		return e.placeLimitWithRetry(ctx, symbol, side, price, quantity)
	}
	cacheKey := "intent:" + intentKey
	e.mu.Lock()
	if order, ok := e.cache[cacheKey]; ok {
		e.mu.Unlock()
		return order, nil
	}
	e.mu.Unlock()
	if e.store != nil {
		if raw, ok, err := e.store.Get(ctx, cacheKey); err != nil {
			return gateway.Order{}, err
		} else if ok {
			var order gateway.Order
			if err := json.Unmarshal([]byte(raw), &order); err != nil {
				return gateway.Order{}, fmt.Errorf("corrupt intent record %q: %w", cacheKey, err)
			}
			e.mu.Lock()
			e.cache[cacheKey] = order
			e.mu.Unlock()
			return order, nil
		}
	}
	order, err := e.placeLimitWithRetry(ctx, symbol, side, price, quantity)
	if err != nil {
		return gateway.Order{}, err
	}
	if e.store != nil {
		payload, err := json.Marshal(order)
		if err == nil {
			err = e.store.Set(ctx, cacheKey, string(payload))
		}
		if err != nil {
			e.log.Warn("failed to persist entry intent", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	e.mu.Lock()
	e.cache[cacheKey] = order
	e.mu.Unlock()
	return order, nil
}

// PlaceMarketExit flattens a position at market, retrying transient failures.
func (e *Executor) PlaceMarketExit(ctx context.Context, symbol, side string, quantity float64) (gateway.Order, error) {
	var order gateway.Order
	err := e.retry(ctx, func() error {
		var err error
		order, err = e.gw.PlaceMarketOrder(ctx, symbol, side, quantity)
		return err
	})
	if err != nil {
		return gateway.Order{}, err
	}
	return order, nil
}

func (e *Executor) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	return e.retry(ctx, func() error {
		return e.gw.CancelOrder(ctx, symbol, orderID)
	})
}

// GetOrder and GetTicker are polled on a tight cadence; a failed poll is
// retried by the next tick rather than here.
func (e *Executor) GetOrder(ctx context.Context, symbol string, orderID int64) (gateway.Order, error) {
	return e.gw.GetOrder(ctx, symbol, orderID)
}

func (e *Executor) GetTicker(ctx context.Context, symbol string) (gateway.Ticker, error) {
	return e.gw.GetTicker(ctx, symbol)
}

func (e *Executor) placeLimitWithRetry(ctx context.Context, symbol, side string, price, quantity float64) (gateway.Order, error) {
	var order gateway.Order
	err := e.retry(ctx, func() error {
		var err error
		order, err = e.gw.PlaceLimitOrder(ctx, symbol, side, price, quantity)
		return err
	})
	if err != nil {
		return gateway.Order{}, err
	}
	if order.OrderID == 0 {
		return gateway.Order{}, fmt.Errorf("gateway returned empty order id")
	}
	return order, nil
}

func (e *Executor) retry(ctx context.Context, fn func() error) error {
	backoff := 200 * time.Millisecond
	for attempt := 0; attempt < 5; attempt++ {
		if err := fn(); err != nil {
			if attempt == 4 {
				return fmt.Errorf("retry failed: %w", err)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
			continue
		}
		return nil
	}
	return nil
}
