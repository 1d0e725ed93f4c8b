package gateway

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// PriceSource supplies the mark price the simulator fills against, typically
// the live market feed.
type PriceSource interface {
	LastPrice(symbol string) (float64, bool)
}

// Simulator is the dry-run gateway: orders fill immediately and entirely,
// limits at their limit price and markets at the source's last price. Order
// ids are a local monotonic counter.
type Simulator struct {
	source PriceSource
	log    *zap.Logger

	mu     sync.Mutex
	nextID int64
	orders map[int64]Order
}

func NewSimulator(source PriceSource, log *zap.Logger) *Simulator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Simulator{
		source: source,
		log:    log,
		nextID: 1,
		orders: make(map[int64]Order),
	}
}

func (s *Simulator) PlaceLimitOrder(ctx context.Context, symbol, side string, price, quantity float64) (Order, error) {
	if price <= 0 || quantity <= 0 {
		return Order{}, fmt.Errorf("invalid limit order: price=%v quantity=%v", price, quantity)
	}
	return s.fill(symbol, side, price, quantity), nil
}

func (s *Simulator) PlaceMarketOrder(ctx context.Context, symbol, side string, quantity float64) (Order, error) {
	if quantity <= 0 {
		return Order{}, fmt.Errorf("invalid market order: quantity=%v", quantity)
	}
	price, ok := s.source.LastPrice(symbol)
	if !ok || price <= 0 {
		return Order{}, fmt.Errorf("no mark price for %s", symbol)
	}
	return s.fill(symbol, side, price, quantity), nil
}

func (s *Simulator) fill(symbol, side string, price, quantity float64) Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	order := Order{
		OrderID:     s.nextID,
		Symbol:      symbol,
		Side:        side,
		Status:      StatusFilled,
		Price:       price,
		OrigQty:     quantity,
		ExecutedQty: quantity,
		AvgPrice:    price,
		Fills:       []Fill{{Price: price, Quantity: quantity}},
	}
	s.nextID++
	s.orders[order.OrderID] = order
	s.log.Debug("simulated fill",
		zap.Int64("order_id", order.OrderID),
		zap.String("side", side),
		zap.Float64("price", price),
		zap.Float64("quantity", quantity))
	return order
}

func (s *Simulator) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("unknown order %d", orderID)
	}
	if order.Status == StatusFilled {
		return fmt.Errorf("order %d already filled", orderID)
	}
	order.Status = StatusCanceled
	s.orders[orderID] = order
	return nil
}

func (s *Simulator) GetOrder(ctx context.Context, symbol string, orderID int64) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		// Ids from before a restart are not in the map. Everything the
		// simulator places fills immediately, so report such orders filled
		// with no fill details and let the caller fall back to its own
		// recorded price and quantity.
		return Order{OrderID: orderID, Symbol: symbol, Status: StatusFilled}, nil
	}
	return order, nil
}

func (s *Simulator) GetTicker(ctx context.Context, symbol string) (Ticker, error) {
	price, ok := s.source.LastPrice(symbol)
	if !ok || price <= 0 {
		return Ticker{}, fmt.Errorf("no mark price for %s", symbol)
	}
	return Ticker{Symbol: symbol, Price: price}, nil
}
