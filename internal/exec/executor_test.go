package exec

import (
	"context"
	"errors"
	"sync"
	"testing"

	"bn-scalp-bot/internal/gateway"

	"go.uber.org/zap"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]string)}
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	return val, ok, nil
}

func (m *memoryStore) Set(ctx context.Context, key, value string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

type mockGateway struct {
	mu         sync.Mutex
	placeCalls int
	failFirst  int
	nextID     int64
}

func (m *mockGateway) PlaceLimitOrder(ctx context.Context, symbol, side string, price, quantity float64) (gateway.Order, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	m.placeCalls++
	if m.failFirst > 0 {
		m.failFirst--
		return gateway.Order{}, errors.New("transient")
	}
	m.nextID++
	return gateway.Order{
		OrderID: m.nextID,
		Symbol:  symbol,
		Side:    side,
		Status:  gateway.StatusNew,
		Price:   price,
		OrigQty: quantity,
	}, nil
}

func (m *mockGateway) PlaceMarketOrder(ctx context.Context, symbol, side string, quantity float64) (gateway.Order, error) {
	return m.PlaceLimitOrder(ctx, symbol, side, 0, quantity)
}

func (m *mockGateway) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	return nil
}

func (m *mockGateway) GetOrder(ctx context.Context, symbol string, orderID int64) (gateway.Order, error) {
	return gateway.Order{OrderID: orderID, Symbol: symbol}, nil
}

func (m *mockGateway) GetTicker(ctx context.Context, symbol string) (gateway.Ticker, error) {
	return gateway.Ticker{Symbol: symbol, Price: 100}, nil
}

func TestExecutorIdempotentEntryPlacement(t *testing.T) {
	store := newMemoryStore()
	gw := &mockGateway{}
	executor := New(gw, store, zap.NewNop())

	ctx := context.Background()
	first, err := executor.PlaceEntry(ctx, "sig-1", "BTCUSDT", "BUY", 65000, 0.001)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := executor.PlaceEntry(ctx, "sig-1", "BTCUSDT", "BUY", 65000, 0.001)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.OrderID != second.OrderID {
		t.Fatalf("expected same order id, got %d and %d", first.OrderID, second.OrderID)
	}
	if gw.placeCalls != 1 {
		t.Fatalf("expected 1 gateway call, got %d", gw.placeCalls)
	}

	// A fresh executor over the same store must replay from the kv record
	// without hitting the gateway.
	gw2 := &mockGateway{}
	executor2 := New(gw2, store, zap.NewNop())
	replayed, err := executor2.PlaceEntry(ctx, "sig-1", "BTCUSDT", "BUY", 65000, 0.001)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if replayed.OrderID != first.OrderID {
		t.Fatalf("expected replayed order id %d, got %d", first.OrderID, replayed.OrderID)
	}
	if gw2.placeCalls != 0 {
		t.Fatalf("expected no gateway calls on replay, got %d", gw2.placeCalls)
	}
}

func TestExecutorRetriesTransientFailures(t *testing.T) {
	gw := &mockGateway{failFirst: 2}
	executor := New(gw, newMemoryStore(), zap.NewNop())

	order, err := executor.PlaceEntry(context.Background(), "sig-2", "BTCUSDT", "SELL", 65000, 0.001)
	if err != nil {
		t.Fatalf("expected retries to succeed, got %v", err)
	}
	if order.OrderID == 0 {
		t.Fatalf("expected a real order after retries")
	}
	if gw.placeCalls != 3 {
		t.Fatalf("expected 3 attempts, got %d", gw.placeCalls)
	}
}
