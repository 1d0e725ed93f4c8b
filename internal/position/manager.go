// Package position owns the order lifecycle: pending entry orders are
// promoted to active positions on fill, active positions are evaluated for
// exits every reconcile tick, and every transition is written to the ledger
// before the in-memory view moves on. On restart the ledger is the source of
// truth; nothing here lives only in memory.
package position

import (
	"context"
	"fmt"
	"time"

	"bn-scalp-bot/internal/gateway"
	"bn-scalp-bot/internal/ledger"
	"bn-scalp-bot/internal/metrics"

	"go.uber.org/zap"
)

// Trader is the slice of the executor the manager needs.
type Trader interface {
	GetOrder(ctx context.Context, symbol string, orderID int64) (gateway.Order, error)
	GetTicker(ctx context.Context, symbol string) (gateway.Ticker, error)
	PlaceMarketExit(ctx context.Context, symbol, side string, quantity float64) (gateway.Order, error)
}

// Notifier delivers operator-facing trade notifications. Delivery failures
// are logged, never propagated.
type Notifier interface {
	Send(ctx context.Context, message string) error
}

type Manager struct {
	store    ledger.Store
	trader   Trader
	metrics  *metrics.Metrics
	notifier Notifier
	log      *zap.Logger
	interval time.Duration
	now      func() time.Time
	onClosed func(ledger.ClosedPosition)
}

func NewManager(store ledger.Store, trader Trader, m *metrics.Metrics, notifier Notifier, interval time.Duration, log *zap.Logger) *Manager {
	if m == nil {
		m = metrics.NewNoop()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Manager{
		store:    store,
		trader:   trader,
		metrics:  m,
		notifier: notifier,
		log:      log,
		interval: interval,
		now:      time.Now,
	}
}

// OnClosed registers a callback invoked after a position is closed and its
// ledger row written. Set before Run.
func (m *Manager) OnClosed(fn func(ledger.ClosedPosition)) {
	m.onClosed = fn
}

// RegisterOrder records a just-placed entry order as pending. The insert is
// idempotent on order id, so replaying a signal after a crash is harmless.
func (m *Manager) RegisterOrder(ctx context.Context, order ledger.PendingOrder) error {
	if order.OrderID == 0 {
		return fmt.Errorf("pending order needs an order id")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = m.now().UTC()
	}
	return m.store.InsertPending(ctx, order)
}

// OpenCount reports pending plus active orders, used to gate new entries.
func (m *Manager) OpenCount(ctx context.Context) (int, error) {
	pending, err := m.store.ListPending(ctx)
	if err != nil {
		return 0, err
	}
	active, err := m.store.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	return len(pending) + len(active), nil
}

// Run drives Reconcile on a fixed tick until the context is canceled. A
// failed tick is logged and retried on the next one.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := m.Reconcile(ctx); err != nil {
				m.log.Warn("reconcile tick failed", zap.Error(err))
			}
		}
	}
}

// Reconcile runs one pass of the lifecycle state machine: promote filled
// pending orders, drop dead ones, then evaluate exits on active positions.
// Each order's transition is independent; one failure skips that order only.
func (m *Manager) Reconcile(ctx context.Context) error {
	if err := m.promotePending(ctx); err != nil {
		return err
	}
	if err := m.evaluateExits(ctx); err != nil {
		return err
	}
	return m.updateGauges(ctx)
}

func (m *Manager) promotePending(ctx context.Context) error {
	pending, err := m.store.ListPending(ctx)
	if err != nil {
		return err
	}
	for _, order := range pending {
		status, err := m.trader.GetOrder(ctx, order.Symbol, order.OrderID)
		if err != nil {
			m.log.Warn("order status query failed",
				zap.Int64("order_id", order.OrderID), zap.Error(err))
			continue
		}
		switch {
		case status.Status == gateway.StatusFilled:
			entryPrice := status.FillPrice()
			if entryPrice <= 0 {
				entryPrice = order.Price
			}
			quantity := status.FilledQuantity()
			if quantity <= 0 {
				quantity = order.Quantity
			}
			pos := ledger.ActivePosition{
				OrderID:        order.OrderID,
				Symbol:         order.Symbol,
				Side:           order.Side,
				EntryPrice:     entryPrice,
				Quantity:       quantity,
				Strategy:       order.Strategy,
				TakeProfitPct:  order.TakeProfitPct,
				StopLossPct:    order.StopLossPct,
				VWAPAtEntry:    order.VWAPAtEntry,
				HasVWAPAtEntry: order.HasVWAPAtEntry,
				OpenedAt:       m.now().UTC(),
			}
			// Upsert before delete: re-running after a crash between the
			// two writes replays to the same row.
			if err := m.store.UpsertActive(ctx, pos); err != nil {
				m.log.Warn("failed to persist active position",
					zap.Int64("order_id", order.OrderID), zap.Error(err))
				continue
			}
			if err := m.store.DeletePending(ctx, order.OrderID); err != nil {
				m.log.Warn("failed to delete pending order",
					zap.Int64("order_id", order.OrderID), zap.Error(err))
				continue
			}
			m.metrics.PositionsOpened.Inc()
			m.log.Info("position opened",
				zap.Int64("order_id", order.OrderID),
				zap.String("side", string(order.Side)),
				zap.Float64("entry_price", entryPrice),
				zap.Float64("quantity", quantity))
			m.notify(ctx, fmt.Sprintf("opened %s %s %.6f @ %.4f",
				order.Symbol, order.Side, quantity, entryPrice))
		case status.Status.Terminal():
			// Canceled/rejected/expired entries are dropped without a trace
			// in the closed table.
			if err := m.store.DeletePending(ctx, order.OrderID); err != nil {
				m.log.Warn("failed to drop dead pending order",
					zap.Int64("order_id", order.OrderID), zap.Error(err))
				continue
			}
			m.log.Info("pending order dropped",
				zap.Int64("order_id", order.OrderID),
				zap.String("status", string(status.Status)))
		}
	}
	return nil
}

func (m *Manager) evaluateExits(ctx context.Context) error {
	active, err := m.store.ListActive(ctx)
	if err != nil {
		return err
	}
	if len(active) == 0 {
		return nil
	}
	// Single symbol per process: one ticker fetch serves the whole tick.
	ticker, err := m.trader.GetTicker(ctx, active[0].Symbol)
	if err != nil {
		return fmt.Errorf("ticker fetch: %w", err)
	}
	for _, pos := range active {
		reason, ok := exitReason(pos, ticker.Price)
		if !ok {
			continue
		}
		if err := m.closePosition(ctx, pos, reason); err != nil {
			m.metrics.ExitFailed.Inc()
			m.log.Warn("position close failed",
				zap.Int64("order_id", pos.OrderID),
				zap.String("reason", reason), zap.Error(err))
		}
	}
	return nil
}

func (m *Manager) closePosition(ctx context.Context, pos ledger.ActivePosition, reason string) error {
	order, err := m.trader.PlaceMarketExit(ctx, pos.Symbol, string(pos.Side.Opposite()), pos.Quantity)
	if err != nil {
		return err
	}
	exitPrice := order.FillPrice()
	if exitPrice <= 0 {
		return fmt.Errorf("flatten order %d reported no fill price", order.OrderID)
	}
	pnl := realizedPnL(pos, exitPrice)
	closed := ledger.ClosedPosition{
		OrderID:    pos.OrderID,
		Symbol:     pos.Symbol,
		Side:       pos.Side,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		Quantity:   pos.Quantity,
		PnL:        pnl,
		Reason:     reason,
		Strategy:   pos.Strategy,
		OpenedAt:   pos.OpenedAt,
		ClosedAt:   m.now().UTC(),
	}
	// One transaction: the closed row and the active delete land together, so
	// a crash or write failure here cannot leave a trade in both tables.
	if err := m.store.CloseActive(ctx, closed); err != nil {
		return err
	}
	m.metrics.PositionsClosed.Inc()
	m.log.Info("position closed",
		zap.Int64("order_id", pos.OrderID),
		zap.String("reason", reason),
		zap.Float64("exit_price", exitPrice),
		zap.Float64("pnl", pnl))
	m.notify(ctx, fmt.Sprintf("closed %s %s @ %.4f (%s, pnl %.4f)",
		closed.Symbol, closed.Side, exitPrice, reason, pnl))
	if m.onClosed != nil {
		m.onClosed(closed)
	}
	return nil
}

func (m *Manager) updateGauges(ctx context.Context) error {
	active, err := m.store.ListActive(ctx)
	if err != nil {
		return err
	}
	m.metrics.ActivePositions.Set(float64(len(active)))
	total, err := m.store.TotalPnL(ctx)
	if err != nil {
		return err
	}
	m.metrics.TotalPnL.Set(total)
	return nil
}

// Totals summarizes realized performance for the status surface.
type Totals struct {
	TotalPnL    float64
	TodayPnL    float64
	TodayTrades int
	TodayWins   int
	WinRate     float64
	Pending     int
	Active      int
}

func (m *Manager) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	total, err := m.store.TotalPnL(ctx)
	if err != nil {
		return t, err
	}
	t.TotalPnL = total
	stats, err := m.store.DailyStats(ctx, m.now().UTC())
	if err != nil {
		return t, err
	}
	t.TodayPnL = stats.PnL
	t.TodayTrades = stats.Trades
	t.TodayWins = stats.Wins
	if stats.Trades > 0 {
		t.WinRate = float64(stats.Wins) / float64(stats.Trades)
	}
	pending, err := m.store.ListPending(ctx)
	if err != nil {
		return t, err
	}
	active, err := m.store.ListActive(ctx)
	if err != nil {
		return t, err
	}
	t.Pending = len(pending)
	t.Active = len(active)
	return t, nil
}

func (m *Manager) notify(ctx context.Context, message string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Send(ctx, message); err != nil {
		m.log.Warn("notification failed", zap.Error(err))
	}
}
