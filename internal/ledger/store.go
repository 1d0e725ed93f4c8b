// Package ledger is the durable trading state: pending entry orders, active
// positions and the closed-trade history, plus a small kv area for process
// state that must survive restarts. The position manager treats the ledger as
// the source of truth on startup.
package ledger

import (
	"context"
	"time"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the closing side for a position opened on s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// PendingOrder is an entry order that has been submitted but not yet
// confirmed filled. It carries the exit parameters captured at signal time so
// a restart does not depend on live strategy state.
type PendingOrder struct {
	OrderID        int64
	Symbol         string
	Side           Side
	Price          float64
	Quantity       float64
	Strategy       string
	TakeProfitPct  float64
	StopLossPct    float64
	VWAPAtEntry    float64
	HasVWAPAtEntry bool
	CreatedAt      time.Time
}

// ActivePosition is a confirmed fill being managed toward an exit.
type ActivePosition struct {
	OrderID        int64
	Symbol         string
	Side           Side
	EntryPrice     float64
	Quantity       float64
	Strategy       string
	TakeProfitPct  float64
	StopLossPct    float64
	VWAPAtEntry    float64
	HasVWAPAtEntry bool
	OpenedAt       time.Time
}

// ClosedPosition is the immutable record of a completed round trip.
type ClosedPosition struct {
	OrderID    int64
	Symbol     string
	Side       Side
	EntryPrice float64
	ExitPrice  float64
	Quantity   float64
	PnL        float64
	Reason     string
	Strategy   string
	OpenedAt   time.Time
	ClosedAt   time.Time
}

// DayStats aggregates closed trades for one UTC day.
type DayStats struct {
	Trades int
	Wins   int
	PnL    float64
}

// Store is the persistence contract. InsertPending must be idempotent on
// OrderID so a crash between order placement and the ledger write cannot
// produce duplicates on replay.
type Store interface {
	InsertPending(ctx context.Context, o PendingOrder) error
	ListPending(ctx context.Context) ([]PendingOrder, error)
	DeletePending(ctx context.Context, orderID int64) error

	UpsertActive(ctx context.Context, p ActivePosition) error
	ListActive(ctx context.Context) ([]ActivePosition, error)
	DeleteActive(ctx context.Context, orderID int64) error

	// CloseActive records the closed trade and removes the active row in one
	// transaction. An order must never appear in both tables, and a partial
	// close that survives a crash would double the flatten on restart.
	CloseActive(ctx context.Context, p ClosedPosition) error

	AppendClosed(ctx context.Context, p ClosedPosition) error
	ListClosed(ctx context.Context, limit int) ([]ClosedPosition, error)
	TotalPnL(ctx context.Context) (float64, error)
	DailyStats(ctx context.Context, day time.Time) (DayStats, error)

	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error

	Close() error
}
