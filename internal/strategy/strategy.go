// Package strategy turns market data into directional signals. Strategies own
// their indicator state exclusively; callers serialize access (the app mutates
// strategy state only under its strategy lock).
package strategy

import "time"

type Signal string

const (
	SignalLong  Signal = "LONG"
	SignalShort Signal = "SHORT"
	SignalNone  Signal = "NONE"
)

// Level is one price level of a depth snapshot.
type Level struct {
	Price    float64
	Quantity float64
}

// Depth is a transient order book snapshot, replaced wholesale on every
// update and never persisted.
type Depth struct {
	Bids []Level
	Asks []Level
}

// Strategy is the uniform contract the signal loop drives. Strategies that do
// not consume a given stream implement the corresponding update as a no-op.
type Strategy interface {
	Name() string
	Signal() Signal
	Ready() bool
	IndicatorSnapshot() map[string]any

	UpdateDepth(depth Depth)
	UpdateTrade(price, volume float64)
	UpdateCandle(high, low, close float64)

	// CheckSessionReset gives time-partitioned strategies a chance to roll
	// their session state; it reports whether a reset fired.
	CheckSessionReset(now time.Time) bool

	// TakeProfitPct and StopLossPct are the exit thresholds the position
	// manager applies to fills attributed to this strategy.
	TakeProfitPct() float64
	StopLossPct() float64

	// EntryVWAP returns the anchor for VWAP-reversion exits, when the
	// strategy has one.
	EntryVWAP() (float64, bool)
}
