// Package indicator holds the per-strategy calculators: rolling-window VWAP,
// EMA-smoothed ADX, VWAP deviation bands and the volatility halt monitor.
// Each calculator is owned by exactly one strategy instance and is not safe
// for concurrent use.
package indicator

import "time"

// Trade is one buffered window entry. Exported so strategy snapshots can
// persist and restore the window across restarts.
type Trade struct {
	Time   time.Time `msgpack:"t"`
	Price  float64   `msgpack:"p"`
	Volume float64   `msgpack:"v"`
	PV     float64   `msgpack:"pv"`
}

// VWAP computes the volume-weighted average price over a trailing time
// window. Evicted trades no longer contribute: the running sums are adjusted
// as the head of the queue falls out of the window.
type VWAP struct {
	window time.Duration
	now    func() time.Time

	trades    []Trade
	sumPV     float64
	sumVolume float64
	current   float64
	lastReset time.Time
}

func NewVWAP(window time.Duration) *VWAP {
	return &VWAP{
		window:    window,
		now:       time.Now,
		lastReset: time.Now().UTC(),
	}
}

// Update folds a trade into the window and returns the new VWAP. Non-positive
// price or volume leaves the state untouched and returns the prior value.
func (v *VWAP) Update(price, volume float64) float64 {
	if price <= 0 || volume <= 0 {
		return v.current
	}
	now := v.now()
	v.trades = append(v.trades, Trade{Time: now, Price: price, Volume: volume, PV: price * volume})
	v.sumPV += price * volume
	v.sumVolume += volume
	v.evict(now)
	v.current = v.compute()
	return v.current
}

func (v *VWAP) evict(now time.Time) {
	cutoff := now.Add(-v.window)
	i := 0
	for ; i < len(v.trades) && v.trades[i].Time.Before(cutoff); i++ {
		v.sumPV -= v.trades[i].PV
		v.sumVolume -= v.trades[i].Volume
	}
	if i > 0 {
		v.trades = append(v.trades[:0], v.trades[i:]...)
	}
}

func (v *VWAP) compute() float64 {
	if len(v.trades) == 0 || v.sumVolume <= 0 {
		return 0
	}
	return v.sumPV / v.sumVolume
}

func (v *VWAP) Value() float64 {
	return v.current
}

// TradeCount reports how many trades are inside the current window.
func (v *VWAP) TradeCount() int {
	return len(v.trades)
}

func (v *VWAP) LastReset() time.Time {
	return v.lastReset
}

// ResetSession drops all buffered trades at a session boundary and records
// the boundary instant so the caller can guard against double resets.
func (v *VWAP) ResetSession(at time.Time) {
	v.trades = v.trades[:0]
	v.sumPV = 0
	v.sumVolume = 0
	v.current = 0
	v.lastReset = at.UTC()
}

// Window returns a copy of the buffered trades for snapshot persistence.
func (v *VWAP) Window() []Trade {
	out := make([]Trade, len(v.trades))
	copy(out, v.trades)
	return out
}

// Restore replaces the window with previously snapshotted trades, dropping
// entries that have already aged out.
func (v *VWAP) Restore(trades []Trade, lastReset time.Time) {
	v.trades = v.trades[:0]
	v.sumPV = 0
	v.sumVolume = 0
	for _, t := range trades {
		if t.Price <= 0 || t.Volume <= 0 {
			continue
		}
		v.trades = append(v.trades, t)
		v.sumPV += t.PV
		v.sumVolume += t.Volume
	}
	v.evict(v.now())
	v.current = v.compute()
	if !lastReset.IsZero() {
		v.lastReset = lastReset
	}
}
