package strategy

import (
	"time"

	"bn-scalp-bot/internal/indicator"

	"github.com/vmihailenco/msgpack/v5"
)

// SnapshotKey is the kv key the app persists the strategy snapshot under.
const SnapshotKey = "strategy:vwap_state"

// stateSnapshot is the msgpack wire form of the restartable part of the VWAP
// strategy: the trade window and band deviations are bulky enough that a
// compact binary encoding pays off over JSON in the kv store.
type stateSnapshot struct {
	Trades       []indicator.Trade `msgpack:"trades"`
	Deviations   []float64         `msgpack:"devs"`
	WarmupTrades int               `msgpack:"warmup"`
	LastReset    time.Time         `msgpack:"last_reset"`
	SavedAt      time.Time         `msgpack:"saved_at"`
}

// SnapshotState serializes the VWAP window, band deviations and warmup
// progress so a restarted process can pick up mid-session.
func (s *VWAPReversion) SnapshotState() ([]byte, error) {
	s.mu.Lock()
	snap := stateSnapshot{
		Trades:       s.vwap.Window(),
		Deviations:   s.bands.Deviations(),
		WarmupTrades: s.warmupTrades,
		LastReset:    s.vwap.LastReset(),
		SavedAt:      time.Now().UTC(),
	}
	s.mu.Unlock()
	return msgpack.Marshal(snap)
}

// RestoreState seeds the strategy from a previously persisted snapshot.
// Trades that have aged out of the window are dropped on restore; warmup
// progress is capped at what the surviving window can justify.
func (s *VWAPReversion) RestoreState(data []byte) error {
	var snap stateSnapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vwap.Restore(snap.Trades, snap.LastReset)
	s.bands.Restore(snap.Deviations)
	s.warmupTrades = snap.WarmupTrades
	s.ready = s.warmupTrades >= s.cfg.MinWarmupTrades && s.vwap.TradeCount() > 0
	s.currentVWAP = s.vwap.Value()
	if s.currentVWAP > 0 {
		s.upperBand, s.lowerBand = s.bands.Current(s.currentVWAP)
	}
	return nil
}
