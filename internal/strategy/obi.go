package strategy

import (
	"sync"
	"time"

	"bn-scalp-bot/internal/config"
)

// OBIScalper signals off the order book imbalance of the latest depth
// snapshot: the share of quoted value sitting on the bid side over the top N
// levels. It keeps no history beyond the last snapshot.
type OBIScalper struct {
	cfg config.OBIConfig

	mu    sync.Mutex
	depth Depth
	seen  bool
}

func NewOBIScalper(cfg config.OBIConfig) *OBIScalper {
	return &OBIScalper{cfg: cfg}
}

func (s *OBIScalper) Name() string { return config.StrategyOBI }

func (s *OBIScalper) UpdateDepth(depth Depth) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.depth = depth
	s.seen = true
}

func (s *OBIScalper) Signal() Signal {
	obi, ok := s.imbalance()
	if !ok {
		return SignalNone
	}
	switch {
	case obi >= s.cfg.LongThreshold:
		return SignalLong
	case obi <= s.cfg.ShortThreshold:
		return SignalShort
	default:
		return SignalNone
	}
}

func (s *OBIScalper) Ready() bool {
	_, ok := s.imbalance()
	return ok
}

func (s *OBIScalper) IndicatorSnapshot() map[string]any {
	obi, ok := s.imbalance()
	return map[string]any{
		"obi":             obi,
		"obi_valid":       ok,
		"long_threshold":  s.cfg.LongThreshold,
		"short_threshold": s.cfg.ShortThreshold,
	}
}

// imbalance returns bid value / (bid value + ask value) over the configured
// depth, or ok=false when the book is empty on both sides.
func (s *OBIScalper) imbalance() (float64, bool) {
	s.mu.Lock()
	depth := s.depth
	seen := s.seen
	s.mu.Unlock()
	if !seen {
		return 0, false
	}
	bidValue := sideValue(depth.Bids, s.cfg.DepthLevels)
	askValue := sideValue(depth.Asks, s.cfg.DepthLevels)
	total := bidValue + askValue
	if total == 0 {
		return 0, false
	}
	return bidValue / total, true
}

func sideValue(levels []Level, topN int) float64 {
	if len(levels) > topN {
		levels = levels[:topN]
	}
	var sum float64
	for _, l := range levels {
		sum += l.Price * l.Quantity
	}
	return sum
}

func (s *OBIScalper) UpdateTrade(price, volume float64)     {}
func (s *OBIScalper) UpdateCandle(high, low, close float64) {}
func (s *OBIScalper) CheckSessionReset(now time.Time) bool  { return false }

func (s *OBIScalper) TakeProfitPct() float64     { return s.cfg.TakeProfitPct }
func (s *OBIScalper) StopLossPct() float64       { return s.cfg.StopLossPct }
func (s *OBIScalper) EntryVWAP() (float64, bool) { return 0, false }
