package strategy

import (
	"testing"
	"time"

	"bn-scalp-bot/internal/config"
)

func testVWAPConfig() config.VWAPConfig {
	return config.VWAPConfig{
		Window:              5 * time.Minute,
		BandWindow:          10,
		BandMultiplier:      1.0,
		ADXPeriod:           2,
		ADXTrend:            20,
		ADXStrongTrend:      40,
		VolThreshold:        1.0, // effectively disabled for these tests
		VolHaltDuration:     time.Minute,
		MinWarmupTrades:     3,
		SessionResetHourUTC: 0,
		TakeProfitPct:       0.006,
		StopLossPct:         0.003,
	}
}

// seedFlatADX feeds enough flat candles to complete ADX seeding with value 0,
// which clears the trend gates.
func seedFlatADX(s *VWAPReversion) {
	for i := 0; i < 4; i++ {
		s.UpdateCandle(100, 100, 100)
	}
}

func TestVWAPNoSignalBeforeWarmup(t *testing.T) {
	s := NewVWAPReversion(testVWAPConfig(), nil)
	seedFlatADX(s)
	s.UpdateTrade(100, 1000)
	s.UpdateTrade(100, 1000)
	if s.Ready() {
		t.Fatalf("strategy must not be ready below the warmup count")
	}
	if got := s.Signal(); got != SignalNone {
		t.Fatalf("expected NONE before warmup, got %s", got)
	}
}

func TestVWAPLongBelowLowerBand(t *testing.T) {
	s := NewVWAPReversion(testVWAPConfig(), nil)
	seedFlatADX(s)
	s.UpdateTrade(100, 1000)
	s.UpdateTrade(100, 1000)
	s.UpdateTrade(100, 1000)
	// A tiny trade far below VWAP: VWAP stays ~100, the price pierces the
	// lower band.
	s.UpdateTrade(99, 0.001)
	if !s.Ready() {
		t.Fatalf("strategy should be ready after warmup")
	}
	if got := s.Signal(); got != SignalLong {
		t.Fatalf("expected LONG below lower band, got %s", got)
	}
}

func TestVWAPShortAboveUpperBand(t *testing.T) {
	s := NewVWAPReversion(testVWAPConfig(), nil)
	seedFlatADX(s)
	s.UpdateTrade(100, 1000)
	s.UpdateTrade(100, 1000)
	s.UpdateTrade(100, 1000)
	s.UpdateTrade(101, 0.001)
	if got := s.Signal(); got != SignalShort {
		t.Fatalf("expected SHORT above upper band, got %s", got)
	}
}

func TestVWAPNoSignalInsideBands(t *testing.T) {
	s := NewVWAPReversion(testVWAPConfig(), nil)
	seedFlatADX(s)
	s.UpdateTrade(100, 1000)
	s.UpdateTrade(100, 1000)
	s.UpdateTrade(100, 1000)
	// 0.02% off VWAP, well inside the floored 0.1% band.
	s.UpdateTrade(100.02, 0.001)
	if got := s.Signal(); got != SignalNone {
		t.Fatalf("expected NONE inside the bands, got %s", got)
	}
}

func TestVWAPTrendGatesSuppressSignals(t *testing.T) {
	s := NewVWAPReversion(testVWAPConfig(), nil)
	seedFlatADX(s)
	s.UpdateTrade(100, 1000)
	s.UpdateTrade(100, 1000)
	s.UpdateTrade(100, 1000)
	s.UpdateTrade(99, 0.001)
	if got := s.Signal(); got != SignalLong {
		t.Fatalf("sanity: expected LONG before forcing a trend, got %s", got)
	}

	s.mu.Lock()
	s.currentADX = 45 // strong trend
	s.mu.Unlock()
	if got := s.Signal(); got != SignalNone {
		t.Fatalf("expected NONE under strong trend, got %s", got)
	}

	s.mu.Lock()
	s.currentADX = 25 // developing trend
	s.mu.Unlock()
	if got := s.Signal(); got != SignalNone {
		t.Fatalf("expected NONE under developing trend, got %s", got)
	}
}

func TestVWAPMissingADXSuppressesSignals(t *testing.T) {
	s := NewVWAPReversion(testVWAPConfig(), nil)
	// No candles: ADX never seeds.
	s.UpdateTrade(100, 1000)
	s.UpdateTrade(100, 1000)
	s.UpdateTrade(100, 1000)
	s.UpdateTrade(99, 0.001)
	if got := s.Signal(); got != SignalNone {
		t.Fatalf("expected NONE without a valid ADX, got %s", got)
	}
}

func TestVWAPSessionResetFiresOncePerCrossing(t *testing.T) {
	s := NewVWAPReversion(testVWAPConfig(), nil)
	seedFlatADX(s)
	s.UpdateTrade(100, 1000)
	s.UpdateTrade(100, 1000)
	s.UpdateTrade(100, 1000)

	now := time.Now().UTC().Add(24 * time.Hour)
	if !s.CheckSessionReset(now) {
		t.Fatalf("expected reset to fire after crossing the reset hour")
	}
	if s.Ready() {
		t.Fatalf("reset must clear warmup state")
	}
	snap := s.IndicatorSnapshot()
	if count, _ := snap["trade_count"].(int); count != 0 {
		t.Fatalf("reset must empty the VWAP window, got %d trades", count)
	}
	if s.CheckSessionReset(now.Add(time.Minute)) {
		t.Fatalf("reset must not fire twice for the same crossing")
	}
}

func TestVWAPSnapshotRoundTrip(t *testing.T) {
	s := NewVWAPReversion(testVWAPConfig(), nil)
	seedFlatADX(s)
	s.UpdateTrade(100, 10)
	s.UpdateTrade(102, 10)
	s.UpdateTrade(104, 10)

	data, err := s.SnapshotState()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	restored := NewVWAPReversion(testVWAPConfig(), nil)
	if err := restored.RestoreState(data); err != nil {
		t.Fatalf("restore: %v", err)
	}
	orig := s.IndicatorSnapshot()
	got := restored.IndicatorSnapshot()
	if got["vwap"] != orig["vwap"] {
		t.Fatalf("vwap mismatch after restore: %v vs %v", got["vwap"], orig["vwap"])
	}
	if got["trade_count"] != orig["trade_count"] {
		t.Fatalf("trade count mismatch after restore: %v vs %v", got["trade_count"], orig["trade_count"])
	}
	if got["warmup_trades"] != orig["warmup_trades"] {
		t.Fatalf("warmup mismatch after restore: %v vs %v", got["warmup_trades"], orig["warmup_trades"])
	}
	if restored.Halted() {
		t.Fatalf("halt state must not survive a restore")
	}
}

func TestVWAPEntryVWAPRequiresData(t *testing.T) {
	s := NewVWAPReversion(testVWAPConfig(), nil)
	if _, ok := s.EntryVWAP(); ok {
		t.Fatalf("expected no entry VWAP before any trade")
	}
	s.UpdateTrade(100, 1)
	v, ok := s.EntryVWAP()
	if !ok || v != 100 {
		t.Fatalf("expected entry VWAP 100, got %v ok=%v", v, ok)
	}
}
