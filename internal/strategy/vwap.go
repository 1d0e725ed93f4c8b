package strategy

import (
	"sync"
	"time"

	"bn-scalp-bot/internal/config"
	"bn-scalp-bot/internal/indicator"

	"go.uber.org/zap"
)

// VWAPReversion trades mean reversion around a rolling VWAP. Signals pass a
// chain of gates: warmup, volatility halt, ADX regime filter and indicator
// validity, before the band-cross decision.
type VWAPReversion struct {
	cfg config.VWAPConfig
	log *zap.Logger

	mu    sync.Mutex
	vwap  *indicator.VWAP
	adx   *indicator.ADX
	bands *indicator.Bands
	vol   *indicator.VolatilityMonitor

	warmupTrades int
	ready        bool
	price        float64
	currentVWAP  float64
	upperBand    float64
	lowerBand    float64
	currentADX   float64
	hasADX       bool

	lastSessionReset time.Time
}

func NewVWAPReversion(cfg config.VWAPConfig, log *zap.Logger) *VWAPReversion {
	if log == nil {
		log = zap.NewNop()
	}
	return &VWAPReversion{
		cfg:   cfg,
		log:   log,
		vwap:  indicator.NewVWAP(cfg.Window),
		adx:   indicator.NewADX(cfg.ADXPeriod, log),
		bands: indicator.NewBands(cfg.BandWindow, cfg.BandMultiplier),
		vol:   indicator.NewVolatilityMonitor(cfg.VolThreshold, cfg.VolHaltDuration),
	}
}

func (s *VWAPReversion) Name() string { return config.StrategyVWAP }

func (s *VWAPReversion) UpdateTrade(price, volume float64) {
	if price <= 0 || volume <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentVWAP = s.vwap.Update(price, volume)
	s.price = price
	if s.currentVWAP > 0 {
		s.upperBand, s.lowerBand = s.bands.Update(price, s.currentVWAP)
	}
	s.vol.Update(price)
	s.warmupTrades++
	if s.warmupTrades >= s.cfg.MinWarmupTrades {
		s.ready = true
	}
}

func (s *VWAPReversion) UpdateCandle(high, low, close float64) {
	if high <= 0 || low <= 0 || close <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentADX, s.hasADX = s.adx.Update(high, low, close)
}

func (s *VWAPReversion) Signal() Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return SignalNone
	}
	if s.vol.Halted() {
		s.log.Debug("signal suppressed: volatility halt active")
		return SignalNone
	}
	if !s.hasADX {
		return SignalNone
	}
	if s.currentADX >= s.cfg.ADXStrongTrend {
		s.log.Debug("signal suppressed: strong trend", zap.Float64("adx", s.currentADX))
		return SignalNone
	}
	if s.currentADX >= s.cfg.ADXTrend {
		s.log.Debug("signal suppressed: developing trend", zap.Float64("adx", s.currentADX))
		return SignalNone
	}
	if s.price <= 0 || s.currentVWAP <= 0 || s.upperBand <= 0 || s.lowerBand <= 0 {
		return SignalNone
	}
	if s.price >= s.upperBand && s.price > s.currentVWAP {
		s.log.Info("short signal",
			zap.Float64("price", s.price),
			zap.Float64("upper_band", s.upperBand),
			zap.Float64("vwap", s.currentVWAP),
			zap.Float64("adx", s.currentADX))
		return SignalShort
	}
	if s.price <= s.lowerBand && s.price < s.currentVWAP {
		s.log.Info("long signal",
			zap.Float64("price", s.price),
			zap.Float64("lower_band", s.lowerBand),
			zap.Float64("vwap", s.currentVWAP),
			zap.Float64("adx", s.currentADX))
		return SignalLong
	}
	return SignalNone
}

func (s *VWAPReversion) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready && s.hasADX && s.currentVWAP > 0 && s.upperBand > 0 && s.lowerBand > 0
}

func (s *VWAPReversion) IndicatorSnapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]any{
		"vwap":          s.currentVWAP,
		"upper_band":    s.upperBand,
		"lower_band":    s.lowerBand,
		"adx":           s.currentADX,
		"adx_valid":     s.hasADX,
		"halted":        s.vol.Halted(),
		"current_price": s.price,
		"warmup_trades": s.warmupTrades,
		"trade_count":   s.vwap.TradeCount(),
		"ready":         s.ready,
	}
}

// Halted reports whether the volatility circuit breaker is active.
func (s *VWAPReversion) Halted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vol.Halted()
}

// CheckSessionReset clears the VWAP window and warmup state once per day
// when the clock crosses the configured UTC reset hour. The last-reset
// timestamp guards against firing more than once per crossing.
func (s *VWAPReversion) CheckSessionReset(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now = now.UTC()
	resetAt := time.Date(now.Year(), now.Month(), now.Day(), s.cfg.SessionResetHourUTC, 0, 0, 0, time.UTC)
	if now.Before(resetAt) {
		return false
	}
	if !s.vwap.LastReset().Before(resetAt) {
		return false
	}
	s.log.Info("daily session reset", zap.Time("at", now))
	s.vwap.ResetSession(now)
	s.bands.Reset()
	s.ready = false
	s.warmupTrades = 0
	s.currentVWAP = 0
	s.upperBand = 0
	s.lowerBand = 0
	s.lastSessionReset = now
	return true
}

func (s *VWAPReversion) UpdateDepth(depth Depth) {}

func (s *VWAPReversion) TakeProfitPct() float64 { return s.cfg.TakeProfitPct }
func (s *VWAPReversion) StopLossPct() float64   { return s.cfg.StopLossPct }

// EntryVWAP anchors VWAP-reversion exits on the VWAP observed at entry time.
func (s *VWAPReversion) EntryVWAP() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentVWAP <= 0 {
		return 0, false
	}
	return s.currentVWAP, true
}
