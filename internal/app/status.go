package app

import (
	"encoding/json"
	"net/http"
	"time"

	"bn-scalp-bot/internal/strategy"

	"go.uber.org/zap"
)

type statusResponse struct {
	Symbol       string          `json:"symbol"`
	Strategy     string          `json:"strategy"`
	DryRun       bool            `json:"dry_run"`
	Paused       bool            `json:"paused"`
	Ready        bool            `json:"ready"`
	Signal       strategy.Signal `json:"signal"`
	SignalAt     time.Time       `json:"signal_at"`
	Indicators   map[string]any  `json:"indicators"`
	TotalPnL     float64         `json:"total_pnl"`
	TodayPnL     float64         `json:"today_pnl"`
	TodayTrades  int             `json:"today_trades"`
	TodayWins    int             `json:"today_wins"`
	WinRate      float64         `json:"win_rate"`
	PendingCount int             `json:"pending_orders"`
	ActiveCount  int             `json:"active_positions"`
}

func (a *App) statusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		totals, err := a.positions.Totals(r.Context())
		if err != nil {
			a.log.Warn("status totals failed", zap.Error(err))
			http.Error(w, "ledger unavailable", http.StatusInternalServerError)
			return
		}
		sig, at := a.lastSignalSnapshot()
		resp := statusResponse{
			Symbol:       a.feed.Symbol(),
			Strategy:     a.strategy.Name(),
			DryRun:       a.cfg.Trading.DryRun,
			Paused:       a.isPaused(),
			Ready:        a.strategy.Ready(),
			Signal:       sig,
			SignalAt:     at,
			Indicators:   a.strategy.IndicatorSnapshot(),
			TotalPnL:     totals.TotalPnL,
			TodayPnL:     totals.TodayPnL,
			TodayTrades:  totals.TodayTrades,
			TodayWins:    totals.TodayWins,
			WinRate:      totals.WinRate,
			PendingCount: totals.Pending,
			ActiveCount:  totals.Active,
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			a.log.Warn("status encode failed", zap.Error(err))
		}
	})
}

func (a *App) lastSignalSnapshot() (strategy.Signal, time.Time) {
	a.sigMu.Lock()
	defer a.sigMu.Unlock()
	sig := a.lastSignal
	if sig == "" {
		sig = strategy.SignalNone
	}
	return sig, a.lastSignalAt
}
