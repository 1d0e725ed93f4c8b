package position

import "bn-scalp-bot/internal/ledger"

// Exit reasons recorded on closed positions.
const (
	ReasonProfitTarget  = "PROFIT_TARGET"
	ReasonStopLoss      = "STOP_LOSS"
	ReasonVWAPReversion = "VWAP_REVERSION"
)

// exitReason evaluates a position against the current price. Conditions are
// checked in priority order: profit target, stop loss, then VWAP reversion
// (only for positions that captured a VWAP at entry). The first match wins.
func exitReason(p ledger.ActivePosition, price float64) (string, bool) {
	if price <= 0 || p.EntryPrice <= 0 {
		return "", false
	}
	switch p.Side {
	case ledger.SideBuy:
		if price >= p.EntryPrice*(1+p.TakeProfitPct) {
			return ReasonProfitTarget, true
		}
		if price <= p.EntryPrice*(1-p.StopLossPct) {
			return ReasonStopLoss, true
		}
		if p.HasVWAPAtEntry && price >= p.VWAPAtEntry {
			return ReasonVWAPReversion, true
		}
	case ledger.SideSell:
		if price <= p.EntryPrice*(1-p.TakeProfitPct) {
			return ReasonProfitTarget, true
		}
		if price >= p.EntryPrice*(1+p.StopLossPct) {
			return ReasonStopLoss, true
		}
		if p.HasVWAPAtEntry && price <= p.VWAPAtEntry {
			return ReasonVWAPReversion, true
		}
	}
	return "", false
}

// realizedPnL books the round trip in quote currency.
func realizedPnL(p ledger.ActivePosition, exitPrice float64) float64 {
	if p.Side == ledger.SideBuy {
		return (exitPrice - p.EntryPrice) * p.Quantity
	}
	return (p.EntryPrice - exitPrice) * p.Quantity
}
