// Package app wires the configuration into a running bot: one market feed,
// one strategy, one position manager and the ledger underneath them all. The
// signal loop is the only writer of strategy state.
package app

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"bn-scalp-bot/internal/alerts"
	"bn-scalp-bot/internal/binance/ws"
	"bn-scalp-bot/internal/config"
	"bn-scalp-bot/internal/exec"
	"bn-scalp-bot/internal/gateway"
	"bn-scalp-bot/internal/history"
	"bn-scalp-bot/internal/ledger"
	"bn-scalp-bot/internal/ledger/sqlite"
	"bn-scalp-bot/internal/market"
	"bn-scalp-bot/internal/metrics"
	"bn-scalp-bot/internal/position"
	"bn-scalp-bot/internal/strategy"

	"go.uber.org/zap"
)

const intentKeyFormat = "20060102T150405Z"

type App struct {
	cfg       *config.Config
	log       *zap.Logger
	store     ledger.Store
	ws        *ws.Client
	feed      *market.Feed
	gateway   gateway.Gateway
	executor  *exec.Executor
	strategy  strategy.Strategy
	positions *position.Manager
	metrics   *metrics.Metrics
	prom      *metrics.Prometheus
	alerts    *alerts.Telegram
	history   *history.Writer

	opsMu          sync.RWMutex
	paused         bool
	operatorWarned bool

	sigMu        sync.Mutex
	lastSignal   strategy.Signal
	lastSignalAt time.Time
	wasHalted    bool
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Ledger.SQLitePath), 0o755); err != nil {
		return nil, err
	}
	store, err := sqlite.New(cfg.Ledger.SQLitePath)
	if err != nil {
		return nil, err
	}
	wsURL := strings.TrimRight(cfg.WS.URL, "/") + "/ws"
	wsClient := ws.New(wsURL, cfg.WS.ReconnectDelay, cfg.WS.PingInterval, cfg.WS.MaxReconnects, log)
	feed := market.NewFeed(wsClient, cfg.Trading.Symbol, log)

	var gw gateway.Gateway
	if cfg.Trading.DryRun {
		gw = gateway.NewSimulator(feed, log)
		log.Info("dry run: orders are simulated against the live feed")
	} else {
		apiKey := strings.TrimSpace(os.Getenv("BINANCE_API_KEY"))
		if apiKey == "" {
			_ = store.Close()
			return nil, errors.New("BINANCE_API_KEY is required")
		}
		secret := strings.TrimSpace(os.Getenv("BINANCE_API_SECRET"))
		if secret == "" {
			_ = store.Close()
			return nil, errors.New("BINANCE_API_SECRET is required")
		}
		gw = gateway.NewBinance(cfg.REST.BaseURL, apiKey, secret, cfg.REST.Timeout, log)
	}
	executor := exec.New(gw, store, log)

	var strat strategy.Strategy
	switch cfg.Trading.Strategy {
	case config.StrategyOBI:
		strat = strategy.NewOBIScalper(cfg.OBI)
	case config.StrategyVWAP:
		strat = strategy.NewVWAPReversion(cfg.VWAP, log)
	default:
		_ = store.Close()
		return nil, fmt.Errorf("unknown strategy %q", cfg.Trading.Strategy)
	}
	feed.OnDepth(strat.UpdateDepth)
	feed.OnTrade(strat.UpdateTrade)
	feed.OnCandle(strat.UpdateCandle)

	var prom *metrics.Prometheus
	m := metrics.NewNoop()
	if cfg.Metrics.Enabled {
		prom = metrics.NewPrometheus()
		m = prom.Metrics
	}
	alertsClient := alerts.NewTelegram(cfg.Telegram, log)
	historyWriter, err := history.New(cfg.History, log)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("history writer: %w", err)
	}
	positions := position.NewManager(store, executor, m, alertsClient, cfg.Trading.ReconcileInterval, log)
	positions.OnClosed(historyWriter.EnqueueClosedTrade)

	return &App{
		cfg:       cfg,
		log:       log,
		store:     store,
		ws:        wsClient,
		feed:      feed,
		gateway:   gw,
		executor:  executor,
		strategy:  strat,
		positions: positions,
		metrics:   m,
		prom:      prom,
		alerts:    alertsClient,
		history:   historyWriter,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	defer a.store.Close()
	defer a.history.Close()

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	// Cancel and join before the store and history close underneath the
	// workers. Deferred after the Close calls above so it runs first.
	defer func() {
		cancel()
		wg.Wait()
	}()

	a.restoreSnapshot(ctx)
	a.history.Start(ctx)
	a.startOperator(ctx, &wg)

	var srv *http.Server
	if a.cfg.Metrics.Enabled {
		srv = a.startHTTP()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	errs := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := a.feed.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs <- fmt.Errorf("market feed: %w", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := a.positions.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs <- fmt.Errorf("position manager: %w", err)
		}
	}()

	a.log.Info("bot running",
		zap.String("symbol", a.feed.Symbol()),
		zap.String("strategy", a.strategy.Name()),
		zap.Bool("dry_run", a.cfg.Trading.DryRun))

	signalTicker := time.NewTicker(a.cfg.Trading.SignalInterval)
	defer signalTicker.Stop()
	snapshotTicker := time.NewTicker(a.cfg.Trading.SnapshotInterval)
	defer snapshotTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.saveSnapshot(context.Background())
			return ctx.Err()
		case err := <-errs:
			a.saveSnapshot(context.Background())
			a.notify(context.Background(), fmt.Sprintf("bot stopping: %v", err))
			return err
		case <-signalTicker.C:
			if err := a.tick(ctx); err != nil {
				a.log.Warn("signal tick failed", zap.Error(err))
			}
		case <-snapshotTicker.C:
			a.saveSnapshot(ctx)
		}
	}
}

// tick is one pass of the signal loop: roll the session if due, record the
// indicator state, then place an entry when the strategy signals and the
// position gate allows it.
func (a *App) tick(ctx context.Context) error {
	now := time.Now().UTC()
	a.strategy.CheckSessionReset(now)
	a.trackHalt()
	a.recordIndicators(now)

	sig := a.strategy.Signal()
	a.sigMu.Lock()
	a.lastSignal = sig
	a.lastSignalAt = now
	a.sigMu.Unlock()

	if sig == strategy.SignalNone {
		return nil
	}
	if a.isPaused() {
		return nil
	}
	open, err := a.positions.OpenCount(ctx)
	if err != nil {
		return err
	}
	if open >= a.cfg.Trading.MaxOpenPositions {
		return nil
	}
	mid, ok := a.feed.Mid()
	if !ok {
		return nil
	}
	quantity := a.cfg.Trading.QuoteSize / mid
	side := ledger.SideBuy
	if sig == strategy.SignalShort {
		side = ledger.SideSell
	}
	// Second-granular intent key: a crash-and-restart replaying the same
	// signal within the second dedupes to the one placed order.
	intentKey := fmt.Sprintf("%s:%s:%s", a.feed.Symbol(), side, now.Format(intentKeyFormat))
	order, err := a.executor.PlaceEntry(ctx, intentKey, a.feed.Symbol(), string(side), mid, quantity)
	if err != nil {
		a.metrics.OrdersFailed.Inc()
		return fmt.Errorf("entry placement: %w", err)
	}
	a.metrics.OrdersPlaced.Inc()

	vwapAtEntry, hasVWAP := a.strategy.EntryVWAP()
	pending := ledger.PendingOrder{
		OrderID:        order.OrderID,
		Symbol:         a.feed.Symbol(),
		Side:           side,
		Price:          mid,
		Quantity:       quantity,
		Strategy:       a.strategy.Name(),
		TakeProfitPct:  a.strategy.TakeProfitPct(),
		StopLossPct:    a.strategy.StopLossPct(),
		VWAPAtEntry:    vwapAtEntry,
		HasVWAPAtEntry: hasVWAP,
		CreatedAt:      now,
	}
	if err := a.positions.RegisterOrder(ctx, pending); err != nil {
		return fmt.Errorf("pending order registration: %w", err)
	}
	a.log.Info("entry placed",
		zap.Int64("order_id", order.OrderID),
		zap.String("signal", string(sig)),
		zap.Float64("price", mid),
		zap.Float64("quantity", quantity))
	return nil
}

// trackHalt counts false-to-true transitions of the volatility circuit
// breaker so the metric reflects halt events, not polls.
func (a *App) trackHalt() {
	halter, ok := a.strategy.(interface{ Halted() bool })
	if !ok {
		return
	}
	halted := halter.Halted()
	a.sigMu.Lock()
	fired := halted && !a.wasHalted
	a.wasHalted = halted
	a.sigMu.Unlock()
	if fired {
		a.metrics.VolatilityHalts.Inc()
		a.log.Warn("volatility halt engaged")
		a.notify(context.Background(), "volatility halt engaged: entries suspended")
	}
}

func (a *App) notify(ctx context.Context, message string) {
	if a.alerts == nil || !a.alerts.Enabled() {
		return
	}
	if err := a.alerts.Send(ctx, message); err != nil {
		a.log.Warn("notification failed", zap.Error(err))
	}
}

func (a *App) recordIndicators(now time.Time) {
	if a.history == nil {
		return
	}
	snap := a.strategy.IndicatorSnapshot()
	price := snapFloat(snap, "current_price")
	if price == 0 {
		price, _ = a.feed.LastPrice(a.feed.Symbol())
	}
	a.history.EnqueueIndicators(history.IndicatorPoint{
		Time:       now,
		Symbol:     a.feed.Symbol(),
		Strategy:   a.strategy.Name(),
		Price:      price,
		VWAP:       snapFloat(snap, "vwap"),
		UpperBand:  snapFloat(snap, "upper_band"),
		LowerBand:  snapFloat(snap, "lower_band"),
		ADX:        snapFloat(snap, "adx"),
		HasADX:     snapBool(snap, "adx_valid"),
		OBI:        snapFloat(snap, "obi"),
		HasOBI:     snapBool(snap, "obi_valid"),
		TradeCount: snapInt(snap, "trade_count"),
		Halted:     snapBool(snap, "halted"),
	})
}

func (a *App) saveSnapshot(ctx context.Context) {
	vwap, ok := a.strategy.(*strategy.VWAPReversion)
	if !ok {
		return
	}
	data, err := vwap.SnapshotState()
	if err != nil {
		a.log.Warn("strategy snapshot failed", zap.Error(err))
		return
	}
	if err := a.store.Set(ctx, strategy.SnapshotKey, base64.StdEncoding.EncodeToString(data)); err != nil {
		a.log.Warn("strategy snapshot persist failed", zap.Error(err))
	}
}

func (a *App) restoreSnapshot(ctx context.Context) {
	vwap, ok := a.strategy.(*strategy.VWAPReversion)
	if !ok {
		return
	}
	raw, found, err := a.store.Get(ctx, strategy.SnapshotKey)
	if err != nil || !found {
		return
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		a.log.Warn("strategy snapshot corrupt", zap.Error(err))
		return
	}
	if err := vwap.RestoreState(data); err != nil {
		a.log.Warn("strategy snapshot restore failed", zap.Error(err))
		return
	}
	a.log.Info("strategy state restored")
}

func (a *App) startHTTP() *http.Server {
	mux := http.NewServeMux()
	if a.prom != nil {
		mux.Handle("/metrics", a.prom.Handler())
	}
	mux.Handle("/status", a.statusHandler())
	srv := &http.Server{Addr: a.cfg.Metrics.Listen, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Warn("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}

func snapFloat(snap map[string]any, key string) float64 {
	v, _ := snap[key].(float64)
	return v
}

func snapBool(snap map[string]any, key string) bool {
	v, _ := snap[key].(bool)
	return v
}

func snapInt(snap map[string]any, key string) int {
	v, _ := snap[key].(int)
	return v
}
