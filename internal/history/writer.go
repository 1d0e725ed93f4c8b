// Package history streams indicator snapshots and closed trades into
// TimescaleDB for offline analysis. Writes are queued and flushed by a single
// goroutine; a full queue drops samples rather than stalling the trading
// loops.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"bn-scalp-bot/internal/config"
	"bn-scalp-bot/internal/ledger"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

// IndicatorPoint is one observation of the strategy's indicator state.
type IndicatorPoint struct {
	Time       time.Time
	Symbol     string
	Strategy   string
	Price      float64
	VWAP       float64
	UpperBand  float64
	LowerBand  float64
	ADX        float64
	HasADX     bool
	OBI        float64
	HasOBI     bool
	TradeCount int
	Halted     bool
}

type Writer struct {
	db          *sql.DB
	log         *zap.Logger
	schema      string
	minInterval time.Duration
	now         func() time.Time

	indicators chan IndicatorPoint
	trades     chan ledger.ClosedPosition
	started    atomic.Bool
	dropInd    atomic.Uint64
	dropTrade  atomic.Uint64

	mu        sync.Mutex
	lastPoint time.Time
}

func New(cfg config.HistoryConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("history dsn is required")
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	writer := &Writer{
		db:          db,
		log:         log,
		schema:      schema,
		minInterval: cfg.MinInterval,
		now:         time.Now,
		indicators:  make(chan IndicatorPoint, queueSize),
		trades:      make(chan ledger.ClosedPosition, queueSize),
	}
	if err := writer.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return writer, nil
}

func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

// EnqueueIndicators throttles to one point per minInterval; the indicator
// stream ticks far faster than the table needs.
func (w *Writer) EnqueueIndicators(point IndicatorPoint) {
	if w == nil || w.indicators == nil {
		return
	}
	now := w.now()
	w.mu.Lock()
	if w.minInterval > 0 && !w.lastPoint.IsZero() && now.Sub(w.lastPoint) < w.minInterval {
		w.mu.Unlock()
		return
	}
	w.lastPoint = now
	w.mu.Unlock()
	if point.Time.IsZero() {
		point.Time = now.UTC()
	}
	select {
	case w.indicators <- point:
	default:
		if w.dropInd.Add(1) == 1 && w.log != nil {
			w.log.Warn("history indicator queue full")
		}
	}
}

func (w *Writer) EnqueueClosedTrade(trade ledger.ClosedPosition) {
	if w == nil || w.trades == nil {
		return
	}
	select {
	case w.trades <- trade:
	default:
		if w.dropTrade.Add(1) == 1 && w.log != nil {
			w.log.Warn("history trade queue full")
		}
	}
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case point := <-w.indicators:
			w.writeIndicators(ctx, point)
		case trade := <-w.trades:
			w.writeTrade(ctx, trade)
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.db == nil {
		return errors.New("history db not initialized")
	}
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		symbol TEXT NOT NULL,
		strategy TEXT NOT NULL,
		price DOUBLE PRECISION NOT NULL,
		vwap DOUBLE PRECISION NOT NULL,
		upper_band DOUBLE PRECISION NOT NULL,
		lower_band DOUBLE PRECISION NOT NULL,
		adx DOUBLE PRECISION NOT NULL,
		has_adx BOOLEAN NOT NULL,
		obi DOUBLE PRECISION NOT NULL,
		has_obi BOOLEAN NOT NULL,
		trade_count INTEGER NOT NULL,
		halted BOOLEAN NOT NULL
	)`, w.table("indicator_history"))); err != nil {
		return err
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		order_id BIGINT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		strategy TEXT NOT NULL,
		entry_price DOUBLE PRECISION NOT NULL,
		exit_price DOUBLE PRECISION NOT NULL,
		quantity DOUBLE PRECISION NOT NULL,
		pnl DOUBLE PRECISION NOT NULL,
		reason TEXT NOT NULL,
		opened_at TIMESTAMPTZ NOT NULL
	)`, w.table("closed_trades"))); err != nil {
		return err
	}
	if err := w.exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		if w.log != nil {
			w.log.Warn("timescale extension ensure failed", zap.Error(err))
		}
		return nil
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("indicator_history"))); err != nil && w.log != nil {
		w.log.Warn("indicator_history hypertable create failed", zap.Error(err))
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("closed_trades"))); err != nil && w.log != nil {
		w.log.Warn("closed_trades hypertable create failed", zap.Error(err))
	}
	return nil
}

func (w *Writer) writeIndicators(ctx context.Context, point IndicatorPoint) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, symbol, strategy, price, vwap, upper_band, lower_band, adx, has_adx,
		obi, has_obi, trade_count, halted
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`, w.table("indicator_history"))
	if _, err := w.db.ExecContext(ctx, query,
		point.Time,
		point.Symbol,
		point.Strategy,
		point.Price,
		point.VWAP,
		point.UpperBand,
		point.LowerBand,
		point.ADX,
		point.HasADX,
		point.OBI,
		point.HasOBI,
		point.TradeCount,
		point.Halted,
	); err != nil && w.log != nil {
		w.log.Warn("indicator history insert failed", zap.Error(err))
	}
}

func (w *Writer) writeTrade(ctx context.Context, trade ledger.ClosedPosition) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, order_id, symbol, side, strategy, entry_price, exit_price, quantity, pnl, reason, opened_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`, w.table("closed_trades"))
	if _, err := w.db.ExecContext(ctx, query,
		trade.ClosedAt,
		trade.OrderID,
		trade.Symbol,
		string(trade.Side),
		trade.Strategy,
		trade.EntryPrice,
		trade.ExitPrice,
		trade.Quantity,
		trade.PnL,
		trade.Reason,
		trade.OpenedAt,
	); err != nil && w.log != nil {
		w.log.Warn("closed trade insert failed", zap.Error(err))
	}
}

func (w *Writer) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	return w.schema + "." + name
}
