// Package sqlite backs the ledger with a single-file sqlite database via the
// pure-Go modernc driver, so deployments need no cgo and no external daemon.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	"bn-scalp-bot/internal/ledger"
)

const schemaVersion = "1"

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Writes come from both the signal loop and the reconcile loop; sqlite
	// serializes them on a single connection.
	db.SetMaxOpenConns(1)
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS pending_orders (
			order_id          INTEGER PRIMARY KEY,
			symbol            TEXT NOT NULL,
			side              TEXT NOT NULL,
			price             REAL NOT NULL,
			quantity          REAL NOT NULL,
			strategy          TEXT NOT NULL,
			take_profit_pct   REAL NOT NULL,
			stop_loss_pct     REAL NOT NULL,
			vwap_at_entry     REAL NOT NULL DEFAULT 0,
			has_vwap_at_entry INTEGER NOT NULL DEFAULT 0,
			created_at_ms     INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS active_positions (
			order_id          INTEGER PRIMARY KEY,
			symbol            TEXT NOT NULL,
			side              TEXT NOT NULL,
			entry_price       REAL NOT NULL,
			quantity          REAL NOT NULL,
			strategy          TEXT NOT NULL,
			take_profit_pct   REAL NOT NULL,
			stop_loss_pct     REAL NOT NULL,
			vwap_at_entry     REAL NOT NULL DEFAULT 0,
			has_vwap_at_entry INTEGER NOT NULL DEFAULT 0,
			opened_at_ms      INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS closed_positions (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id     INTEGER NOT NULL,
			symbol       TEXT NOT NULL,
			side         TEXT NOT NULL,
			entry_price  REAL NOT NULL,
			exit_price   REAL NOT NULL,
			quantity     REAL NOT NULL,
			pnl          REAL NOT NULL,
			reason       TEXT NOT NULL,
			strategy     TEXT NOT NULL,
			opened_at_ms INTEGER NOT NULL,
			closed_at_ms INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_closed_positions_closed_at ON closed_positions (closed_at_ms)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	_, err := db.Exec(
		`INSERT INTO kv (key, value) VALUES ('schema_version', ?) ON CONFLICT(key) DO NOTHING`,
		schemaVersion,
	)
	return err
}

func (s *Store) InsertPending(ctx context.Context, o ledger.PendingOrder) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO pending_orders
			(order_id, symbol, side, price, quantity, strategy,
			 take_profit_pct, stop_loss_pct, vwap_at_entry, has_vwap_at_entry, created_at_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.OrderID, o.Symbol, string(o.Side), o.Price, o.Quantity, o.Strategy,
		o.TakeProfitPct, o.StopLossPct, o.VWAPAtEntry, boolToInt(o.HasVWAPAtEntry),
		o.CreatedAt.UnixMilli())
	return err
}

func (s *Store) ListPending(ctx context.Context) ([]ledger.PendingOrder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT order_id, symbol, side, price, quantity, strategy,
			take_profit_pct, stop_loss_pct, vwap_at_entry, has_vwap_at_entry, created_at_ms
		 FROM pending_orders ORDER BY created_at_ms`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.PendingOrder
	for rows.Next() {
		var o ledger.PendingOrder
		var side string
		var hasVWAP int
		var createdMS int64
		if err := rows.Scan(&o.OrderID, &o.Symbol, &side, &o.Price, &o.Quantity, &o.Strategy,
			&o.TakeProfitPct, &o.StopLossPct, &o.VWAPAtEntry, &hasVWAP, &createdMS); err != nil {
			return nil, err
		}
		o.Side = ledger.Side(side)
		o.HasVWAPAtEntry = hasVWAP != 0
		o.CreatedAt = time.UnixMilli(createdMS).UTC()
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) DeletePending(ctx context.Context, orderID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_orders WHERE order_id = ?`, orderID)
	return err
}

func (s *Store) UpsertActive(ctx context.Context, p ledger.ActivePosition) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO active_positions
			(order_id, symbol, side, entry_price, quantity, strategy,
			 take_profit_pct, stop_loss_pct, vwap_at_entry, has_vwap_at_entry, opened_at_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.OrderID, p.Symbol, string(p.Side), p.EntryPrice, p.Quantity, p.Strategy,
		p.TakeProfitPct, p.StopLossPct, p.VWAPAtEntry, boolToInt(p.HasVWAPAtEntry),
		p.OpenedAt.UnixMilli())
	return err
}

func (s *Store) ListActive(ctx context.Context) ([]ledger.ActivePosition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT order_id, symbol, side, entry_price, quantity, strategy,
			take_profit_pct, stop_loss_pct, vwap_at_entry, has_vwap_at_entry, opened_at_ms
		 FROM active_positions ORDER BY opened_at_ms`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.ActivePosition
	for rows.Next() {
		var p ledger.ActivePosition
		var side string
		var hasVWAP int
		var openedMS int64
		if err := rows.Scan(&p.OrderID, &p.Symbol, &side, &p.EntryPrice, &p.Quantity, &p.Strategy,
			&p.TakeProfitPct, &p.StopLossPct, &p.VWAPAtEntry, &hasVWAP, &openedMS); err != nil {
			return nil, err
		}
		p.Side = ledger.Side(side)
		p.HasVWAPAtEntry = hasVWAP != 0
		p.OpenedAt = time.UnixMilli(openedMS).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) DeleteActive(ctx context.Context, orderID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM active_positions WHERE order_id = ?`, orderID)
	return err
}

func (s *Store) CloseActive(ctx context.Context, p ledger.ClosedPosition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO closed_positions
			(order_id, symbol, side, entry_price, exit_price, quantity, pnl, reason, strategy,
			 opened_at_ms, closed_at_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.OrderID, p.Symbol, string(p.Side), p.EntryPrice, p.ExitPrice, p.Quantity, p.PnL,
		p.Reason, p.Strategy, p.OpenedAt.UnixMilli(), p.ClosedAt.UnixMilli()); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM active_positions WHERE order_id = ?`, p.OrderID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) AppendClosed(ctx context.Context, p ledger.ClosedPosition) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO closed_positions
			(order_id, symbol, side, entry_price, exit_price, quantity, pnl, reason, strategy,
			 opened_at_ms, closed_at_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.OrderID, p.Symbol, string(p.Side), p.EntryPrice, p.ExitPrice, p.Quantity, p.PnL,
		p.Reason, p.Strategy, p.OpenedAt.UnixMilli(), p.ClosedAt.UnixMilli())
	return err
}

func (s *Store) ListClosed(ctx context.Context, limit int) ([]ledger.ClosedPosition, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT order_id, symbol, side, entry_price, exit_price, quantity, pnl, reason, strategy,
			opened_at_ms, closed_at_ms
		 FROM closed_positions ORDER BY closed_at_ms DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.ClosedPosition
	for rows.Next() {
		var p ledger.ClosedPosition
		var side string
		var openedMS, closedMS int64
		if err := rows.Scan(&p.OrderID, &p.Symbol, &side, &p.EntryPrice, &p.ExitPrice, &p.Quantity,
			&p.PnL, &p.Reason, &p.Strategy, &openedMS, &closedMS); err != nil {
			return nil, err
		}
		p.Side = ledger.Side(side)
		p.OpenedAt = time.UnixMilli(openedMS).UTC()
		p.ClosedAt = time.UnixMilli(closedMS).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) TotalPnL(ctx context.Context) (float64, error) {
	var total sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `SELECT SUM(pnl) FROM closed_positions`).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total.Float64, nil
}

func (s *Store) DailyStats(ctx context.Context, day time.Time) (ledger.DayStats, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	var stats ledger.DayStats
	var pnl sql.NullFloat64
	var wins sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), SUM(pnl), SUM(CASE WHEN pnl > 0 THEN 1 ELSE 0 END)
		 FROM closed_positions WHERE closed_at_ms >= ? AND closed_at_ms < ?`,
		start.UnixMilli(), end.UnixMilli()).Scan(&stats.Trades, &pnl, &wins)
	if err != nil {
		return ledger.DayStats{}, err
	}
	stats.PnL = pnl.Float64
	stats.Wins = int(wins.Int64)
	return stats, nil
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
