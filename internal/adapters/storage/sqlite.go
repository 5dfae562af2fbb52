package storage

// sqlite.go: feed de señales y trade log en un único archivo SQLite.
//
// Estrategia:
//   - `signals`: filas append-only que escribe el collector. Se toleran duplicados;
//     el consumidor deduplica por (timestamp, ticker).
//   - `trades`: trade log append-only. Cada INSERT es su propia transacción y
//     AppendTrade solo devuelve nil tras el commit, así que el ledger puede
//     confirmar la operación después de escribirla.
//   - Prune al arrancar: señales > 30d. El trade log nunca se poda.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/sentibot/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS signals (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp  TEXT NOT NULL,
    ticker     TEXT NOT NULL,
    signal     TEXT NOT NULL,
    score      REAL NOT NULL DEFAULT 0,
    news_score REAL NOT NULL DEFAULT 0,
    diversity  REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS trades (
    seq          INTEGER PRIMARY KEY AUTOINCREMENT,
    id           TEXT NOT NULL UNIQUE,
    timestamp    TEXT NOT NULL,
    ticker       TEXT NOT NULL,
    action       TEXT NOT NULL,
    price        REAL NOT NULL,
    shares       REAL NOT NULL,
    pnl_realized REAL NOT NULL DEFAULT 0,
    signal_id    TEXT
);

CREATE INDEX IF NOT EXISTS idx_signals_ts    ON signals(timestamp);
CREATE INDEX IF NOT EXISTS idx_trades_action ON trades(action);
`

const retentionSignals = 30 * 24 * time.Hour

// SQLiteStorage implementa ports.SignalFeed, ports.SignalRecorder y ports.TradeLog
// usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada y aplica el schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// AppendSignal añade una fila al feed.
func (s *SQLiteStorage) AppendSignal(ctx context.Context, sig domain.Signal) error {
	label := sig.Label
	if label == "" {
		label = string(sig.Kind)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO signals (timestamp, ticker, signal, score, news_score, diversity)
		VALUES (?, ?, ?, ?, ?, ?)`,
		formatTime(sig.Timestamp), domain.NormalizeTicker(sig.Ticker), label,
		sig.Score, sig.NewsScore, sig.Diversity,
	)
	if err != nil {
		return fmt.Errorf("storage.AppendSignal: %w", err)
	}
	return nil
}

// RecentSignals devuelve las últimas limit filas del feed en orden de inserción.
func (s *SQLiteStorage) RecentSignals(ctx context.Context, limit int) ([]domain.Signal, error) {
	if limit <= 0 {
		limit = -1 // sin límite en SQLite
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, ticker, signal, score, news_score, diversity FROM (
			SELECT id, timestamp, ticker, signal, score, news_score, diversity
			FROM signals ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentSignals: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Signal
	for rows.Next() {
		var sig domain.Signal
		var ts string
		if err := rows.Scan(&ts, &sig.Ticker, &sig.Label, &sig.Score, &sig.NewsScore, &sig.Diversity); err != nil {
			return nil, fmt.Errorf("storage.RecentSignals: scan row: %w", err)
		}
		sig.Timestamp, err = parseTime(ts)
		if err != nil {
			return nil, fmt.Errorf("storage.RecentSignals: timestamp %q: %w", ts, err)
		}
		sig.Kind = domain.ParseSignalKind(sig.Label)
		out = append(out, sig)
	}
	return out, rows.Err()
}

// AllSignalIDs devuelve la identidad de cada fila del feed.
func (s *SQLiteStorage) AllSignalIDs(ctx context.Context) ([]domain.SignalID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT timestamp, ticker FROM signals ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("storage.AllSignalIDs: query: %w", err)
	}
	defer rows.Close()

	var ids []domain.SignalID
	for rows.Next() {
		var ts, ticker string
		if err := rows.Scan(&ts, &ticker); err != nil {
			return nil, fmt.Errorf("storage.AllSignalIDs: scan row: %w", err)
		}
		at, err := parseTime(ts)
		if err != nil {
			continue // fila ilegible: no puede deduplicarse, tampoco se podrá consumir
		}
		ids = append(ids, domain.Signal{Timestamp: at, Ticker: ticker}.ID())
	}
	return ids, rows.Err()
}

// AppendTrade escribe un registro del trade log. Devuelve nil solo tras el commit.
func (s *SQLiteStorage) AppendTrade(ctx context.Context, rec domain.TradeRecord) error {
	var signalID *string
	if rec.SignalID != "" {
		v := string(rec.SignalID)
		signalID = &v
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (id, timestamp, ticker, action, price, shares, pnl_realized, signal_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, formatTime(rec.Timestamp), rec.Ticker, string(rec.Action),
		rec.Price, rec.Shares, rec.RealizedPnL, signalID,
	)
	if err != nil {
		return fmt.Errorf("storage.AppendTrade: %s %s: %w", rec.Action, rec.Ticker, err)
	}
	return nil
}

// Trades devuelve el trade log completo en orden de inserción.
func (s *SQLiteStorage) Trades(ctx context.Context) ([]domain.TradeRecord, error) {
	return s.queryTrades(ctx, `
		SELECT id, timestamp, ticker, action, price, shares, pnl_realized, signal_id
		FROM trades ORDER BY seq ASC`)
}

// ClosedTrades devuelve los últimos limit cierres en orden cronológico.
func (s *SQLiteStorage) ClosedTrades(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.queryTrades(ctx, `
		SELECT id, timestamp, ticker, action, price, shares, pnl_realized, signal_id FROM (
			SELECT seq, id, timestamp, ticker, action, price, shares, pnl_realized, signal_id
			FROM trades WHERE action LIKE 'CLOSE_%' ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC`, limit)
}

// ClosedCount devuelve el número total de cierres.
func (s *SQLiteStorage) ClosedCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trades WHERE action LIKE 'CLOSE_%'`,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage.ClosedCount: %w", err)
	}
	return n, nil
}

// TradedSignalIDs devuelve los IDs de señal que ya produjeron una operación.
func (s *SQLiteStorage) TradedSignalIDs(ctx context.Context) ([]domain.SignalID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT signal_id FROM trades WHERE signal_id IS NOT NULL AND signal_id != ''`)
	if err != nil {
		return nil, fmt.Errorf("storage.TradedSignalIDs: query: %w", err)
	}
	defer rows.Close()

	var ids []domain.SignalID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("storage.TradedSignalIDs: scan row: %w", err)
		}
		ids = append(ids, domain.SignalID(id))
	}
	return ids, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

func (s *SQLiteStorage) queryTrades(ctx context.Context, query string, args ...any) ([]domain.TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.queryTrades: %w", err)
	}
	defer rows.Close()

	var out []domain.TradeRecord
	for rows.Next() {
		var rec domain.TradeRecord
		var ts, action string
		var signalID sql.NullString
		if err := rows.Scan(&rec.ID, &ts, &rec.Ticker, &action, &rec.Price,
			&rec.Shares, &rec.RealizedPnL, &signalID); err != nil {
			return nil, fmt.Errorf("storage.queryTrades: scan row: %w", err)
		}
		rec.Timestamp, err = parseTime(ts)
		if err != nil {
			return nil, fmt.Errorf("storage.queryTrades: timestamp %q: %w", ts, err)
		}
		rec.Action = domain.TradeAction(action)
		rec.SignalID = domain.SignalID(signalID.String)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// pruneOld elimina señales antiguas para mantener la DB ligera.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := formatTime(time.Now().Add(-retentionSignals))
	s.db.ExecContext(ctx, `DELETE FROM signals WHERE timestamp < ?`, cutoff)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
