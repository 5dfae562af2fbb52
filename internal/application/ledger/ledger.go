package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alejandrodnm/sentibot/internal/domain"
	"github.com/alejandrodnm/sentibot/internal/ports"
	"github.com/google/uuid"
)

const (
	defaultMinPrice           = 5.0
	defaultStopLossPct        = 0.01
	defaultTakeProfitPct      = 0.05
	defaultTrailingActivation = 100.0
	defaultTrailingCallback   = 0.05
	defaultMaxHold            = 30 * time.Minute
	defaultMinScalpProfit     = 2.0
)

// Config holds the exit rules and the price floor.
type Config struct {
	MinPrice           float64       // precio <= MinPrice → REJECTED
	StopLossPct        float64       // 0.01 = -1%
	TakeProfitPct      float64       // 0.05 = +5%
	TrailingActivation float64       // USD de peak PnL para armar el trailing stop
	TrailingCallback   float64       // fracción del peak que se permite devolver
	MaxHold            time.Duration // edad a partir de la cual se cierra un ganador
	MinScalpProfit     float64       // PnL mínimo para el time exit
	Strict             bool          // invariantes rotos hacen panic (tests/debug)
}

// DefaultConfig devuelve las reglas de producción.
func DefaultConfig() Config {
	return Config{
		MinPrice:           defaultMinPrice,
		StopLossPct:        defaultStopLossPct,
		TakeProfitPct:      defaultTakeProfitPct,
		TrailingActivation: defaultTrailingActivation,
		TrailingCallback:   defaultTrailingCallback,
		MaxHold:            defaultMaxHold,
		MinScalpProfit:     defaultMinScalpProfit,
	}
}

// OpenResult is the outcome of an open request that did not fail.
type OpenResult int

const (
	Opened OpenResult = iota
	AlreadyOpen
	Rejected
)

func (r OpenResult) String() string {
	switch r {
	case Opened:
		return "OPENED"
	case AlreadyOpen:
		return "ALREADY_OPEN"
	case Rejected:
		return "REJECTED"
	}
	return fmt.Sprintf("OpenResult(%d)", int(r))
}

// Ledger owns the open paper positions and the realized PnL.
// It is driven from a single goroutine (the scheduler) and does no locking.
type Ledger struct {
	cfg       Config
	log       ports.TradeLog
	sink      ports.StatusSink
	observer  ports.CloseObserver
	positions map[string]*domain.Position
	priced    map[string]bool // tickers con precio en el último EvaluateExits
	realized  float64
	now       func() time.Time
}

// New creates a ledger. observer may be nil.
func New(cfg Config, log ports.TradeLog, sink ports.StatusSink, observer ports.CloseObserver) *Ledger {
	return &Ledger{
		cfg:       cfg,
		log:       log,
		sink:      sink,
		observer:  observer,
		positions: make(map[string]*domain.Position),
		priced:    make(map[string]bool),
		now:       time.Now,
	}
}

// SetClock replaces the wall clock. Used by tests.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// Restore rebuilds open positions and realized PnL by replaying the trade log.
// An OPEN without a later CLOSE for the same ticker is an open position. The peak
// PnL restarts from scratch.
func (l *Ledger) Restore(ctx context.Context) error {
	trades, err := l.log.Trades(ctx)
	if err != nil {
		return fmt.Errorf("ledger.Restore: %w", err)
	}

	l.positions = make(map[string]*domain.Position)
	l.realized = 0
	for _, t := range trades {
		switch {
		case t.Action == domain.ActionOpenLong || t.Action == domain.ActionOpenShort:
			side := domain.SideLong
			if t.Action == domain.ActionOpenShort {
				side = domain.SideShort
			}
			pos := domain.NewPosition(t.Ticker, side, t.Price, t.Price*t.Shares, t.Timestamp)
			pos.Shares = t.Shares
			pos.SignalID = t.SignalID
			l.positions[t.Ticker] = &pos
		case t.Action.IsClose():
			l.realized += t.RealizedPnL
			delete(l.positions, t.Ticker)
		}
	}

	if len(l.positions) > 0 {
		slog.Info("ledger: restored open positions from trade log",
			"positions", len(l.positions),
			"realized_pnl", fmt.Sprintf("%.2f", l.realized),
		)
	}
	return nil
}

// Open opens a position of size notional at price.
//
//   - price <= MinPrice → (Rejected, nil): the rejection is reported, nothing is logged.
//   - same side already open → (AlreadyOpen, nil): no-op.
//   - opposite side open → ErrOppositePosition: call Flip.
//
// The OPEN record is durable in the trade log before the position exists in memory.
func (l *Ledger) Open(ctx context.Context, ticker string, side domain.Side, price, notional float64, sigID domain.SignalID) (domain.Position, OpenResult, error) {
	if !l.validPrice(price) {
		l.reject(ticker, side, price)
		return domain.Position{}, Rejected, nil
	}

	if cur, ok := l.positions[ticker]; ok {
		if cur.Side == side {
			return *cur, AlreadyOpen, nil
		}
		return *cur, AlreadyOpen, fmt.Errorf("ledger.Open %s %s: %w", ticker, side, domain.ErrOppositePosition)
	}

	pos := domain.NewPosition(ticker, side, price, notional, l.now())
	pos.SignalID = sigID
	rec := domain.TradeRecord{
		ID:        uuid.New().String(),
		Timestamp: pos.OpenedAt,
		Ticker:    ticker,
		Action:    domain.OpenAction(side),
		Price:     price,
		Shares:    pos.Shares,
		SignalID:  sigID,
	}
	if err := l.log.AppendTrade(ctx, rec); err != nil {
		return domain.Position{}, Opened, fmt.Errorf("ledger.Open %s: %w", ticker, err)
	}

	l.positions[ticker] = &pos
	l.sink.Event(domain.StatusEvent{
		Kind:   domain.EventOpen,
		At:     pos.OpenedAt,
		Ticker: ticker,
		Side:   side,
		Price:  price,
		Shares: pos.Shares,
	})
	return pos, Opened, nil
}

// Close books the position at price. The CLOSE record is durable before the
// position is removed; afterwards the close observer is notified.
func (l *Ledger) Close(ctx context.Context, ticker string, price float64, reason domain.CloseReason) (domain.TradeRecord, error) {
	pos, ok := l.positions[ticker]
	if !ok {
		err := fmt.Errorf("ledger.Close %s: %w", ticker, domain.ErrNoPosition)
		if l.cfg.Strict {
			panic(err)
		}
		slog.Error("ledger: close without open position", "ticker", ticker, "reason", reason)
		return domain.TradeRecord{}, err
	}

	pnl := pos.PnLAt(price)
	rec := domain.TradeRecord{
		ID:          uuid.New().String(),
		Timestamp:   l.now(),
		Ticker:      ticker,
		Action:      domain.CloseAction(reason),
		Price:       price,
		Shares:      pos.Shares,
		RealizedPnL: pnl,
	}
	if err := l.log.AppendTrade(ctx, rec); err != nil {
		return domain.TradeRecord{}, fmt.Errorf("ledger.Close %s: %w", ticker, err)
	}

	l.realized += pnl
	delete(l.positions, ticker)
	delete(l.priced, ticker)

	l.sink.Event(domain.StatusEvent{
		Kind:   domain.EventClose,
		At:     rec.Timestamp,
		Ticker: ticker,
		Side:   pos.Side,
		Price:  price,
		Shares: pos.Shares,
		PnL:    pnl,
		Reason: reason,
	})

	if l.observer != nil {
		l.observer.OnPositionClosed(ctx, rec)
	}
	return rec, nil
}

// Flip closes the open position with FLIP_SIGNAL and opens side. With no open
// position it is a plain Open; with side already open it is a no-op. An invalid
// price rejects before anything is closed.
func (l *Ledger) Flip(ctx context.Context, ticker string, price float64, side domain.Side, notional float64, sigID domain.SignalID) (domain.Position, OpenResult, error) {
	if !l.validPrice(price) {
		l.reject(ticker, side, price)
		return domain.Position{}, Rejected, nil
	}

	cur, ok := l.positions[ticker]
	if ok && cur.Side != side {
		l.sink.Event(domain.StatusEvent{
			Kind:    domain.EventFlip,
			At:      l.now(),
			Ticker:  ticker,
			Side:    side,
			Price:   price,
			Message: fmt.Sprintf("Reversing %s from %s to %s", ticker, cur.Side, side),
		})
		if _, err := l.Close(ctx, ticker, price, domain.ReasonFlipSignal); err != nil {
			return domain.Position{}, Opened, err
		}
	}
	return l.Open(ctx, ticker, side, price, notional, sigID)
}

// EvaluateExits marks every open position and applies the exit rules. Tickers
// without a price this tick are skipped. Returns the closes performed.
func (l *Ledger) EvaluateExits(ctx context.Context, prices ports.PriceOracle) []domain.TradeRecord {
	l.priced = make(map[string]bool, len(l.positions))
	now := l.now()

	var closed []domain.TradeRecord
	for _, ticker := range l.tickers() {
		pos := l.positions[ticker]

		price, ok := prices.Price(ctx, ticker)
		if !ok {
			slog.Debug("ledger: no price, skipping exit evaluation", "ticker", ticker)
			continue
		}
		l.priced[ticker] = true

		pnl := pos.Mark(price)
		reason, detail := l.exitRule(*pos, pnl, pos.PctChangeAt(price), now)
		if reason == "" {
			continue
		}

		slog.Info("ledger: exit rule fired", "ticker", ticker, "reason", reason, "detail", detail)
		rec, err := l.Close(ctx, ticker, price, reason)
		if err != nil {
			if !errors.Is(err, domain.ErrNoPosition) {
				slog.Warn("ledger: close failed, will retry next tick", "ticker", ticker, "err", err)
			}
			continue
		}
		closed = append(closed, rec)
	}
	return closed
}

// Position returns the open position for ticker.
func (l *Ledger) Position(ticker string) (domain.Position, bool) {
	p, ok := l.positions[ticker]
	if !ok {
		return domain.Position{}, false
	}
	return *p, true
}

// Positions returns every open position, sorted by ticker.
func (l *Ledger) Positions() []domain.Position {
	out := make([]domain.Position, 0, len(l.positions))
	for _, t := range l.tickers() {
		out = append(out, *l.positions[t])
	}
	return out
}

// Realized returns the realized PnL since start (or since the replayed log).
func (l *Ledger) Realized() float64 {
	return l.realized
}

// Marks returns the dashboard rows using the prices of the last EvaluateExits.
func (l *Ledger) Marks() ([]domain.PositionMark, float64) {
	marks := make([]domain.PositionMark, 0, len(l.positions))
	unrealized := 0.0
	for _, t := range l.tickers() {
		pos := *l.positions[t]
		m := domain.PositionMark{Position: pos}
		if l.priced[t] {
			m.Priced = true
			m.Current = pos.LastPrice
			m.Unrealized = pos.PnLAt(pos.LastPrice)
			unrealized += m.Unrealized
		}
		marks = append(marks, m)
	}
	return marks, unrealized
}

func (l *Ledger) validPrice(price float64) bool {
	return price > 0 && price > l.cfg.MinPrice
}

func (l *Ledger) reject(ticker string, side domain.Side, price float64) {
	l.sink.Event(domain.StatusEvent{
		Kind:    domain.EventRejected,
		At:      l.now(),
		Ticker:  ticker,
		Side:    side,
		Price:   price,
		Message: fmt.Sprintf("price $%.2f at or below $%.2f floor (penny stock risk)", price, l.cfg.MinPrice),
	})
}

func (l *Ledger) tickers() []string {
	out := make([]string, 0, len(l.positions))
	for t := range l.positions {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
