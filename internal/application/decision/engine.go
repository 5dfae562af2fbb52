// Package decision convierte señales del feed en aperturas y flips del ledger.
package decision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/sentibot/internal/application/ledger"
	"github.com/alejandrodnm/sentibot/internal/dedup"
	"github.com/alejandrodnm/sentibot/internal/domain"
	"github.com/alejandrodnm/sentibot/internal/ports"
)

const defaultSeenCapacity = 5000

// PositionBook es la parte del ledger que usa el engine.
type PositionBook interface {
	Position(ticker string) (domain.Position, bool)
	Open(ctx context.Context, ticker string, side domain.Side, price, notional float64, sigID domain.SignalID) (domain.Position, ledger.OpenResult, error)
	Flip(ctx context.Context, ticker string, price float64, side domain.Side, notional float64, sigID domain.SignalID) (domain.Position, ledger.OpenResult, error)
}

// Config del engine.
type Config struct {
	Rules        domain.DecisionRules
	PositionSize float64 // nocional por trade en USD
	SeenCapacity int     // tamaño del set de señales consumidas
}

// Outcome es lo que pasó con una señal.
type Outcome string

const (
	OutcomeDuplicate Outcome = "DUPLICATE" // ya consumida
	OutcomeHold      Outcome = "HOLD"      // la matriz no da acción
	OutcomeNoPrice   Outcome = "NO_PRICE"  // sin precio: se reintenta el próximo tick
	OutcomeRejected  Outcome = "REJECTED"  // precio en o bajo el mínimo
	OutcomeAligned   Outcome = "ALIGNED"   // ya hay posición en ese lado
	OutcomeOpened    Outcome = "OPENED"
	OutcomeFlipped   Outcome = "FLIPPED"
)

// Engine aplica la matriz de decisión a cada señal y ordena al ledger.
// Cada señal produce como máximo una mutación: se marca consumida en cuanto
// su resultado es definitivo.
type Engine struct {
	cfg        Config
	book       PositionBook
	prices     ports.PriceOracle
	thresholds ports.ThresholdSource
	sink       ports.StatusSink
	seen       *dedup.FIFO[domain.SignalID]
	now        func() time.Time
}

// New crea el engine.
func New(cfg Config, book PositionBook, prices ports.PriceOracle, thresholds ports.ThresholdSource, sink ports.StatusSink) *Engine {
	if cfg.SeenCapacity <= 0 {
		cfg.SeenCapacity = defaultSeenCapacity
	}
	return &Engine{
		cfg:        cfg,
		book:       book,
		prices:     prices,
		thresholds: thresholds,
		sink:       sink,
		seen:       dedup.NewFIFO[domain.SignalID](cfg.SeenCapacity),
		now:        time.Now,
	}
}

// Rehydrate marca como consumidas señales de una sesión anterior.
// Devuelve cuántas eran nuevas para el set.
func (e *Engine) Rehydrate(ids []domain.SignalID) int {
	n := 0
	for _, id := range ids {
		if e.seen.Add(id) {
			n++
		}
	}
	return n
}

// Seen indica si la señal ya fue consumida.
func (e *Engine) Seen(id domain.SignalID) bool {
	return e.seen.Contains(id)
}

// Apply procesa una señal. Los errores devueltos vienen del ledger (trade log);
// la señal no se marca y se reintenta el próximo tick.
func (e *Engine) Apply(ctx context.Context, sig domain.Signal) (Outcome, error) {
	id := sig.ID()
	if e.seen.Contains(id) {
		return OutcomeDuplicate, nil
	}

	ticker := domain.NormalizeTicker(sig.Ticker)
	th := e.thresholds.Current()
	dec := e.cfg.Rules.Classify(sig.NewsScore, sig.Score, sig.Diversity, th.BuyThreshold)

	if dec.Kind == domain.SignalHold {
		e.hold(ticker, sig, dec, th.BuyThreshold)
		e.seen.Add(id)
		return OutcomeHold, nil
	}
	side, _ := domain.SideFor(dec.Kind)

	price, ok := e.prices.Price(ctx, ticker)
	if !ok {
		e.sink.Event(domain.StatusEvent{
			Kind:    domain.EventSkip,
			At:      e.now(),
			Ticker:  ticker,
			Side:    side,
			Message: fmt.Sprintf("%s: price unavailable, retrying next tick", dec.Label()),
		})
		return OutcomeNoPrice, nil
	}

	e.sink.Event(domain.StatusEvent{
		Kind:   domain.EventDecision,
		At:     e.now(),
		Ticker: ticker,
		Side:   side,
		Price:  price,
		Message: fmt.Sprintf("%s news=%+.2f social=%+.2f diversity=%.2f T=%.3f",
			dec.Label(), sig.NewsScore, sig.Score, sig.Diversity, th.BuyThreshold),
	})

	notional := e.cfg.PositionSize
	if th.MaxPositionSize > 0 && th.MaxPositionSize < notional {
		notional = th.MaxPositionSize
	}

	cur, has := e.book.Position(ticker)
	if has && cur.Side == side {
		slog.Debug("decision: position already aligned", "ticker", ticker, "side", side, "signal", id)
		e.seen.Add(id)
		return OutcomeAligned, nil
	}

	var (
		res ledger.OpenResult
		err error
	)
	outcome := OutcomeOpened
	if has {
		outcome = OutcomeFlipped
		_, res, err = e.book.Flip(ctx, ticker, price, side, notional, id)
	} else {
		_, res, err = e.book.Open(ctx, ticker, side, price, notional, id)
	}
	if err != nil {
		return "", fmt.Errorf("decision.Apply %s: %w", id, err)
	}

	e.seen.Add(id)
	if res == ledger.Rejected {
		return OutcomeRejected, nil
	}
	return outcome, nil
}

func (e *Engine) hold(ticker string, sig domain.Signal, dec domain.Decision, t float64) {
	msg := fmt.Sprintf("news=%+.2f social=%+.2f diversity=%.2f T=%.3f", sig.NewsScore, sig.Score, sig.Diversity, t)
	if dec.PricedIn {
		msg = "consensus, priced in: " + msg
	} else if dec.Rule == domain.RuleSocialArbitrage {
		msg = "social arbitrage without conviction: " + msg
	}
	e.sink.Event(domain.StatusEvent{
		Kind:    domain.EventHold,
		At:      e.now(),
		Ticker:  ticker,
		Message: msg,
	})
}
