// Package thresholds adapta los thresholds de decisión a partir de los cierres recientes.
package thresholds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/sentibot/internal/domain"
	"github.com/alejandrodnm/sentibot/internal/ports"
)

// Controller es el dueño de la ThresholdConfig en memoria y de su persistencia.
// Implementa ports.ThresholdSource para el Decision Engine y ports.CloseObserver
// para el ledger: cada cierre dispara una re-evaluación.
//
// Las mutaciones ocurren solo desde la goroutine del scheduler; Current se puede
// leer desde el collector, por eso cur va bajo mutex.
type Controller struct {
	store  ports.ThresholdStore
	trades ports.TradeLog
	sink   ports.StatusSink
	policy domain.AdaptPolicy

	mu  sync.RWMutex
	cur domain.ThresholdConfig
}

// New crea un controller con la config por defecto. Llamar a Load antes de usarlo.
func New(store ports.ThresholdStore, trades ports.TradeLog, sink ports.StatusSink, policy domain.AdaptPolicy) *Controller {
	return &Controller{
		store:  store,
		trades: trades,
		sink:   sink,
		policy: policy,
		cur:    domain.DefaultThresholdConfig(),
	}
}

// Load lee la config persistida. Una config corrupta no impide arrancar: se usan
// los defaults y se avisa. Otros errores de lectura también dejan los defaults
// pero se devuelven al caller.
func (c *Controller) Load(ctx context.Context) error {
	cfg, err := c.store.Load(ctx)
	switch {
	case err == nil:
		c.set(cfg)
		slog.Info("thresholds loaded",
			"buy", cfg.BuyThreshold,
			"sell", cfg.SellThreshold,
			"mode", cfg.Mode,
		)
		return nil
	case errors.Is(err, domain.ErrConfigCorrupt):
		slog.Warn("threshold config corrupt, using defaults", "err", err)
		c.set(domain.DefaultThresholdConfig())
		return nil
	default:
		c.set(domain.DefaultThresholdConfig())
		return fmt.Errorf("thresholds.Load: %w", err)
	}
}

// Current devuelve la config vigente.
func (c *Controller) Current() domain.ThresholdConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur
}

func (c *Controller) set(cfg domain.ThresholdConfig) {
	c.mu.Lock()
	c.cur = cfg
	c.mu.Unlock()
}

// OnPositionClosed re-evalúa los thresholds después de cada cierre.
func (c *Controller) OnPositionClosed(ctx context.Context, rec domain.TradeRecord) {
	if _, err := c.Update(ctx); err != nil && !errors.Is(err, domain.ErrInsufficientSample) {
		slog.Warn("threshold update failed, keeping previous config",
			"trigger", rec.Action,
			"ticker", rec.Ticker,
			"err", err,
		)
	}
}

// Update lee los últimos cierres, aplica la política y persiste si cambió algo.
//
// Con menos cierres que MinSample devuelve domain.ErrInsufficientSample y no toca nada.
// Si Save falla se conserva la config anterior, tanto en disco como en memoria.
func (c *Controller) Update(ctx context.Context) (domain.ThresholdUpdate, error) {
	cur := c.Current()
	closed, err := c.trades.ClosedTrades(ctx, c.policy.Window)
	if err != nil {
		return domain.ThresholdUpdate{Previous: cur, Next: cur}, fmt.Errorf("thresholds.Update: read trade log: %w", err)
	}

	upd, err := c.policy.Adapt(cur, closed)
	if err != nil {
		slog.Debug("threshold update skipped",
			"closed", upd.Sample,
			"min_sample", c.policy.MinSample,
		)
		return upd, err
	}

	if !upd.Changed() {
		slog.Debug("thresholds unchanged", "win_rate", upd.WinRate, "mode", upd.Next.Mode)
		return upd, nil
	}

	if err := c.store.Save(ctx, upd.Next); err != nil {
		upd.Next = upd.Previous
		return upd, fmt.Errorf("thresholds.Update: %w", err)
	}
	c.set(upd.Next)

	slog.Info("thresholds adapted",
		"win_rate", fmt.Sprintf("%.0f%%", upd.WinRate*100),
		"sample", upd.Sample,
		"mode", upd.Next.Mode,
		"from", upd.Previous.BuyThreshold,
		"to", upd.Next.BuyThreshold,
	)
	c.sink.Event(domain.StatusEvent{
		Kind: domain.EventThreshold,
		At:   time.Now(),
		Message: fmt.Sprintf("Win rate %.0f%% over %d trades: %s, threshold %.3f -> %.3f",
			upd.WinRate*100, upd.Sample, upd.Next.Mode, upd.Previous.BuyThreshold, upd.Next.BuyThreshold),
	})
	return upd, nil
}
