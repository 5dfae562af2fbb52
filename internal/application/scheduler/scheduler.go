// Package scheduler corre el loop de decisión: señales → exits → dashboard → descanso.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/sentibot/internal/application/decision"
	"github.com/alejandrodnm/sentibot/internal/domain"
	"github.com/alejandrodnm/sentibot/internal/ports"
	"golang.org/x/sync/errgroup"
)

// Config del loop.
type Config struct {
	Interval     time.Duration // cadencia objetivo de un ciclo
	MinRest      time.Duration // descanso mínimo aunque el ciclo haya tardado más que Interval
	Lookback     int           // filas recientes del feed que se leen por ciclo
	RestartEvery int           // ciclos entre Restart de colaboradores (0 = nunca)
	Heartbeat    time.Duration // 0 = sin heartbeat
	StopFile     string        // si existe, el loop termina limpio ("" = desactivado)
}

// SignalApplier consume una señal del feed.
type SignalApplier interface {
	Apply(ctx context.Context, sig domain.Signal) (decision.Outcome, error)
}

// Book es la parte del ledger que usa el scheduler.
type Book interface {
	EvaluateExits(ctx context.Context, prices ports.PriceOracle) []domain.TradeRecord
	Marks() ([]domain.PositionMark, float64)
	Realized() float64
}

// Scheduler es el único hilo de control que muta ledger y thresholds.
// Los ciclos son secuenciales; el heartbeat corre aparte y solo lee contadores atómicos.
type Scheduler struct {
	cfg        Config
	feed       ports.SignalFeed
	engine     SignalApplier
	book       Book
	prices     ports.PriceOracle
	thresholds ports.ThresholdSource
	sink       ports.StatusSink
	restarters []ports.Restarter

	cycles    atomic.Int64
	positions atomic.Int64

	now func() time.Time
}

// New crea el scheduler. restarters reciben Restart cada RestartEvery ciclos.
func New(cfg Config, feed ports.SignalFeed, engine SignalApplier, book Book, prices ports.PriceOracle,
	thresholds ports.ThresholdSource, sink ports.StatusSink, restarters ...ports.Restarter) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		feed:       feed,
		engine:     engine,
		book:       book,
		prices:     prices,
		thresholds: thresholds,
		sink:       sink,
		restarters: restarters,
		now:        time.Now,
	}
}

// Cycles devuelve los ciclos completados.
func (s *Scheduler) Cycles() int64 {
	return s.cycles.Load()
}

// RunOnce ejecuta un ciclo completo. Los fallos de colaboradores degradan el ciclo
// (se loguean y se sigue), nunca lo abortan.
func (s *Scheduler) RunOnce(ctx context.Context) domain.Snapshot {
	signals, err := s.feed.RecentSignals(ctx, s.cfg.Lookback)
	if err != nil {
		slog.Warn("scheduler: signal feed unavailable, evaluating exits only", "err", err)
	}

	for _, sig := range signals {
		out, err := s.engine.Apply(ctx, sig)
		if err != nil {
			slog.Warn("scheduler: signal not applied, will retry", "signal", sig.ID(), "err", err)
			continue
		}
		if out != decision.OutcomeDuplicate {
			slog.Debug("scheduler: signal applied", "signal", sig.ID(), "outcome", out)
		}
	}

	closed := s.book.EvaluateExits(ctx, s.prices)
	if len(closed) > 0 {
		slog.Info("scheduler: positions closed by exit rules", "count", len(closed))
	}

	marks, unrealized := s.book.Marks()
	cycle := s.cycles.Add(1)
	s.positions.Store(int64(len(marks)))

	snap := domain.Snapshot{
		At:         s.now(),
		Cycle:      int(cycle),
		Positions:  marks,
		Realized:   s.book.Realized(),
		Unrealized: unrealized,
		Thresholds: s.thresholds.Current(),
	}
	s.sink.Dashboard(snap)
	return snap
}

// Run corre ciclos hasta que se cancele ctx o aparezca el STOP file.
func (s *Scheduler) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	if s.cfg.Heartbeat > 0 {
		g.Go(func() error {
			s.heartbeat(ctx)
			return nil
		})
	}

	g.Go(func() error {
		defer cancel()
		return s.loop(ctx)
	})

	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context) error {
	slog.Info("scheduler started",
		"interval", s.cfg.Interval,
		"min_rest", s.cfg.MinRest,
		"lookback", s.cfg.Lookback,
	)
	for {
		if s.stopRequested() {
			return nil
		}

		start := s.now()
		s.RunOnce(ctx)
		cycle := s.cycles.Load()

		if s.cfg.RestartEvery > 0 && cycle%int64(s.cfg.RestartEvery) == 0 {
			s.restart(ctx, cycle)
		}

		wait := RestFor(s.cfg.Interval, s.cfg.MinRest, s.now().Sub(start))
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped (signal)", "cycles", cycle)
			return nil
		case <-time.After(wait):
		}
	}
}

// RestFor devuelve max(minRest, interval − elapsed).
func RestFor(interval, minRest, elapsed time.Duration) time.Duration {
	wait := interval - elapsed
	if wait < minRest {
		return minRest
	}
	return wait
}

func (s *Scheduler) stopRequested() bool {
	if s.cfg.StopFile == "" {
		return false
	}
	if _, err := os.Stat(s.cfg.StopFile); err != nil {
		return false
	}
	slog.Info("STOP file detected, shutting down", "path", s.cfg.StopFile)
	if err := os.Remove(s.cfg.StopFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not remove STOP file", "path", s.cfg.StopFile, "err", err)
	}
	return true
}

func (s *Scheduler) restart(ctx context.Context, cycle int64) {
	for _, r := range s.restarters {
		if err := r.Restart(ctx); err != nil {
			slog.Warn("scheduler: collaborator restart failed", "cycle", cycle, "err", err)
		}
	}
	slog.Info("scheduler: collaborators restarted", "cycle", cycle, "count", len(s.restarters))
}

func (s *Scheduler) heartbeat(ctx context.Context) {
	t := time.NewTicker(s.cfg.Heartbeat)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.sink.Event(domain.StatusEvent{
				Kind:    domain.EventHeartbeat,
				At:      time.Now(),
				Message: fmt.Sprintf("alive: cycle %d, %d open positions", s.cycles.Load(), s.positions.Load()),
			})
		}
	}
}
