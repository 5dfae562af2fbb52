package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/alejandrodnm/sentibot/internal/adapters/notify"
	"github.com/alejandrodnm/sentibot/internal/adapters/storage"
	"github.com/alejandrodnm/sentibot/internal/application/thresholds"
	"github.com/alejandrodnm/sentibot/internal/domain"
)

const recentCloses = 10

// runReport imprime las métricas del trade log completo y los últimos cierres.
func runReport(ctx context.Context, store *storage.SQLiteStorage, console *notify.Console) {
	trades, err := store.Trades(ctx)
	if err != nil {
		slog.Error("failed to read trade log", "err", err)
		os.Exit(1)
	}

	closed := domain.ClosedOnly(trades)
	if len(closed) > recentCloses {
		closed = closed[len(closed)-recentCloses:]
	}
	console.PrintReport(domain.ComputeStats(trades), closed)
}

// runLearn fuerza una adaptación de thresholds fuera del loop.
func runLearn(ctx context.Context, controller *thresholds.Controller, console *notify.Console) {
	upd, err := controller.Update(ctx)
	console.PrintThresholds(upd, err)
	if err != nil && !errors.Is(err, domain.ErrInsufficientSample) {
		os.Exit(1)
	}
}
