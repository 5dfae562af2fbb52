package ports

import (
	"context"

	"github.com/alejandrodnm/sentibot/internal/domain"
)

// SignalFeed es el feed append-only de señales. Puede contener duplicados o
// filas fuera de orden; el consumidor deduplica por Signal.ID().
type SignalFeed interface {
	// RecentSignals devuelve las últimas limit filas, en orden cronológico.
	RecentSignals(ctx context.Context, limit int) ([]domain.Signal, error)

	// AllSignalIDs devuelve la identidad de cada fila del feed, para rehidratar
	// el set de señales vistas al arrancar.
	AllSignalIDs(ctx context.Context) ([]domain.SignalID, error)
}

// SignalRecorder añade señales al feed (lado productor).
type SignalRecorder interface {
	AppendSignal(ctx context.Context, sig domain.Signal) error
}
