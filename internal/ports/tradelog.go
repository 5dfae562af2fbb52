package ports

import (
	"context"

	"github.com/alejandrodnm/sentibot/internal/domain"
)

// TradeLog persiste el trade log de forma durable y append-only.
type TradeLog interface {
	// AppendTrade devuelve nil solo cuando el registro es durable.
	AppendTrade(ctx context.Context, rec domain.TradeRecord) error

	// Trades devuelve todo el log en orden de inserción.
	Trades(ctx context.Context) ([]domain.TradeRecord, error)

	// ClosedTrades devuelve los últimos limit cierres en orden cronológico.
	// limit <= 0 devuelve todos.
	ClosedTrades(ctx context.Context, limit int) ([]domain.TradeRecord, error)

	// ClosedCount devuelve el total de cierres registrados.
	ClosedCount(ctx context.Context) (int, error)
}
