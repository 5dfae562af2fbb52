package ports

import (
	"context"

	"github.com/alejandrodnm/sentibot/internal/domain"
)

// ThresholdStore persiste el singleton de thresholds.
type ThresholdStore interface {
	// Load devuelve la config guardada. Si falta o está corrupta devuelve los
	// defaults junto con domain.ErrConfigCorrupt (corrupta) o nil (ausente).
	Load(ctx context.Context) (domain.ThresholdConfig, error)

	// Save reemplaza la config de forma atómica: o queda la nueva o la anterior.
	Save(ctx context.Context, cfg domain.ThresholdConfig) error
}

// ThresholdSource expone los thresholds activos al Decision Engine.
type ThresholdSource interface {
	Current() domain.ThresholdConfig
}

// CloseObserver recibe el aviso post-cierre del ledger.
type CloseObserver interface {
	OnPositionClosed(ctx context.Context, rec domain.TradeRecord)
}
