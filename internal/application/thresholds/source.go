package thresholds

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alejandrodnm/sentibot/internal/domain"
	"github.com/alejandrodnm/sentibot/internal/ports"
)

// StoreSource relee la config persistida en cada Current. La usa un collector que
// corre sin trader en el mismo proceso y necesita ver los thresholds que el trader adapta.
// Si la lectura falla devuelve la última config buena.
type StoreSource struct {
	store ports.ThresholdStore

	mu   sync.Mutex
	last domain.ThresholdConfig
}

// NewStoreSource crea la fuente.
func NewStoreSource(store ports.ThresholdStore) *StoreSource {
	return &StoreSource{store: store, last: domain.DefaultThresholdConfig()}
}

// Current implementa ports.ThresholdSource.
func (s *StoreSource) Current() domain.ThresholdConfig {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.store.Load(context.Background())
	if err != nil {
		slog.Warn("thresholds: reload failed, using last known config", "err", err)
		return s.last
	}
	s.last = cfg
	return cfg
}
