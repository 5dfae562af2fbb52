package thresholds_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/alejandrodnm/sentibot/internal/application/thresholds"
	"github.com/alejandrodnm/sentibot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	cfg     domain.ThresholdConfig
	loadErr error
	saveErr error
	saves   int
}

func (m *memStore) Load(_ context.Context) (domain.ThresholdConfig, error) {
	if m.loadErr != nil {
		return domain.DefaultThresholdConfig(), m.loadErr
	}
	return m.cfg, nil
}

func (m *memStore) Save(_ context.Context, cfg domain.ThresholdConfig) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.cfg = cfg
	m.saves++
	return nil
}

type memLog struct {
	closed []domain.TradeRecord
}

func (m *memLog) AppendTrade(_ context.Context, rec domain.TradeRecord) error {
	m.closed = append(m.closed, rec)
	return nil
}

func (m *memLog) Trades(_ context.Context) ([]domain.TradeRecord, error) { return m.closed, nil }

func (m *memLog) ClosedTrades(_ context.Context, limit int) ([]domain.TradeRecord, error) {
	out := m.closed
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memLog) ClosedCount(_ context.Context) (int, error) { return len(m.closed), nil }

type recSink struct {
	events []domain.StatusEvent
}

func (s *recSink) Event(ev domain.StatusEvent) { s.events = append(s.events, ev) }
func (s *recSink) Dashboard(_ domain.Snapshot) {}

// history arma cierres con wins ganadores seguidos de losses perdedores.
func history(wins, losses int) []domain.TradeRecord {
	var out []domain.TradeRecord
	for i := 0; i < wins; i++ {
		out = append(out, domain.TradeRecord{ID: fmt.Sprintf("w%d", i), Action: domain.CloseAction(domain.ReasonTakeProfit), RealizedPnL: 50})
	}
	for i := 0; i < losses; i++ {
		out = append(out, domain.TradeRecord{ID: fmt.Sprintf("l%d", i), Action: domain.CloseAction(domain.ReasonStopLoss), RealizedPnL: -50})
	}
	return out
}

func newController(t *testing.T, store *memStore, log *memLog) (*thresholds.Controller, *recSink) {
	t.Helper()
	sink := &recSink{}
	c := thresholds.New(store, log, sink, domain.DefaultAdaptPolicy())
	require.NoError(t, c.Load(context.Background()))
	return c, sink
}

func TestLoad_CorruptFallsBackToDefaults(t *testing.T) {
	store := &memStore{loadErr: fmt.Errorf("wrap: %w", domain.ErrConfigCorrupt)}
	c, _ := newController(t, store, &memLog{})
	assert.Equal(t, domain.DefaultThresholdConfig(), c.Current())
}

func TestLoad_ReadErrorIsReported(t *testing.T) {
	store := &memStore{loadErr: errors.New("permission denied")}
	c := thresholds.New(store, &memLog{}, &recSink{}, domain.DefaultAdaptPolicy())
	assert.Error(t, c.Load(context.Background()))
	assert.Equal(t, domain.DefaultThresholdConfig(), c.Current())
}

func TestUpdate_HotStreak(t *testing.T) {
	store := &memStore{cfg: domain.DefaultThresholdConfig()}
	log := &memLog{closed: history(6, 2)}
	c, sink := newController(t, store, log)

	upd, err := c.Update(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 0.75, upd.WinRate, 1e-9)
	assert.Equal(t, 0.49, c.Current().BuyThreshold)
	assert.Equal(t, 0.49, c.Current().SellThreshold)
	assert.Equal(t, domain.ModeAggressive, c.Current().Mode)
	assert.Equal(t, c.Current(), store.cfg)
	require.Len(t, sink.events, 1)
	assert.Equal(t, domain.EventThreshold, sink.events[0].Kind)
}

func TestUpdate_ColdStreak(t *testing.T) {
	store := &memStore{cfg: domain.DefaultThresholdConfig()}
	c, _ := newController(t, store, &memLog{closed: history(3, 7)})

	_, err := c.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.525, c.Current().BuyThreshold)
	assert.Equal(t, domain.ModeDefensive, c.Current().Mode)
}

func TestUpdate_InsufficientSampleLeavesConfig(t *testing.T) {
	store := &memStore{cfg: domain.DefaultThresholdConfig()}
	c, sink := newController(t, store, &memLog{closed: history(4, 0)})

	_, err := c.Update(context.Background())
	assert.ErrorIs(t, err, domain.ErrInsufficientSample)
	assert.Equal(t, domain.DefaultThresholdConfig(), c.Current())
	assert.Zero(t, store.saves)
	assert.Empty(t, sink.events)
}

func TestUpdate_UnchangedDoesNotSave(t *testing.T) {
	store := &memStore{cfg: domain.DefaultThresholdConfig()}
	c, sink := newController(t, store, &memLog{closed: history(5, 5)})

	upd, err := c.Update(context.Background())
	require.NoError(t, err)
	assert.False(t, upd.Changed())
	assert.Zero(t, store.saves)
	assert.Empty(t, sink.events)
}

func TestUpdate_SaveFailureKeepsPrevious(t *testing.T) {
	store := &memStore{cfg: domain.DefaultThresholdConfig(), saveErr: errors.New("read-only fs")}
	c, sink := newController(t, store, &memLog{closed: history(8, 0)})

	upd, err := c.Update(context.Background())
	assert.Error(t, err)
	assert.Equal(t, upd.Previous, upd.Next)
	assert.Equal(t, domain.DefaultThresholdConfig(), c.Current())
	assert.Empty(t, sink.events)
}

func TestUpdate_PreservesMaxPositionSize(t *testing.T) {
	cfg := domain.DefaultThresholdConfig()
	cfg.MaxPositionSize = 25000
	store := &memStore{cfg: cfg}
	c, _ := newController(t, store, &memLog{closed: history(9, 1)})

	_, err := c.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25000.0, c.Current().MaxPositionSize)
}

func TestOnPositionClosed_ConvergesToFloor(t *testing.T) {
	store := &memStore{cfg: domain.DefaultThresholdConfig()}
	log := &memLog{closed: history(10, 0)}
	c, _ := newController(t, store, log)

	for i := 0; i < 40; i++ {
		c.OnPositionClosed(context.Background(), log.closed[len(log.closed)-1])
	}
	assert.Equal(t, 0.35, c.Current().BuyThreshold)
	assert.Equal(t, domain.ModeAggressive, store.cfg.Mode)
}

func TestStoreSource_ReloadsAndKeepsLastGood(t *testing.T) {
	store := &memStore{cfg: domain.ThresholdConfig{BuyThreshold: 0.6, SellThreshold: 0.6, Mode: domain.ModeDefensive}}
	src := thresholds.NewStoreSource(store)

	assert.Equal(t, 0.6, src.Current().BuyThreshold)

	store.cfg.BuyThreshold = 0.63
	assert.Equal(t, 0.63, src.Current().BuyThreshold)

	store.loadErr = errors.New("disk gone")
	assert.Equal(t, 0.63, src.Current().BuyThreshold)
}
