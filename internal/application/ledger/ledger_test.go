package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alejandrodnm/sentibot/internal/application/ledger"
	"github.com/alejandrodnm/sentibot/internal/domain"
	"github.com/alejandrodnm/sentibot/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type memLog struct {
	trades []domain.TradeRecord
	err    error
}

func (m *memLog) AppendTrade(_ context.Context, rec domain.TradeRecord) error {
	if m.err != nil {
		return m.err
	}
	m.trades = append(m.trades, rec)
	return nil
}

func (m *memLog) Trades(_ context.Context) ([]domain.TradeRecord, error) {
	return m.trades, nil
}

func (m *memLog) ClosedTrades(_ context.Context, limit int) ([]domain.TradeRecord, error) {
	closed := domain.ClosedOnly(m.trades)
	if limit > 0 && len(closed) > limit {
		closed = closed[len(closed)-limit:]
	}
	return closed, nil
}

func (m *memLog) ClosedCount(_ context.Context) (int, error) {
	return len(domain.ClosedOnly(m.trades)), nil
}

func (m *memLog) actions() []domain.TradeAction {
	out := make([]domain.TradeAction, len(m.trades))
	for i, t := range m.trades {
		out[i] = t.Action
	}
	return out
}

type recSink struct {
	events []domain.StatusEvent
}

func (s *recSink) Event(ev domain.StatusEvent) { s.events = append(s.events, ev) }
func (s *recSink) Dashboard(_ domain.Snapshot) {}

func (s *recSink) kinds() []domain.EventKind {
	out := make([]domain.EventKind, len(s.events))
	for i, e := range s.events {
		out[i] = e.Kind
	}
	return out
}

type recObserver struct {
	closed []domain.TradeRecord
}

func (o *recObserver) OnPositionClosed(_ context.Context, rec domain.TradeRecord) {
	o.closed = append(o.closed, rec)
}

type prices map[string]float64

func (p prices) Price(_ context.Context, ticker string) (float64, bool) {
	v, ok := p[ticker]
	return v, ok
}

// --- helpers ---

var t0 = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

type fixture struct {
	l    *ledger.Ledger
	log  *memLog
	sink *recSink
	obs  *recObserver
	now  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{log: &memLog{}, sink: &recSink{}, obs: &recObserver{}, now: t0}
	cfg := ledger.DefaultConfig()
	cfg.Strict = true
	f.l = ledger.New(cfg, f.log, f.sink, f.obs)
	f.l.SetClock(func() time.Time { return f.now })
	return f
}

// open abre 1000 acciones a $100.
func (f *fixture) open(t *testing.T, ticker string, side domain.Side) {
	t.Helper()
	_, res, err := f.l.Open(context.Background(), ticker, side, 100, 100000, "")
	require.NoError(t, err)
	require.Equal(t, ledger.Opened, res)
}

func (f *fixture) tick(ticker string, price float64) []domain.TradeRecord {
	return f.l.EvaluateExits(context.Background(), prices{ticker: price})
}

// --- open / close / flip ---

func TestOpen_LogsBeforeAcknowledging(t *testing.T) {
	f := newFixture(t)

	pos, res, err := f.l.Open(context.Background(), "NVDA", domain.SideLong, 125, 100000, "sig-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.Opened, res)
	assert.InDelta(t, 800.0, pos.Shares, 1e-9)

	require.Len(t, f.log.trades, 1)
	rec := f.log.trades[0]
	assert.Equal(t, domain.ActionOpenLong, rec.Action)
	assert.Equal(t, domain.SignalID("sig-1"), rec.SignalID)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, 0.0, rec.RealizedPnL)
	assert.Equal(t, []domain.EventKind{domain.EventOpen}, f.sink.kinds())
}

func TestOpen_RejectsAtOrBelowFloor(t *testing.T) {
	for _, price := range []float64{4.99, 5.0, 0} {
		f := newFixture(t)
		_, res, err := f.l.Open(context.Background(), "PENNY", domain.SideLong, price, 100000, "")
		require.NoError(t, err)
		assert.Equal(t, ledger.Rejected, res)
		assert.Empty(t, f.log.trades)
		assert.Empty(t, f.l.Positions())
		assert.Equal(t, []domain.EventKind{domain.EventRejected}, f.sink.kinds())
	}
}

func TestOpen_SameSideIsNoOp(t *testing.T) {
	f := newFixture(t)
	f.open(t, "AMD", domain.SideShort)

	_, res, err := f.l.Open(context.Background(), "AMD", domain.SideShort, 101, 100000, "")
	require.NoError(t, err)
	assert.Equal(t, ledger.AlreadyOpen, res)
	assert.Len(t, f.log.trades, 1)
}

func TestOpen_OppositeSideRequiresFlip(t *testing.T) {
	f := newFixture(t)
	f.open(t, "AMD", domain.SideShort)

	_, _, err := f.l.Open(context.Background(), "AMD", domain.SideLong, 101, 100000, "")
	assert.ErrorIs(t, err, domain.ErrOppositePosition)
	pos, ok := f.l.Position("AMD")
	require.True(t, ok)
	assert.Equal(t, domain.SideShort, pos.Side)
}

func TestOpen_LogFailureLeavesNoPosition(t *testing.T) {
	f := newFixture(t)
	f.log.err = errors.New("disk full")

	_, _, err := f.l.Open(context.Background(), "TSLA", domain.SideLong, 200, 100000, "")
	assert.Error(t, err)
	_, ok := f.l.Position("TSLA")
	assert.False(t, ok)
	assert.Empty(t, f.sink.events)
}

func TestClose_BooksSideAwarePnL(t *testing.T) {
	f := newFixture(t)
	f.open(t, "TSLA", domain.SideShort)

	rec, err := f.l.Close(context.Background(), "TSLA", 98, domain.ReasonTakeProfit)
	require.NoError(t, err)

	assert.InDelta(t, 2000.0, rec.RealizedPnL, 1e-9)
	assert.Equal(t, domain.CloseAction(domain.ReasonTakeProfit), rec.Action)
	assert.InDelta(t, 2000.0, f.l.Realized(), 1e-9)
	assert.Empty(t, f.l.Positions())
	require.Len(t, f.obs.closed, 1, "threshold controller notified after close")
	assert.Equal(t, rec, f.obs.closed[0])
}

func TestClose_LogFailureKeepsPosition(t *testing.T) {
	f := newFixture(t)
	f.open(t, "TSLA", domain.SideLong)
	f.log.err = errors.New("disk full")

	_, err := f.l.Close(context.Background(), "TSLA", 90, domain.ReasonStopLoss)
	assert.Error(t, err)
	_, ok := f.l.Position("TSLA")
	assert.True(t, ok)
	assert.Equal(t, 0.0, f.l.Realized())
	assert.Empty(t, f.obs.closed)
}

func TestClose_MissingPosition(t *testing.T) {
	f := newFixture(t)
	assert.Panics(t, func() {
		f.l.Close(context.Background(), "GHOST", 10, domain.ReasonStopLoss)
	})

	lenient := ledger.New(ledger.DefaultConfig(), &memLog{}, &recSink{}, nil)
	_, err := lenient.Close(context.Background(), "GHOST", 10, domain.ReasonStopLoss)
	assert.ErrorIs(t, err, domain.ErrNoPosition)
}

func TestFlip_ShortToLong(t *testing.T) {
	f := newFixture(t)
	f.open(t, "NVDA", domain.SideShort)

	pos, res, err := f.l.Flip(context.Background(), "NVDA", 95, domain.SideLong, 100000, "sig-2")
	require.NoError(t, err)
	assert.Equal(t, ledger.Opened, res)
	assert.Equal(t, domain.SideLong, pos.Side)

	assert.Equal(t, []domain.TradeAction{
		domain.ActionOpenShort,
		domain.CloseAction(domain.ReasonFlipSignal),
		domain.ActionOpenLong,
	}, f.log.actions())
	assert.InDelta(t, 5000.0, f.log.trades[1].RealizedPnL, 1e-9)

	positions := f.l.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, domain.SideLong, positions[0].Side)
}

func TestFlip_InvalidPriceClosesNothing(t *testing.T) {
	f := newFixture(t)
	f.open(t, "NVDA", domain.SideShort)

	_, res, err := f.l.Flip(context.Background(), "NVDA", 4.99, domain.SideLong, 100000, "")
	require.NoError(t, err)
	assert.Equal(t, ledger.Rejected, res)
	assert.Equal(t, []domain.TradeAction{domain.ActionOpenShort}, f.log.actions())
}

// --- exit rules ---

func TestEvaluateExits_TrailingStop(t *testing.T) {
	f := newFixture(t)
	f.open(t, "NVDA", domain.SideLong)

	// peak $200, luego devuelve $20 > 5% de $200
	assert.Empty(t, f.tick("NVDA", 100.2))
	closed := f.tick("NVDA", 100.18)

	require.Len(t, closed, 1)
	assert.Equal(t, domain.CloseAction(domain.ReasonTrailingStop), closed[0].Action)
	assert.InDelta(t, 180.0, closed[0].RealizedPnL, 1e-6)
}

func TestEvaluateExits_TrailingNeedsActivation(t *testing.T) {
	for _, activation := range []float64{62.5, 125, 250} {
		f := newFixture(t)
		cfg := ledger.DefaultConfig()
		cfg.TrailingActivation = activation
		f.l = ledger.New(cfg, f.log, f.sink, nil)
		f.l.SetClock(func() time.Time { return f.now })
		f.open(t, "NVDA", domain.SideLong)

		// peak exactamente en la activación, luego devuelve todo
		peakPrice := 100 + activation/1000
		assert.Empty(t, f.tick("NVDA", peakPrice))
		assert.Empty(t, f.tick("NVDA", 100.0), "activation %.1f", activation)
	}
}

func TestEvaluateExits_StopLoss(t *testing.T) {
	f := newFixture(t)
	f.open(t, "LONGX", domain.SideLong)
	f.open(t, "SHRTX", domain.SideShort)

	closed := f.l.EvaluateExits(context.Background(), prices{"LONGX": 99, "SHRTX": 101})
	require.Len(t, closed, 2)
	for _, rec := range closed {
		assert.Equal(t, domain.CloseAction(domain.ReasonStopLoss), rec.Action)
		assert.InDelta(t, -1000.0, rec.RealizedPnL, 1e-6)
	}
}

func TestEvaluateExits_TakeProfit(t *testing.T) {
	f := newFixture(t)
	f.open(t, "TSLA", domain.SideLong)

	closed := f.tick("TSLA", 105)
	require.Len(t, closed, 1)
	assert.Equal(t, domain.CloseAction(domain.ReasonTakeProfit), closed[0].Action)
}

func TestEvaluateExits_TrailingBeatsStopLoss(t *testing.T) {
	f := newFixture(t)
	f.open(t, "TSLA", domain.SideLong)

	// peak $500; a 98.9 disparan trailing y stop loss a la vez
	f.tick("TSLA", 100.5)
	closed := f.tick("TSLA", 98.9)
	require.Len(t, closed, 1)
	assert.Equal(t, domain.CloseAction(domain.ReasonTrailingStop), closed[0].Action)
}

func TestEvaluateExits_TimeExitOnlyForWinners(t *testing.T) {
	f := newFixture(t)
	f.open(t, "WIN", domain.SideLong)
	f.open(t, "LOSE", domain.SideLong)
	f.open(t, "FLAT", domain.SideLong)

	f.now = t0.Add(31 * time.Minute)
	closed := f.l.EvaluateExits(context.Background(), prices{
		"WIN":  100.005, // +$5
		"LOSE": 99.995,  // -$5, dentro del stop loss
		"FLAT": 100.001, // +$1, por debajo del scalp mínimo
	})

	require.Len(t, closed, 1)
	assert.Equal(t, "WIN", closed[0].Ticker)
	assert.Equal(t, domain.CloseAction(domain.ReasonTimeExit), closed[0].Action)
	assert.Len(t, f.l.Positions(), 2)
}

func TestEvaluateExits_NoTimeExitBeforeMaxHold(t *testing.T) {
	f := newFixture(t)
	f.open(t, "WIN", domain.SideLong)

	f.now = t0.Add(30 * time.Minute)
	assert.Empty(t, f.tick("WIN", 100.01))
}

func TestEvaluateExits_SkipsMissingPrice(t *testing.T) {
	f := newFixture(t)
	f.open(t, "NVDA", domain.SideLong)
	f.open(t, "AMD", domain.SideLong)

	closed := f.l.EvaluateExits(context.Background(), prices{"AMD": 100.05})
	assert.Empty(t, closed)

	marks, unrealized := f.l.Marks()
	require.Len(t, marks, 2)
	assert.True(t, marks[0].Priced) // AMD
	assert.False(t, marks[1].Priced)
	assert.InDelta(t, 50.0, unrealized, 1e-6)

	nvda, _ := f.l.Position("NVDA")
	assert.False(t, nvda.HasPeak())
}

func TestEvaluateExits_PeakNonDecreasingUntilClose(t *testing.T) {
	f := newFixture(t)
	f.open(t, "NVDA", domain.SideLong)

	prev, _ := f.l.Position("NVDA")
	for _, p := range []float64{100.03, 100.01, 100.06, 100.059, 99.995, 100.08} {
		if closed := f.tick("NVDA", p); len(closed) > 0 {
			break
		}
		cur, ok := f.l.Position("NVDA")
		require.True(t, ok)
		assert.GreaterOrEqual(t, cur.PeakPnL, prev.PeakPnL)
		prev = cur
	}
}

// --- restore ---

func TestRestore_ReplaysTradeLog(t *testing.T) {
	log := &memLog{trades: []domain.TradeRecord{
		{ID: "1", Timestamp: t0, Ticker: "TSLA", Action: domain.ActionOpenLong, Price: 200, Shares: 500},
		{ID: "2", Timestamp: t0.Add(time.Minute), Ticker: "TSLA", Action: domain.CloseAction(domain.ReasonStopLoss), Price: 198, Shares: 500, RealizedPnL: -1000},
		{ID: "3", Timestamp: t0.Add(2 * time.Minute), Ticker: "AMD", Action: domain.ActionOpenShort, Price: 150, Shares: 666.5, SignalID: "sig-amd"},
	}}
	l := ledger.New(ledger.DefaultConfig(), log, &recSink{}, nil)
	require.NoError(t, l.Restore(context.Background()))

	assert.InDelta(t, -1000.0, l.Realized(), 1e-9)
	positions := l.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, "AMD", positions[0].Ticker)
	assert.Equal(t, domain.SideShort, positions[0].Side)
	assert.InDelta(t, 666.5, positions[0].Shares, 1e-9)
	assert.Equal(t, domain.SignalID("sig-amd"), positions[0].SignalID)
	assert.True(t, t0.Add(2*time.Minute).Equal(positions[0].OpenedAt))
}

var _ ports.TradeLog = (*memLog)(nil)
