package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeStats_Empty(t *testing.T) {
	st := ComputeStats(nil)
	assert.Equal(t, 0, st.TradeCount)
	assert.Equal(t, 0.0, st.Sharpe)
}

func TestComputeStats_IgnoresOpens(t *testing.T) {
	base := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	trades := []TradeRecord{
		{Timestamp: base, Action: ActionOpenLong},
		{Timestamp: base.Add(time.Minute), Action: CloseAction(ReasonTakeProfit), RealizedPnL: 30},
		{Timestamp: base.Add(2 * time.Minute), Action: ActionOpenShort},
		{Timestamp: base.Add(3 * time.Minute), Action: CloseAction(ReasonStopLoss), RealizedPnL: -10},
	}
	st := ComputeStats(trades)

	assert.Equal(t, 2, st.TradeCount)
	assert.Equal(t, 1, st.Wins)
	assert.InDelta(t, 20.0, st.TotalPnL, 1e-9)
	assert.InDelta(t, 0.5, st.WinRate, 1e-9)
}

func TestMinuteSharpe_SingleBucketIsZero(t *testing.T) {
	at := time.Date(2026, 3, 2, 15, 0, 10, 0, time.UTC)
	trades := []TradeRecord{
		{Timestamp: at, Action: CloseAction(ReasonTakeProfit), RealizedPnL: 10},
		{Timestamp: at.Add(20 * time.Second), Action: CloseAction(ReasonTakeProfit), RealizedPnL: 5},
	}
	assert.Equal(t, 0.0, MinuteSharpe(trades))
}

func TestMinuteSharpe_FillsEmptyMinutes(t *testing.T) {
	at := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	// buckets: [10, 0, 10] → media 6.667, std 5.774
	trades := []TradeRecord{
		{Timestamp: at, Action: CloseAction(ReasonTakeProfit), RealizedPnL: 10},
		{Timestamp: at.Add(2 * time.Minute), Action: CloseAction(ReasonTakeProfit), RealizedPnL: 10},
	}
	got := MinuteSharpe(trades)
	assert.InDelta(t, 1.1547*313.4964, got, 0.5)
}

func TestPerformanceStats_Rating(t *testing.T) {
	assert.Contains(t, PerformanceStats{Sharpe: 3.5}.Rating(), "A+")
	assert.Contains(t, PerformanceStats{Sharpe: 2}.Rating(), "(B)")
	assert.Contains(t, PerformanceStats{Sharpe: 0.2}.Rating(), "(C)")
}
