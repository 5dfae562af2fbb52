package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// closes genera n cierres, los primeros `wins` ganadores.
func closes(n, wins int) []TradeRecord {
	base := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	out := make([]TradeRecord, n)
	for i := range out {
		pnl := -10.0
		if i < wins {
			pnl = 25.0
		}
		out[i] = TradeRecord{
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
			Ticker:      "TSLA",
			Action:      CloseAction(ReasonTakeProfit),
			RealizedPnL: pnl,
		}
	}
	return out
}

func TestAdapt_HotStreakRewards(t *testing.T) {
	// 6 de 8 = 75%
	upd, err := DefaultAdaptPolicy().Adapt(DefaultThresholdConfig(), closes(8, 6))
	require.NoError(t, err)

	assert.InDelta(t, 0.75, upd.WinRate, 1e-9)
	assert.Equal(t, 0.49, upd.Next.BuyThreshold)
	assert.Equal(t, 0.49, upd.Next.SellThreshold)
	assert.Equal(t, ModeAggressive, upd.Next.Mode)
	assert.True(t, upd.Changed())
}

func TestAdapt_ColdStreakPunishes(t *testing.T) {
	upd, err := DefaultAdaptPolicy().Adapt(DefaultThresholdConfig(), closes(10, 3))
	require.NoError(t, err)

	assert.InDelta(t, 0.30, upd.WinRate, 1e-9)
	assert.Equal(t, 0.525, upd.Next.BuyThreshold)
	assert.Equal(t, 0.525, upd.Next.SellThreshold)
	assert.Equal(t, ModeDefensive, upd.Next.Mode)
}

func TestAdapt_NeutralKeepsThreshold(t *testing.T) {
	cur := ThresholdConfig{BuyThreshold: 0.6, SellThreshold: 0.6, Mode: ModeDefensive}
	upd, err := DefaultAdaptPolicy().Adapt(cur, closes(10, 5))
	require.NoError(t, err)

	assert.Equal(t, 0.6, upd.Next.BuyThreshold)
	assert.Equal(t, ModeNeutral, upd.Next.Mode)
}

func TestAdapt_InsufficientSampleLeavesConfig(t *testing.T) {
	cur := DefaultThresholdConfig()
	for wins := 0; wins <= 4; wins++ {
		upd, err := DefaultAdaptPolicy().Adapt(cur, closes(4, wins))
		assert.ErrorIs(t, err, ErrInsufficientSample)
		assert.Equal(t, cur, upd.Next)
		assert.False(t, upd.Changed())
	}
}

func TestAdapt_UsesOnlyRecentWindow(t *testing.T) {
	// 10 ganadores antiguos seguidos de 10 perdedores: la ventana solo ve perdedores.
	trades := closes(20, 0)
	for i := 0; i < 10; i++ {
		trades[i].RealizedPnL = 50
	}
	upd, err := DefaultAdaptPolicy().Adapt(DefaultThresholdConfig(), trades)
	require.NoError(t, err)

	assert.Equal(t, 10, upd.Sample)
	assert.Equal(t, 0.0, upd.WinRate)
	assert.Equal(t, ModeDefensive, upd.Next.Mode)
}

func TestAdapt_FloorAndCeiling(t *testing.T) {
	p := DefaultAdaptPolicy()

	low := ThresholdConfig{BuyThreshold: 0.351, SellThreshold: 0.351, Mode: ModeAggressive}
	upd, err := p.Adapt(low, closes(10, 10))
	require.NoError(t, err)
	assert.Equal(t, 0.35, upd.Next.BuyThreshold)

	high := ThresholdConfig{BuyThreshold: 0.84, SellThreshold: 0.84, Mode: ModeDefensive}
	upd, err = p.Adapt(high, closes(10, 0))
	require.NoError(t, err)
	assert.Equal(t, 0.85, upd.Next.BuyThreshold)
}

func TestAdapt_BreakevenIsNotAWin(t *testing.T) {
	trades := closes(5, 5)
	for i := range trades {
		trades[i].RealizedPnL = 0
	}
	upd, err := DefaultAdaptPolicy().Adapt(DefaultThresholdConfig(), trades)
	require.NoError(t, err)
	assert.Equal(t, 0.0, upd.WinRate)
}

func TestThresholdConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultThresholdConfig().Validate())
	assert.Error(t, ThresholdConfig{BuyThreshold: 1.2, SellThreshold: 0.5, Mode: ModeNeutral}.Validate())
	assert.Error(t, ThresholdConfig{BuyThreshold: 0.5, SellThreshold: -0.1, Mode: ModeNeutral}.Validate())
	assert.Error(t, ThresholdConfig{BuyThreshold: 0.5, SellThreshold: 0.5, Mode: "YOLO"}.Validate())
}
