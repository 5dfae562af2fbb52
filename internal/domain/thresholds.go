package domain

import (
	"fmt"
	"math"
)

// Mode es la postura adaptativa derivada del win rate reciente.
type Mode string

const (
	ModeAggressive Mode = "AGGRESSIVE"
	ModeNeutral    Mode = "NEUTRAL"
	ModeDefensive  Mode = "DEFENSIVE"
)

// Valid indica si el modo es uno de los tres conocidos.
func (m Mode) Valid() bool {
	switch m {
	case ModeAggressive, ModeNeutral, ModeDefensive:
		return true
	}
	return false
}

// ThresholdConfig es el singleton persistido que lee el Decision Engine cada tick.
type ThresholdConfig struct {
	BuyThreshold    float64 `json:"buy_threshold"`
	SellThreshold   float64 `json:"sell_threshold"`
	MaxPositionSize float64 `json:"max_position_size,omitempty"`
	Mode            Mode    `json:"mode"`
}

// DefaultThresholdConfig es la postura neutral: {0.5, 0.5, NEUTRAL}.
func DefaultThresholdConfig() ThresholdConfig {
	return ThresholdConfig{
		BuyThreshold:  0.5,
		SellThreshold: 0.5,
		Mode:          ModeNeutral,
	}
}

// Validate comprueba rangos y modo.
func (c ThresholdConfig) Validate() error {
	if c.BuyThreshold < 0 || c.BuyThreshold > 1 || math.IsNaN(c.BuyThreshold) {
		return fmt.Errorf("buy_threshold %v out of [0,1]", c.BuyThreshold)
	}
	if c.SellThreshold < 0 || c.SellThreshold > 1 || math.IsNaN(c.SellThreshold) {
		return fmt.Errorf("sell_threshold %v out of [0,1]", c.SellThreshold)
	}
	if !c.Mode.Valid() {
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	return nil
}

// AdaptPolicy define la curva de recompensa/castigo.
type AdaptPolicy struct {
	Window       int     // cierres recientes analizados
	MinSample    int     // cierres mínimos antes de adaptar
	HotWinRate   float64 // win rate >= → AGGRESSIVE
	ColdWinRate  float64 // win rate <= → DEFENSIVE
	RewardFactor float64
	PunishFactor float64
	Floor        float64
	Ceiling      float64
}

// DefaultAdaptPolicy: ventana 10, mínimo 5, ×0.98 con piso 0.35, ×1.05 con techo 0.85.
func DefaultAdaptPolicy() AdaptPolicy {
	return AdaptPolicy{
		Window:       10,
		MinSample:    5,
		HotWinRate:   0.70,
		ColdWinRate:  0.40,
		RewardFactor: 0.98,
		PunishFactor: 1.05,
		Floor:        0.35,
		Ceiling:      0.85,
	}
}

// ThresholdUpdate describe el resultado de una adaptación.
type ThresholdUpdate struct {
	Previous ThresholdConfig
	Next     ThresholdConfig
	WinRate  float64
	Sample   int
}

// Changed indica si el update cambia algo persistible.
func (u ThresholdUpdate) Changed() bool {
	return u.Previous != u.Next
}

// Adapt calcula los nuevos thresholds a partir del historial de cierres
// (en orden cronológico). Con menos de MinSample cierres devuelve ErrInsufficientSample
// y la config queda intacta.
//
// Buy y sell comparten un único escalar: se parte de BuyThreshold y ambos
// quedan con el mismo valor redondeado a 3 decimales.
func (p AdaptPolicy) Adapt(cur ThresholdConfig, closed []TradeRecord) (ThresholdUpdate, error) {
	upd := ThresholdUpdate{Previous: cur, Next: cur}
	if len(closed) < p.MinSample {
		upd.Sample = len(closed)
		return upd, ErrInsufficientSample
	}

	recent := closed
	if p.Window > 0 && len(recent) > p.Window {
		recent = recent[len(recent)-p.Window:]
	}
	wins := 0
	for _, t := range recent {
		if t.RealizedPnL > 0 {
			wins++
		}
	}
	upd.Sample = len(recent)
	upd.WinRate = float64(wins) / float64(len(recent))

	t := cur.BuyThreshold
	mode := ModeNeutral
	switch {
	case upd.WinRate >= p.HotWinRate:
		t = math.Max(p.Floor, t*p.RewardFactor)
		mode = ModeAggressive
	case upd.WinRate <= p.ColdWinRate:
		t = math.Min(p.Ceiling, t*p.PunishFactor)
		mode = ModeDefensive
	}

	t = round3(t)
	upd.Next.BuyThreshold = t
	upd.Next.SellThreshold = t
	upd.Next.Mode = mode
	return upd, nil
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
