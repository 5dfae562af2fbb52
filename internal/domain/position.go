package domain

import (
	"math"
	"time"
)

// Side es la dirección de una posición simulada.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Opposite devuelve el lado contrario.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// SideFor traduce una señal a un lado. HOLD no tiene lado.
func SideFor(kind SignalKind) (Side, bool) {
	switch kind {
	case SignalBuy:
		return SideLong, true
	case SignalSell:
		return SideShort, true
	default:
		return "", false
	}
}

// Position es una posición abierta en papel. Como máximo una por ticker.
type Position struct {
	Ticker     string
	Side       Side
	Shares     float64
	EntryPrice float64
	OpenedAt   time.Time
	PeakPnL    float64 // -Inf hasta el primer mark
	LastPrice  float64 // último precio observado, 0 si nunca se marcó
	SignalID   SignalID
}

// NewPosition crea una posición con el tamaño nocional dado.
func NewPosition(ticker string, side Side, price, notional float64, at time.Time) Position {
	return Position{
		Ticker:     ticker,
		Side:       side,
		Shares:     notional / price,
		EntryPrice: price,
		OpenedAt:   at,
		PeakPnL:    math.Inf(-1),
	}
}

// PnLAt devuelve el PnL no realizado a un precio, con signo según el lado.
//
//	LONG:  (current − entry) × shares
//	SHORT: (entry − current) × shares
func (p Position) PnLAt(price float64) float64 {
	if p.Side == SideShort {
		return (p.EntryPrice - price) * p.Shares
	}
	return (price - p.EntryPrice) * p.Shares
}

// PctChangeAt devuelve el cambio relativo a favor de la posición (0.01 = +1%).
func (p Position) PctChangeAt(price float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	if p.Side == SideShort {
		return (p.EntryPrice - price) / p.EntryPrice
	}
	return (price - p.EntryPrice) / p.EntryPrice
}

// Mark registra un precio y actualiza el pico de PnL. Devuelve el PnL actual.
// PeakPnL nunca decrece mientras la posición está abierta.
func (p *Position) Mark(price float64) float64 {
	pnl := p.PnLAt(price)
	if pnl > p.PeakPnL {
		p.PeakPnL = pnl
	}
	p.LastPrice = price
	return pnl
}

// HasPeak indica si la posición ya recibió al menos un mark.
func (p Position) HasPeak() bool {
	return !math.IsInf(p.PeakPnL, -1)
}

// Age devuelve cuánto tiempo lleva abierta la posición.
func (p Position) Age(now time.Time) time.Duration {
	return now.Sub(p.OpenedAt)
}
