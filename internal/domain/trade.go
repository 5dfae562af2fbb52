package domain

import (
	"strings"
	"time"
)

// CloseReason es la regla que cerró una posición.
type CloseReason string

const (
	ReasonStopLoss     CloseReason = "STOP_LOSS"
	ReasonTakeProfit   CloseReason = "TAKE_PROFIT"
	ReasonTrailingStop CloseReason = "TRAILING_STOP"
	ReasonTimeExit     CloseReason = "TIME_EXIT"
	ReasonFlipSignal   CloseReason = "FLIP_SIGNAL"
)

// TradeAction es la acción registrada en el trade log.
type TradeAction string

const (
	ActionOpenLong  TradeAction = "OPEN_LONG"
	ActionOpenShort TradeAction = "OPEN_SHORT"

	closePrefix = "CLOSE_"
)

// OpenAction devuelve la acción de apertura para un lado.
func OpenAction(side Side) TradeAction {
	return TradeAction("OPEN_" + string(side))
}

// CloseAction devuelve la acción de cierre para una razón.
func CloseAction(reason CloseReason) TradeAction {
	return TradeAction(closePrefix + string(reason))
}

// IsClose indica si la acción cierra una posición.
func (a TradeAction) IsClose() bool {
	return strings.HasPrefix(string(a), closePrefix)
}

// Reason devuelve la razón de cierre, o "" si la acción es de apertura.
func (a TradeAction) Reason() CloseReason {
	if !a.IsClose() {
		return ""
	}
	return CloseReason(strings.TrimPrefix(string(a), closePrefix))
}

// TradeRecord es una entrada append-only del trade log. Nunca se modifica.
type TradeRecord struct {
	ID          string
	Timestamp   time.Time
	Ticker      string
	Action      TradeAction
	Price       float64
	Shares      float64
	RealizedPnL float64
	SignalID    SignalID // señal que originó la apertura o el flip, vacío en cierres por regla de salida
}

// IsWin indica si un cierre fue ganador.
func (t TradeRecord) IsWin() bool {
	return t.Action.IsClose() && t.RealizedPnL > 0
}

// ClosedOnly filtra los cierres de un trade log, preservando el orden.
func ClosedOnly(trades []TradeRecord) []TradeRecord {
	out := make([]TradeRecord, 0, len(trades))
	for _, t := range trades {
		if t.Action.IsClose() {
			out = append(out, t)
		}
	}
	return out
}
