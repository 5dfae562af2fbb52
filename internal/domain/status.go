package domain

import "time"

// EventKind clasifica las líneas de estado que ve el usuario.
type EventKind string

const (
	EventDecision  EventKind = "DECISION"
	EventHold      EventKind = "HOLD"
	EventOpen      EventKind = "OPEN"
	EventClose     EventKind = "CLOSE"
	EventFlip      EventKind = "FLIP"
	EventRejected  EventKind = "REJECTED"
	EventThreshold EventKind = "THRESHOLD"
	EventSkip      EventKind = "SKIP"
	EventHeartbeat EventKind = "HEARTBEAT"
)

// StatusEvent es un cambio de estado reportado al usuario. Ningún cambio de estado
// del ledger o de los thresholds ocurre sin su evento.
type StatusEvent struct {
	Kind    EventKind
	At      time.Time
	Ticker  string
	Side    Side
	Price   float64
	Shares  float64
	PnL     float64
	Reason  CloseReason
	Message string
}

// PositionMark es una posición abierta con su último precio conocido.
type PositionMark struct {
	Position
	Current    float64
	Unrealized float64
	Priced     bool // false si el oráculo no dio precio este tick
}

// Snapshot es el estado del dashboard al final de un ciclo.
type Snapshot struct {
	At         time.Time
	Cycle      int
	Positions  []PositionMark
	Realized   float64
	Unrealized float64
	Thresholds ThresholdConfig
}

// Total devuelve realizado + no realizado.
func (s Snapshot) Total() float64 {
	return s.Realized + s.Unrealized
}
