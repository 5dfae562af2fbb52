package domain

import "errors"

var (
	// ErrPriceUnavailable: el oráculo no devolvió precio este tick. Se reintenta el siguiente.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrDuplicateSignal: la señal ya fue consumida. No-op silencioso.
	ErrDuplicateSignal = errors.New("duplicate signal")
	// ErrInvalidPrice: precio en o por debajo del mínimo. La apertura se rechaza.
	ErrInvalidPrice = errors.New("price at or below minimum floor")
	// ErrInsufficientSample: pocos cierres para adaptar los thresholds. No es un fallo.
	ErrInsufficientSample = errors.New("insufficient closed trades")
	// ErrConfigCorrupt: config de thresholds ilegible. Se vuelve a los defaults.
	ErrConfigCorrupt = errors.New("threshold config corrupt")

	ErrPositionExists   = errors.New("position already open on same side")
	ErrOppositePosition = errors.New("opposite position open, flip required")
	ErrNoPosition       = errors.New("no open position")
)
