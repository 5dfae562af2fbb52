package ports

import "context"

// PriceOracle devuelve el precio actual de un ticker.
type PriceOracle interface {
	// Price devuelve (precio, true) o (0, false) si no hay precio este tick.
	// Nunca devuelve error: cualquier fallo de red o de datos se degrada a "no disponible".
	Price(ctx context.Context, ticker string) (float64, bool)
}

// PriceFunc adapta una función a PriceOracle.
type PriceFunc func(ctx context.Context, ticker string) (float64, bool)

// Price implementa PriceOracle.
func (f PriceFunc) Price(ctx context.Context, ticker string) (float64, bool) {
	return f(ctx, ticker)
}
