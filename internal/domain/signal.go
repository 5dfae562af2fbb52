package domain

import (
	"strings"
	"time"
)

// SignalKind es la sugerencia de trade que lleva una señal.
type SignalKind string

const (
	SignalBuy  SignalKind = "BUY"
	SignalSell SignalKind = "SELL"
	SignalHold SignalKind = "HOLD"
)

// ParseSignalKind interpreta la etiqueta del feed. El collector escribe etiquetas
// con la regla entre paréntesis ("BUY (Social-Arbitrage)"), así que solo importa
// el prefijo.
func ParseSignalKind(label string) SignalKind {
	l := strings.ToUpper(strings.TrimSpace(label))
	switch {
	case strings.HasPrefix(l, string(SignalBuy)):
		return SignalBuy
	case strings.HasPrefix(l, string(SignalSell)):
		return SignalSell
	default:
		return SignalHold
	}
}

// SignalID identifica una señal para deduplicación: (timestamp, ticker).
type SignalID string

// Signal es una fila del feed de señales. Inmutable una vez registrada.
type Signal struct {
	Timestamp time.Time
	Ticker    string
	Kind      SignalKind
	Label     string  // etiqueta original, p.ej. "SELL (Rebellion)"
	Score     float64 // sentimiento social en [-1, 1]
	NewsScore float64 // composite de titulares en [-1, 1]
	Diversity float64 // textos únicos / textos nuevos
}

// ID devuelve la identidad de la señal. El timestamp se normaliza a segundos UTC,
// que es la resolución con la que se persiste el feed.
func (s Signal) ID() SignalID {
	ts := s.Timestamp.UTC().Truncate(time.Second).Format(time.RFC3339)
	return SignalID(ts + "_" + NormalizeTicker(s.Ticker))
}

// NormalizeTicker quita el prefijo "$" de cashtag y pasa a mayúsculas.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(ticker), "$"))
}

// Cashtag devuelve el ticker con prefijo "$", como se busca en redes sociales.
func Cashtag(ticker string) string {
	return "$" + NormalizeTicker(ticker)
}
