package domain

import (
	"math"
	"time"
)

const (
	tradingDays         = 252
	minutesPerDay       = 390
	ratingInstitutional = 3.0
	ratingSolid         = 1.5
)

// PerformanceStats resume el rendimiento realizado del trade log.
type PerformanceStats struct {
	TotalPnL   float64
	TradeCount int
	Wins       int
	WinRate    float64 // 0–1
	Sharpe     float64 // anualizado sobre buckets de 1 minuto
	First      time.Time
	Last       time.Time
}

// Rating traduce el Sharpe a una nota.
func (s PerformanceStats) Rating() string {
	switch {
	case s.Sharpe > ratingInstitutional:
		return "INSTITUTIONAL GRADE (A+)"
	case s.Sharpe > ratingSolid:
		return "SOLID RETAIL STRATEGY (B)"
	default:
		return "NEEDS OPTIMIZATION (C)"
	}
}

// ComputeStats calcula las métricas sobre los cierres del trade log.
func ComputeStats(trades []TradeRecord) PerformanceStats {
	closed := ClosedOnly(trades)
	var st PerformanceStats
	if len(closed) == 0 {
		return st
	}

	st.TradeCount = len(closed)
	st.First = closed[0].Timestamp
	st.Last = closed[0].Timestamp
	for _, t := range closed {
		st.TotalPnL += t.RealizedPnL
		if t.RealizedPnL > 0 {
			st.Wins++
		}
		if t.Timestamp.Before(st.First) {
			st.First = t.Timestamp
		}
		if t.Timestamp.After(st.Last) {
			st.Last = t.Timestamp
		}
	}
	st.WinRate = float64(st.Wins) / float64(st.TradeCount)
	st.Sharpe = MinuteSharpe(closed)
	return st
}

// MinuteSharpe agrupa el PnL realizado en buckets de 1 minuto (los minutos sin
// cierres cuentan como 0) y anualiza media/desviación con √(252×390).
// Con menos de 2 buckets o desviación 0 devuelve 0.
func MinuteSharpe(closed []TradeRecord) float64 {
	if len(closed) == 0 {
		return 0
	}
	first := closed[0].Timestamp.Truncate(time.Minute)
	last := first
	for _, t := range closed {
		m := t.Timestamp.Truncate(time.Minute)
		if m.Before(first) {
			first = m
		}
		if m.After(last) {
			last = m
		}
	}

	n := int(last.Sub(first)/time.Minute) + 1
	if n < 2 {
		return 0
	}
	buckets := make([]float64, n)
	for _, t := range closed {
		idx := int(t.Timestamp.Truncate(time.Minute).Sub(first) / time.Minute)
		buckets[idx] += t.RealizedPnL
	}

	mean := 0.0
	for _, b := range buckets {
		mean += b
	}
	mean /= float64(n)

	variance := 0.0
	for _, b := range buckets {
		variance += (b - mean) * (b - mean)
	}
	std := math.Sqrt(variance / float64(n-1))
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(tradingDays*minutesPerDay)
}
