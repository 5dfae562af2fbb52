package ledger

import (
	"fmt"
	"time"

	"github.com/alejandrodnm/sentibot/internal/domain"
)

// exitRule evalúa las reglas de salida en orden fijo; la primera que dispara gana.
// pos ya tiene el peak actualizado con pnl.
//
//  1. Trailing stop: armado cuando el peak supera TrailingActivation; dispara si
//     se devuelve más de peak × TrailingCallback.
//  2. Stop loss: cambio <= −StopLossPct.
//  3. Take profit: cambio >= TakeProfitPct.
//  4. Time exit: edad > MaxHold y pnl > MinScalpProfit. Los perdedores viejos no
//     se cierran por tiempo.
func (l *Ledger) exitRule(pos domain.Position, pnl, pct float64, now time.Time) (domain.CloseReason, string) {
	if pos.PeakPnL > l.cfg.TrailingActivation {
		drop := pos.PeakPnL - pnl
		if drop > pos.PeakPnL*l.cfg.TrailingCallback {
			return domain.ReasonTrailingStop,
				fmt.Sprintf("profit dropped from $%.2f to $%.2f", pos.PeakPnL, pnl)
		}
	}

	if pct <= -l.cfg.StopLossPct {
		return domain.ReasonStopLoss, fmt.Sprintf("change %.2f%% <= -%.2f%%", pct*100, l.cfg.StopLossPct*100)
	}

	if pct >= l.cfg.TakeProfitPct {
		return domain.ReasonTakeProfit, fmt.Sprintf("change %.2f%% >= +%.2f%%", pct*100, l.cfg.TakeProfitPct*100)
	}

	if age := pos.Age(now); age > l.cfg.MaxHold && pnl > l.cfg.MinScalpProfit {
		return domain.ReasonTimeExit, fmt.Sprintf("held %s and green ($%.2f)", age.Round(time.Second), pnl)
	}

	return "", ""
}
