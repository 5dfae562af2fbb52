package notify

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/sentibot/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.StatusSink sobre un io.Writer.
// Un único mutex serializa todo lo que escribe: el heartbeat corre en otra
// goroutine y sus líneas nunca se intercalan con el dashboard.
type Console struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout, now: time.Now}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w, now: time.Now}
}

// Event imprime una línea de estado.
func (c *Console) Event(ev domain.StatusEvent) {
	at := ev.At
	if at.IsZero() {
		at = c.now()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %-9s", at.Format("15:04:05"), ev.Kind)
	switch ev.Kind {
	case domain.EventOpen:
		fmt.Fprintf(&sb, " %s %s: %.2f sh @ $%.2f", ev.Side, ev.Ticker, ev.Shares, ev.Price)
	case domain.EventClose:
		fmt.Fprintf(&sb, " %s %s @ $%.2f (%s) PnL %s", ev.Side, ev.Ticker, ev.Price, ev.Reason, money(ev.PnL))
	case domain.EventRejected:
		fmt.Fprintf(&sb, " %s %s: %s", ev.Side, ev.Ticker, ev.Message)
	default:
		if ev.Ticker != "" {
			fmt.Fprintf(&sb, " %s:", ev.Ticker)
		}
		if ev.Message != "" {
			fmt.Fprintf(&sb, " %s", ev.Message)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, sb.String())
}

// Dashboard imprime el estado al final de un ciclo.
func (c *Console) Dashboard(snap domain.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "\n[%s] cycle %d | mode %s | T=%.3f\n",
		snap.At.Format("15:04:05"), snap.Cycle, snap.Thresholds.Mode, snap.Thresholds.BuyThreshold)

	if len(snap.Positions) == 0 {
		fmt.Fprintln(c.out, "  No positions. Listening...")
	} else {
		table := tablewriter.NewWriter(c.out)
		table.Header("Ticker", "Side", "Shares", "Entry", "Current", "Unrealized", "Peak", "Age")
		for _, m := range snap.Positions {
			current, unrealized, peak := "n/a", "n/a", "-"
			if m.Priced {
				current = fmt.Sprintf("$%.2f", m.Current)
				unrealized = money(m.Unrealized)
			}
			if m.HasPeak() {
				peak = money(m.PeakPnL)
			}
			table.Append(
				m.Ticker,
				string(m.Side),
				fmt.Sprintf("%.2f", m.Shares),
				fmt.Sprintf("$%.2f", m.EntryPrice),
				current,
				unrealized,
				peak,
				m.Age(snap.At).Round(time.Second).String(),
			)
		}
		table.Render()
	}

	fmt.Fprintf(c.out, "  Realized %s | Unrealized %s | Total %s\n",
		money(snap.Realized), money(snap.Unrealized), money(snap.Total()))
}

// PrintReport imprime el informe de rendimiento y los últimos cierres.
func (c *Console) PrintReport(stats domain.PerformanceStats, recent []domain.TradeRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if stats.TradeCount == 0 {
		fmt.Fprintln(c.out, "\n  No closed trades yet. Run the trader first.")
		return
	}

	fmt.Fprintf(c.out, "\n")
	fmt.Fprintf(c.out, "========================================================\n")
	fmt.Fprintf(c.out, "  PERFORMANCE REPORT\n")
	fmt.Fprintf(c.out, "  %s to %s\n", stats.First.Format("2006-01-02 15:04"), stats.Last.Format("2006-01-02 15:04"))
	fmt.Fprintf(c.out, "========================================================\n\n")

	fmt.Fprintf(c.out, "  Total PnL:     %s\n", money(stats.TotalPnL))
	fmt.Fprintf(c.out, "  Closed trades: %d\n", stats.TradeCount)
	fmt.Fprintf(c.out, "  Win rate:      %.1f%% (%d/%d)\n", stats.WinRate*100, stats.Wins, stats.TradeCount)
	fmt.Fprintf(c.out, "  Sharpe:        %.2f\n", stats.Sharpe)
	fmt.Fprintf(c.out, "  Rating:        %s\n", stats.Rating())

	if len(recent) == 0 {
		return
	}
	fmt.Fprintln(c.out)
	table := tablewriter.NewWriter(c.out)
	table.Header("Time", "Ticker", "Action", "Price", "Shares", "PnL")
	for _, t := range recent {
		table.Append(
			t.Timestamp.Local().Format("01-02 15:04:05"),
			t.Ticker,
			string(t.Action),
			fmt.Sprintf("$%.2f", t.Price),
			fmt.Sprintf("%.2f", t.Shares),
			money(t.RealizedPnL),
		)
	}
	table.Render()
}

// PrintThresholds imprime el resultado de una adaptación manual (--learn).
func (c *Console) PrintThresholds(upd domain.ThresholdUpdate, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		fmt.Fprintf(c.out, "  Thresholds unchanged (%v): buy %.3f sell %.3f mode %s\n",
			err, upd.Previous.BuyThreshold, upd.Previous.SellThreshold, upd.Previous.Mode)
		return
	}
	fmt.Fprintf(c.out, "  Win rate %.0f%% over last %d trades\n", upd.WinRate*100, upd.Sample)
	fmt.Fprintf(c.out, "  Mode %s -> %s | threshold %.3f -> %.3f\n",
		upd.Previous.Mode, upd.Next.Mode, upd.Previous.BuyThreshold, upd.Next.BuyThreshold)
}

func money(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("+$%.2f", v)
}
