// Package collector es el productor del feed: por cada ticker vigilado combina
// titulares y posts en una señal y la agrega al feed si no es HOLD.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/alejandrodnm/sentibot/internal/application/scheduler"
	"github.com/alejandrodnm/sentibot/internal/dedup"
	"github.com/alejandrodnm/sentibot/internal/domain"
	"github.com/alejandrodnm/sentibot/internal/ports"
)

var spamMarkers = []string{"discord.gg", "t.me/", "whatsapp", "join my group"}

// DefaultWatchList se usa mientras no haya candidatos del scanner.
var DefaultWatchList = []string{"NVDA", "TSLA", "AMD"}

// Config del collector.
type Config struct {
	Interval     time.Duration
	MinRest      time.Duration
	MaxPosts     int           // posts por búsqueda
	SeenPosts    int           // capacidad del set de posts ya vistos
	RefreshEvery int           // ciclos entre refrescos del watch list
	RestartEvery int           // ciclos entre Restart de los scrapers (0 = nunca)
	Pause        time.Duration // pausa base entre tickers, con jitter de hasta otro tanto
}

// Sources agrupa los colaboradores externos.
type Sources struct {
	News      ports.NewsSource
	Social    ports.SocialSource
	Scorer    ports.SentimentScorer
	WatchList ports.WatchList
}

// SocialSnapshot resume los posts nuevos de un ticker en un ciclo.
type SocialSnapshot struct {
	Fetched   int
	Spam      int
	New       int
	Unique    int
	Scored    int
	Diversity float64 // únicos / nuevos
	Score     float64 // sentimiento medio de los nuevos
}

// Collector corre en su propia goroutine. No toca ledger ni thresholds: solo lee
// thresholds y agrega filas al feed.
type Collector struct {
	cfg        Config
	src        Sources
	feed       ports.SignalRecorder
	thresholds ports.ThresholdSource
	rules      domain.DecisionRules
	restarters []ports.Restarter

	seen    *dedup.FIFO[string]
	tickers []string
	cycles  int
	now     func() time.Time
}

// New crea el collector.
func New(cfg Config, src Sources, feed ports.SignalRecorder, thresholds ports.ThresholdSource,
	rules domain.DecisionRules, restarters ...ports.Restarter) *Collector {
	if cfg.MaxPosts <= 0 {
		cfg.MaxPosts = 15
	}
	if cfg.SeenPosts <= 0 {
		cfg.SeenPosts = 2000
	}
	if cfg.RefreshEvery <= 0 {
		cfg.RefreshEvery = 15
	}
	return &Collector{
		cfg:        cfg,
		src:        src,
		feed:       feed,
		thresholds: thresholds,
		rules:      rules,
		restarters: restarters,
		seen:       dedup.NewFIFO[string](cfg.SeenPosts),
		tickers:    append([]string(nil), DefaultWatchList...),
		now:        time.Now,
	}
}

// Tickers devuelve el watch list vigente.
func (c *Collector) Tickers() []string {
	return append([]string(nil), c.tickers...)
}

// RefreshWatchList pide candidatos nuevos. Si falla o viene vacío se mantiene la lista anterior.
func (c *Collector) RefreshWatchList(ctx context.Context) {
	if c.src.WatchList == nil {
		return
	}
	raw, err := c.src.WatchList.Candidates(ctx)
	if err != nil {
		slog.Warn("collector: watch list refresh failed, keeping previous", "tickers", c.tickers, "err", err)
		return
	}

	seen := make(map[string]bool, len(raw))
	var next []string
	for _, t := range raw {
		n := domain.NormalizeTicker(t)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		next = append(next, n)
	}
	if len(next) == 0 {
		slog.Warn("collector: scanner returned no candidates, keeping previous", "tickers", c.tickers)
		return
	}
	c.tickers = next
	slog.Info("collector: tracking targets", "tickers", c.tickers)
}

// NewsScore es el composite de los titulares ponderado por credibilidad de la fuente.
// Los titulares que el modelo no puede clasificar no cuentan.
func (c *Collector) NewsScore(ctx context.Context, ticker string) (float64, error) {
	headlines, err := c.src.News.Headlines(ctx, ticker)
	if err != nil {
		return 0, fmt.Errorf("collector.NewsScore %s: %w", ticker, err)
	}

	scores := make([]float64, 0, len(headlines))
	weights := make([]float64, 0, len(headlines))
	for _, h := range headlines {
		s, err := c.src.Scorer.Score(ctx, h.Title, domain.SourceNews)
		if err != nil {
			slog.Debug("collector: headline not scored", "ticker", ticker, "err", err)
			continue
		}
		scores = append(scores, s)
		weights = append(weights, h.Verity())
	}
	return domain.WeightedComposite(scores, weights), nil
}

// SocialScore busca el cashtag y resume solo los posts no vistos en ciclos anteriores.
// Un lote lleno de textos repetidos tiene diversidad baja (bots).
func (c *Collector) SocialScore(ctx context.Context, ticker string) (SocialSnapshot, error) {
	var snap SocialSnapshot
	posts, err := c.src.Social.Search(ctx, domain.Cashtag(ticker), c.cfg.MaxPosts)
	if err != nil {
		return snap, fmt.Errorf("collector.SocialScore %s: %w", ticker, err)
	}
	snap.Fetched = len(posts)

	var fresh []string
	for _, p := range posts {
		if isSpam(p) {
			snap.Spam++
			continue
		}
		if c.seen.Contains(p) {
			continue
		}
		fresh = append(fresh, p)
	}
	snap.New = len(fresh)
	if snap.New == 0 {
		return snap, nil
	}

	unique := make(map[string]struct{}, len(fresh))
	var sum float64
	for _, p := range fresh {
		unique[p] = struct{}{}
		c.seen.Add(p)
		s, err := c.src.Scorer.Score(ctx, p, domain.SourceSocial)
		if err != nil {
			continue
		}
		sum += s
		snap.Scored++
	}
	snap.Unique = len(unique)
	snap.Diversity = float64(snap.Unique) / float64(snap.New)
	if snap.Scored > 0 {
		snap.Score = sum / float64(snap.Scored)
	}
	return snap, nil
}

func isSpam(text string) bool {
	l := strings.ToLower(text)
	for _, m := range spamMarkers {
		if strings.Contains(l, m) {
			return true
		}
	}
	return false
}

// Analyze calcula la señal de un ticker. Un fallo de news o de social degrada
// esa mitad a 0 y se sigue.
func (c *Collector) Analyze(ctx context.Context, ticker string) (domain.Signal, domain.Decision) {
	news, err := c.NewsScore(ctx, ticker)
	if err != nil {
		slog.Warn("collector: news failed", "ticker", ticker, "err", err)
		news = 0
	}
	social, err := c.SocialScore(ctx, ticker)
	if err != nil {
		slog.Warn("collector: social failed", "ticker", ticker, "err", err)
	}

	t := c.thresholds.Current().BuyThreshold
	dec := c.rules.Classify(news, social.Score, social.Diversity, t)

	sig := domain.Signal{
		Timestamp: c.now().UTC().Truncate(time.Second),
		Ticker:    domain.NormalizeTicker(ticker),
		Kind:      dec.Kind,
		Label:     dec.Label(),
		Score:     social.Score,
		NewsScore: news,
		Diversity: social.Diversity,
	}
	slog.Info("collector: ticker analyzed",
		"ticker", sig.Ticker,
		"news", fmt.Sprintf("%.2f", news),
		"social", fmt.Sprintf("%.2f", social.Score),
		"gap", fmt.Sprintf("%.2f", social.Score-news),
		"diversity", fmt.Sprintf("%.2f", social.Diversity),
		"new_posts", social.New,
		"signal", sig.Label,
		"priced_in", dec.PricedIn,
	)
	return sig, dec
}

// RunCycle corre un ciclo sobre todo el watch list. Devuelve las señales agregadas al feed.
func (c *Collector) RunCycle(ctx context.Context) []domain.Signal {
	if c.cycles > 0 && c.cfg.RestartEvery > 0 && c.cycles%c.cfg.RestartEvery == 0 {
		for _, r := range c.restarters {
			if err := r.Restart(ctx); err != nil {
				slog.Warn("collector: scraper restart failed", "cycle", c.cycles, "err", err)
			}
		}
	}
	if c.cycles%c.cfg.RefreshEvery == 0 {
		c.RefreshWatchList(ctx)
	}

	var appended []domain.Signal
	for i, ticker := range c.tickers {
		if ctx.Err() != nil {
			break
		}
		if i > 0 && !c.pause(ctx) {
			break
		}

		sig, dec := c.Analyze(ctx, ticker)
		if dec.Kind == domain.SignalHold {
			continue
		}
		if err := c.feed.AppendSignal(ctx, sig); err != nil {
			slog.Warn("collector: could not record signal", "signal", sig.ID(), "err", err)
			continue
		}
		appended = append(appended, sig)
	}
	c.cycles++
	return appended
}

// pause espera entre tickers. Devuelve false si se canceló ctx.
func (c *Collector) pause(ctx context.Context) bool {
	if c.cfg.Pause <= 0 {
		return true
	}
	d := c.cfg.Pause + rand.N(c.cfg.Pause)
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// Run corre ciclos hasta que se cancele ctx.
func (c *Collector) Run(ctx context.Context) error {
	slog.Info("collector started", "interval", c.cfg.Interval, "tickers", c.tickers)
	for {
		start := c.now()
		sigs := c.RunCycle(ctx)

		elapsed := c.now().Sub(start)
		wait := scheduler.RestFor(c.cfg.Interval, c.cfg.MinRest, elapsed)
		slog.Info("collector: cycle done", "cycle", c.cycles, "signals", len(sigs), "took", elapsed.Round(time.Millisecond), "sleep", wait.Round(time.Millisecond))

		select {
		case <-ctx.Done():
			slog.Info("collector stopped", "cycles", c.cycles)
			return nil
		case <-time.After(wait):
		}
	}
}
