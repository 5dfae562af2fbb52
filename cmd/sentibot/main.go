package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/sentibot/config"
	"github.com/alejandrodnm/sentibot/internal/adapters/httpapi"
	"github.com/alejandrodnm/sentibot/internal/adapters/notify"
	"github.com/alejandrodnm/sentibot/internal/adapters/quote"
	"github.com/alejandrodnm/sentibot/internal/adapters/redis"
	"github.com/alejandrodnm/sentibot/internal/adapters/sidecar"
	"github.com/alejandrodnm/sentibot/internal/adapters/storage"
	"github.com/alejandrodnm/sentibot/internal/application/collector"
	"github.com/alejandrodnm/sentibot/internal/application/decision"
	"github.com/alejandrodnm/sentibot/internal/application/ledger"
	"github.com/alejandrodnm/sentibot/internal/application/scheduler"
	"github.com/alejandrodnm/sentibot/internal/application/thresholds"
	"github.com/alejandrodnm/sentibot/internal/domain"
	"github.com/alejandrodnm/sentibot/internal/ports"
	"golang.org/x/sync/errgroup"
)

const (
	modeTrader    = "trader"
	modeCollector = "collector"
	modeAll       = "all"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	mode := flag.String("mode", "", "what to run: trader|collector|all (default: all if collector.enabled, else trader)")
	once := flag.Bool("once", false, "run one cycle and exit")
	report := flag.Bool("report", false, "print the performance report and exit")
	learn := flag.Bool("learn", false, "adapt thresholds from recent closes and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	if *mode == "" {
		*mode = modeTrader
		if cfg.Collector.Enabled {
			*mode = modeAll
		}
	}
	switch *mode {
	case modeTrader, modeCollector, modeAll:
	default:
		slog.Error("unknown mode", "mode", *mode)
		os.Exit(2)
	}

	slog.Info("sentibot starting",
		"config", *configPath,
		"mode", *mode,
		"once", *once,
		"report", *report,
		"learn", *learn,
	)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	console := notify.NewConsole()
	thresholdFile := storage.NewThresholdFile(cfg.Thresholds.Path)

	policy := domain.DefaultAdaptPolicy()
	policy.Window = cfg.Thresholds.Window
	policy.MinSample = cfg.Thresholds.MinSample
	controller := thresholds.New(thresholdFile, store, console, policy)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := controller.Load(ctx); err != nil {
		slog.Warn("thresholds load failed, using defaults", "err", err, "path", thresholdFile.Path())
	}

	switch {
	case *report:
		runReport(ctx, store, console)
		return
	case *learn:
		runLearn(ctx, controller, console)
		return
	}

	rules := domain.DecisionRules{
		DiversityCutoff: cfg.Decision.DiversityCutoff,
		NewsQuietCutoff: cfg.Decision.NewsQuietCutoff,
	}

	var (
		sched *scheduler.Scheduler
		coll  *collector.Collector
	)
	if *mode != modeCollector {
		prices, closeCache := buildOracle(ctx, cfg)
		defer closeCache()

		sched, err = buildTrader(ctx, cfg, store, controller, prices, console, rules)
		if err != nil {
			slog.Error("failed to start trader", "err", err)
			os.Exit(1)
		}
	}
	if *mode != modeTrader {
		// El collector solo lee thresholds. En modo collector los relee del archivo
		// que escribe el proceso trader.
		var source ports.ThresholdSource = controller
		if *mode == modeCollector {
			source = thresholds.NewStoreSource(thresholdFile)
		}
		coll = buildCollector(cfg, store, source, rules)
	}

	if *once {
		if coll != nil {
			coll.RunCycle(ctx)
		}
		if sched != nil {
			sched.RunOnce(ctx)
		}
		return
	}

	if err := run(ctx, sched, coll); err != nil {
		slog.Error("sentibot exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("sentibot stopped cleanly")
}

// run corre trader y collector en paralelo. Cuando el trader termina
// (STOP file) se detiene también el collector.
func run(ctx context.Context, sched *scheduler.Scheduler, coll *collector.Collector) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	if sched != nil {
		g.Go(func() error {
			defer cancel()
			return sched.Run(ctx)
		})
	}
	if coll != nil {
		g.Go(func() error {
			return coll.Run(ctx)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// buildOracle devuelve el oracle de precios. Con redis.addr configurado los
// precios se comparten vía Redis; si Redis no responde se sigue sin cache.
func buildOracle(ctx context.Context, cfg *config.Config) (oracle, func()) {
	quotes := quote.NewClient(cfg.API.QuoteBase, httpapi.Options{})
	if cfg.Redis.Addr == "" {
		return quotes, func() {}
	}

	rc, err := redis.New(ctx, redis.ClientConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		slog.Warn("redis unavailable, prices not cached", "err", err, "addr", cfg.Redis.Addr)
		return quotes, func() {}
	}
	slog.Info("price cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.PriceTTL())

	cached := redis.NewCachedOracle(redis.NewPriceCache(rc, cfg.PriceTTL()), quotes, cfg.PriceTTL())
	return cached, func() { _ = rc.Close() }
}

// oracle es un PriceOracle que además se puede reiniciar.
type oracle interface {
	ports.PriceOracle
	ports.Restarter
}

func buildTrader(ctx context.Context, cfg *config.Config, store *storage.SQLiteStorage, controller *thresholds.Controller,
	prices oracle, sink ports.StatusSink, rules domain.DecisionRules) (*scheduler.Scheduler, error) {
	book := ledger.New(ledger.Config{
		MinPrice:           cfg.Trader.MinPrice,
		StopLossPct:        cfg.Trader.StopLossPct,
		TakeProfitPct:      cfg.Trader.TakeProfitPct,
		TrailingActivation: cfg.Trader.TrailingActivation,
		TrailingCallback:   cfg.Trader.TrailingCallback,
		MaxHold:            cfg.MaxHold(),
		MinScalpProfit:     cfg.Trader.MinScalpProfit,
		Strict:             cfg.Trader.Strict,
	}, store, sink, controller)
	if err := book.Restore(ctx); err != nil {
		return nil, err
	}

	engine := decision.New(decision.Config{
		Rules:        rules,
		PositionSize: cfg.Trader.PositionSize,
		SeenCapacity: cfg.Trader.SeenCapacity,
	}, book, prices, controller, sink)

	// Señales ya presentes en el feed o ya operadas no se vuelven a consumir.
	feedIDs, err := store.AllSignalIDs(ctx)
	if err != nil {
		return nil, err
	}
	tradedIDs, err := store.TradedSignalIDs(ctx)
	if err != nil {
		return nil, err
	}
	n := engine.Rehydrate(feedIDs) + engine.Rehydrate(tradedIDs)
	slog.Info("trader restored",
		"open_positions", len(book.Positions()),
		"realized", book.Realized(),
		"seen_signals", n,
		"threshold", controller.Current().BuyThreshold,
	)

	return scheduler.New(scheduler.Config{
		Interval:     cfg.TraderInterval(),
		MinRest:      cfg.TraderMinRest(),
		Lookback:     cfg.Trader.SignalLookback,
		RestartEvery: cfg.Trader.RestartEveryCycles,
		Heartbeat:    cfg.Heartbeat(),
		StopFile:     cfg.Trader.StopFile,
	}, store, engine, book, prices, controller, sink, prices), nil
}

func buildCollector(cfg *config.Config, store *storage.SQLiteStorage, source ports.ThresholdSource, rules domain.DecisionRules) *collector.Collector {
	side := sidecar.NewClient(cfg.API.SidecarBase, httpapi.Options{})
	return collector.New(collector.Config{
		Interval:     cfg.CollectorInterval(),
		MinRest:      cfg.CollectorMinRest(),
		MaxPosts:     cfg.Collector.MaxPosts,
		SeenPosts:    cfg.Collector.SeenPosts,
		RefreshEvery: cfg.Collector.RefreshEveryCycles,
		RestartEvery: cfg.Collector.RestartEveryCycles,
		Pause:        cfg.CollectorPause(),
	}, collector.Sources{
		News:      side,
		Social:    side,
		Scorer:    side,
		WatchList: side,
	}, store, source, rules, side)
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
