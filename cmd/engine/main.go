// Package main is the trading engine entry point. It runs one of three
// modes against the configured symbols: a historical backtest, a grid
// search over strategy parameters, or a live session that replays
// stored bars as tick batches while serving the reporting API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/quantdesk/trading-engine/internal/analytics"
	"github.com/quantdesk/trading-engine/internal/api"
	"github.com/quantdesk/trading-engine/internal/config"
	"github.com/quantdesk/trading-engine/internal/cost"
	"github.com/quantdesk/trading-engine/internal/data"
	"github.com/quantdesk/trading-engine/internal/engine"
	"github.com/quantdesk/trading-engine/internal/ledger"
	"github.com/quantdesk/trading-engine/internal/optimizer"
	"github.com/quantdesk/trading-engine/internal/portfolio"
	"github.com/quantdesk/trading-engine/internal/risk"
	"github.com/quantdesk/trading-engine/internal/strategy"
	"github.com/quantdesk/trading-engine/pkg/types"
)

const syntheticDays = 500

func main() {
	configPath := flag.String("config", "", "Path to YAML config (defaults apply when empty)")
	mode := flag.String("mode", "backtest", "Run mode: backtest, optimize or live")
	synthetic := flag.Bool("synthetic", false, "Generate synthetic bars for symbols with no stored data (demo mode)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting trading engine",
		zap.String("mode", *mode),
		zap.Strings("symbols", cfg.Symbols),
		zap.String("capital", cfg.Capital.String()),
	)

	store, err := data.NewStore(logger, cfg.Data.DataDir)
	if err != nil {
		logger.Fatal("initializing data store failed", zap.Error(err))
	}

	switch *mode {
	case "backtest":
		err = runBacktest(logger, cfg, store, *synthetic)
	case "optimize":
		err = runOptimize(logger, cfg, store, *synthetic)
	case "live":
		err = runLive(logger, cfg, store, *synthetic)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		logger.Fatal("run failed", zap.Error(err))
	}
}

// session bundles the per-run trading stack: one book per strategy
// family, the allocator splitting capital between them, and the shared
// risk and settlement path.
type session struct {
	registry *strategy.Registry
	alloc    *portfolio.Allocator
	risk     *risk.Manager
	settler  *engine.Settler
}

func newSession(logger *zap.Logger, cfg types.EngineConfig, alerter risk.Alerter) (*session, error) {
	registry := strategy.NewRegistry(logger)

	var books []*portfolio.Book
	for _, family := range registry.Families() {
		strat, err := registry.Create(family, cfg.Strategies)
		if err != nil {
			return nil, fmt.Errorf("creating %s strategy: %w", family, err)
		}
		books = append(books, portfolio.NewBook(family, strat))
	}

	alloc := portfolio.NewAllocator(logger, cfg.Capital, books)
	riskMgr := risk.NewManager(logger, cfg.Risk, alerter)
	settler := engine.NewSettler(logger, cost.NewModel(cfg.Costs), riskMgr)
	return &session{registry: registry, alloc: alloc, risk: riskMgr, settler: settler}, nil
}

// loadBenchmark returns the configured benchmark series for alpha/beta.
// An empty symbol or missing data disables the comparison with a logged
// fallback; the benchmark is never synthesized.
func loadBenchmark(logger *zap.Logger, cfg types.EngineConfig, store *data.Store) []types.Bar {
	if cfg.BenchmarkSymbol == "" {
		return nil
	}
	bars, err := store.LoadBars(cfg.BenchmarkSymbol, cfg.Data.Timeframe)
	if err != nil || len(bars) == 0 {
		logger.Warn("benchmark data unavailable, alpha and beta default to zero",
			zap.String("symbol", cfg.BenchmarkSymbol),
			zap.Error(err))
		return nil
	}
	logger.Info("benchmark loaded",
		zap.String("symbol", cfg.BenchmarkSymbol),
		zap.Int("bars", len(bars)))
	return bars
}

func runBacktest(logger *zap.Logger, cfg types.EngineConfig, store *data.Store, synthetic bool) error {
	analyzer := analytics.NewAnalyzer(logger, cfg.RiskFreeRate)
	benchmark := loadBenchmark(logger, cfg, store)

	ran := 0
	for _, symbol := range cfg.Symbols {
		bars, err := store.EnsureBars(symbol, cfg.Data.Timeframe, syntheticDays, synthetic)
		if err != nil {
			return err
		}
		if len(bars) == 0 {
			continue
		}
		ran++

		sess, err := newSession(logger, cfg, risk.NewLogAlerter(logger))
		if err != nil {
			return err
		}
		sim := engine.NewSimulator(logger, sess.alloc, sess.settler, sess.risk)
		result := sim.Run(symbol, bars)
		metrics := analyzer.Analyze(result.EquityCurve, result.Fills, benchmark)

		logger.Info("backtest complete",
			zap.String("symbol", symbol),
			zap.String("finalEquity", metrics.FinalEquity.String()),
			zap.Float64("annualizedReturn", metrics.AnnualizedReturn),
			zap.Float64("sharpe", metrics.Sharpe),
			zap.Float64("sortino", metrics.Sortino),
			zap.Float64("maxDrawdown", metrics.MaxDrawdown),
			zap.Float64("alpha", metrics.Alpha),
			zap.Float64("beta", metrics.Beta),
			zap.Float64("winRate", metrics.WinRate),
			zap.Int("roundTrips", metrics.RoundTrips),
		)
	}
	if ran == 0 {
		return fmt.Errorf("no stored bars for any configured symbol")
	}
	return nil
}

func runOptimize(logger *zap.Logger, cfg types.EngineConfig, store *data.Store, synthetic bool) error {
	symbol := cfg.Symbols[0]
	bars, err := store.EnsureBars(symbol, cfg.Data.Timeframe, syntheticDays, synthetic)
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		return fmt.Errorf("no stored bars for %s", symbol)
	}
	benchmark := loadBenchmark(logger, cfg, store)

	opt := optimizer.New(logger, cfg, strategy.NewRegistry(logger))
	trials, err := opt.Run(context.Background(), symbol, bars, benchmark)
	if err != nil {
		return err
	}

	shown := len(trials)
	if shown > 5 {
		shown = 5
	}
	for i := 0; i < shown; i++ {
		t := trials[i]
		logger.Info("leaderboard entry",
			zap.Int("rank", i+1),
			zap.String("trial", t.ID),
			zap.Float64("sharpe", t.Metrics.Sharpe),
			zap.Int("trendShort", t.Trend.ShortWindow),
			zap.Int("trendLong", t.Trend.LongWindow),
			zap.Int("mrWindow", t.MeanReversion.Window),
			zap.Float64("mrStdDev", t.MeanReversion.StdDev),
		)
	}
	return nil
}

func runLive(logger *zap.Logger, cfg types.EngineConfig, store *data.Store, synthetic bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ldg, err := ledger.Open(cfg.LedgerPath, logger)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer ldg.Close()

	hub := api.NewHub(logger)
	go hub.Run()
	defer hub.Stop()

	// Breach alerts reach both the log and websocket subscribers.
	sess, err := newSession(logger, cfg, multiAlerter{risk.NewLogAlerter(logger), hub})
	if err != nil {
		return err
	}

	coord := engine.NewCoordinator(logger, sess.alloc, sess.settler, sess.risk, ldg)
	if err := coord.Restore(); err != nil {
		return fmt.Errorf("restoring ledger positions: %w", err)
	}

	srv := api.NewServer(logger, cfg.Server, hub)
	srv.SetBooks(sess.alloc.Books())
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("reporting server stopped", zap.Error(err))
		}
	}()

	coord.OnEquity = func(point types.EquityCurvePoint) {
		hub.BroadcastEquity(point)
	}

	series := make(map[string][]types.Bar, len(cfg.Symbols))
	for _, symbol := range cfg.Symbols {
		bars, err := store.EnsureBars(symbol, cfg.Data.Timeframe, syntheticDays, synthetic)
		if err != nil {
			return err
		}
		if len(bars) == 0 {
			continue
		}
		series[symbol] = bars
	}
	if len(series) == 0 {
		return fmt.Errorf("no stored bars for any configured symbol")
	}
	feed := data.NewReplayFeed(series)
	defer feed.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	runErr := coord.Run(ctx, feed)
	if runErr == context.Canceled {
		runErr = nil
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("reporting server shutdown", zap.Error(err))
	}

	logger.Info("live session closed",
		zap.String("finalCash", sess.alloc.TotalCash().String()))
	return runErr
}

// multiAlerter fans a risk alert out to several sinks.
type multiAlerter []risk.Alerter

func (m multiAlerter) Alert(alert types.RiskAlert) {
	for _, a := range m {
		a.Alert(alert)
	}
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		panic(err)
	}

	return logger
}
