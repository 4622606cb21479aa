package engine_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantdesk/trading-engine/internal/analytics"
	"github.com/quantdesk/trading-engine/internal/config"
	"github.com/quantdesk/trading-engine/internal/cost"
	"github.com/quantdesk/trading-engine/internal/data"
	"github.com/quantdesk/trading-engine/internal/engine"
	"github.com/quantdesk/trading-engine/internal/optimizer"
	"github.com/quantdesk/trading-engine/internal/portfolio"
	"github.com/quantdesk/trading-engine/internal/risk"
	"github.com/quantdesk/trading-engine/internal/strategy"
	"github.com/quantdesk/trading-engine/pkg/types"
)

// buildSession wires a full trading stack from the default config the
// same way the binary does.
func buildSession(t *testing.T, cfg types.EngineConfig) (*portfolio.Allocator, *engine.Settler, *risk.Manager) {
	t.Helper()
	logger := zap.NewNop()

	registry := strategy.NewRegistry(logger)
	var books []*portfolio.Book
	for _, family := range registry.Families() {
		strat, err := registry.Create(family, cfg.Strategies)
		if err != nil {
			t.Fatalf("creating %s strategy: %v", family, err)
		}
		books = append(books, portfolio.NewBook(family, strat))
	}

	alloc := portfolio.NewAllocator(logger, cfg.Capital, books)
	riskMgr := risk.NewManager(logger, cfg.Risk, risk.NopAlerter{})
	settler := engine.NewSettler(logger, cost.NewModel(cfg.Costs), riskMgr)
	return alloc, settler, riskMgr
}

func TestFullBacktestPipeline(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := data.SyntheticSeries("RELIANCE", start, 300, 2500, 42)

	alloc, settler, riskMgr := buildSession(t, cfg)
	sim := engine.NewSimulator(zap.NewNop(), alloc, settler, riskMgr)
	result := sim.Run("RELIANCE", bars)

	if len(result.EquityCurve) == 0 {
		t.Fatal("backtest produced no equity points")
	}

	// The first recorded point can at most have paid one bar of entry
	// frictions, so it never exceeds starting capital.
	first := result.EquityCurve[0]
	if first.Equity.GreaterThan(cfg.Capital) {
		t.Errorf("first equity = %s, above starting capital %s", first.Equity, cfg.Capital)
	}

	// Equity stays strictly positive throughout.
	for i, point := range result.EquityCurve {
		if point.Equity.Sign() <= 0 {
			t.Fatalf("equity point %d is non-positive: %s", i, point.Equity)
		}
	}

	// Per strategy and symbol, cumulative sells never exceed cumulative
	// buys at any point in the fill sequence.
	running := make(map[string]int64)
	for _, fill := range result.Fills {
		key := fill.StrategyID + "/" + fill.Symbol
		switch fill.Side {
		case types.OrderSideBuy:
			running[key] += fill.Quantity
		case types.OrderSideSell:
			running[key] -= fill.Quantity
			if running[key] < 0 {
				t.Fatalf("oversold %s: running position %d", key, running[key])
			}
		}
	}

	// The traded series doubles as the benchmark, exercising the
	// alpha/beta path end to end.
	metrics := analytics.NewAnalyzer(zap.NewNop(), cfg.RiskFreeRate).
		Analyze(result.EquityCurve, result.Fills, bars)
	if metrics.FinalEquity.Sign() <= 0 {
		t.Errorf("final equity = %s, want positive", metrics.FinalEquity)
	}
	if metrics.MaxDrawdown < 0 {
		t.Errorf("max drawdown = %v, want non-negative", metrics.MaxDrawdown)
	}
	if metrics.WinRate < 0 || metrics.WinRate > 1 {
		t.Errorf("win rate = %v, want within [0, 1]", metrics.WinRate)
	}
	if math.IsNaN(metrics.Alpha) || math.IsNaN(metrics.Beta) {
		t.Errorf("alpha/beta = %v/%v, want finite", metrics.Alpha, metrics.Beta)
	}
}

func TestOptimizerOverSyntheticSeries(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}
	cfg.Optimizer.TrialBudget = 4
	cfg.Optimizer.Workers = 2
	cfg.Optimizer.Seed = 11

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := data.SyntheticSeries("TCS", start, 250, 3500, 7)

	opt := optimizer.New(zap.NewNop(), cfg, strategy.NewRegistry(zap.NewNop()))
	trials, err := opt.Run(context.Background(), "TCS", bars, bars)
	if err != nil {
		t.Fatalf("optimizer run: %v", err)
	}

	if len(trials) != 4 {
		t.Fatalf("trials = %d, want budget of 4", len(trials))
	}
	for i := 1; i < len(trials); i++ {
		if trials[i].Metrics.Sharpe > trials[i-1].Metrics.Sharpe {
			t.Errorf("trials not ranked: sharpe[%d]=%v above sharpe[%d]=%v",
				i, trials[i].Metrics.Sharpe, i-1, trials[i-1].Metrics.Sharpe)
		}
	}
}

func TestBacktestAndLivePathsAgreeOnPersistence(t *testing.T) {
	// A live replay of the same bars as a backtest must leave the books
	// with the positions the ledger reports.
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}
	cfg.Capital = decimal.NewFromInt(500000)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := data.SyntheticSeries("INFY", start, 150, 1500, 3)

	alloc, settler, riskMgr := buildSession(t, cfg)
	coord := engine.NewCoordinator(zap.NewNop(), alloc, settler, riskMgr, nil)

	feed := data.NewReplayFeed(map[string][]types.Bar{"INFY": bars})
	if err := coord.Run(context.Background(), feed); err != nil {
		t.Fatalf("live replay: %v", err)
	}

	for _, book := range alloc.Books() {
		for _, snap := range book.Positions() {
			if snap.Quantity <= 0 {
				t.Errorf("book %s reports non-positive snapshot %+v", book.ID(), snap)
			}
			if got := book.Position(snap.Symbol); got != snap.Quantity {
				t.Errorf("book %s position %s = %d, snapshot says %d",
					book.ID(), snap.Symbol, got, snap.Quantity)
			}
		}
	}
}
