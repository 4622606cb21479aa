// Package optimizer runs a randomized grid search over strategy
// parameters. Candidates are the Cartesian product of the per-family
// grids, down-sampled uniformly to the trial budget; every trial
// backtests a fully independent engine on its own config copy.
package optimizer

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantdesk/trading-engine/internal/analytics"
	"github.com/quantdesk/trading-engine/internal/cost"
	"github.com/quantdesk/trading-engine/internal/engine"
	"github.com/quantdesk/trading-engine/internal/metrics"
	"github.com/quantdesk/trading-engine/internal/portfolio"
	"github.com/quantdesk/trading-engine/internal/risk"
	"github.com/quantdesk/trading-engine/internal/strategy"
	"github.com/quantdesk/trading-engine/pkg/types"
)

// Trial is one parameter combination and its backtest outcome.
type Trial struct {
	ID            string                    `json:"id"`
	Trend         types.TrendParams         `json:"trend"`
	MeanReversion types.MeanReversionParams `json:"meanReversion"`
	Metrics       types.PerformanceMetrics  `json:"metrics"`
}

// Optimizer coordinates trial scheduling and ranking.
type Optimizer struct {
	logger   *zap.Logger
	cfg      types.EngineConfig
	registry *strategy.Registry
}

// New creates an optimizer over the given base configuration.
func New(logger *zap.Logger, cfg types.EngineConfig, registry *strategy.Registry) *Optimizer {
	return &Optimizer{logger: logger, cfg: cfg, registry: registry}
}

// candidate pairs one point from each family grid.
type candidate struct {
	trend   types.TrendParams
	meanRev types.MeanReversionParams
}

// Run searches the grids against one symbol's history and returns the
// completed trials ranked by Sharpe, best first. benchmark may be nil.
func (o *Optimizer) Run(ctx context.Context, symbol string, bars []types.Bar, benchmark []types.Bar) ([]Trial, error) {
	candidates := o.enumerate()
	if len(candidates) == 0 {
		return nil, fmt.Errorf("optimizer grids for %s are empty", symbol)
	}

	budget := o.cfg.Optimizer.TrialBudget
	if budget <= 0 || budget > len(candidates) {
		budget = len(candidates)
	}

	seed := o.cfg.Optimizer.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	picked := make([]candidate, 0, budget)
	for _, idx := range rng.Perm(len(candidates))[:budget] {
		picked = append(picked, candidates[idx])
	}

	workers := o.cfg.Optimizer.Workers
	if workers <= 0 {
		workers = 4
	}
	o.logger.Info("optimizer starting",
		zap.String("symbol", symbol),
		zap.Int("candidates", len(candidates)),
		zap.Int("trials", len(picked)),
		zap.Int("workers", workers))

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	results := make(chan Trial, len(picked))

	for i, cand := range picked {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		wg.Add(1)
		go func(trialNum int, cand candidate) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			trial, err := o.evaluate(trialNum, symbol, bars, benchmark, cand)
			if err != nil {
				o.logger.Warn("trial failed",
					zap.Int("trial", trialNum),
					zap.Error(err))
				return
			}
			metrics.OptimizerTrials.Inc()
			results <- trial
		}(i, cand)
	}

	wg.Wait()
	close(results)

	trials := make([]Trial, 0, len(picked))
	for trial := range results {
		trials = append(trials, trial)
	}
	sort.SliceStable(trials, func(i, j int) bool {
		if trials[i].Metrics.Sharpe != trials[j].Metrics.Sharpe {
			return trials[i].Metrics.Sharpe > trials[j].Metrics.Sharpe
		}
		return trials[i].ID < trials[j].ID
	})

	if len(trials) > 0 {
		best := trials[0]
		o.logger.Info("optimizer finished",
			zap.String("symbol", symbol),
			zap.Int("completed", len(trials)),
			zap.Float64("bestSharpe", best.Metrics.Sharpe),
			zap.Float64("bestAlpha", best.Metrics.Alpha),
			zap.Float64("bestBeta", best.Metrics.Beta))
	}
	return trials, nil
}

// evaluate runs one fully isolated backtest: its own config copy, fresh
// strategy instances, fresh books, fresh risk manager.
func (o *Optimizer) evaluate(trialNum int, symbol string, bars []types.Bar, benchmark []types.Bar, cand candidate) (Trial, error) {
	cfg := o.cfg.Clone()
	cfg.Strategies.Trend = cand.trend
	cfg.Strategies.MeanReversion = cand.meanRev

	logger := zap.NewNop()
	var books []*portfolio.Book
	for _, family := range o.registry.Families() {
		strat, err := o.registry.Create(family, cfg.Strategies)
		if err != nil {
			return Trial{}, fmt.Errorf("trial %d: %w", trialNum, err)
		}
		books = append(books, portfolio.NewBook(family, strat))
	}

	alloc := portfolio.NewAllocator(logger, cfg.Capital, books)
	riskMgr := risk.NewManager(logger, cfg.Risk, risk.NopAlerter{})
	settler := engine.NewSettler(logger, cost.NewModel(cfg.Costs), riskMgr)
	sim := engine.NewSimulator(logger, alloc, settler, riskMgr)

	result := sim.Run(symbol, bars)
	analyzer := analytics.NewAnalyzer(logger, cfg.RiskFreeRate)

	return Trial{
		ID:            fmt.Sprintf("trial-%03d", trialNum),
		Trend:         cand.trend,
		MeanReversion: cand.meanRev,
		Metrics:       analyzer.Analyze(result.EquityCurve, result.Fills, benchmark),
	}, nil
}

// enumerate builds the Cartesian product of both family grids on top of
// the configured base parameters. Degenerate trend pairs with the short
// window at or above the long window are skipped.
func (o *Optimizer) enumerate() []candidate {
	var trends []types.TrendParams
	baseTrend := o.cfg.Strategies.Trend
	grid := o.cfg.Optimizer.Trend
	for _, short := range grid.ShortWindows {
		for _, long := range grid.LongWindows {
			if short >= long {
				continue
			}
			for _, tp := range grid.TakeProfits {
				for _, sl := range grid.StopLosses {
					p := baseTrend
					p.ShortWindow, p.LongWindow = short, long
					p.TakeProfitPct, p.StopLossPct = tp, sl
					trends = append(trends, p)
				}
			}
		}
	}

	var meanRevs []types.MeanReversionParams
	baseMR := o.cfg.Strategies.MeanReversion
	mrGrid := o.cfg.Optimizer.MeanReversion
	for _, window := range mrGrid.Windows {
		for _, std := range mrGrid.StdDevs {
			for _, tp := range mrGrid.TakeProfits {
				for _, sl := range mrGrid.StopLosses {
					p := baseMR
					p.Window, p.StdDev = window, std
					p.TakeProfitPct, p.StopLossPct = tp, sl
					meanRevs = append(meanRevs, p)
				}
			}
		}
	}

	candidates := make([]candidate, 0, len(trends)*len(meanRevs))
	for _, t := range trends {
		for _, m := range meanRevs {
			candidates = append(candidates, candidate{trend: t, meanRev: m})
		}
	}
	return candidates
}
