package engine

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantdesk/trading-engine/internal/portfolio"
	"github.com/quantdesk/trading-engine/internal/risk"
	"github.com/quantdesk/trading-engine/pkg/types"
)

// historyPad bounds the rolling window at warmup + historyPad bars.
const historyPad = 50

// minWarmup is the floor on the warm-up window regardless of strategy
// lookbacks.
const minWarmup = 20

// BacktestResult is the output of one simulated session.
type BacktestResult struct {
	EquityCurve []types.EquityCurvePoint
	Fills       []types.Fill
}

// Simulator replays one symbol's bar history through the allocator and
// settles the resulting orders bar by bar.
type Simulator struct {
	logger  *zap.Logger
	alloc   *portfolio.Allocator
	settler *Settler
	risk    *risk.Manager
}

// NewSimulator creates a backtest simulator.
func NewSimulator(logger *zap.Logger, alloc *portfolio.Allocator, settler *Settler, riskMgr *risk.Manager) *Simulator {
	return &Simulator{logger: logger, alloc: alloc, settler: settler, risk: riskMgr}
}

// Run replays the bars. Trading and equity recording begin once the
// largest strategy lookback is satisfied; the rolling history window is
// bounded so memory stays flat over long series.
func (s *Simulator) Run(symbol string, bars []types.Bar) *BacktestResult {
	warmup := s.alloc.MaxLookback()
	if warmup < minWarmup {
		warmup = minWarmup
	}
	s.logger.Info("starting backtest",
		zap.String("symbol", symbol),
		zap.Int("bars", len(bars)),
		zap.Int("warmup", warmup))

	history := make([]types.Bar, 0, warmup+historyPad)
	curve := make([]types.EquityCurvePoint, 0, len(bars))
	peak := decimal.Zero

	for i, bar := range bars {
		history = append(history, bar)
		if len(history) > warmup+historyPad {
			history = history[1:]
		}
		if i < warmup-1 {
			continue
		}

		price := bar.Close
		prices := map[string]decimal.Decimal{symbol: price}

		equity := s.alloc.TotalEquity(prices)
		s.risk.ObserveEquity(bar.Timestamp, equity)

		for _, order := range s.alloc.Cycle(symbol, history, price, bar.Timestamp) {
			book := s.alloc.BookByID(order.StrategyID)
			if book == nil {
				continue
			}
			s.settler.Settle(book, order, price, bar.Timestamp)
		}

		equity = s.alloc.TotalEquity(prices)
		if equity.GreaterThan(peak) {
			peak = equity
		}
		drawdown := decimal.Zero
		if peak.Sign() > 0 {
			drawdown = peak.Sub(equity).Div(peak)
		}
		curve = append(curve, types.EquityCurvePoint{
			Timestamp: bar.Timestamp,
			Equity:    equity,
			Cash:      s.alloc.TotalCash(),
			Drawdown:  drawdown,
		})
	}

	fills := s.settler.Fills()
	s.logger.Info("backtest finished",
		zap.String("symbol", symbol),
		zap.Int("equityPoints", len(curve)),
		zap.Int("fills", len(fills)))
	return &BacktestResult{EquityCurve: curve, Fills: fills}
}
