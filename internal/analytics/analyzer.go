package analytics

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/quantdesk/trading-engine/pkg/types"
)

// tradingDaysPerYear is the annualization base for daily returns.
const tradingDaysPerYear = 252

// Analyzer turns an equity curve and fill log into performance metrics.
type Analyzer struct {
	logger       *zap.Logger
	riskFreeRate float64
}

// NewAnalyzer creates an analyzer with the given annual risk-free rate.
func NewAnalyzer(logger *zap.Logger, riskFreeRate float64) *Analyzer {
	return &Analyzer{logger: logger, riskFreeRate: riskFreeRate}
}

// Analyze computes the full metric set. A curve with fewer than two
// return observations yields all-zero ratios: the empty-curve policy is
// explicit, not a fallback. benchmark may be nil; alpha and beta stay
// zero without it.
func (a *Analyzer) Analyze(curve []types.EquityCurvePoint, fills []types.Fill, benchmark []types.Bar) types.PerformanceMetrics {
	var m types.PerformanceMetrics
	if len(curve) > 0 {
		m.FinalEquity = curve[len(curve)-1].Equity
	}

	returns, timestamps := curveReturns(curve)
	if len(returns) < 2 {
		a.logger.Debug("equity curve too short for ratio metrics",
			zap.Int("points", len(curve)))
		a.tradeStats(&m, fills)
		return m
	}

	m.AnnualizedReturn = mean(returns) * tradingDaysPerYear
	m.AnnualizedVol = sampleStd(returns) * math.Sqrt(tradingDaysPerYear)

	if m.AnnualizedVol > 0 {
		m.Sharpe = (m.AnnualizedReturn - a.riskFreeRate) / m.AnnualizedVol
	}

	if downside := downsideDeviation(returns); downside > 0 {
		m.Sortino = (m.AnnualizedReturn - a.riskFreeRate) / downside
	}

	m.MaxDrawdown = maxDrawdown(returns)
	if m.MaxDrawdown > 0 {
		m.Calmar = m.AnnualizedReturn / m.MaxDrawdown
	}

	m.Alpha, m.Beta = a.capm(returns, timestamps, benchmark, m.AnnualizedReturn)
	a.tradeStats(&m, fills)
	return m
}

func (a *Analyzer) tradeStats(m *types.PerformanceMetrics, fills []types.Fill) {
	pnls := RoundTripPnL(fills)
	m.RoundTrips = len(pnls)
	if len(pnls) == 0 {
		return
	}

	grossProfit, grossLoss := 0.0, 0.0
	for _, pnl := range pnls {
		if pnl > 0 {
			m.WinningTrades++
			grossProfit += pnl
		} else {
			m.LosingTrades++
			grossLoss -= pnl
		}
	}
	m.WinRate = float64(m.WinningTrades) / float64(len(pnls))
	if grossLoss > 0 {
		m.ProfitFactor = grossProfit / grossLoss
	}
}

// capm regresses curve returns on benchmark returns aligned by
// timestamp. Fewer than three aligned observations yield zero.
func (a *Analyzer) capm(returns []float64, timestamps []time.Time, benchmark []types.Bar, annualizedReturn float64) (alpha, beta float64) {
	if len(benchmark) < 2 {
		return 0, 0
	}

	benchByTime := make(map[time.Time]float64, len(benchmark))
	for i := 1; i < len(benchmark); i++ {
		prev := benchmark[i-1].Close.InexactFloat64()
		if prev == 0 {
			continue
		}
		cur := benchmark[i].Close.InexactFloat64()
		benchByTime[benchmark[i].Timestamp] = cur/prev - 1
	}

	var strat, bench []float64
	for i, ts := range timestamps {
		if r, ok := benchByTime[ts]; ok {
			strat = append(strat, returns[i])
			bench = append(bench, r)
		}
	}
	if len(strat) <= 2 {
		return 0, 0
	}

	covariance := sampleCovariance(strat, bench) * tradingDaysPerYear
	variance := sampleStd(bench)
	variance = variance * variance * tradingDaysPerYear
	if variance <= 0 {
		return 0, 0
	}

	beta = covariance / variance
	benchAnnualized := mean(bench) * tradingDaysPerYear
	expected := a.riskFreeRate + beta*(benchAnnualized-a.riskFreeRate)
	alpha = annualizedReturn - expected
	return alpha, beta
}

// curveReturns computes simple period returns; each return carries the
// timestamp of its end point for benchmark alignment.
func curveReturns(curve []types.EquityCurvePoint) ([]float64, []time.Time) {
	var returns []float64
	var timestamps []time.Time
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity.InexactFloat64()
		if prev == 0 {
			continue
		}
		cur := curve[i].Equity.InexactFloat64()
		returns = append(returns, cur/prev-1)
		timestamps = append(timestamps, curve[i].Timestamp)
	}
	return returns, timestamps
}

// maxDrawdown returns the largest peak-relative decline of the
// cumulative return series, as a positive fraction.
func maxDrawdown(returns []float64) float64 {
	cumulative := 1.0
	peak := 1.0
	worst := 0.0
	for _, r := range returns {
		cumulative *= 1 + r
		if cumulative > peak {
			peak = cumulative
		}
		if peak > 0 {
			if dd := (peak - cumulative) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func sampleStd(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}

func sampleCovariance(xs, ys []float64) float64 {
	if len(xs) != len(ys) || len(xs) < 2 {
		return 0
	}
	mx, my := mean(xs), mean(ys)
	sum := 0.0
	for i := range xs {
		sum += (xs[i] - mx) * (ys[i] - my)
	}
	return sum / float64(len(xs)-1)
}

// downsideDeviation is the annualized sample deviation of negative
// returns only.
func downsideDeviation(returns []float64) float64 {
	var negative []float64
	for _, r := range returns {
		if r < 0 {
			negative = append(negative, r)
		}
	}
	return sampleStd(negative) * math.Sqrt(tradingDaysPerYear)
}
