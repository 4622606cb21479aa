package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantdesk/trading-engine/pkg/types"
)

func fill(strategyID, symbol string, side types.OrderSide, qty int64, price float64) types.Fill {
	return types.Fill{
		StrategyID: strategyID,
		Symbol:     symbol,
		Side:       side,
		Quantity:   qty,
		Price:      decimal.NewFromFloat(price),
	}
}

func curvePoint(day int, equity float64) types.EquityCurvePoint {
	return types.EquityCurvePoint{
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day),
		Equity:    decimal.NewFromFloat(equity),
	}
}

func TestFIFORoundTripMatching(t *testing.T) {
	fills := []types.Fill{
		fill("trend", "TEST", types.OrderSideBuy, 10, 100),
		fill("trend", "TEST", types.OrderSideBuy, 5, 110),
		fill("trend", "TEST", types.OrderSideSell, 12, 120),
	}

	pnls := RoundTripPnL(fills)
	if len(pnls) != 1 {
		t.Fatalf("round trips = %d, want 1", len(pnls))
	}
	// 10 @ (120-100) + 2 @ (120-110) = 220
	if math.Abs(pnls[0]-220) > 1e-9 {
		t.Errorf("round trip pnl = %v, want 220", pnls[0])
	}

	if open := OpenBuyQuantity(fills, "trend", "TEST"); open != 3 {
		t.Errorf("open buy quantity = %d, want 3 @ 110 remaining", open)
	}
}

func TestRoundTripsIndependentPerStrategy(t *testing.T) {
	fills := []types.Fill{
		fill("trend", "TEST", types.OrderSideBuy, 10, 100),
		fill("mean_reversion", "TEST", types.OrderSideSell, 10, 120),
	}
	if pnls := RoundTripPnL(fills); len(pnls) != 0 {
		t.Errorf("round trips across strategies = %d, want 0", len(pnls))
	}
}

func TestSellWithoutBuySkipped(t *testing.T) {
	fills := []types.Fill{
		fill("trend", "TEST", types.OrderSideSell, 5, 120),
	}
	if pnls := RoundTripPnL(fills); len(pnls) != 0 {
		t.Errorf("round trips = %d, want 0", len(pnls))
	}
}

func TestZeroPnLRoundTripNotRecorded(t *testing.T) {
	fills := []types.Fill{
		fill("trend", "TEST", types.OrderSideBuy, 10, 100),
		fill("trend", "TEST", types.OrderSideSell, 10, 100),
	}
	if pnls := RoundTripPnL(fills); len(pnls) != 0 {
		t.Errorf("flat round trip recorded: %v", pnls)
	}
}

func TestEmptyCurvePolicy(t *testing.T) {
	a := NewAnalyzer(zap.NewNop(), 0.07)

	m := a.Analyze([]types.EquityCurvePoint{curvePoint(0, 100000)}, nil, nil)
	if m.Sharpe != 0 || m.Sortino != 0 || m.MaxDrawdown != 0 || m.Calmar != 0 {
		t.Errorf("single-point curve produced non-zero ratios: %+v", m)
	}
	if !m.FinalEquity.Equal(decimal.NewFromInt(100000)) {
		t.Errorf("final equity = %s, want 100000", m.FinalEquity)
	}
}

func TestSharpeZeroWhenVolatilityZero(t *testing.T) {
	a := NewAnalyzer(zap.NewNop(), 0.07)

	curve := []types.EquityCurvePoint{
		curvePoint(0, 100000), curvePoint(1, 100000),
		curvePoint(2, 100000), curvePoint(3, 100000),
	}
	m := a.Analyze(curve, nil, nil)
	if m.Sharpe != 0 {
		t.Errorf("sharpe on flat curve = %v, want 0", m.Sharpe)
	}
	if m.AnnualizedVol != 0 {
		t.Errorf("vol on flat curve = %v, want 0", m.AnnualizedVol)
	}
}

func TestMaxDrawdownKnownSeries(t *testing.T) {
	a := NewAnalyzer(zap.NewNop(), 0)

	// 100 -> 110 -> 88 -> 99: worst peak-relative decline is 20% from 110.
	curve := []types.EquityCurvePoint{
		curvePoint(0, 100000), curvePoint(1, 110000),
		curvePoint(2, 88000), curvePoint(3, 99000),
	}
	m := a.Analyze(curve, nil, nil)
	if math.Abs(m.MaxDrawdown-0.2) > 1e-9 {
		t.Errorf("max drawdown = %v, want 0.2", m.MaxDrawdown)
	}
	if m.Calmar == 0 && m.AnnualizedReturn != 0 {
		t.Error("calmar not computed despite drawdown and non-zero return")
	}
}

func TestWinRateAndProfitFactor(t *testing.T) {
	a := NewAnalyzer(zap.NewNop(), 0)
	fills := []types.Fill{
		fill("trend", "TEST", types.OrderSideBuy, 10, 100),
		fill("trend", "TEST", types.OrderSideSell, 10, 120), // +200
		fill("trend", "TEST", types.OrderSideBuy, 10, 100),
		fill("trend", "TEST", types.OrderSideSell, 10, 90), // -100
	}
	curve := []types.EquityCurvePoint{
		curvePoint(0, 100000), curvePoint(1, 100200), curvePoint(2, 100100),
	}

	m := a.Analyze(curve, fills, nil)
	if m.RoundTrips != 2 || m.WinningTrades != 1 || m.LosingTrades != 1 {
		t.Fatalf("trade counts = %d/%d/%d, want 2/1/1", m.RoundTrips, m.WinningTrades, m.LosingTrades)
	}
	if math.Abs(m.WinRate-0.5) > 1e-9 {
		t.Errorf("win rate = %v, want 0.5", m.WinRate)
	}
	if math.Abs(m.ProfitFactor-2.0) > 1e-9 {
		t.Errorf("profit factor = %v, want 2.0", m.ProfitFactor)
	}
}

func TestBetaAgainstIdenticalBenchmark(t *testing.T) {
	a := NewAnalyzer(zap.NewNop(), 0)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var curve []types.EquityCurvePoint
	var benchmark []types.Bar
	equity := 100000.0
	// Alternating +1% / -0.5% moves mirrored exactly in the benchmark.
	for i := 0; i < 12; i++ {
		if i > 0 {
			if i%2 == 1 {
				equity *= 1.01
			} else {
				equity *= 0.995
			}
		}
		ts := start.AddDate(0, 0, i)
		curve = append(curve, types.EquityCurvePoint{Timestamp: ts, Equity: decimal.NewFromFloat(equity)})
		benchmark = append(benchmark, types.Bar{Timestamp: ts, Close: decimal.NewFromFloat(equity / 1000)})
	}

	m := a.Analyze(curve, nil, benchmark)
	if math.Abs(m.Beta-1) > 1e-6 {
		t.Errorf("beta vs identical benchmark = %v, want 1", m.Beta)
	}
	if math.Abs(m.Alpha) > 1e-6 {
		t.Errorf("alpha vs identical benchmark = %v, want 0", m.Alpha)
	}
}

func TestAlphaBetaZeroWithoutBenchmark(t *testing.T) {
	a := NewAnalyzer(zap.NewNop(), 0.07)
	curve := []types.EquityCurvePoint{
		curvePoint(0, 100000), curvePoint(1, 101000), curvePoint(2, 102000),
	}
	m := a.Analyze(curve, nil, nil)
	if m.Alpha != 0 || m.Beta != 0 {
		t.Errorf("alpha/beta without benchmark = %v/%v, want 0/0", m.Alpha, m.Beta)
	}
}
