package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/quantdesk/trading-engine/pkg/types"
)

// TrendFollowing trades SMA crossovers with an RSI momentum gate.
// Entries require the short SMA above the long SMA and RSI above the
// bullish threshold; positions are closed when the short SMA falls back
// below the long SMA.
type TrendFollowing struct {
	params types.TrendParams
}

// NewTrendFollowing creates a trend-following strategy.
func NewTrendFollowing(params types.TrendParams) *TrendFollowing {
	return &TrendFollowing{params: params}
}

// Name returns the family name.
func (s *TrendFollowing) Name() string { return FamilyTrend }

// Lookback returns the warm-up requirement in bars.
func (s *TrendFollowing) Lookback() int {
	lookback := s.params.LongWindow
	if s.params.RSIWindow+1 > lookback {
		lookback = s.params.RSIWindow + 1
	}
	if lookback < minLookback {
		lookback = minLookback
	}
	return lookback
}

// Decide evaluates the crossover state for one symbol.
func (s *TrendFollowing) Decide(symbol string, history []types.Bar, position int64, cash decimal.Decimal, price decimal.Decimal) Decision {
	if len(history) < s.Lookback() {
		return hold
	}

	closes := closesOf(history)
	shortSMA, okS := sma(closes, s.params.ShortWindow)
	longSMA, okL := sma(closes, s.params.LongWindow)
	if !okS || !okL {
		return hold
	}

	if position > 0 {
		if shortSMA < longSMA {
			return Decision{Action: Exit}
		}
		return hold
	}

	momentum, ok := rsi(closes, s.params.RSIWindow)
	if !ok || shortSMA <= longSMA || momentum <= s.params.RSIBullish {
		return hold
	}

	qty := riskQuantity(history, cash, s.params.RiskPerTrade, price)
	if qty <= 0 {
		return hold
	}
	return Decision{
		Action:     Enter,
		Quantity:   qty,
		StopLoss:   exitLevel(price, -s.params.StopLossPct),
		TakeProfit: exitLevel(price, s.params.TakeProfitPct),
	}
}
