package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/quantdesk/trading-engine/pkg/types"
)

// MeanReversion buys dips below the lower Bollinger band when RSI
// confirms an oversold condition, and exits once price crosses back
// above the rolling mean. The same exit rule applies in backtest and
// live runs.
type MeanReversion struct {
	params types.MeanReversionParams
}

// NewMeanReversion creates a mean-reversion strategy.
func NewMeanReversion(params types.MeanReversionParams) *MeanReversion {
	return &MeanReversion{params: params}
}

// Name returns the family name.
func (s *MeanReversion) Name() string { return FamilyMeanReversion }

// Lookback returns the warm-up requirement in bars.
func (s *MeanReversion) Lookback() int {
	lookback := s.params.Window
	if s.params.RSIWindow+1 > lookback {
		lookback = s.params.RSIWindow + 1
	}
	if lookback < minLookback {
		lookback = minLookback
	}
	return lookback
}

// Decide evaluates the band position for one symbol.
func (s *MeanReversion) Decide(symbol string, history []types.Bar, position int64, cash decimal.Decimal, price decimal.Decimal) Decision {
	if len(history) < s.Lookback() {
		return hold
	}

	closes := closesOf(history)
	mean, okM := sma(closes, s.params.Window)
	std, okS := rollingStd(closes, s.params.Window)
	if !okM || !okS {
		return hold
	}

	px := price.InexactFloat64()
	if position > 0 {
		if px > mean {
			return Decision{Action: Exit}
		}
		return hold
	}

	lowerBand := mean - s.params.StdDev*std
	momentum, ok := rsi(closes, s.params.RSIWindow)
	if !ok || px >= lowerBand || momentum >= s.params.RSIOversold {
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

// exitLevel returns price * (1 + pct), pct negative for stops.
func exitLevel(price decimal.Decimal, pct float64) decimal.Decimal {
	return price.Mul(decimal.NewFromFloat(1 + pct))
}

// riskQuantity sizes an entry as floor(cash * riskPerTrade / ATR),
// capped at the whole shares the book's cash can actually buy. A zero
// ATR means sizing is unavailable and the entry degrades to Hold.
func riskQuantity(history []types.Bar, cash decimal.Decimal, riskPerTrade float64, price decimal.Decimal) int64 {
	a := atr(history, atrPeriod)
	if a <= 0 || price.Sign() <= 0 || riskPerTrade <= 0 {
		return 0
	}
	qty := int64(cash.InexactFloat64() * riskPerTrade / a)
	if affordable := cash.Div(price).IntPart(); qty > affordable {
		qty = affordable
	}
	if qty < 0 {
		return 0
	}
	return qty
}
