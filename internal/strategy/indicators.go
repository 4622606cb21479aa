package strategy

import (
	"math"

	"github.com/quantdesk/trading-engine/pkg/types"
)

// atrPeriod is the fixed window for volatility-based position sizing.
const atrPeriod = 14

// minLookback is the floor on every family's warm-up requirement,
// so the ATR has enough bars to stabilize.
const minLookback = 20

func closesOf(bars []types.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close.InexactFloat64()
	}
	return out
}

// sma returns the simple moving average of the last window values.
func sma(values []float64, window int) (float64, bool) {
	if window <= 0 || len(values) < window {
		return 0, false
	}
	sum := 0.0
	for _, v := range values[len(values)-window:] {
		sum += v
	}
	return sum / float64(window), true
}

// rollingStd returns the sample standard deviation of the last window values.
func rollingStd(values []float64, window int) (float64, bool) {
	if window < 2 || len(values) < window {
		return 0, false
	}
	tail := values[len(values)-window:]
	m, _ := sma(values, window)
	sumSq := 0.0
	for _, v := range tail {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(window-1)), true
}

// rsi computes the relative strength index over the last window price
// changes. A flat window reads as neutral 50; all-gain windows read 100.
func rsi(values []float64, window int) (float64, bool) {
	if window <= 0 || len(values) < window+1 {
		return 0, false
	}
	tail := values[len(values)-window-1:]
	gains, losses := 0.0, 0.0
	for i := 1; i < len(tail); i++ {
		d := tail[i] - tail[i-1]
		if d > 0 {
			gains += d
		} else {
			losses -= d
		}
	}
	if losses == 0 {
		if gains == 0 {
			return 50, true
		}
		return 100, true
	}
	rs := gains / losses
	return 100 - 100/(1+rs), true
}

// atr computes the average true range as an exponentially weighted mean
// of the true range with alpha = 1/period. Returns 0 when there is not
// enough history, which callers treat as sizing unavailable.
func atr(bars []types.Bar, period int) float64 {
	if period <= 0 || len(bars) < period {
		return 0
	}
	alpha := 1.0 / float64(period)
	var value float64
	for i, bar := range bars {
		high := bar.High.InexactFloat64()
		low := bar.Low.InexactFloat64()
		tr := high - low
		if i > 0 {
			prevClose := bars[i-1].Close.InexactFloat64()
			tr = math.Max(tr, math.Abs(high-prevClose))
			tr = math.Max(tr, math.Abs(low-prevClose))
		}
		if i == 0 {
			value = tr
			continue
		}
		value = (1-alpha)*value + alpha*tr
	}
	if math.IsNaN(value) || value < 0 {
		return 0
	}
	return value
}
