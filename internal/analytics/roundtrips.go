// Package analytics computes performance metrics from equity curves and
// fill logs: annualized ratios, drawdown statistics, FIFO round-trip
// P&L and CAPM alpha/beta against a benchmark.
package analytics

import (
	"github.com/shopspring/decimal"

	"github.com/quantdesk/trading-engine/pkg/types"
)

type openBuy struct {
	qty   int64
	price decimal.Decimal
}

type bookSymbol struct {
	strategyID string
	symbol     string
}

// RoundTripPnL matches sells against open buys FIFO per strategy and
// symbol, and returns the realized P&L of each completed round trip.
// Sells without a matching buy are skipped; zero-P&L round trips are
// not recorded.
func RoundTripPnL(fills []types.Fill) []float64 {
	open := make(map[bookSymbol][]openBuy)
	var pnls []float64

	for _, fill := range fills {
		key := bookSymbol{fill.StrategyID, fill.Symbol}
		switch fill.Side {
		case types.OrderSideBuy:
			open[key] = append(open[key], openBuy{qty: fill.Quantity, price: fill.Price})
		case types.OrderSideSell:
			queue := open[key]
			if len(queue) == 0 {
				continue
			}
			remaining := fill.Quantity
			pnl := decimal.Zero
			for remaining > 0 && len(queue) > 0 {
				buy := &queue[0]
				matched := remaining
				if buy.qty < matched {
					matched = buy.qty
				}
				pnl = pnl.Add(fill.Price.Sub(buy.price).Mul(decimal.NewFromInt(matched)))
				buy.qty -= matched
				remaining -= matched
				if buy.qty <= 0 {
					queue = queue[1:]
				}
			}
			open[key] = queue
			if !pnl.IsZero() {
				pnls = append(pnls, pnl.InexactFloat64())
			}
		}
	}
	return pnls
}

// OpenBuyQuantity returns the unmatched buy quantity for one strategy
// and symbol after FIFO matching. Used to verify partial fills.
func OpenBuyQuantity(fills []types.Fill, strategyID, symbol string) int64 {
	open := make(map[bookSymbol][]openBuy)
	for _, fill := range fills {
		key := bookSymbol{fill.StrategyID, fill.Symbol}
		switch fill.Side {
		case types.OrderSideBuy:
			open[key] = append(open[key], openBuy{qty: fill.Quantity, price: fill.Price})
		case types.OrderSideSell:
			queue := open[key]
			remaining := fill.Quantity
			for remaining > 0 && len(queue) > 0 {
				buy := &queue[0]
				matched := remaining
				if buy.qty < matched {
					matched = buy.qty
				}
				buy.qty -= matched
				remaining -= matched
				if buy.qty <= 0 {
					queue = queue[1:]
				}
			}
			open[key] = queue
		}
	}

	var total int64
	for _, buy := range open[bookSymbol{strategyID, symbol}] {
		total += buy.qty
	}
	return total
}
