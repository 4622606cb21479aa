// Package cost implements the transaction cost model: multiplicative
// basis-point slippage on the execution price and additive proportional
// fee components on the executed notional. The model is pure; it holds
// rates only and never mutates portfolio state.
package cost

import (
	"github.com/shopspring/decimal"

	"github.com/quantdesk/trading-engine/pkg/types"
)

var (
	one        = decimal.NewFromInt(1)
	bpsDivisor = decimal.NewFromInt(10000)
)

// Model applies slippage and transaction fees to orders.
type Model struct {
	slippage decimal.Decimal
	fees     types.FeeSchedule
}

// NewModel creates a cost model from configuration.
func NewModel(cfg types.CostConfig) *Model {
	return &Model{
		slippage: cfg.SlippageBps.Div(bpsDivisor),
		fees:     cfg.Fees,
	}
}

// ExecutionPrice returns the slippage-adjusted price: buys are inflated
// and sells deflated by the configured fraction.
func (m *Model) ExecutionPrice(side types.OrderSide, price decimal.Decimal) decimal.Decimal {
	if side == types.OrderSideBuy {
		return price.Mul(one.Add(m.slippage))
	}
	return price.Mul(one.Sub(m.slippage))
}

// TransactionCost returns the total fee for an executed notional.
// GST applies to brokerage plus exchange charges; stamp duty is charged
// on the buy side only.
func (m *Model) TransactionCost(side types.OrderSide, notional decimal.Decimal) decimal.Decimal {
	brokerage := notional.Mul(m.fees.BrokeragePct)
	stt := notional.Mul(m.fees.STTPct)
	exchange := notional.Mul(m.fees.ExchangeTxnPct)
	gst := brokerage.Add(exchange).Mul(m.fees.GSTPct)
	sebi := notional.Mul(m.fees.SEBIPct)

	total := brokerage.Add(stt).Add(exchange).Add(gst).Add(sebi)
	if side == types.OrderSideBuy {
		total = total.Add(notional.Mul(m.fees.StampDutyPct))
	}
	return total
}

// IndianEquityDelivery returns the default fee schedule for Indian
// equity delivery trades. Rates are illustrative.
func IndianEquityDelivery() types.FeeSchedule {
	return types.FeeSchedule{
		BrokeragePct:   decimal.NewFromFloat(0.0003),
		STTPct:         decimal.NewFromFloat(0.001),
		ExchangeTxnPct: decimal.NewFromFloat(0.0000345),
		GSTPct:         decimal.NewFromFloat(0.18),
		SEBIPct:        decimal.NewFromFloat(0.000001),
		StampDutyPct:   decimal.NewFromFloat(0.00015),
	}
}

// ZeroFees returns an all-zero fee schedule, used for frictionless runs.
func ZeroFees() types.FeeSchedule {
	return types.FeeSchedule{}
}
