// Package engine executes orders against strategy books. One settlement
// path serves both the backtest simulator and the live coordinator:
// risk gate, slippage-adjusted execution price, transaction cost, then
// an atomic book mutation. Failed orders are logged and dropped.
package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantdesk/trading-engine/internal/cost"
	"github.com/quantdesk/trading-engine/internal/metrics"
	"github.com/quantdesk/trading-engine/internal/portfolio"
	"github.com/quantdesk/trading-engine/internal/risk"
	"github.com/quantdesk/trading-engine/pkg/types"
)

// Settler applies the cost model and risk gate to orders and settles
// them against books. It owns the session fill log.
type Settler struct {
	mu     sync.RWMutex
	logger *zap.Logger
	costs  *cost.Model
	risk   *risk.Manager
	fills  []types.Fill
}

// NewSettler creates a settler.
func NewSettler(logger *zap.Logger, costs *cost.Model, riskMgr *risk.Manager) *Settler {
	return &Settler{logger: logger, costs: costs, risk: riskMgr}
}

// Settle executes one order against its book at the reference price.
// On success the fill is recorded and returned; on failure the order is
// dropped with a logged reason and ok is false.
func (s *Settler) Settle(book *portfolio.Book, order types.Order, refPrice decimal.Decimal, ts time.Time) (types.Fill, bool) {
	if err := s.risk.AllowOrder(order, refPrice); err != nil {
		s.reject(order, "risk", err)
		return types.Fill{}, false
	}

	execPrice := s.costs.ExecutionPrice(order.Side, refPrice)
	notional := execPrice.Mul(decimal.NewFromInt(order.Quantity))
	txnCost := s.costs.TransactionCost(order.Side, notional)

	var err error
	if order.Side == types.OrderSideBuy {
		err = book.Buy(order.Symbol, order.Quantity, notional, txnCost)
	} else {
		err = book.Sell(order.Symbol, order.Quantity, notional, txnCost)
	}
	if err != nil {
		s.reject(order, "settlement", err)
		return types.Fill{}, false
	}

	if order.Side == types.OrderSideBuy {
		book.ArmExits(order.Symbol, order.StopLoss, order.TakeProfit)
	} else if book.Position(order.Symbol) == 0 {
		book.ClearExits(order.Symbol)
	}

	fill := types.Fill{
		ID:         uuid.New().String(),
		OrderID:    order.ID,
		StrategyID: order.StrategyID,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Quantity:   order.Quantity,
		Price:      execPrice,
		Cost:       txnCost,
		ExecutedAt: ts,
	}

	s.mu.Lock()
	s.fills = append(s.fills, fill)
	s.mu.Unlock()

	metrics.FillsTotal.WithLabelValues(string(order.Side)).Inc()
	s.logger.Info("order filled",
		zap.String("book", order.StrategyID),
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.Int64("quantity", order.Quantity),
		zap.String("price", execPrice.String()),
		zap.String("cost", txnCost.String()),
		zap.String("cash", book.Cash().String()))
	return fill, true
}

func (s *Settler) reject(order types.Order, reason string, err error) {
	metrics.OrdersRejected.WithLabelValues(reason).Inc()
	s.logger.Warn("order dropped",
		zap.String("book", order.StrategyID),
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.Int64("quantity", order.Quantity),
		zap.String("reason", reason),
		zap.Error(err))
}

// Fills returns a copy of the session fill log.
func (s *Settler) Fills() []types.Fill {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Fill, len(s.fills))
	copy(out, s.fills)
	return out
}
