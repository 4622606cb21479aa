package portfolio

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantdesk/trading-engine/internal/strategy"
	"github.com/quantdesk/trading-engine/pkg/types"
)

// Allocator splits firm capital equally across strategy books and runs
// their per-cycle sequence: armed exits first, then the strategy
// decision. It produces orders; settlement happens downstream.
type Allocator struct {
	logger *zap.Logger
	books  []*Book

	// held symbols seen without a price, warned once each
	unpricedWarned map[string]bool
}

// NewAllocator creates the allocator and performs the equal capital
// split: each book starts with totalCapital / len(books).
func NewAllocator(logger *zap.Logger, totalCapital decimal.Decimal, books []*Book) *Allocator {
	a := &Allocator{
		logger:         logger,
		books:          books,
		unpricedWarned: make(map[string]bool),
	}
	if len(books) == 0 {
		logger.Warn("allocator created with no strategy books")
		return a
	}

	perBook := totalCapital.Div(decimal.NewFromInt(int64(len(books))))
	logger.Info("allocating capital",
		zap.String("total", totalCapital.String()),
		zap.Int("books", len(books)),
		zap.String("perBook", perBook.String()))
	for _, book := range books {
		book.SetCapital(perBook)
	}
	return a
}

// Books returns the managed books in registration order.
func (a *Allocator) Books() []*Book { return a.books }

// MaxLookback returns the largest warm-up requirement across books.
func (a *Allocator) MaxLookback() int {
	max := 0
	for _, book := range a.books {
		if lb := book.Strategy().Lookback(); lb > max {
			max = lb
		}
	}
	return max
}

// TotalEquity marks every book at the given prices and sums them.
// A held symbol with no price contributes zero and is warned once.
func (a *Allocator) TotalEquity(prices map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, book := range a.books {
		for _, snap := range book.Positions() {
			if _, ok := prices[snap.Symbol]; !ok && !a.unpricedWarned[snap.Symbol] {
				a.unpricedWarned[snap.Symbol] = true
				a.logger.Warn("held symbol has no known price, marking at zero",
					zap.String("symbol", snap.Symbol),
					zap.String("book", book.ID()))
			}
		}
		total = total.Add(book.Equity(prices))
	}
	return total
}

// TotalCash sums free cash across books.
func (a *Allocator) TotalCash() decimal.Decimal {
	total := decimal.Zero
	for _, book := range a.books {
		total = total.Add(book.Cash())
	}
	return total
}

// Cycle runs one evaluation of every book against a symbol: stop-loss
// and take-profit checks come first and force a full exit; otherwise
// the strategy decides. Returns the orders to settle, in book order.
func (a *Allocator) Cycle(symbol string, history []types.Bar, price decimal.Decimal, ts time.Time) []types.Order {
	var orders []types.Order

	for _, book := range a.books {
		position := book.Position(symbol)

		if position > 0 {
			stop, take := book.ExitLevels(symbol)
			if stop.Sign() > 0 && price.LessThanOrEqual(stop) {
				a.logger.Info("stop loss triggered",
					zap.String("book", book.ID()),
					zap.String("symbol", symbol),
					zap.String("price", price.String()),
					zap.String("stop", stop.String()))
				// Disarm at trigger time so a dropped exit order cannot
				// re-fire the same level every cycle.
				book.ClearExits(symbol)
				orders = append(orders, a.exitOrder(book, symbol, position, ts))
				continue
			}
			if take.Sign() > 0 && price.GreaterThanOrEqual(take) {
				a.logger.Info("take profit triggered",
					zap.String("book", book.ID()),
					zap.String("symbol", symbol),
					zap.String("price", price.String()),
					zap.String("take", take.String()))
				book.ClearExits(symbol)
				orders = append(orders, a.exitOrder(book, symbol, position, ts))
				continue
			}
		}

		decision := book.Strategy().Decide(symbol, history, position, book.Cash(), price)
		switch decision.Action {
		case strategy.Enter:
			if position > 0 {
				// Long-only, no pyramiding.
				continue
			}
			if decision.Quantity <= 0 {
				a.logger.Warn("enter decision with non-positive quantity dropped",
					zap.String("book", book.ID()),
					zap.Int64("quantity", decision.Quantity))
				continue
			}
			orders = append(orders, types.Order{
				ID:         uuid.New().String(),
				StrategyID: book.ID(),
				Symbol:     symbol,
				Side:       types.OrderSideBuy,
				Quantity:   decision.Quantity,
				StopLoss:   decision.StopLoss,
				TakeProfit: decision.TakeProfit,
				CreatedAt:  ts,
			})
		case strategy.Exit:
			if position > 0 {
				orders = append(orders, a.exitOrder(book, symbol, position, ts))
			}
		}
	}
	return orders
}

func (a *Allocator) exitOrder(book *Book, symbol string, qty int64, ts time.Time) types.Order {
	return types.Order{
		ID:         uuid.New().String(),
		StrategyID: book.ID(),
		Symbol:     symbol,
		Side:       types.OrderSideSell,
		Quantity:   qty,
		CreatedAt:  ts,
	}
}

// BookByID returns the book with the given identifier, or nil.
func (a *Allocator) BookByID(id string) *Book {
	for _, book := range a.books {
		if book.ID() == id {
			return book
		}
	}
	return nil
}
