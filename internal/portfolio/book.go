// Package portfolio manages per-strategy books and the capital
// allocator that drives their trading cycle. Each book owns its own
// cash and positions; nothing is shared between strategies.
package portfolio

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantdesk/trading-engine/internal/strategy"
	"github.com/quantdesk/trading-engine/pkg/types"
)

var (
	// ErrInsufficientCash rejects a buy the book cannot settle.
	ErrInsufficientCash = errors.New("insufficient cash")
	// ErrInsufficientPosition rejects a sell of more shares than held.
	ErrInsufficientPosition = errors.New("insufficient position")
)

// Book is one strategy's private sub-account: cash, whole-share
// positions per symbol, and the armed exit levels. Mutations settle
// atomically under the book's lock.
type Book struct {
	mu sync.RWMutex

	id       string
	strategy strategy.Strategy

	cash       decimal.Decimal
	positions  map[string]int64
	stopLoss   map[string]decimal.Decimal
	takeProfit map[string]decimal.Decimal
}

// NewBook creates an empty book for a strategy instance.
func NewBook(id string, strat strategy.Strategy) *Book {
	return &Book{
		id:         id,
		strategy:   strat,
		positions:  make(map[string]int64),
		stopLoss:   make(map[string]decimal.Decimal),
		takeProfit: make(map[string]decimal.Decimal),
	}
}

// ID returns the book identifier.
func (b *Book) ID() string { return b.id }

// Strategy returns the owning strategy instance.
func (b *Book) Strategy() strategy.Strategy { return b.strategy }

// SetCapital resets the book to a cash-only state.
func (b *Book) SetCapital(capital decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cash = capital
	b.positions = make(map[string]int64)
	b.stopLoss = make(map[string]decimal.Decimal)
	b.takeProfit = make(map[string]decimal.Decimal)
}

// Cash returns the book's free cash.
func (b *Book) Cash() decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cash
}

// Position returns the holding in one symbol.
func (b *Book) Position(symbol string) int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.positions[symbol]
}

// Positions returns a snapshot of all non-zero holdings.
func (b *Book) Positions() []types.PositionSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	symbols := make([]string, 0, len(b.positions))
	for symbol, qty := range b.positions {
		if qty != 0 {
			symbols = append(symbols, symbol)
		}
	}
	sort.Strings(symbols)

	now := time.Now().UTC()
	out := make([]types.PositionSnapshot, 0, len(symbols))
	for _, symbol := range symbols {
		out = append(out, types.PositionSnapshot{
			StrategyID: b.id,
			Symbol:     symbol,
			Quantity:   b.positions[symbol],
			UpdatedAt:  now,
		})
	}
	return out
}

// RestorePosition seeds a holding from the ledger on restart.
func (b *Book) RestorePosition(symbol string, qty int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if qty > 0 {
		b.positions[symbol] = qty
	}
}

// Buy settles an entry: cash must cover notional plus cost, then cash
// and the position mutate together.
func (b *Book) Buy(symbol string, qty int64, notional, cost decimal.Decimal) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	required := notional.Add(cost)
	if b.cash.LessThan(required) {
		return ErrInsufficientCash
	}
	b.cash = b.cash.Sub(required)
	b.positions[symbol] += qty
	return nil
}

// Sell settles an exit: the position must cover the quantity, then the
// net proceeds credit cash.
func (b *Book) Sell(symbol string, qty int64, notional, cost decimal.Decimal) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.positions[symbol] < qty {
		return ErrInsufficientPosition
	}
	b.positions[symbol] -= qty
	if b.positions[symbol] == 0 {
		delete(b.positions, symbol)
	}
	b.cash = b.cash.Add(notional.Sub(cost))
	return nil
}

// ArmExits sets the stop-loss and take-profit levels for a symbol.
// Called when an entry fill settles.
func (b *Book) ArmExits(symbol string, stop, take decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if stop.Sign() > 0 {
		b.stopLoss[symbol] = stop
	}
	if take.Sign() > 0 {
		b.takeProfit[symbol] = take
	}
}

// ClearExits removes the armed levels for a symbol.
func (b *Book) ClearExits(symbol string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.stopLoss, symbol)
	delete(b.takeProfit, symbol)
}

// ExitLevels returns the armed stop and take-profit for a symbol.
// Zero values mean not armed.
func (b *Book) ExitLevels(symbol string) (stop, take decimal.Decimal) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stopLoss[symbol], b.takeProfit[symbol]
}

// Equity marks the book at the given prices. Held symbols without a
// known price contribute zero.
func (b *Book) Equity(prices map[string]decimal.Decimal) decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()

	equity := b.cash
	for symbol, qty := range b.positions {
		price, ok := prices[symbol]
		if !ok {
			continue
		}
		equity = equity.Add(price.Mul(decimal.NewFromInt(qty)))
	}
	return equity
}
