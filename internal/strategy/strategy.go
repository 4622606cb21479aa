// Package strategy defines the strategy contract and the two built-in
// families: trend following and mean reversion. Strategies are pure
// decision functions over a price history window; position and exit
// bookkeeping lives in the owning book.
package strategy

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantdesk/trading-engine/pkg/types"
)

// Action is the outcome of a strategy decision.
type Action int

const (
	// Hold takes no action this cycle.
	Hold Action = iota
	// Enter opens a long position of Quantity shares.
	Enter
	// Exit closes the full current position.
	Exit
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case Enter:
		return "enter"
	case Exit:
		return "exit"
	default:
		return "hold"
	}
}

// Decision is the result of one strategy evaluation. StopLoss and
// TakeProfit accompany Enter decisions and are armed on the book when
// the entry fill settles.
type Decision struct {
	Action     Action
	Quantity   int64
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
}

var hold = Decision{Action: Hold}

// Strategy is the contract every family implements. Decide must not
// mutate anything it is handed; with fewer than Lookback bars of
// history it returns Hold.
type Strategy interface {
	// Name returns the family name.
	Name() string
	// Lookback returns the warm-up requirement in bars.
	Lookback() int
	// Decide evaluates one symbol at the current price. position is the
	// book's holding in the symbol and cash the book's free capital,
	// used for position sizing on entries.
	Decide(symbol string, history []types.Bar, position int64, cash decimal.Decimal, price decimal.Decimal) Decision
}

// Factory builds a strategy instance from the per-family parameter block.
type Factory func(cfg types.StrategiesConfig) Strategy

// Registry maps family names to factories. It is populated once at
// construction and read-only afterwards.
type Registry struct {
	logger    *zap.Logger
	factories map[string]Factory
}

// Family names as registered.
const (
	FamilyTrend         = "trend"
	FamilyMeanReversion = "mean_reversion"
)

// NewRegistry builds the registry with both built-in families.
func NewRegistry(logger *zap.Logger) *Registry {
	r := &Registry{
		logger:    logger,
		factories: make(map[string]Factory),
	}
	r.factories[FamilyTrend] = func(cfg types.StrategiesConfig) Strategy {
		return NewTrendFollowing(cfg.Trend)
	}
	r.factories[FamilyMeanReversion] = func(cfg types.StrategiesConfig) Strategy {
		return NewMeanReversion(cfg.MeanReversion)
	}
	logger.Debug("strategy registry built", zap.Strings("families", r.Families()))
	return r
}

// Create instantiates a registered family with the given parameters.
func (r *Registry) Create(family string, cfg types.StrategiesConfig) (Strategy, error) {
	factory, ok := r.factories[family]
	if !ok {
		return nil, fmt.Errorf("unknown strategy family: %s", family)
	}
	return factory(cfg), nil
}

// Families returns the registered family names in sorted order.
func (r *Registry) Families() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
