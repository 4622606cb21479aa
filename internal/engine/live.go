package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantdesk/trading-engine/internal/ledger"
	"github.com/quantdesk/trading-engine/internal/portfolio"
	"github.com/quantdesk/trading-engine/internal/risk"
	"github.com/quantdesk/trading-engine/pkg/types"
)

// TickSource supplies batches of ticks to the live coordinator. The
// channel closes when the source is exhausted.
type TickSource interface {
	Batches() <-chan []types.Tick
}

// Coordinator drives the live session: it applies tick batches
// serially, maintains per-symbol rolling histories, routes decisions
// through the shared settlement path and persists positions to the
// ledger after every fill.
type Coordinator struct {
	logger  *zap.Logger
	alloc   *portfolio.Allocator
	settler *Settler
	risk    *risk.Manager
	store   *ledger.Store

	histories  map[string][]types.Bar
	lastPrices map[string]decimal.Decimal
	warmup     int
	currentDay time.Time

	// OnEquity, when set, receives every equity point for streaming.
	OnEquity func(types.EquityCurvePoint)
}

// NewCoordinator creates a live coordinator. store may be nil, which
// disables persistence.
func NewCoordinator(logger *zap.Logger, alloc *portfolio.Allocator, settler *Settler, riskMgr *risk.Manager, store *ledger.Store) *Coordinator {
	warmup := alloc.MaxLookback()
	if warmup < minWarmup {
		warmup = minWarmup
	}
	return &Coordinator{
		logger:     logger,
		alloc:      alloc,
		settler:    settler,
		risk:       riskMgr,
		store:      store,
		histories:  make(map[string][]types.Bar),
		lastPrices: make(map[string]decimal.Decimal),
		warmup:     warmup,
	}
}

// Restore reloads positions from the ledger into the books. Cash is not
// persisted; every book restarts from its capital split.
func (c *Coordinator) Restore() error {
	if c.store == nil {
		return nil
	}
	snaps, err := c.store.LoadPositions()
	if err != nil {
		return err
	}
	for _, snap := range snaps {
		book := c.alloc.BookByID(snap.StrategyID)
		if book == nil {
			c.logger.Warn("ledger position for unknown book dropped",
				zap.String("book", snap.StrategyID),
				zap.String("symbol", snap.Symbol))
			continue
		}
		book.RestorePosition(snap.Symbol, snap.Quantity)
		c.logger.Info("position restored from ledger",
			zap.String("book", snap.StrategyID),
			zap.String("symbol", snap.Symbol),
			zap.Int64("quantity", snap.Quantity))
	}
	return nil
}

// Run consumes the tick source until it closes or the context ends.
// Batches are applied strictly in order.
func (c *Coordinator) Run(ctx context.Context, source TickSource) error {
	c.logger.Info("live session started", zap.Int("warmup", c.warmup))
	batches := source.Batches()
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("live session stopping", zap.Error(ctx.Err()))
			return ctx.Err()
		case batch, ok := <-batches:
			if !ok {
				c.logger.Info("tick source exhausted, live session done")
				return nil
			}
			c.applyBatch(batch)
		}
	}
}

func (c *Coordinator) applyBatch(ticks []types.Tick) {
	if len(ticks) == 0 {
		return
	}

	c.rollDay(ticks[0].Timestamp)

	for _, tick := range ticks {
		c.lastPrices[tick.Symbol] = tick.Price
		c.appendBar(tick)
	}

	equity := c.alloc.TotalEquity(c.lastPrices)
	ts := ticks[len(ticks)-1].Timestamp
	c.risk.ObserveEquity(ts, equity)

	for _, tick := range ticks {
		history := c.histories[tick.Symbol]
		if len(history) < c.warmup {
			continue
		}
		for _, order := range c.alloc.Cycle(tick.Symbol, history, tick.Price, tick.Timestamp) {
			book := c.alloc.BookByID(order.StrategyID)
			if book == nil {
				continue
			}
			if _, ok := c.settler.Settle(book, order, tick.Price, tick.Timestamp); ok {
				c.persist()
			}
		}
	}

	equity = c.alloc.TotalEquity(c.lastPrices)
	point := types.EquityCurvePoint{
		Timestamp: ts,
		Equity:    equity,
		Cash:      c.alloc.TotalCash(),
	}
	if c.OnEquity != nil {
		c.OnEquity(point)
	}
}

// appendBar folds a tick into the symbol's rolling bar history. Ticks
// carry a single price, so each bar's open, high, low and close agree.
func (c *Coordinator) appendBar(tick types.Tick) {
	bar := types.Bar{
		Timestamp: tick.Timestamp,
		Open:      tick.Price,
		High:      tick.Price,
		Low:       tick.Price,
		Close:     tick.Price,
	}
	history := append(c.histories[tick.Symbol], bar)
	if len(history) > c.warmup+historyPad {
		history = history[1:]
	}
	c.histories[tick.Symbol] = history
}

// rollDay forwards session boundaries to the risk manager.
func (c *Coordinator) rollDay(ts time.Time) {
	day := ts.UTC().Truncate(24 * time.Hour)
	if c.currentDay.IsZero() {
		c.currentDay = day
		return
	}
	if day.After(c.currentDay) {
		c.currentDay = day
		equity := c.alloc.TotalEquity(c.lastPrices)
		c.risk.AssessNewDay(equity)
		c.logger.Info("new trading day assessed",
			zap.Time("day", day),
			zap.String("equity", equity.String()))
	}
}

// persist writes the current position snapshot to the ledger. Failures
// are logged; the session continues on the in-memory state.
func (c *Coordinator) persist() {
	if c.store == nil {
		return
	}
	var snaps []types.PositionSnapshot
	for _, book := range c.alloc.Books() {
		snaps = append(snaps, book.Positions()...)
	}
	if err := c.store.SavePositions(snaps); err != nil {
		c.logger.Error("persisting positions failed", zap.Error(err))
	}
}
