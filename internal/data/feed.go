package data

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantdesk/trading-engine/pkg/types"
)

// ReplayFeed streams stored bars as tick batches, one batch per bar
// timestamp across all symbols. It backs live sessions when no real
// feed is attached.
type ReplayFeed struct {
	series map[string][]types.Bar
	done   chan struct{}
	once   sync.Once
}

// NewReplayFeed creates a feed over per-symbol bar series.
func NewReplayFeed(series map[string][]types.Bar) *ReplayFeed {
	return &ReplayFeed{series: series, done: make(chan struct{})}
}

// Close stops the producer goroutine even when the consumer has gone
// away mid-stream. Safe to call more than once.
func (f *ReplayFeed) Close() {
	f.once.Do(func() { close(f.done) })
}

// Batches emits one batch per distinct timestamp, in time order. Each
// batch holds the close of every symbol with a bar at that timestamp.
func (f *ReplayFeed) Batches() <-chan []types.Tick {
	ch := make(chan []types.Tick)
	go func() {
		defer close(ch)

		type cursor struct {
			symbol string
			bars   []types.Bar
			pos    int
		}
		var cursors []*cursor
		for symbol, bars := range f.series {
			if len(bars) > 0 {
				cursors = append(cursors, &cursor{symbol: symbol, bars: bars})
			}
		}

		for {
			var next time.Time
			found := false
			for _, c := range cursors {
				if c.pos >= len(c.bars) {
					continue
				}
				ts := c.bars[c.pos].Timestamp
				if !found || ts.Before(next) {
					next = ts
					found = true
				}
			}
			if !found {
				return
			}

			var batch []types.Tick
			for _, c := range cursors {
				if c.pos < len(c.bars) && c.bars[c.pos].Timestamp.Equal(next) {
					batch = append(batch, types.Tick{
						Symbol:    c.symbol,
						Price:     c.bars[c.pos].Close,
						Timestamp: next,
					})
					c.pos++
				}
			}
			select {
			case ch <- batch:
			case <-f.done:
				return
			}
		}
	}()
	return ch
}

// SyntheticSeries generates a deterministic random-walk bar series,
// used for demos and tests when no market data is on disk.
func SyntheticSeries(symbol string, start time.Time, days int, basePrice float64, seed int64) []types.Bar {
	rng := rand.New(rand.NewSource(seed))
	bars := make([]types.Bar, 0, days)
	price := basePrice
	for i := 0; i < days; i++ {
		drift := 0.0003
		shock := rng.NormFloat64() * 0.015
		price *= math.Exp(drift + shock)

		spread := price * 0.01 * (0.5 + rng.Float64())
		open := price * (1 + rng.NormFloat64()*0.003)
		high := math.Max(open, price) + spread/2
		low := math.Min(open, price) - spread/2

		bars = append(bars, types.Bar{
			Timestamp: start.AddDate(0, 0, i),
			Open:      decimal.NewFromFloat(open),
			High:      decimal.NewFromFloat(high),
			Low:       decimal.NewFromFloat(low),
			Close:     decimal.NewFromFloat(price),
			Volume:    decimal.NewFromInt(int64(1000 + rng.Intn(9000))),
		})
	}
	return bars
}
