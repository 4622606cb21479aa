package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantdesk/trading-engine/internal/cost"
	"github.com/quantdesk/trading-engine/internal/portfolio"
	"github.com/quantdesk/trading-engine/internal/risk"
	"github.com/quantdesk/trading-engine/internal/strategy"
	"github.com/quantdesk/trading-engine/pkg/types"
)

func flatThenRisingBars(flat int, base float64, rise int, step float64) []types.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.Bar, 0, flat+rise)
	price := base
	for i := 0; i < flat+rise; i++ {
		if i >= flat {
			price += step
		}
		p := decimal.NewFromFloat(price)
		bars = append(bars, types.Bar{
			Timestamp: start.AddDate(0, 0, i),
			Open:      p, High: p, Low: p, Close: p,
			Volume: decimal.NewFromInt(1000),
		})
	}
	return bars
}

func frictionlessSettler(t *testing.T, riskCfg types.RiskConfig) (*Settler, *risk.Manager) {
	t.Helper()
	riskMgr := risk.NewManager(zap.NewNop(), riskCfg, risk.NopAlerter{})
	costs := cost.NewModel(types.CostConfig{Fees: cost.ZeroFees()})
	return NewSettler(zap.NewNop(), costs, riskMgr), riskMgr
}

// Single trend book over a flat series that breaks into a linear rise:
// exactly one entry fires at the crossover and the final equity beats
// the starting capital with costs at zero.
func TestTrendBacktestSingleEntry(t *testing.T) {
	params := types.TrendParams{
		ShortWindow:   5,
		LongWindow:    20,
		RSIWindow:     14,
		RSIBullish:    55,
		TakeProfitPct: 0.50,
		StopLossPct:   0.50,
		RiskPerTrade:  0.02,
	}
	book := portfolio.NewBook("trend", strategy.NewTrendFollowing(params))
	alloc := portfolio.NewAllocator(zap.NewNop(), decimal.NewFromInt(100000), []*portfolio.Book{book})
	settler, riskMgr := frictionlessSettler(t, types.RiskConfig{DrawdownLimit: 1.0})

	sim := NewSimulator(zap.NewNop(), alloc, settler, riskMgr)
	result := sim.Run("TEST", flatThenRisingBars(50, 100, 10, 5))

	var buys, sells int
	for _, fill := range result.Fills {
		switch fill.Side {
		case types.OrderSideBuy:
			buys++
		case types.OrderSideSell:
			sells++
		}
	}
	if buys != 1 {
		t.Fatalf("buy fills = %d, want exactly 1", buys)
	}
	if sells != 0 {
		t.Errorf("sell fills = %d, want 0 with wide exit levels", sells)
	}

	final := result.EquityCurve[len(result.EquityCurve)-1].Equity
	if !final.GreaterThan(decimal.NewFromInt(100000)) {
		t.Errorf("final equity = %s, want > 100000", final)
	}

	// Before the rise the book is all cash at the starting capital.
	if first := result.EquityCurve[0].Equity; !first.Equal(decimal.NewFromInt(100000)) {
		t.Errorf("warm equity = %s, want 100000", first)
	}
}

func TestBacktestWarmupProducesNoTrades(t *testing.T) {
	params := types.TrendParams{
		ShortWindow: 5, LongWindow: 20, RSIWindow: 14, RSIBullish: 55,
		TakeProfitPct: 0.05, StopLossPct: 0.02, RiskPerTrade: 0.02,
	}
	book := portfolio.NewBook("trend", strategy.NewTrendFollowing(params))
	alloc := portfolio.NewAllocator(zap.NewNop(), decimal.NewFromInt(100000), []*portfolio.Book{book})
	settler, riskMgr := frictionlessSettler(t, types.RiskConfig{DrawdownLimit: 1.0})

	sim := NewSimulator(zap.NewNop(), alloc, settler, riskMgr)
	result := sim.Run("TEST", flatThenRisingBars(10, 100, 0, 0))

	if len(result.Fills) != 0 {
		t.Errorf("fills during warm-up only series = %d, want 0", len(result.Fills))
	}
	if len(result.EquityCurve) != 0 {
		t.Errorf("equity points before warm-up = %d, want 0", len(result.EquityCurve))
	}
}

func TestSettleAppliesSlippage(t *testing.T) {
	riskMgr := risk.NewManager(zap.NewNop(), types.RiskConfig{DrawdownLimit: 1.0}, risk.NopAlerter{})
	costs := cost.NewModel(types.CostConfig{
		SlippageBps: decimal.NewFromInt(10),
		Fees:        cost.ZeroFees(),
	})
	settler := NewSettler(zap.NewNop(), costs, riskMgr)

	book := portfolio.NewBook("trend", nil)
	book.SetCapital(decimal.NewFromInt(200000))

	order := types.Order{
		ID: "o1", StrategyID: "trend", Symbol: "TEST",
		Side: types.OrderSideBuy, Quantity: 1000,
	}
	fill, ok := settler.Settle(book, order, decimal.NewFromInt(100), time.Now())
	if !ok {
		t.Fatal("settle failed")
	}
	// 10 bps on a buy: execution at 100.1, notional 100100.
	if !fill.Price.Equal(decimal.NewFromFloat(100.1)) {
		t.Errorf("fill price = %s, want 100.1", fill.Price)
	}
	if !book.Cash().Equal(decimal.NewFromInt(99900)) {
		t.Errorf("cash after buy = %s, want 99900", book.Cash())
	}
}

func TestSettleDropsUnaffordableOrder(t *testing.T) {
	settler, _ := frictionlessSettler(t, types.RiskConfig{DrawdownLimit: 1.0})
	book := portfolio.NewBook("trend", nil)
	book.SetCapital(decimal.NewFromInt(1000))

	order := types.Order{
		ID: "o1", StrategyID: "trend", Symbol: "TEST",
		Side: types.OrderSideBuy, Quantity: 100,
	}
	if _, ok := settler.Settle(book, order, decimal.NewFromInt(100), time.Now()); ok {
		t.Fatal("expected drop for unaffordable buy")
	}
	if !book.Cash().Equal(decimal.NewFromInt(1000)) || book.Position("TEST") != 0 {
		t.Errorf("book mutated by dropped order: cash=%s position=%d",
			book.Cash(), book.Position("TEST"))
	}
	if len(settler.Fills()) != 0 {
		t.Errorf("fill log has %d entries after drop, want 0", len(settler.Fills()))
	}
}

func TestSettleHonorsRiskGate(t *testing.T) {
	riskMgr := risk.NewManager(zap.NewNop(), types.RiskConfig{DrawdownLimit: 0.05}, risk.NopAlerter{})
	costs := cost.NewModel(types.CostConfig{Fees: cost.ZeroFees()})
	settler := NewSettler(zap.NewNop(), costs, riskMgr)

	// Force a breach.
	riskMgr.ObserveEquity(time.Now(), decimal.NewFromInt(100000))
	riskMgr.ObserveEquity(time.Now(), decimal.NewFromInt(90000))

	book := portfolio.NewBook("trend", nil)
	book.SetCapital(decimal.NewFromInt(100000))

	buy := types.Order{ID: "o1", StrategyID: "trend", Symbol: "TEST", Side: types.OrderSideBuy, Quantity: 10}
	if _, ok := settler.Settle(book, buy, decimal.NewFromInt(100), time.Now()); ok {
		t.Error("buy settled during breach")
	}

	// Exits still settle: seed a position directly.
	if err := book.Buy("TEST", 10, decimal.NewFromInt(1000), decimal.Zero); err != nil {
		t.Fatal(err)
	}
	sell := types.Order{ID: "o2", StrategyID: "trend", Symbol: "TEST", Side: types.OrderSideSell, Quantity: 10}
	if _, ok := settler.Settle(book, sell, decimal.NewFromInt(100), time.Now()); !ok {
		t.Error("sell dropped during breach")
	}
}

func TestSettleArmsAndClearsExits(t *testing.T) {
	settler, _ := frictionlessSettler(t, types.RiskConfig{DrawdownLimit: 1.0})
	book := portfolio.NewBook("trend", nil)
	book.SetCapital(decimal.NewFromInt(100000))

	buy := types.Order{
		ID: "o1", StrategyID: "trend", Symbol: "TEST",
		Side: types.OrderSideBuy, Quantity: 100,
		StopLoss:   decimal.NewFromInt(98),
		TakeProfit: decimal.NewFromInt(105),
	}
	if _, ok := settler.Settle(book, buy, decimal.NewFromInt(100), time.Now()); !ok {
		t.Fatal("buy failed")
	}
	stop, take := book.ExitLevels("TEST")
	if !stop.Equal(decimal.NewFromInt(98)) || !take.Equal(decimal.NewFromInt(105)) {
		t.Errorf("armed levels = %s/%s, want 98/105", stop, take)
	}

	sell := types.Order{ID: "o2", StrategyID: "trend", Symbol: "TEST", Side: types.OrderSideSell, Quantity: 100}
	if _, ok := settler.Settle(book, sell, decimal.NewFromInt(102), time.Now()); !ok {
		t.Fatal("sell failed")
	}
	stop, take = book.ExitLevels("TEST")
	if stop.Sign() != 0 || take.Sign() != 0 {
		t.Errorf("exit levels survive a full exit: %s/%s", stop, take)
	}
}
