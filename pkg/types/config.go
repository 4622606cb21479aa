// Package types provides configuration types for the trading engine.
package types

import (
	"github.com/shopspring/decimal"
)

// EngineConfig is the root configuration for backtest, optimize and live runs
type EngineConfig struct {
	LogLevel     string              `json:"logLevel" mapstructure:"log_level"`
	Capital      decimal.Decimal     `json:"capital" mapstructure:"capital"`
	RiskFreeRate float64             `json:"riskFreeRate" mapstructure:"risk_free_rate"`
	Symbols      []string            `json:"symbols" mapstructure:"symbols"`
	// BenchmarkSymbol names the series used for alpha/beta. Empty skips
	// the benchmark comparison.
	BenchmarkSymbol string `json:"benchmarkSymbol" mapstructure:"benchmark_symbol"`
	Data         DataConfig          `json:"data" mapstructure:"data"`
	Costs        CostConfig          `json:"costs" mapstructure:"costs"`
	Risk         RiskConfig          `json:"risk" mapstructure:"risk"`
	Strategies   StrategiesConfig    `json:"strategies" mapstructure:"strategies"`
	Optimizer    OptimizerConfig     `json:"optimizer" mapstructure:"optimizer"`
	Server       ServerConfig        `json:"server" mapstructure:"server"`
	LedgerPath   string              `json:"ledgerPath" mapstructure:"ledger_path"`
}

// Clone returns a deep copy. Optimizer trials mutate their own copy only.
func (c EngineConfig) Clone() EngineConfig {
	out := c
	out.Symbols = append([]string(nil), c.Symbols...)
	out.Optimizer.Trend = c.Optimizer.Trend.clone()
	out.Optimizer.MeanReversion = c.Optimizer.MeanReversion.clone()
	return out
}

// DataConfig represents bar storage configuration
type DataConfig struct {
	DataDir   string    `json:"dataDir" mapstructure:"data_dir"`
	Timeframe Timeframe `json:"timeframe" mapstructure:"timeframe"`
}

// CostConfig holds the slippage and fee model inputs
type CostConfig struct {
	SlippageBps decimal.Decimal `json:"slippageBps" mapstructure:"slippage_bps"`
	Fees        FeeSchedule     `json:"fees" mapstructure:"fees"`
}

// FeeSchedule is the set of proportional fee components applied to
// executed notional. All rates are fractions (0.001 = 0.1%).
// GST applies to brokerage plus exchange charges; stamp duty is buy-only.
type FeeSchedule struct {
	BrokeragePct   decimal.Decimal `json:"brokeragePct" mapstructure:"brokerage_pct"`
	STTPct         decimal.Decimal `json:"sttPct" mapstructure:"stt_pct"`
	ExchangeTxnPct decimal.Decimal `json:"exchangeTxnPct" mapstructure:"exchange_txn_pct"`
	GSTPct         decimal.Decimal `json:"gstPct" mapstructure:"gst_pct"`
	SEBIPct        decimal.Decimal `json:"sebiPct" mapstructure:"sebi_pct"`
	StampDutyPct   decimal.Decimal `json:"stampDutyPct" mapstructure:"stamp_duty_pct"`
}

// RiskConfig represents firm-level risk limits
type RiskConfig struct {
	DrawdownLimit float64         `json:"drawdownLimit" mapstructure:"drawdown_limit"`
	MaxOrderValue decimal.Decimal `json:"maxOrderValue" mapstructure:"max_order_value"`
}

// StrategiesConfig carries one parameter block per strategy family
type StrategiesConfig struct {
	Trend         TrendParams         `json:"trend" mapstructure:"trend"`
	MeanReversion MeanReversionParams `json:"meanReversion" mapstructure:"mean_reversion"`
}

// TrendParams parameterizes the trend-following family
type TrendParams struct {
	ShortWindow   int     `json:"shortWindow" mapstructure:"short_window"`
	LongWindow    int     `json:"longWindow" mapstructure:"long_window"`
	RSIWindow     int     `json:"rsiWindow" mapstructure:"rsi_window"`
	RSIBullish    float64 `json:"rsiBullish" mapstructure:"rsi_bullish"`
	TakeProfitPct float64 `json:"takeProfitPct" mapstructure:"take_profit_pct"`
	StopLossPct   float64 `json:"stopLossPct" mapstructure:"stop_loss_pct"`
	RiskPerTrade  float64 `json:"riskPerTrade" mapstructure:"risk_per_trade"`
}

// MeanReversionParams parameterizes the mean-reversion family
type MeanReversionParams struct {
	Window        int     `json:"window" mapstructure:"window"`
	StdDev        float64 `json:"stdDev" mapstructure:"std_dev"`
	RSIWindow     int     `json:"rsiWindow" mapstructure:"rsi_window"`
	RSIOversold   float64 `json:"rsiOversold" mapstructure:"rsi_oversold"`
	TakeProfitPct float64 `json:"takeProfitPct" mapstructure:"take_profit_pct"`
	StopLossPct   float64 `json:"stopLossPct" mapstructure:"stop_loss_pct"`
	RiskPerTrade  float64 `json:"riskPerTrade" mapstructure:"risk_per_trade"`
}

// OptimizerConfig represents the randomized grid search configuration
type OptimizerConfig struct {
	TrialBudget   int               `json:"trialBudget" mapstructure:"trial_budget"`
	Workers       int               `json:"workers" mapstructure:"workers"`
	Seed          int64             `json:"seed" mapstructure:"seed"`
	Trend         TrendGrid         `json:"trend" mapstructure:"trend"`
	MeanReversion MeanReversionGrid `json:"meanReversion" mapstructure:"mean_reversion"`
}

// TrendGrid is the candidate value set per trend parameter
type TrendGrid struct {
	ShortWindows []int     `json:"shortWindows" mapstructure:"short_windows"`
	LongWindows  []int     `json:"longWindows" mapstructure:"long_windows"`
	TakeProfits  []float64 `json:"takeProfits" mapstructure:"take_profits"`
	StopLosses   []float64 `json:"stopLosses" mapstructure:"stop_losses"`
}

func (g TrendGrid) clone() TrendGrid {
	return TrendGrid{
		ShortWindows: append([]int(nil), g.ShortWindows...),
		LongWindows:  append([]int(nil), g.LongWindows...),
		TakeProfits:  append([]float64(nil), g.TakeProfits...),
		StopLosses:   append([]float64(nil), g.StopLosses...),
	}
}

// MeanReversionGrid is the candidate value set per mean-reversion parameter
type MeanReversionGrid struct {
	Windows     []int     `json:"windows" mapstructure:"windows"`
	StdDevs     []float64 `json:"stdDevs" mapstructure:"std_devs"`
	TakeProfits []float64 `json:"takeProfits" mapstructure:"take_profits"`
	StopLosses  []float64 `json:"stopLosses" mapstructure:"stop_losses"`
}

func (g MeanReversionGrid) clone() MeanReversionGrid {
	return MeanReversionGrid{
		Windows:     append([]int(nil), g.Windows...),
		StdDevs:     append([]float64(nil), g.StdDevs...),
		TakeProfits: append([]float64(nil), g.TakeProfits...),
		StopLosses:  append([]float64(nil), g.StopLosses...),
	}
}

// ServerConfig represents the reporting API server configuration
type ServerConfig struct {
	Host          string `json:"host" mapstructure:"host"`
	Port          int    `json:"port" mapstructure:"port"`
	EnableMetrics bool   `json:"enableMetrics" mapstructure:"enable_metrics"`
}
