// Package config loads engine configuration with viper: defaults,
// optional YAML file, then ENGINE_* environment overrides. Invalid
// configuration is fatal at startup.
package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/quantdesk/trading-engine/pkg/types"
)

// decimalDecodeHook lets viper populate decimal.Decimal fields from the
// strings and numbers it reads.
func decimalDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, value interface{}) (interface{}, error) {
		if to != reflect.TypeOf(decimal.Decimal{}) {
			return value, nil
		}
		switch v := value.(type) {
		case string:
			return decimal.NewFromString(v)
		case float64:
			return decimal.NewFromFloat(v), nil
		case int:
			return decimal.NewFromInt(int64(v)), nil
		case int64:
			return decimal.NewFromInt(v), nil
		default:
			return value, nil
		}
	}
}

// Load reads the configuration. path may be empty, in which case the
// defaults plus environment overrides apply.
func Load(path string) (types.EngineConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return types.EngineConfig{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg types.EngineConfig
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decimalDecodeHook())); err != nil {
		return types.EngineConfig{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := validate(cfg); err != nil {
		return types.EngineConfig{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("capital", "1000000")
	v.SetDefault("risk_free_rate", 0.07)
	v.SetDefault("symbols", []string{"RELIANCE", "TCS", "INFY"})
	v.SetDefault("benchmark_symbol", "^NSEI")
	v.SetDefault("ledger_path", "live_ledger.db")

	v.SetDefault("data.data_dir", "marketdata")
	v.SetDefault("data.timeframe", "1d")

	v.SetDefault("costs.slippage_bps", "10")
	v.SetDefault("costs.fees.brokerage_pct", "0.0003")
	v.SetDefault("costs.fees.stt_pct", "0.001")
	v.SetDefault("costs.fees.exchange_txn_pct", "0.0000345")
	v.SetDefault("costs.fees.gst_pct", "0.18")
	v.SetDefault("costs.fees.sebi_pct", "0.000001")
	v.SetDefault("costs.fees.stamp_duty_pct", "0.00015")

	v.SetDefault("risk.drawdown_limit", 0.05)
	v.SetDefault("risk.max_order_value", "200000")

	v.SetDefault("strategies.trend.short_window", 20)
	v.SetDefault("strategies.trend.long_window", 50)
	v.SetDefault("strategies.trend.rsi_window", 14)
	v.SetDefault("strategies.trend.rsi_bullish", 55)
	v.SetDefault("strategies.trend.take_profit_pct", 0.05)
	v.SetDefault("strategies.trend.stop_loss_pct", 0.02)
	v.SetDefault("strategies.trend.risk_per_trade", 0.02)

	v.SetDefault("strategies.mean_reversion.window", 20)
	v.SetDefault("strategies.mean_reversion.std_dev", 2.0)
	v.SetDefault("strategies.mean_reversion.rsi_window", 14)
	v.SetDefault("strategies.mean_reversion.rsi_oversold", 40)
	v.SetDefault("strategies.mean_reversion.take_profit_pct", 0.03)
	v.SetDefault("strategies.mean_reversion.stop_loss_pct", 0.015)
	v.SetDefault("strategies.mean_reversion.risk_per_trade", 0.02)

	v.SetDefault("optimizer.trial_budget", 24)
	v.SetDefault("optimizer.workers", 4)
	v.SetDefault("optimizer.seed", 0)
	v.SetDefault("optimizer.trend.short_windows", []int{20, 40})
	v.SetDefault("optimizer.trend.long_windows", []int{50, 100})
	v.SetDefault("optimizer.trend.take_profits", []float64{0.05, 0.07})
	v.SetDefault("optimizer.trend.stop_losses", []float64{0.02, 0.03})
	v.SetDefault("optimizer.mean_reversion.windows", []int{20, 30})
	v.SetDefault("optimizer.mean_reversion.std_devs", []float64{2.0, 2.5})
	v.SetDefault("optimizer.mean_reversion.take_profits", []float64{0.03, 0.04})
	v.SetDefault("optimizer.mean_reversion.stop_losses", []float64{0.015, 0.02})

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.enable_metrics", true)
}

func validate(cfg types.EngineConfig) error {
	if cfg.Capital.Sign() <= 0 {
		return fmt.Errorf("capital must be positive, got %s", cfg.Capital)
	}
	if len(cfg.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	if cfg.Risk.DrawdownLimit <= 0 || cfg.Risk.DrawdownLimit >= 1 {
		return fmt.Errorf("risk.drawdown_limit must be in (0, 1), got %v", cfg.Risk.DrawdownLimit)
	}
	if cfg.Strategies.Trend.ShortWindow >= cfg.Strategies.Trend.LongWindow {
		return fmt.Errorf("trend short window %d must be below long window %d",
			cfg.Strategies.Trend.ShortWindow, cfg.Strategies.Trend.LongWindow)
	}
	if cfg.Strategies.MeanReversion.Window < 2 {
		return fmt.Errorf("mean reversion window must be at least 2, got %d",
			cfg.Strategies.MeanReversion.Window)
	}
	if cfg.Optimizer.TrialBudget <= 0 {
		return fmt.Errorf("optimizer.trial_budget must be positive, got %d", cfg.Optimizer.TrialBudget)
	}
	return nil
}
