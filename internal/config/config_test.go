package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load with defaults: %v", err)
	}

	if !cfg.Capital.Equal(decimal.NewFromInt(1000000)) {
		t.Errorf("capital = %s, want 1000000", cfg.Capital)
	}
	if cfg.RiskFreeRate != 0.07 {
		t.Errorf("risk free rate = %v, want 0.07", cfg.RiskFreeRate)
	}
	if cfg.Strategies.Trend.ShortWindow != 20 || cfg.Strategies.Trend.LongWindow != 50 {
		t.Errorf("trend windows = %d/%d, want 20/50",
			cfg.Strategies.Trend.ShortWindow, cfg.Strategies.Trend.LongWindow)
	}
	if !cfg.Costs.SlippageBps.Equal(decimal.NewFromInt(10)) {
		t.Errorf("slippage = %s bps, want 10", cfg.Costs.SlippageBps)
	}
	if !cfg.Costs.Fees.StampDutyPct.Equal(decimal.NewFromFloat(0.00015)) {
		t.Errorf("stamp duty = %s, want 0.00015", cfg.Costs.Fees.StampDutyPct)
	}
	if cfg.Optimizer.TrialBudget != 24 {
		t.Errorf("trial budget = %d, want 24", cfg.Optimizer.TrialBudget)
	}
	if cfg.BenchmarkSymbol != "^NSEI" {
		t.Errorf("benchmark symbol = %q, want ^NSEI", cfg.BenchmarkSymbol)
	}
	if len(cfg.Optimizer.Trend.ShortWindows) != 2 {
		t.Errorf("trend grid short windows = %v, want 2 entries", cfg.Optimizer.Trend.ShortWindows)
	}
}

func TestLoadYAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	yaml := `
capital: "250000"
symbols: ["HDFCBANK"]
benchmark_symbol: ""
risk:
  drawdown_limit: 0.08
strategies:
  trend:
    short_window: 10
    long_window: 30
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Capital.Equal(decimal.NewFromInt(250000)) {
		t.Errorf("capital = %s, want 250000", cfg.Capital)
	}
	if len(cfg.Symbols) != 1 || cfg.Symbols[0] != "HDFCBANK" {
		t.Errorf("symbols = %v, want [HDFCBANK]", cfg.Symbols)
	}
	if cfg.Risk.DrawdownLimit != 0.08 {
		t.Errorf("drawdown limit = %v, want 0.08", cfg.Risk.DrawdownLimit)
	}
	if cfg.BenchmarkSymbol != "" {
		t.Errorf("benchmark symbol = %q, want disabled", cfg.BenchmarkSymbol)
	}
	if cfg.Strategies.Trend.LongWindow != 30 {
		t.Errorf("long window = %d, want 30", cfg.Strategies.Trend.LongWindow)
	}
	// Untouched keys keep their defaults.
	if cfg.Strategies.MeanReversion.Window != 20 {
		t.Errorf("mean reversion window = %d, want default 20", cfg.Strategies.MeanReversion.Window)
	}
}

func TestLoadRejectsInvalidWindows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	yaml := `
strategies:
  trend:
    short_window: 50
    long_window: 20
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected validation error for inverted trend windows")
	}
}

func TestLoadRejectsBadDrawdownLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	if err := os.WriteFile(path, []byte("risk:\n  drawdown_limit: 1.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected validation error for drawdown limit above 1")
	}
}
