// Package types provides shared type definitions for the trading engine.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide represents buy or sell
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Timeframe represents trading timeframes
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe1d  Timeframe = "1d"
)

// Bar represents a single OHLCV candlestick
type Bar struct {
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

// Tick represents a single price observation for one symbol
type Tick struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

// Order represents a market order submitted by a strategy book.
// Quantity is whole shares; stop and take-profit levels travel with
// entry orders and are armed on the book when the fill settles.
type Order struct {
	ID         string          `json:"id"`
	StrategyID string          `json:"strategyId"`
	Symbol     string          `json:"symbol"`
	Side       OrderSide       `json:"side"`
	Quantity   int64           `json:"quantity"`
	StopLoss   decimal.Decimal `json:"stopLoss,omitempty"`
	TakeProfit decimal.Decimal `json:"takeProfit,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Fill represents a settled order
type Fill struct {
	ID         string          `json:"id"`
	OrderID    string          `json:"orderId"`
	StrategyID string          `json:"strategyId"`
	Symbol     string          `json:"symbol"`
	Side       OrderSide       `json:"side"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Cost       decimal.Decimal `json:"cost"`
	ExecutedAt time.Time       `json:"executedAt"`
}

// PositionSnapshot is a ledger row: one strategy's holding in one symbol
type PositionSnapshot struct {
	StrategyID string    `json:"strategyId"`
	Symbol     string    `json:"symbol"`
	Quantity   int64     `json:"quantity"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// EquityCurvePoint represents a point on the equity curve
type EquityCurvePoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Equity    decimal.Decimal `json:"equity"`
	Cash      decimal.Decimal `json:"cash"`
	Drawdown  decimal.Decimal `json:"drawdown"`
}

// PerformanceMetrics represents the analyzer output for one equity curve.
// Ratios are plain float64; the underlying curve stays decimal.
type PerformanceMetrics struct {
	AnnualizedReturn float64 `json:"annualizedReturn"`
	AnnualizedVol    float64 `json:"annualizedVol"`
	Sharpe           float64 `json:"sharpe"`
	Sortino          float64 `json:"sortino"`
	MaxDrawdown      float64 `json:"maxDrawdown"`
	Calmar           float64 `json:"calmar"`
	Alpha            float64 `json:"alpha"`
	Beta             float64 `json:"beta"`
	WinRate          float64 `json:"winRate"`
	ProfitFactor     float64 `json:"profitFactor"`
	RoundTrips       int     `json:"roundTrips"`
	WinningTrades    int     `json:"winningTrades"`
	LosingTrades     int     `json:"losingTrades"`
	FinalEquity      decimal.Decimal `json:"finalEquity"`
}

// RiskState represents the risk manager state machine
type RiskState string

const (
	RiskStateNormal   RiskState = "normal"
	RiskStateBreached RiskState = "breached"
)

// RiskAlert is emitted once when the drawdown limit is crossed
type RiskAlert struct {
	Timestamp time.Time       `json:"timestamp"`
	Peak      decimal.Decimal `json:"peak"`
	Equity    decimal.Decimal `json:"equity"`
	Drawdown  float64         `json:"drawdown"`
	Message   string          `json:"message"`
}
