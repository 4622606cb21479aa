// Package risk implements the firm-level risk manager: a drawdown
// state machine that gates new entries, plus per-order value limits.
package risk

import (
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantdesk/trading-engine/internal/metrics"
	"github.com/quantdesk/trading-engine/pkg/types"
)

var (
	// ErrRiskBreached rejects entries while the drawdown limit is breached.
	ErrRiskBreached = errors.New("risk limit breached: new entries rejected")
	// ErrOrderTooLarge rejects orders whose notional exceeds the limit.
	ErrOrderTooLarge = errors.New("order notional exceeds max order value")
)

// Alerter receives the one-shot breach alert.
type Alerter interface {
	Alert(alert types.RiskAlert)
}

// LogAlerter logs breach alerts at error level.
type LogAlerter struct {
	logger *zap.Logger
}

// NewLogAlerter creates a log-backed alerter.
func NewLogAlerter(logger *zap.Logger) *LogAlerter {
	return &LogAlerter{logger: logger}
}

// Alert logs the breach.
func (a *LogAlerter) Alert(alert types.RiskAlert) {
	a.logger.Error("risk alert",
		zap.String("message", alert.Message),
		zap.String("peak", alert.Peak.String()),
		zap.String("equity", alert.Equity.String()),
		zap.Float64("drawdown", alert.Drawdown))
}

// NopAlerter discards alerts. Used by optimizer trials.
type NopAlerter struct{}

// Alert discards the alert.
func (NopAlerter) Alert(types.RiskAlert) {}

// Manager tracks peak equity and transitions Normal -> Breached when the
// peak-relative drawdown exceeds the configured limit. The transition is
// one-way until AssessNewDay; exactly one alert fires per breach.
type Manager struct {
	mu      sync.Mutex
	logger  *zap.Logger
	alerter Alerter

	drawdownLimit float64
	maxOrderValue decimal.Decimal

	peak  decimal.Decimal
	state types.RiskState
}

// NewManager creates a risk manager in the Normal state.
func NewManager(logger *zap.Logger, cfg types.RiskConfig, alerter Alerter) *Manager {
	if alerter == nil {
		alerter = NewLogAlerter(logger)
	}
	return &Manager{
		logger:        logger,
		alerter:       alerter,
		drawdownLimit: cfg.DrawdownLimit,
		maxOrderValue: cfg.MaxOrderValue,
		state:         types.RiskStateNormal,
	}
}

// ObserveEquity folds one equity observation into the peak and evaluates
// the drawdown limit. Repeated observations past the breach do not emit
// further alerts.
func (m *Manager) ObserveEquity(ts time.Time, equity decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if equity.GreaterThan(m.peak) {
		m.peak = equity
		return
	}
	if m.state == types.RiskStateBreached || m.peak.Sign() <= 0 {
		return
	}

	drawdown := m.peak.Sub(equity).Div(m.peak).InexactFloat64()
	if drawdown <= m.drawdownLimit {
		return
	}

	m.state = types.RiskStateBreached
	metrics.RiskBreaches.Inc()
	m.alerter.Alert(types.RiskAlert{
		Timestamp: ts,
		Peak:      m.peak,
		Equity:    equity,
		Drawdown:  drawdown,
		Message:   "drawdown limit breached, halting new entries",
	})
}

// State returns the current state.
func (m *Manager) State() types.RiskState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// AllowOrder gates an order at the given reference price. Exits are
// always allowed in a breach; the notional limit applies to both sides.
func (m *Manager) AllowOrder(order types.Order, price decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	notional := price.Mul(decimal.NewFromInt(order.Quantity))
	if m.maxOrderValue.Sign() > 0 && notional.GreaterThan(m.maxOrderValue) {
		return ErrOrderTooLarge
	}
	if m.state == types.RiskStateBreached && order.Side == types.OrderSideBuy {
		return ErrRiskBreached
	}
	return nil
}

// AssessNewDay resets the state machine for a new session and re-seeds
// the peak from the opening equity.
func (m *Manager) AssessNewDay(equity decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == types.RiskStateBreached {
		m.logger.Info("risk state reset for new session",
			zap.String("equity", equity.String()))
	}
	m.state = types.RiskStateNormal
	m.peak = equity
}
