// Package metrics exposes Prometheus instrumentation for the engine.
// Collectors register on the default registry; the reporting server
// serves them at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FillsTotal counts settled fills by side.
	FillsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "engine",
		Name:      "fills_total",
		Help:      "Settled fills by order side.",
	}, []string{"side"})

	// OrdersRejected counts dropped orders by rejection reason.
	OrdersRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "engine",
		Name:      "orders_rejected_total",
		Help:      "Orders dropped at settlement by reason.",
	}, []string{"reason"})

	// RiskBreaches counts drawdown limit breaches.
	RiskBreaches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "engine",
		Name:      "risk_breaches_total",
		Help:      "Drawdown limit breaches.",
	})

	// OptimizerTrials counts completed optimizer trials.
	OptimizerTrials = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "engine",
		Name:      "optimizer_trials_total",
		Help:      "Completed optimizer trials.",
	})
)
