// Package metrics provides Prometheus instrumentation for the treasury service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LedgerOperations counts committed ledger mutations by movement kind and operation.
	LedgerOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emeraude_ledger_operations_total",
		Help: "Committed ledger mutations",
	}, []string{"kind", "op"})

	// LedgerOperationDuration tracks the latency of the atomic ledger unit.
	LedgerOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "emeraude_ledger_operation_duration_seconds",
		Help:    "Duration of atomic ledger operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind", "op"})

	// InsufficientFundsRejections counts mutations rejected by the sufficiency check.
	InsufficientFundsRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emeraude_insufficient_funds_rejections_total",
		Help: "Ledger mutations rejected for insufficient funds",
	})

	// ConcurrencyConflicts counts transactions aborted by a conflicting concurrent write.
	ConcurrencyConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emeraude_concurrency_conflicts_total",
		Help: "Ledger transactions aborted on a concurrent write conflict",
	})

	// RateLookups counts exchange-rate resolutions by outcome.
	RateLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emeraude_rate_lookups_total",
		Help: "Exchange rate lookups",
	}, []string{"outcome"})

	// NegativeBalanceAlerts counts owners whose solde crossed below zero.
	NegativeBalanceAlerts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emeraude_negative_balance_alerts_total",
		Help: "Balance-negative alerts emitted",
	})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
