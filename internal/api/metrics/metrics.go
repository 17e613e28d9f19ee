// Package metrics defines and registers all custom Prometheus metrics for the
// identity service. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation through promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "identity"

// OutcomeSuccess is the outcome label recorded for successful operations.
const OutcomeSuccess = "success"

// ── Identity metrics ──────────────────────────────────────────────────────────

// OperationsTotal counts identity workflow calls.
// Labels:
//   - operation: "register", "register_admin", "login", "change_password", ...
//   - outcome: "success" or the failure reason (e.g. "conflict", "locked_out")
var OperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Total number of identity operations, by operation and outcome.",
	},
	[]string{"operation", "outcome"},
)

// TokensIssuedTotal counts access tokens handed out by login and password change.
var TokensIssuedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_issued_total",
		Help:      "Total number of access tokens issued.",
	},
)

// ── Audit metrics ─────────────────────────────────────────────────────────────

// AuditEventsTotal counts audit events by what happened to them.
// Label:
//   - result: "stored", "failed" or "dropped" (queue full)
var AuditEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_total",
		Help:      "Total number of audit events, labelled by result (stored/failed/dropped).",
	},
	[]string{"result"},
)

// AuditQueueDepth tracks the number of audit events waiting in each worker channel.
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of audit events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// AuditProcessingDuration measures how long persisting one audit event takes.
var AuditProcessingDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "audit_processing_duration_seconds",
		Help:      "Duration of audit event persistence from dequeue to insert.",
		Buckets:   prometheus.DefBuckets,
	},
)

// ObserveOperation records one identity operation outcome. An empty reason
// counts as success.
func ObserveOperation(operation, reason string) {
	if reason == "" {
		reason = OutcomeSuccess
	}
	OperationsTotal.WithLabelValues(operation, reason).Inc()
}
