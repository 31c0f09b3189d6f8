// Package metrics exposes Prometheus instrumentation for the chat and order
// pipelines. All collectors register with the default registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for chat turns.
const (
	OutcomeAnswered       = "answered"
	OutcomeSmallTalk      = "small_talk"
	OutcomeSynthesisError = "synthesis_error"
	OutcomeInvalidQuery   = "invalid_query"
	OutcomeExecutionError = "execution_error"
	OutcomeCannedReply    = "canned_reply"
)

var (
	// chatTurnsTotal counts chat turns by final outcome.
	chatTurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetwise",
		Subsystem: "chat",
		Name:      "turns_total",
		Help:      "Chat turns by outcome",
	}, []string{"outcome"})

	// completionCallsTotal counts completion-service calls by status (ok, error).
	completionCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetwise",
		Subsystem: "llm",
		Name:      "calls_total",
		Help:      "Completion service calls by status",
	}, []string{"status"})

	completionLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fleetwise",
		Subsystem: "llm",
		Name:      "latency_seconds",
		Help:      "Completion service latency",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	// queryExecutionsTotal counts executed intents by operation and status.
	queryExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetwise",
		Subsystem: "query",
		Name:      "executions_total",
		Help:      "Executed query intents by operation and status",
	}, []string{"op", "status"})

	// itemMatchesTotal counts fuzzy-matched order items by result (matched, kept).
	itemMatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetwise",
		Subsystem: "orders",
		Name:      "item_matches_total",
		Help:      "Order line items by fuzzy match result",
	}, []string{"result"})
)

// RecordTurn records the outcome of one chat turn.
func RecordTurn(outcome string) {
	chatTurnsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCompletion records a completion call and its latency.
func ObserveCompletion(d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	completionCallsTotal.WithLabelValues(status).Inc()
	completionLatencySeconds.Observe(d.Seconds())
}

// RecordExecution records one executed query intent.
func RecordExecution(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	queryExecutionsTotal.WithLabelValues(op, status).Inc()
}

// RecordItemMatch records whether an order item resolved to a catalog entry.
func RecordItemMatch(matched bool) {
	if matched {
		itemMatchesTotal.WithLabelValues("matched").Inc()
		return
	}
	itemMatchesTotal.WithLabelValues("kept").Inc()
}
