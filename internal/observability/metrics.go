package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hushfeed_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// VoteTransitions counts committed vote transitions by item kind.
	VoteTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hushfeed_vote_transitions_total",
		Help: "Committed vote state transitions",
	}, []string{"kind", "transition"})

	// LedgerRetries counts commit conflicts that were retried.
	LedgerRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hushfeed_ledger_retries_total",
		Help: "Ledger commit conflicts retried, by operation",
	}, []string{"operation"})

	// LedgerFailures counts ledger operations that returned an error, by error code.
	LedgerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hushfeed_ledger_failures_total",
		Help: "Failed ledger operations by operation and error code",
	}, []string{"operation", "code"})

	// LedgerLatency records end-to-end ledger operation latency including retries.
	LedgerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hushfeed_ledger_latency_seconds",
		Help:    "Ledger operation latency in seconds, retries included",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// XPGranted sums XP deltas applied to users, by reason.
	XPGranted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hushfeed_xp_delta_total",
		Help: "Sum of absolute XP deltas applied, by reason and sign",
	}, []string{"reason", "sign"})

	// CounterEventsPublished counts counter events published after commit.
	CounterEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hushfeed_counter_events_total",
		Help: "Counter change events published, by outcome",
	}, []string{"outcome"})
)

// LedgerMetrics records ledger operation metrics.
type LedgerMetrics struct{}

// NewLedgerMetrics returns a new LedgerMetrics instance.
func NewLedgerMetrics() *LedgerMetrics {
	return &LedgerMetrics{}
}

// TrackOperation returns a function that records latency when called (e.g. defer).
func (*LedgerMetrics) TrackOperation(operation string) func() {
	start := time.Now()
	return func() {
		LedgerLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// RecordTransition counts one committed vote transition.
func (*LedgerMetrics) RecordTransition(kind, transition string) {
	VoteTransitions.WithLabelValues(kind, transition).Inc()
}

// RecordRetry counts one retried conflict.
func (*LedgerMetrics) RecordRetry(operation string) {
	LedgerRetries.WithLabelValues(operation).Inc()
}

// RecordFailure counts one failed operation.
func (*LedgerMetrics) RecordFailure(operation, code string) {
	LedgerFailures.WithLabelValues(operation, code).Inc()
}

// RecordXP adds an applied XP delta.
func (*LedgerMetrics) RecordXP(reason string, delta int) {
	switch {
	case delta > 0:
		XPGranted.WithLabelValues(reason, "positive").Add(float64(delta))
	case delta < 0:
		XPGranted.WithLabelValues(reason, "negative").Add(float64(-delta))
	}
}

// RecordPublish counts a counter event publish attempt.
func (*LedgerMetrics) RecordPublish(ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	CounterEventsPublished.WithLabelValues(outcome).Inc()
}
