// Package telemetry exposes the Prometheus metrics for the gateway. The
// snapshot hit/miss/market-call counters double as the proof that the
// derivation engine runs snapshot-only: market_calls must stay at zero for
// the derive component.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SnapshotHits   prometheus.Counter
	SnapshotMisses prometheus.Counter
	MarketCalls    *prometheus.CounterVec

	IngestWrites prometheus.Counter
	IngestErrors prometheus.Counter

	EvalSkips  *prometheus.CounterVec
	AlertsSent prometheus.Counter
	NotifyFail prometheus.Counter
}

// New registers the gateway metrics on the given registerer. Pass a fresh
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SnapshotHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "perpgate_snapshot_hits_total",
			Help: "Derivation-engine reads that found the current bucket snapshot.",
		}),
		SnapshotMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "perpgate_snapshot_misses_total",
			Help: "Derivation-engine reads with no snapshot for the current bucket.",
		}),
		MarketCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "perpgate_market_calls_total",
			Help: "Outbound market-source calls by component. Must be zero for derive.",
		}, []string{"component"}),
		IngestWrites: factory.NewCounter(prometheus.CounterOpts{
			Name: "perpgate_ingest_writes_total",
			Help: "Snapshot keys created by the ingestor.",
		}),
		IngestErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "perpgate_ingest_errors_total",
			Help: "Per-symbol ingest failures.",
		}),
		EvalSkips: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "perpgate_eval_skips_total",
			Help: "Evaluation pipeline denials by skip reason.",
		}, []string{"reason"}),
		AlertsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "perpgate_alerts_sent_total",
			Help: "Notifications handed to the notifier.",
		}),
		NotifyFail: factory.NewCounter(prometheus.CounterOpts{
			Name: "perpgate_notify_failures_total",
			Help: "Notifier calls that returned an error.",
		}),
	}
}

// NewUnregistered returns metrics bound to a throwaway registry, for tests
// and one-shot CLI invocations.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
