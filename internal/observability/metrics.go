// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Lifecycle metrics
	LifecycleRuns        *prometheus.CounterVec
	LifecycleDuration    *prometheus.HistogramVec
	LifecycleTransitions *prometheus.CounterVec
	IntentsInFlight      prometheus.Gauge
	DiscardedResults     *prometheus.CounterVec

	// Data quality metrics
	EventDecodeFailures *prometheus.CounterVec
	UnknownAssets       prometheus.Counter

	// Chain metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCCallErrors  *prometheus.CounterVec

	// Ledger metrics
	LedgerWrites *prometheus.CounterVec

	// Reconciliation metrics
	ReconcileRuns    *prometheus.CounterVec
	ReconcileSources *prometheus.CounterVec

	// Snapshot metrics
	SnapshotsWritten prometheus.Counter

	// Scheduler metrics
	JobRuns     *prometheus.CounterVec
	JobDuration *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulReconcile prometheus.Gauge
	LastSuccessfulSnapshot  prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered on reg.
// A nil reg registers on the default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "rwa_portfolio"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		LifecycleRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "runs_total",
			Help:      "Total number of lifecycle runs by kind and terminal outcome",
		}, []string{"kind", "outcome"}),
		LifecycleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "duration_seconds",
			Help:      "Lifecycle run duration from intent to terminal state",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"kind"}),
		LifecycleTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Total number of state transitions by state",
		}, []string{"state"}),
		IntentsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "intents_in_flight",
			Help:      "Number of lifecycle runs not yet terminal",
		}),
		DiscardedResults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "discarded_results_total",
			Help:      "Confirmed results dropped because the intent was no longer current",
		}, []string{"reason"}),

		EventDecodeFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "data_quality",
			Name:      "event_decode_failures_total",
			Help:      "Successful receipts whose settlement event could not be decoded",
		}, []string{"event"}),
		UnknownAssets: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "data_quality",
			Name:      "unknown_assets_total",
			Help:      "Holdings skipped during valuation because the asset is not in the catalog",
		}),

		RPCCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "evm",
			Name:      "rpc_call_latency_seconds",
			Help:      "EVM JSON-RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evm",
			Name:      "rpc_call_errors_total",
			Help:      "Total number of failed EVM JSON-RPC calls",
		}, []string{"method"}),

		LedgerWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "writes_total",
			Help:      "Ledger record writes by result (created, duplicate, failed)",
		}, []string{"result"}),

		ReconcileRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "runs_total",
			Help:      "Total number of reconciliation runs by status",
		}, []string{"status"}),
		ReconcileSources: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "asset_sources_total",
			Help:      "Per-asset holding source chosen during reconciliation",
		}, []string{"source"}),

		SnapshotsWritten: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "written_total",
			Help:      "Total number of portfolio metric snapshots written",
		}),

		JobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by job and status",
		}, []string{"job", "status"}),
		JobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_duration_seconds",
			Help:      "Scheduled job duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"job"}),

		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulReconcile: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_reconcile_timestamp",
			Help:      "Unix timestamp of last successful reconciliation",
		}),
		LastSuccessfulSnapshot: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_snapshot_timestamp",
			Help:      "Unix timestamp of last successful snapshot run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordTransition counts a lifecycle state transition.
func RecordTransition(state string) {
	DefaultMetrics.LifecycleTransitions.WithLabelValues(state).Inc()
}

// RecordIntentStarted marks a lifecycle run as in flight.
func RecordIntentStarted() {
	DefaultMetrics.IntentsInFlight.Inc()
}

// RecordLifecycleRun records a terminal lifecycle outcome.
func RecordLifecycleRun(kind, outcome string, d time.Duration) {
	DefaultMetrics.IntentsInFlight.Dec()
	DefaultMetrics.LifecycleRuns.WithLabelValues(kind, outcome).Inc()
	DefaultMetrics.LifecycleDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordDiscardedResult counts a confirmed result dropped for a stale intent.
func RecordDiscardedResult(reason string) {
	DefaultMetrics.DiscardedResults.WithLabelValues(reason).Inc()
}

// RecordEventDecodeFailure counts a settlement event that could not be decoded.
func RecordEventDecodeFailure(event string) {
	DefaultMetrics.EventDecodeFailures.WithLabelValues(event).Inc()
}

// RecordUnknownAssets counts holdings without a catalog entry.
func RecordUnknownAssets(n int) {
	DefaultMetrics.UnknownAssets.Add(float64(n))
}

// RecordRPCCall records RPC call latency and errors. Matches evm.CallObserver.
func RecordRPCCall(method string, d time.Duration, err error) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(d.Seconds())
	if err != nil {
		DefaultMetrics.RPCCallErrors.WithLabelValues(method).Inc()
	}
}

// RecordLedgerWrite records a ledger write result.
func RecordLedgerWrite(result string) {
	DefaultMetrics.LedgerWrites.WithLabelValues(result).Inc()
}

// RecordReconcile records a reconciliation run and its per-asset sources.
func RecordReconcile(sources map[string]int, err error) {
	if err != nil {
		DefaultMetrics.ReconcileRuns.WithLabelValues("error").Inc()
		return
	}
	DefaultMetrics.ReconcileRuns.WithLabelValues("ok").Inc()
	for source, n := range sources {
		DefaultMetrics.ReconcileSources.WithLabelValues(source).Add(float64(n))
	}
	DefaultMetrics.LastSuccessfulReconcile.SetToCurrentTime()
}

// RecordSnapshots records snapshot rows written by one scheduler run.
func RecordSnapshots(n int) {
	DefaultMetrics.SnapshotsWritten.Add(float64(n))
	DefaultMetrics.LastSuccessfulSnapshot.SetToCurrentTime()
}

// RecordJobRun records one scheduled job run.
func RecordJobRun(job string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.JobRuns.WithLabelValues(job, status).Inc()
	DefaultMetrics.JobDuration.WithLabelValues(job).Observe(d.Seconds())
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, d time.Duration, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(d.Seconds())
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
