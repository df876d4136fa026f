// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Provider metrics
	ProviderRequests *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec
	ProviderRetries  *prometheus.CounterVec

	// Ingestion metrics
	WalletsFetched     prometheus.Counter
	WalletsFailed      prometheus.Counter
	TransactionsKept   prometheus.Counter
	TransactionsSeen   prometheus.Counter
	ActionsResolved    *prometheus.CounterVec
	ActionCacheLookups *prometheus.CounterVec

	// Scoring metrics
	FeatureFailures prometheus.Counter
	WalletsScored   prometheus.Counter
	ScoreValues     prometheus.Histogram

	// Pipeline metrics
	StageRunsTotal *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "wallet_score"
	}
	f := promauto.With(reg)

	return &Metrics{
		ProviderRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Total number of data provider requests by endpoint and status",
		}, []string{"endpoint", "status"}),
		ProviderLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "request_duration_seconds",
			Help:      "Data provider request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		ProviderRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "retries_total",
			Help:      "Total number of retried provider requests",
		}, []string{"endpoint"}),

		WalletsFetched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "wallets_fetched_total",
			Help:      "Total number of wallets whose transactions were fetched",
		}),
		WalletsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "wallets_failed_total",
			Help:      "Total number of wallets whose fetch failed",
		}),
		TransactionsKept: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "transactions_kept_total",
			Help:      "Total number of transactions addressed to a target contract",
		}),
		TransactionsSeen: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "transactions_seen_total",
			Help:      "Total number of transactions returned by the provider",
		}),
		ActionsResolved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Total number of action resolutions by status",
		}, []string{"status"}),
		ActionCacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "cache_lookups_total",
			Help:      "Action cache lookups by result",
		}, []string{"result"}),

		FeatureFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "features",
			Name:      "wallet_failures_total",
			Help:      "Total number of wallets excluded for data-quality errors",
		}),
		WalletsScored: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "wallets_scored_total",
			Help:      "Total number of wallet scores produced",
		}),
		ScoreValues: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "score",
			Help:      "Distribution of produced wallet scores",
			Buckets:   prometheus.LinearBuckets(0, 100, 11),
		}),

		StageRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_runs_total",
			Help:      "Total number of pipeline stage runs by stage and status",
		}, []string{"stage", "status"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 600, 1800},
		}, []string{"stage"}),

		LastSuccessfulRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful scoring run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", prometheus.DefaultRegisterer)

// RecordProviderRequest records one provider HTTP attempt.
func RecordProviderRequest(endpoint, status string, seconds float64) {
	DefaultMetrics.ProviderRequests.WithLabelValues(endpoint, status).Inc()
	DefaultMetrics.ProviderLatency.WithLabelValues(endpoint).Observe(seconds)
}

// RecordProviderRetry records a retried provider request.
func RecordProviderRetry(endpoint string) {
	DefaultMetrics.ProviderRetries.WithLabelValues(endpoint).Inc()
}

// RecordWalletFetched records the outcome of one wallet fetch.
func RecordWalletFetched(seen, kept int, err error) {
	if err != nil {
		DefaultMetrics.WalletsFailed.Inc()
		return
	}
	DefaultMetrics.WalletsFetched.Inc()
	DefaultMetrics.TransactionsSeen.Add(float64(seen))
	DefaultMetrics.TransactionsKept.Add(float64(kept))
}

// RecordResolution records an action resolution outcome.
func RecordResolution(status string) {
	DefaultMetrics.ActionsResolved.WithLabelValues(status).Inc()
}

// RecordCacheLookup records an action cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	DefaultMetrics.ActionCacheLookups.WithLabelValues(result).Inc()
}

// RecordFeatureFailures records wallets excluded from aggregation.
func RecordFeatureFailures(n int) {
	DefaultMetrics.FeatureFailures.Add(float64(n))
}

// RecordScore records one produced score.
func RecordScore(score int) {
	DefaultMetrics.WalletsScored.Inc()
	DefaultMetrics.ScoreValues.Observe(float64(score))
}

// RecordStage records a pipeline stage run.
func RecordStage(stage, status string, durationSeconds float64) {
	DefaultMetrics.StageRunsTotal.WithLabelValues(stage, status).Inc()
	DefaultMetrics.StageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// MarkRunSucceeded sets the last successful run gauge.
func MarkRunSucceeded(unixSeconds int64) {
	DefaultMetrics.LastSuccessfulRun.Set(float64(unixSeconds))
}
