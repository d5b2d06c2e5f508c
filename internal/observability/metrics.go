// Package observability provides Prometheus metrics for the application.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vidflow"

// Metrics holds all application metrics.
type Metrics struct {
	// Download metrics
	DownloadsStarted    *prometheus.CounterVec
	DownloadsCompleted  *prometheus.CounterVec
	DownloadsFailed     *prometheus.CounterVec
	DownloadsInProgress prometheus.Gauge
	DownloadDuration    prometheus.Histogram
	ProgressHookFaults  prometheus.Counter
	ProgressEvents      *prometheus.CounterVec

	// Batch metrics
	BatchItems *prometheus.CounterVec

	// Session metrics
	SessionsActive   prometheus.Gauge
	RelayDropped     *prometheus.CounterVec
	RelayDeliverFail *prometheus.CounterVec

	// Job metrics
	JobsCreated   prometheus.Counter
	JobsCompleted prometheus.Counter
	JobsFailed    prometheus.Counter

	// Storage metrics
	CleanupJobsTotal  prometheus.Counter
	CleanupFilesTotal prometheus.Counter
	StoredJobsTotal   prometheus.Gauge

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Proxy metrics
	ProxyRequestsTotal *prometheus.CounterVec
	ProxyFailures      *prometheus.CounterVec
	ProxiesAvailable   prometheus.Gauge

	// Engine metrics
	EngineErrors *prometheus.CounterVec
}

// New creates all application metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	metrics := &Metrics{
		DownloadsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "downloads",
			Name:      "started_total",
			Help:      "Total number of downloads started",
		}, []string{"mode"}),
		DownloadsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "downloads",
			Name:      "completed_total",
			Help:      "Total number of downloads completed successfully",
		}, []string{"mode"}),
		DownloadsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "downloads",
			Name:      "failed_total",
			Help:      "Total number of downloads that failed",
		}, []string{"mode", "error_type"}),
		DownloadsInProgress: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "downloads",
			Name:      "in_progress",
			Help:      "Number of downloads currently in progress",
		}),
		DownloadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "downloads",
			Name:      "duration_seconds",
			Help:      "Histogram of download duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),
		ProgressHookFaults: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "downloads",
			Name:      "progress_hook_faults_total",
			Help:      "Total number of faults swallowed inside progress hooks",
		}),
		ProgressEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "downloads",
			Name:      "progress_events_total",
			Help:      "Total number of engine progress events by outcome",
		}, []string{"status", "outcome"}),

		BatchItems: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "items_total",
			Help:      "Total number of playlist items processed by outcome",
		}, []string{"outcome"}),

		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Number of connected live download sessions",
		}),
		RelayDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "relay_dropped_total",
			Help:      "Total number of progress messages dropped on a full relay buffer",
		}, []string{"relay"}),
		RelayDeliverFail: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "relay_deliver_failures_total",
			Help:      "Total number of relay deliveries that failed at the consumer",
		}, []string{"relay"}),

		JobsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "created_total",
			Help:      "Total number of background jobs created",
		}),
		JobsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "completed_total",
			Help:      "Total number of background jobs completed successfully",
		}),
		JobsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "failed_total",
			Help:      "Total number of background jobs that failed",
		}),

		CleanupJobsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "cleanup_jobs_total",
			Help:      "Total number of expired jobs cleaned up",
		}),
		CleanupFilesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "cleanup_files_total",
			Help:      "Total number of expired files cleaned up",
		}),
		StoredJobsTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "jobs_current",
			Help:      "Current number of stored jobs",
		}),

		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Histogram of HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		ProxyRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "requests_total",
			Help:      "Total number of requests made through proxies",
		}, []string{"proxy"}),
		ProxyFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "failures_total",
			Help:      "Total number of proxy failures",
		}, []string{"proxy"}),
		ProxiesAvailable: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "available",
			Help:      "Number of currently available proxies",
		}),

		EngineErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "errors_total",
			Help:      "Total number of engine invocation errors",
		}, []string{"engine", "error_type"}),
	}

	return metrics
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DownloadTimer marks a download as started and returns a function to record its duration.
func (m *Metrics) DownloadTimer(mode string) func() {
	start := time.Now()

	m.DownloadsStarted.WithLabelValues(mode).Inc()
	m.DownloadsInProgress.Inc()

	return func() {
		m.DownloadsInProgress.Dec()
		m.DownloadDuration.Observe(time.Since(start).Seconds())
	}
}

// RecordDownloadCompleted records a completed download.
func (m *Metrics) RecordDownloadCompleted(mode string) {
	m.DownloadsCompleted.WithLabelValues(mode).Inc()
}

// RecordDownloadFailed records a failed download.
func (m *Metrics) RecordDownloadFailed(mode, errorType string) {
	m.DownloadsFailed.WithLabelValues(mode, errorType).Inc()
}

// RecordHookFault records a fault swallowed inside a progress hook.
func (m *Metrics) RecordHookFault() {
	m.ProgressHookFaults.Inc()
}

// RecordProgressEvent records an engine progress event and whether it was forwarded.
func (m *Metrics) RecordProgressEvent(status, outcome string) {
	m.ProgressEvents.WithLabelValues(status, outcome).Inc()
}

// RecordBatchItem records the outcome of one playlist item.
func (m *Metrics) RecordBatchItem(outcome string) {
	m.BatchItems.WithLabelValues(outcome).Inc()
}

// RecordRelayDropped records a message dropped by a relay.
func (m *Metrics) RecordRelayDropped(relay string) {
	m.RelayDropped.WithLabelValues(relay).Inc()
}

// RecordRelayDeliverFailure records a relay delivery the consumer did not accept.
func (m *Metrics) RecordRelayDeliverFailure(relay string) {
	m.RelayDeliverFail.WithLabelValues(relay).Inc()
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordJobCreated increments the jobs created counter.
func (m *Metrics) RecordJobCreated() {
	m.JobsCreated.Inc()
}

// RecordJobCompleted records a completed job.
func (m *Metrics) RecordJobCompleted() {
	m.JobsCompleted.Inc()
}

// RecordJobFailed records a failed job.
func (m *Metrics) RecordJobFailed() {
	m.JobsFailed.Inc()
}

// RecordCleanup records cleanup metrics.
func (m *Metrics) RecordCleanup(jobs, files int) {
	m.CleanupJobsTotal.Add(float64(jobs))
	m.CleanupFilesTotal.Add(float64(files))
}

// SetStoredJobs sets the number of stored jobs.
func (m *Metrics) SetStoredJobs(count int) {
	m.StoredJobsTotal.Set(float64(count))
}

// RecordEngineError records an engine invocation error.
func (m *Metrics) RecordEngineError(engine, errorType string) {
	m.EngineErrors.WithLabelValues(engine, errorType).Inc()
}

// RecordProxyRequest records a proxy request.
func (m *Metrics) RecordProxyRequest(proxy string) {
	m.ProxyRequestsTotal.WithLabelValues(proxy).Inc()
}

// RecordProxyFailure records a proxy failure.
func (m *Metrics) RecordProxyFailure(proxy string) {
	m.ProxyFailures.WithLabelValues(proxy).Inc()
}

// SetProxiesAvailable sets the number of available proxies.
func (m *Metrics) SetProxiesAvailable(count int) {
	m.ProxiesAvailable.Set(float64(count))
}
