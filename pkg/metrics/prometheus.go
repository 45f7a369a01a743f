// Package metrics provides Prometheus metrics for the shot statistics service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Import pipeline
	importJobs       *prometheus.CounterVec
	importDuplicates prometheus.Counter
	shotsImported    prometheus.Counter
	shotsDuplicate   prometheus.Counter
	importLatency    prometheus.Histogram

	// Queue and workers
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueRejected    *prometheus.CounterVec
	workerCount      prometheus.Gauge

	// Reads
	reportLatency  *prometheus.HistogramVec
	storeLatency   *prometheus.HistogramVec
	storeErrors    *prometheus.CounterVec
	storedShots    prometheus.Gauge
	storedAthletes prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec
	errorsByType        *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "sius",
		subsystem:        "shots",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.importJobs = m.counterVec("import_jobs_total", "Import jobs by terminal status", "status")
	m.importDuplicates = m.counter("import_duplicate_uploads_total", "Uploads skipped because identical content was already accepted")
	m.shotsImported = m.counter("shots_imported_total", "Shot rows newly stored")
	m.shotsDuplicate = m.counter("shots_duplicate_total", "Shot rows skipped because their natural key already existed")
	m.importLatency = m.histogram("import_latency_milliseconds", "Time to parse and store one import job")

	m.queueSize = m.gauge("queue_size", "Import jobs waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum import jobs the queue holds")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "queue_size / queue_capacity")
	m.queueRejected = m.counterVec("queue_rejected_total", "Import jobs rejected by the queue", "reason")
	m.workerCount = m.gauge("worker_count", "Import workers running")

	m.reportLatency = m.histogramVec("report_latency_milliseconds", "Statistics computation latency including store fetches", "operation")
	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Store call latency", "operation")
	m.storeErrors = m.counterVec("store_errors_total", "Store calls that returned an error", "operation")
	m.storedShots = m.gauge("stored_shots", "Shot rows currently held by the store")
	m.storedAthletes = m.gauge("stored_athletes", "Athletes currently held by the store")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration", "endpoint", "method", "status_code")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "HTTP error responses by endpoint", "endpoint", "method", "error_type")
	m.errorsByType = m.counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Allocated heap bytes")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_milliseconds",
		Help:      "Average GC pause",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100},
	})
}

// RecordImportJob counts a finished import job ("done" or "failed").
func RecordImportJob(status string) {
	globalManager.importJobs.WithLabelValues(status).Inc()
}

// RecordImportDuplicate counts an upload skipped as already seen.
func RecordImportDuplicate() {
	globalManager.importDuplicates.Inc()
}

// RecordShotsImported counts stored and skipped shot rows for one job.
func RecordShotsImported(inserted, duplicate int) {
	globalManager.shotsImported.Add(float64(inserted))
	globalManager.shotsDuplicate.Add(float64(duplicate))
}

// RecordImportLatency records one job's processing time.
func RecordImportLatency(latencyMs float64) {
	globalManager.importLatency.Observe(latencyMs)
}

// UpdateQueueSize sets the queue length and derived utilisation.
func UpdateQueueSize(size, capacity int) {
	globalManager.queueSize.Set(float64(size))
	if capacity > 0 {
		globalManager.queueUtilization.Set(float64(size) / float64(capacity))
	}
}

// UpdateQueueCapacity sets the queue capacity gauge.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueRejected counts a refused enqueue.
func RecordQueueRejected(reason string) {
	globalManager.queueRejected.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordReportLatency records a statistics operation ("recent", "stats", "day", "set").
func RecordReportLatency(operation string, latencyMs float64) {
	globalManager.reportLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordStoreLatency records one store call.
func RecordStoreLatency(operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordStoreError counts one failed store call.
func RecordStoreError(operation string) {
	globalManager.storeErrors.WithLabelValues(operation).Inc()
}

// UpdateStoreCounts sets the stored shot and athlete gauges.
func UpdateStoreCounts(shots, athletes int) {
	globalManager.storedShots.Set(float64(shots))
	globalManager.storedAthletes.Set(float64(athletes))
}

// RecordHTTPRequest counts one HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records one HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByEndpoint counts an HTTP error response.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByType counts an error by type and severity.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorsByType.WithLabelValues(errorType, severity).Inc()
}

// UpdateSystemMemoryUsage sets allocated heap bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records an average GC pause in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the registry the global metrics live on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
