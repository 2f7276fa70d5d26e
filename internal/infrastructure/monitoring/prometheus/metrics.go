package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds every metric the service records.
type AppMetrics struct {
	// HTTP layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Scope resolution
	ScopeResolutionsTotal   CounterVec
	ScopeResolutionDuration HistogramVec
	ScopeSize               HistogramVec
	ScopeUnknownIdentifiers CounterVec

	// Analytics views
	ViewComputationsTotal CounterVec
	ViewDuration          HistogramVec
	ViewCacheHitsTotal    CounterVec
	ViewCacheMissesTotal  CounterVec

	// Edge streaming
	EdgesStreamedTotal   CounterVec
	EdgeStreamDuration   HistogramVec
	EdgeCapRejections    CounterVec
	UpstreamRetriesTotal CounterVec

	// Calibration
	CalibrationAgeSeconds    GaugeVec
	CalibrationRefreshsTotal CounterVec
	DegradedScoringTotal     CounterVec

	// Infrastructure
	DBQueryDuration        HistogramVec
	CacheHitsTotal         CounterVec
	CacheMissesTotal       CounterVec
	MessageProcessDuration HistogramVec
	ExportSnapshotsTotal   CounterVec

	// System health
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

var (
	DefaultHTTPDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultViewDurationBuckets = []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}
	DefaultDBDurationBuckets   = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
	DefaultScopeSizeBuckets    = []float64{1, 5, 10, 25, 50, 100, 250, 500, 800}
)

// NewAppMetrics registers all application metrics on the given collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "In-flight HTTP requests", "method", "path")

	m.ScopeResolutionsTotal = collector.RegisterCounter("scope_resolutions_total", "Scope resolutions", "mode", "status")
	m.ScopeResolutionDuration = collector.RegisterHistogram("scope_resolution_duration_seconds", "Scope resolution duration", DefaultHTTPDurationBuckets, "mode")
	m.ScopeSize = collector.RegisterHistogram("scope_size_assets", "Resolved scope size in assets", DefaultScopeSizeBuckets, "mode")
	m.ScopeUnknownIdentifiers = collector.RegisterCounter("scope_unknown_identifiers_total", "Identifiers dropped during scope resolution")

	m.ViewComputationsTotal = collector.RegisterCounter("view_computations_total", "Analytics view computations", "view", "status")
	m.ViewDuration = collector.RegisterHistogram("view_duration_seconds", "Analytics view computation duration", DefaultViewDurationBuckets, "view")
	m.ViewCacheHitsTotal = collector.RegisterCounter("view_cache_hits_total", "Analytics view cache hits", "view")
	m.ViewCacheMissesTotal = collector.RegisterCounter("view_cache_misses_total", "Analytics view cache misses", "view")

	m.EdgesStreamedTotal = collector.RegisterCounter("edges_streamed_total", "Citation edges streamed from the graph store", "direction")
	m.EdgeStreamDuration = collector.RegisterHistogram("edge_stream_duration_seconds", "Edge stream duration", DefaultDBDurationBuckets, "direction")
	m.EdgeCapRejections = collector.RegisterCounter("edge_cap_rejections_total", "Aggregations aborted at the edge cap")
	m.UpstreamRetriesTotal = collector.RegisterCounter("upstream_retries_total", "Upstream fetch retries", "backend")

	m.CalibrationAgeSeconds = collector.RegisterGauge("calibration_age_seconds", "Age of the active calibration snapshot")
	m.CalibrationRefreshsTotal = collector.RegisterCounter("calibration_refreshes_total", "Calibration refreshes", "status")
	m.DegradedScoringTotal = collector.RegisterCounter("degraded_scoring_total", "Scoring runs without calibration")

	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Database query duration", DefaultDBDurationBuckets, "db", "operation")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")
	m.MessageProcessDuration = collector.RegisterHistogram("mq_process_duration_seconds", "Message processing duration", DefaultHTTPDurationBuckets, "topic")
	m.ExportSnapshotsTotal = collector.RegisterCounter("export_snapshots_total", "Risk radar snapshots written to object storage", "status")

	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "error_type")

	return m
}

// RecordHTTPRequest records a completed request.
func RecordHTTPRequest(m *AppMetrics, method, path string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordViewComputation records one analytics view run.
func RecordViewComputation(m *AppMetrics, view string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.ViewComputationsTotal.WithLabelValues(view, status).Inc()
	m.ViewDuration.WithLabelValues(view).Observe(duration.Seconds())
}

// RecordScopeResolution records one scope resolution.
func RecordScopeResolution(m *AppMetrics, mode string, size, unknown int, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.ScopeResolutionsTotal.WithLabelValues(mode, status).Inc()
	m.ScopeResolutionDuration.WithLabelValues(mode).Observe(duration.Seconds())
	if err == nil {
		m.ScopeSize.WithLabelValues(mode).Observe(float64(size))
	}
	if unknown > 0 {
		m.ScopeUnknownIdentifiers.WithLabelValues().Add(float64(unknown))
	}
}

// RecordCacheAccess records a hit or miss on the named cache.
func RecordCacheAccess(m *AppMetrics, cache string, hit bool) {
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

// RecordDBQuery records a query duration and counts failures.
func RecordDBQuery(m *AppMetrics, db, operation string, duration time.Duration, err error) {
	m.DBQueryDuration.WithLabelValues(db, operation).Observe(duration.Seconds())
	if err != nil {
		m.ErrorsTotal.WithLabelValues(db, "query_error").Inc()
	}
}

// RecordError counts an error for the given component.
func RecordError(m *AppMetrics, component, errorType string) {
	m.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
