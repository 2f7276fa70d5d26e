package prometheus

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citescope/citescope/internal/infrastructure/monitoring/logging"
)

func newTestCollector(t *testing.T) MetricsCollector {
	t.Helper()
	c, err := NewMetricsCollector(CollectorConfig{
		Namespace: "test",
		Subsystem: "unit",
	}, logging.NewNopLogger())
	require.NoError(t, err)
	return c
}

func scrapeMetrics(t *testing.T, collector MetricsCollector) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	collector.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestNewMetricsCollector_EmptyNamespace(t *testing.T) {
	_, err := NewMetricsCollector(CollectorConfig{Subsystem: "unit"}, logging.NewNopLogger())
	assert.Error(t, err)
}

func TestRegisterCounter(t *testing.T) {
	c := newTestCollector(t)
	vec := c.RegisterCounter("edges_total", "Edges", "direction")
	vec.WithLabelValues("forward").Inc()
	vec.WithLabelValues("forward").Add(2)
	vec.WithLabelValues("backward").Inc()

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_edges_total{direction="forward"} 3`)
	assert.Contains(t, output, `test_unit_edges_total{direction="backward"} 1`)
}

func TestRegisterCounter_Idempotent(t *testing.T) {
	c := newTestCollector(t)
	first := c.RegisterCounter("dup_total", "dup", "k")
	second := c.RegisterCounter("dup_total", "dup", "k")

	first.WithLabelValues("a").Inc()
	second.WithLabelValues("a").Inc()

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_dup_total{k="a"} 2`)
}

func TestRegisterCounter_TypeMismatchReturnsNoop(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterGauge("clash", "gauge first", "k")
	vec := c.RegisterCounter("clash", "counter second", "k")

	// No panic and no effect on the registered gauge.
	vec.WithLabelValues("a").Inc()
	output := scrapeMetrics(t, c)
	assert.NotContains(t, output, `clash{k="a"} 1`)
}

func TestRegisterGauge(t *testing.T) {
	c := newTestCollector(t)
	vec := c.RegisterGauge("calibration_age_seconds", "age")
	g := vec.WithLabelValues()
	g.Set(10)
	g.Inc()
	g.Sub(3)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, "test_unit_calibration_age_seconds 8")
}

func TestRegisterHistogram(t *testing.T) {
	c := newTestCollector(t)
	vec := c.RegisterHistogram("view_duration_seconds", "duration", []float64{0.1, 1, 10}, "view")
	vec.WithLabelValues("impact").Observe(0.5)
	vec.WithLabelValues("impact").Observe(2)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_view_duration_seconds_count{view="impact"} 2`)
	assert.Contains(t, output, `test_unit_view_duration_seconds_bucket{view="impact",le="1"} 1`)
}

func TestRegisterHistogram_DefaultBuckets(t *testing.T) {
	c := newTestCollector(t)
	vec := c.RegisterHistogram("def_seconds", "duration", nil, "op")
	vec.WithLabelValues("x").Observe(0.2)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_def_seconds_count{op="x"} 1`)
}

func TestTimer(t *testing.T) {
	c := newTestCollector(t)
	vec := c.RegisterHistogram("timed_seconds", "duration", []float64{10}, "op")

	timer := NewTimer(vec.WithLabelValues("x"))
	time.Sleep(time.Millisecond)
	timer.ObserveDuration()

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_timed_seconds_count{op="x"} 1`)
}

func TestTimer_NilHistogram(t *testing.T) {
	timer := NewTimer(nil)
	assert.NotPanics(t, timer.ObserveDuration)
}

func TestAppMetrics_Registration(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)
	require.NotNil(t, m)

	RecordHTTPRequest(m, "GET", "/api/v1/analytics/impact", 200, 12*time.Millisecond)
	RecordViewComputation(m, "risk", 40*time.Millisecond, nil)
	RecordViewComputation(m, "matrix", time.Millisecond, assert.AnError)
	RecordScopeResolution(m, "assignee", 42, 3, 5*time.Millisecond, nil)
	RecordCacheAccess(m, "analytics", true)
	RecordCacheAccess(m, "analytics", false)
	RecordDBQuery(m, "postgres", "fetch_edges", 2*time.Millisecond, nil)
	RecordError(m, "scoring", "calibration_unavailable")

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_http_requests_total{method="GET",path="/api/v1/analytics/impact",status_code="200"} 1`)
	assert.Contains(t, output, `test_unit_view_computations_total{status="success",view="risk"} 1`)
	assert.Contains(t, output, `test_unit_view_computations_total{status="failure",view="matrix"} 1`)
	assert.Contains(t, output, `test_unit_scope_unknown_identifiers_total 3`)
	assert.Contains(t, output, `test_unit_cache_hits_total{cache="analytics"} 1`)
	assert.Contains(t, output, `test_unit_cache_misses_total{cache="analytics"} 1`)
	assert.Contains(t, output, `test_unit_errors_total{component="scoring",error_type="calibration_unavailable"} 1`)
}
