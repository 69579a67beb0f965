package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.EventAppended("time_in", "api")
	m.Rejected("already_timed_in")
	m.ScanResult("success")
	m.BulkTimeoutsWritten(3)
	m.FailedLogin()
	m.HTTPRequest("GET /api/health", 200)
	assert.Nil(t, m.Registry())
}

func TestCounters(t *testing.T) {
	m := New()

	m.EventAppended("time_in", "scanner")
	m.EventAppended("time_in", "scanner")
	m.EventAppended("time_out", "bulk")
	m.BulkTimeoutsWritten(2)
	m.BulkTimeoutsWritten(0)
	m.HTTPRequest("GET /api/health", 204)
	m.HTTPRequest("GET /api/health", 503)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues("time_in", "scanner")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("time_out", "bulk")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.bulkTimeouts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET /api/health", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET /api/health", "5xx")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ScanResult("error")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `roomcheck_scan_results_total{status="error"} 1`))
}
