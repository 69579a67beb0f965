// Package metrics holds the Prometheus collectors for ledger, scan and
// login activity. All methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can create as many as they like.
type Metrics struct {
	reg *prometheus.Registry

	events       *prometheus.CounterVec
	rejections   *prometheus.CounterVec
	scanResults  *prometheus.CounterVec
	bulkTimeouts prometheus.Counter
	failedLogins prometheus.Counter
	httpRequests *prometheus.CounterVec
}

// New creates collectors registered on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "roomcheck_attendance_events_total",
			Help: "Attendance events appended to the ledger.",
		}, []string{"type", "source"}),
		rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "roomcheck_attendance_rejections_total",
			Help: "Ledger operations rejected by a precondition or validation check.",
		}, []string{"reason"}),
		scanResults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "roomcheck_scan_results_total",
			Help: "Hardware scan outcomes by status.",
		}, []string{"status"}),
		bulkTimeouts: f.NewCounter(prometheus.CounterOpts{
			Name: "roomcheck_bulk_timeouts_written_total",
			Help: "Time-out events written by time-out-all.",
		}),
		failedLogins: f.NewCounter(prometheus.CounterOpts{
			Name: "roomcheck_failed_logins_total",
			Help: "Rejected admin login attempts.",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "roomcheck_http_requests_total",
			Help: "HTTP requests by route pattern and status class.",
		}, []string{"route", "code"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry exposes the underlying registry (for tests).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) EventAppended(typ, source string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(typ, source).Inc()
}

func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) ScanResult(status string) {
	if m == nil {
		return
	}
	m.scanResults.WithLabelValues(status).Inc()
}

func (m *Metrics) BulkTimeoutsWritten(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bulkTimeouts.Add(float64(n))
}

func (m *Metrics) FailedLogin() {
	if m == nil {
		return
	}
	m.failedLogins.Inc()
}

// HTTPRequest counts a request under its mux pattern and status class (2xx, 4xx...).
func (m *Metrics) HTTPRequest(route string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, statusClass(status)).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
