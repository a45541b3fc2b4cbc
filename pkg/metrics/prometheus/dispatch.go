// Package prometheus implements the metrics interfaces in pkg/metrics
// against the Prometheus client, using the same promauto.With(registry)
// construction shape throughout.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/econet-fs/efsd/pkg/metrics"
)

type dispatchMetrics struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	activeSessions      prometheus.Gauge
	interlockContention *prometheus.CounterVec
	bulkBytesTotal      *prometheus.CounterVec
	bulkReclaimsTotal   prometheus.Counter
}

// NewDispatchMetrics creates a Prometheus-backed DispatchMetrics instance,
// or returns a nil *dispatchMetrics, whose methods do nothing, if
// metrics.InitRegistry has not been called.
func NewDispatchMetrics() metrics.DispatchMetrics {
	if !metrics.IsEnabled() {
		return (*dispatchMetrics)(nil)
	}
	reg := metrics.GetRegistry()

	return &dispatchMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "efsd_requests_total",
				Help: "Total number of dispatched requests by opcode and outcome",
			},
			[]string{"fsop", "error_code"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "efsd_request_duration_milliseconds",
				Help:    "Duration of dispatched requests in milliseconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500},
			},
			[]string{"fsop"},
		),
		activeSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "efsd_active_sessions",
				Help: "Current number of logged-on stations",
			},
		),
		interlockContention: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "efsd_interlock_contention_total",
				Help: "Total number of Open calls rejected by the interlock",
			},
			[]string{"mode"},
		),
		bulkBytesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "efsd_bulk_bytes_total",
				Help: "Total bytes moved through the bulk-transfer engine",
			},
			[]string{"direction"},
		),
		bulkReclaimsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "efsd_bulk_reclaims_total",
				Help: "Total number of bulk contexts expired by the GC sweep",
			},
		),
	}
}

func (m *dispatchMetrics) RecordRequest(fsop string, duration time.Duration, errorCode string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(fsop, errorCode).Inc()
	m.requestDuration.WithLabelValues(fsop).Observe(duration.Seconds() * 1000)
}

func (m *dispatchMetrics) SetActiveSessions(count int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(count))
}

func (m *dispatchMetrics) RecordInterlockContention(mode string) {
	if m == nil {
		return
	}
	m.interlockContention.WithLabelValues(mode).Inc()
}

func (m *dispatchMetrics) RecordBulkBytes(direction string, bytes int64) {
	if m == nil || bytes <= 0 {
		return
	}
	m.bulkBytesTotal.WithLabelValues(direction).Add(float64(bytes))
}

func (m *dispatchMetrics) RecordBulkReclaim() {
	if m == nil {
		return
	}
	m.bulkReclaimsTotal.Inc()
}
