package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records pipeline and HTTP measurements on the default Prometheus
// registry.
type Metrics struct {
	pipelineRuns     *prometheus.CounterVec
	pipelineDuration *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
	rowsLoaded       prometheus.Gauge
	rowsDropped      prometheus.Gauge
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// DefaultMetrics returns the process-wide recorder, registering it on first use.
func DefaultMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = &Metrics{
			pipelineRuns: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "supermart_pipeline_runs_total",
					Help: "Pipeline rebuilds by outcome",
				},
				[]string{"outcome"},
			),
			pipelineDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "supermart_pipeline_stage_seconds",
					Help:    "Duration of pipeline stages in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"stage"},
			),
			cacheLookups: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "supermart_bundle_cache_total",
					Help: "Bundle lookups by result",
				},
				[]string{"result"},
			),
			rowsLoaded: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "supermart_rows_loaded",
				Help: "Transactions in the current bundle",
			}),
			rowsDropped: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "supermart_rows_dropped",
				Help: "Rows dropped while loading the current bundle",
			}),
			httpRequests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "supermart_http_requests_total",
					Help: "HTTP requests by method, route and status",
				},
				[]string{"method", "route", "status"},
			),
			httpDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "supermart_http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method", "route"},
			),
		}
	})
	return metrics
}

func (m *Metrics) RecordPipelineRun(outcome string) {
	m.pipelineRuns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordStage(stage string, seconds float64) {
	m.pipelineDuration.WithLabelValues(stage).Observe(seconds)
}

func (m *Metrics) RecordCache(result string) {
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordRows(loaded, dropped int) {
	m.rowsLoaded.Set(float64(loaded))
	m.rowsDropped.Set(float64(dropped))
}

func (m *Metrics) RecordRequest(method, route, status string, seconds float64) {
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(seconds)
}
