package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter mirrors a QueryMetrics snapshot onto Prometheus gauges,
// refreshed on every scrape via prometheus.Collector's Collect hook rather
// than a background ticker.
type PrometheusExporter struct {
	metrics *QueryMetrics

	totalQueries    *prometheus.Desc
	zeroResultRate  *prometheus.Desc
	exactRepeatRate *prometheus.Desc
	queryTypeCount  *prometheus.Desc
	latencyBucket   *prometheus.Desc
}

// NewPrometheusExporter builds a collector over m. Register it with a
// prometheus.Registry (or the default one) to expose it.
func NewPrometheusExporter(m *QueryMetrics) *PrometheusExporter {
	return &PrometheusExporter{
		metrics: m,
		totalQueries: prometheus.NewDesc(
			"archon_search_queries_total", "Total search queries recorded.", nil, nil),
		zeroResultRate: prometheus.NewDesc(
			"archon_search_zero_result_ratio", "Fraction of queries returning no results.", nil, nil),
		exactRepeatRate: prometheus.NewDesc(
			"archon_search_exact_repeat_ratio", "Fraction of queries that exactly repeat a recent one.", nil, nil),
		queryTypeCount: prometheus.NewDesc(
			"archon_search_queries_by_type_total", "Search queries by execution mode.", []string{"query_type"}, nil),
		latencyBucket: prometheus.NewDesc(
			"archon_search_latency_bucket_total", "Search queries by latency bucket.", []string{"bucket"}, nil),
	}
}

func (e *PrometheusExporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.totalQueries
	ch <- e.zeroResultRate
	ch <- e.exactRepeatRate
	ch <- e.queryTypeCount
	ch <- e.latencyBucket
}

func (e *PrometheusExporter) Collect(ch chan<- prometheus.Metric) {
	snap := e.metrics.Snapshot()

	ch <- prometheus.MustNewConstMetric(e.totalQueries, prometheus.CounterValue, float64(snap.TotalQueries))
	ch <- prometheus.MustNewConstMetric(e.zeroResultRate, prometheus.GaugeValue, snap.ZeroResultPercentage()/100)
	ch <- prometheus.MustNewConstMetric(e.exactRepeatRate, prometheus.GaugeValue, snap.ExactRepeatRate)

	for qt, count := range snap.QueryTypeCounts {
		ch <- prometheus.MustNewConstMetric(e.queryTypeCount, prometheus.CounterValue, float64(count), string(qt))
	}
	for bucket, count := range snap.LatencyDistribution {
		ch <- prometheus.MustNewConstMetric(e.latencyBucket, prometheus.CounterValue, float64(count), string(bucket))
	}
}

// Handler registers exporter against a private registry and returns an HTTP
// handler serving it in the Prometheus text exposition format, for mounting
// at /metrics.
func Handler(exporter *PrometheusExporter) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(exporter)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
