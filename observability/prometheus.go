// Package observability exports rayknn metrics to Prometheus.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/rayknn"
)

var _ rayknn.MetricsCollector = (*PrometheusCollector)(nil)

// PrometheusCollector implements rayknn.MetricsCollector with Prometheus
// histograms and counters.
type PrometheusCollector struct {
	buildLatency *prometheus.HistogramVec
	primitives   prometheus.Counter
	queryLatency *prometheus.HistogramVec
	neighbors    prometheus.Histogram
	rays         *prometheus.CounterVec
}

// NewPrometheusCollector creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusCollector(reg prometheus.Registerer, namespace string) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &PrometheusCollector{
		buildLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Latency of index and scene builds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"status"}),
		primitives: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "build_primitives_total",
			Help:      "Primitives indexed by successful builds",
		}),
		queryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Latency of k-NN queries",
			Buckets:   prometheus.ExponentialBuckets(0.000001, 4, 10),
		}, []string{"status"}),
		neighbors: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_neighbors",
			Help:      "Neighbors returned per k-NN query",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		rays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rays_total",
			Help:      "Traced rays by kind and outcome",
		}, []string{"kind", "result"}),
	}

	for _, col := range []prometheus.Collector{c.buildLatency, c.primitives, c.queryLatency, c.neighbors, c.rays} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordBuild implements rayknn.MetricsCollector.
func (c *PrometheusCollector) RecordBuild(primitives int, duration time.Duration, err error) {
	c.buildLatency.WithLabelValues(status(err)).Observe(duration.Seconds())
	if err == nil {
		c.primitives.Add(float64(primitives))
	}
}

// RecordQuery implements rayknn.MetricsCollector.
func (c *PrometheusCollector) RecordQuery(_ int, found int, duration time.Duration, err error) {
	c.queryLatency.WithLabelValues(status(err)).Observe(duration.Seconds())
	if err == nil {
		c.neighbors.Observe(float64(found))
	}
}

// RecordTrace implements rayknn.MetricsCollector.
func (c *PrometheusCollector) RecordTrace(shadow, hit bool) {
	kind, result := "primary", "miss"
	if shadow {
		kind = "shadow"
	}
	if hit {
		result = "hit"
	}
	c.rays.WithLabelValues(kind, result).Inc()
}
