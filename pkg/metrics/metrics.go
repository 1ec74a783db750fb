package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "daisy"

// Collector owns the process metrics on its own registry so tests can create
// as many as they like. All methods are safe on a nil *Collector.
type Collector struct {
	registry *prometheus.Registry

	Disambiguations        *prometheus.CounterVec
	DisambiguationDuration prometheus.Histogram

	CacheRequests *prometheus.CounterVec
	StoreDegraded *prometheus.CounterVec

	NetworkRebuilds *prometheus.CounterVec
}

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		Disambiguations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "disambiguations_total",
				Help:      "Total number of disambiguation requests",
			},
			[]string{"status"},
		),
		DisambiguationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "disambiguation_duration_seconds",
				Help:      "Disambiguation pipeline duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		CacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_cache_requests_total",
				Help:      "Reference store cache lookups",
			},
			[]string{"query", "result"},
		),
		StoreDegraded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_degraded_total",
				Help:      "Reference store queries that failed and were treated as empty",
			},
			[]string{"query"},
		),
		NetworkRebuilds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "network_rebuilds_total",
				Help:      "Network materialization jobs by outcome",
			},
			[]string{"status"},
		),
	}

	c.registry.MustRegister(
		c.Disambiguations,
		c.DisambiguationDuration,
		c.CacheRequests,
		c.StoreDegraded,
		c.NetworkRebuilds,
		collectors.NewGoCollector(),
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveDisambiguation(err error, d time.Duration) {
	if c == nil {
		return
	}
	c.Disambiguations.WithLabelValues(status(err)).Inc()
	c.DisambiguationDuration.Observe(d.Seconds())
}

func (c *Collector) CacheRequest(query string, hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.CacheRequests.WithLabelValues(query, result).Inc()
}

func (c *Collector) Degraded(query string) {
	if c == nil {
		return
	}
	c.StoreDegraded.WithLabelValues(query).Inc()
}

func (c *Collector) ObserveRebuild(status string) {
	if c == nil {
		return
	}
	c.NetworkRebuilds.WithLabelValues(status).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
