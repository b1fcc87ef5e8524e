package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	UpstreamCallsTotal   *prometheus.CounterVec
	UpstreamCallDuration *prometheus.HistogramVec
	UpstreamRetriesTotal *prometheus.CounterVec

	AggregationsTotal *prometheus.CounterVec

	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	RateLimitHitsTotal *prometheus.CounterVec
}

// New регистрирует метрики в reg; nil - глобальный registry
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	m := &Metrics{
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bid_search_requests_total",
				Help: "Total number of requests processed",
			},
			[]string{"channel", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bid_search_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"channel"},
		),
		RequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "bid_search_requests_in_flight",
				Help: "Number of requests currently being processed",
			},
		),

		UpstreamCallsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bid_search_upstream_calls_total",
				Help: "Total number of G2B upstream calls by category and outcome",
			},
			[]string{"category", "outcome"},
		),
		UpstreamCallDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bid_search_upstream_call_duration_seconds",
				Help:    "G2B upstream call duration in seconds, retries included",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"category"},
		),
		UpstreamRetriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bid_search_upstream_retries_total",
				Help: "Total number of retried G2B upstream calls",
			},
			[]string{"category"},
		),

		AggregationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bid_search_aggregations_total",
				Help: "Aggregated searches by result: complete, partial or failed",
			},
			[]string{"result"},
		),

		CacheHitsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "bid_search_cache_hits_total",
				Help: "Total number of cache hits",
			},
		),
		CacheMissesTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "bid_search_cache_misses_total",
				Help: "Total number of cache misses",
			},
		),

		RateLimitHitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bid_search_rate_limit_hits_total",
				Help: "Total number of rate limit hits",
			},
			[]string{"channel"},
		),
	}

	return m
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor - /metrics для отдельного registry
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordRequest(channel, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(channel, status).Inc()
	m.RequestDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

func (m *Metrics) RecordUpstreamCall(category, outcome string, duration time.Duration) {
	m.UpstreamCallsTotal.WithLabelValues(category, outcome).Inc()
	m.UpstreamCallDuration.WithLabelValues(category).Observe(duration.Seconds())
}

func (m *Metrics) RecordUpstreamRetry(category string) {
	m.UpstreamRetriesTotal.WithLabelValues(category).Inc()
}

func (m *Metrics) RecordAggregation(result string) {
	m.AggregationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordCacheHit() {
	m.CacheHitsTotal.Inc()
}

func (m *Metrics) RecordCacheMiss() {
	m.CacheMissesTotal.Inc()
}

func (m *Metrics) RecordRateLimitHit(channel string) {
	m.RateLimitHitsTotal.WithLabelValues(channel).Inc()
}

func (m *Metrics) IncRequestsInFlight() {
	m.RequestsInFlight.Inc()
}

func (m *Metrics) DecRequestsInFlight() {
	m.RequestsInFlight.Dec()
}
