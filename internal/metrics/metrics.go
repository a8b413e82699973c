package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Aggregations      prometheus.Counter
	RejectedMovements prometheus.Counter
	IndicatorRuns     *prometheus.CounterVec
	PriceCache        *prometheus.CounterVec
	SummaryCache      *prometheus.CounterVec
	LedgerChanges     *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Aggregations: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "ledger_aggregations_total", Help: "Ledger summaries computed"},
		),
		RejectedMovements: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "ledger_rejected_movements_total", Help: "Malformed movements excluded from summaries"},
		),
		IndicatorRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "indicator_runs_total", Help: "Market indicator analyses by resulting signal"},
			[]string{"signal"},
		),
		PriceCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "price_cache_lookups_total", Help: "Price series cache lookups"},
			[]string{"result"},
		),
		SummaryCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "summary_cache_lookups_total", Help: "Ledger summary cache lookups"},
			[]string{"result"},
		),
		LedgerChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "ledger_changes_total", Help: "Ledger change notifications by source"},
			[]string{"source"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "http_requests_total", Help: "HTTP requests served"},
			[]string{"method", "path", "code"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request latency", Buckets: prometheus.DefBuckets},
			[]string{"method", "path"},
		),
	}
	m.registry.MustRegister(
		m.Aggregations, m.RejectedMovements, m.IndicatorRuns,
		m.PriceCache, m.SummaryCache, m.LedgerChanges,
		m.HTTPRequests, m.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Lookup labels a cache lookup as "hit" or "miss".
func Lookup(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

// ObserveHTTP records one served request. Its signature matches the trace
// middleware observer.
func (m *Metrics) ObserveHTTP(method, path string, status int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// Gatherer exposes the registry for tests and custom exporters.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
