package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper. A single Metrics
// instance may be shared by concurrent sessions.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	PagesFetched    prometheus.Counter
	LinksFound      prometheus.Counter
	RetriesTotal    prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
	SessionsTotal   *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total HTTP requests issued by the scraper.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "HTTP request latency for scraper requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	pagesFetched := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_pages_fetched_total",
			Help: "Total category pages fetched successfully.",
		},
	)
	linksFound := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_links_found_total",
			Help: "Total unique article links merged into session results.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total number of retry attempts made.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of scraper errors by type.",
		},
		[]string{"error_type"},
	)
	sessionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_sessions_total",
			Help: "Total finished sessions by termination reason.",
		},
		[]string{"reason"},
	)

	registry.MustRegister(requests, requestDuration, pagesFetched, linksFound, retries, errorsTotal, sessionsTotal)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		PagesFetched:    pagesFetched,
		LinksFound:      linksFound,
		RetriesTotal:    retries,
		ErrorsTotal:     errorsTotal,
		SessionsTotal:   sessionsTotal,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncPages increments the fetched pages counter.
func (m *Metrics) IncPages() {
	if m == nil {
		return
	}
	m.PagesFetched.Inc()
}

// AddLinks adds to the links found counter.
func (m *Metrics) AddLinks(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.LinksFound.Add(float64(n))
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncSession increments the finished sessions counter for a reason.
func (m *Metrics) IncSession(reason string) {
	if m == nil {
		return
	}
	m.SessionsTotal.WithLabelValues(reason).Inc()
}
