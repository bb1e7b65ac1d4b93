package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scrape workers. All
// methods tolerate a nil receiver so tests can run without a registry.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ItemsTotal      *prometheus.CounterVec
	RetriesTotal    *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec
	RejectedTotal   *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total HTTP requests issued, per site.",
		},
		[]string{"site"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "HTTP request latency for successful fetches, per site.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"site"},
	)
	items := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_items_scraped_total",
			Help: "Total number of validated product records, per site.",
		},
		[]string{"site"},
	)
	retries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total number of retry attempts, per site.",
		},
		[]string{"site"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of fetch errors by site and type.",
		},
		[]string{"site", "error_type"},
	)
	rejected := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_rejected_records_total",
			Help: "Total number of records dropped by validation, per site.",
		},
		[]string{"site"},
	)

	registry.MustRegister(requests, requestDuration, items, retries, errorsTotal, rejected)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		ItemsTotal:      items,
		RetriesTotal:    retries,
		ErrorsTotal:     errorsTotal,
		RejectedTotal:   rejected,
	}
}

// IncRequest increments the requests total counter for a site.
func (m *Metrics) IncRequest(site string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(site).Inc()
}

// ObserveDuration records an HTTP request duration for a site.
func (m *Metrics) ObserveDuration(site string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(site).Observe(d.Seconds())
}

// IncItems increments the validated records counter for a site.
func (m *Metrics) IncItems(site string) {
	if m == nil {
		return
	}
	m.ItemsTotal.WithLabelValues(site).Inc()
}

// IncRetries increments the retries counter for a site.
func (m *Metrics) IncRetries(site string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(site).Inc()
}

// IncError increments the errors counter for a site and type label.
func (m *Metrics) IncError(site, errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(site, errorType).Inc()
}

// IncRejected increments the validation reject counter for a site.
func (m *Metrics) IncRejected(site string) {
	if m == nil {
		return
	}
	m.RejectedTotal.WithLabelValues(site).Inc()
}
