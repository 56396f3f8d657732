package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Query outcomes recorded by RecordQuery.
const (
	OutcomeFetched = "fetched"
	OutcomeCached  = "cached"
	OutcomeFailed  = "failed"
)

// Metrics holds the Prometheus collectors of one run. They are registered
// on a private registry, which WriteTextfile dumps in the node exporter
// textfile format. A nil *Metrics discards everything.
type Metrics struct {
	Registry *prometheus.Registry

	// RequestsTotal counts E-utilities request attempts by endpoint and HTTP status.
	RequestsTotal *prometheus.CounterVec

	// RequestsFailed counts attempts that did not yield a usable response.
	RequestsFailed *prometheus.CounterVec

	// RequestDuration observes request latency in seconds by endpoint.
	RequestDuration *prometheus.HistogramVec

	// QueriesTotal counts evaluated expressions by outcome (fetched, cached, failed).
	QueriesTotal *prometheus.CounterVec

	// ArticlesFetched counts article ids retrieved from the service.
	ArticlesFetched prometheus.Counter

	// FirstNamedArticles counts articles kept by the first-author filter.
	FirstNamedArticles prometheus.Counter

	// RunDuration observes the duration of tabulation runs in seconds.
	RunDuration prometheus.Histogram
}

// NewMetrics creates a Metrics instance. The namespace prefixes every
// metric name.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ncbi_requests_total",
			Help:      "Total number of E-utilities request attempts",
		}, []string{"endpoint", "status"}),
		RequestsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ncbi_requests_failed_total",
			Help:      "Total number of failed E-utilities request attempts",
		}, []string{"endpoint"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ncbi_request_duration_seconds",
			Help:      "E-utilities request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint"}),
		QueriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Total number of evaluated search expressions by outcome",
		}, []string{"outcome"}),
		ArticlesFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_fetched_total",
			Help:      "Total number of article ids retrieved",
		}),
		FirstNamedArticles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "first_named_articles_total",
			Help:      "Total number of articles whose first author matched",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Tabulation run duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
}

// ObserveRequest records one request attempt. Its signature matches
// ncbi.RequestObserver.
func (m *Metrics) ObserveRequest(endpoint string, status int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
	if err != nil || status != http.StatusOK {
		m.RequestsFailed.WithLabelValues(endpoint).Inc()
	}
}

// RecordQuery records the outcome of one expression.
func (m *Metrics) RecordQuery(outcome string) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(outcome).Inc()
}

// RecordArticles adds n retrieved article ids.
func (m *Metrics) RecordArticles(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ArticlesFetched.Add(float64(n))
}

// RecordFirstNamed adds n articles kept by the first-author filter.
func (m *Metrics) RecordFirstNamed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.FirstNamedArticles.Add(float64(n))
}

// RecordRun observes the duration of a finished run.
func (m *Metrics) RecordRun(d time.Duration) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(d.Seconds())
}

// WriteTextfile writes every collected metric to path.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
