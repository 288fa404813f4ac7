package query

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Search outcomes recorded by Metrics.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped" // the filter could never match
)

// Metrics counts query executions.
type Metrics struct {
	Searches *prometheus.CounterVec
	Records  prometheus.Counter
	Duration prometheus.Histogram
}

// NewMetrics registers query metrics with reg. A nil reg leaves them
// unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Searches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adquery_searches_total",
				Help: "Total number of directory searches by outcome",
			},
			[]string{"outcome"},
		),
		Records: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "adquery_records_total",
				Help: "Total number of records read from search results",
			},
		),
		Duration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "adquery_search_duration_seconds",
				Help:    "Time from search submission until the result stream is closed",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

func (m *Metrics) observeSearch(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Searches.WithLabelValues(outcome).Inc()
	if outcome != OutcomeSkipped {
		m.Duration.Observe(d.Seconds())
	}
}

func (m *Metrics) observeRecord() {
	if m == nil {
		return
	}
	m.Records.Inc()
}
