package search

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the search engine.
type Metrics struct {
	SearchesTotal  *prometheus.CounterVec
	SearchDuration *prometheus.HistogramVec
	ResultsTotal   *prometheus.CounterVec
	FallbacksTotal prometheus.Counter
	PoolInFlight   prometheus.Gauge
	CorpusEntries  prometheus.Gauge
}

// NewMetrics creates and registers the search metrics. Registration happens
// once per process; later calls return the same collectors.
//
// Metrics:
//   - archivesearch_searches_total{mode,outcome} - searches served
//   - archivesearch_search_duration_seconds{mode} - end-to-end latency
//   - archivesearch_results_total{mode} - entries returned
//   - archivesearch_fallbacks_total - assisted searches answered by the default path
//   - archivesearch_pool_in_flight - pooled searches currently running
//   - archivesearch_corpus_entries - entries in the live corpus
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			SearchesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "archivesearch_searches_total",
					Help: "Total number of searches served",
				},
				[]string{"mode", "outcome"}, // outcome: "ok" or "error"
			),

			SearchDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "archivesearch_search_duration_seconds",
					Help:    "Duration of searches in seconds",
					Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
				},
				[]string{"mode"},
			),

			ResultsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "archivesearch_results_total",
					Help: "Total number of entries returned",
				},
				[]string{"mode"},
			),

			FallbacksTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "archivesearch_fallbacks_total",
					Help: "Assisted searches answered by the default path",
				},
			),

			PoolInFlight: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "archivesearch_pool_in_flight",
					Help: "Pooled searches currently running",
				},
			),

			CorpusEntries: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "archivesearch_corpus_entries",
					Help: "Entries in the live corpus",
				},
			),
		}
	})

	return globalMetrics
}

// RecordSearch records one finished search.
func (m *Metrics) RecordSearch(mode Mode, d time.Duration, results int, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.SearchesTotal.WithLabelValues(string(mode), outcome).Inc()
	m.SearchDuration.WithLabelValues(string(mode)).Observe(d.Seconds())
	m.ResultsTotal.WithLabelValues(string(mode)).Add(float64(results))
}

// RecordFallback counts an assisted search that fell back.
func (m *Metrics) RecordFallback() {
	if m == nil {
		return
	}
	m.FallbacksTotal.Inc()
}

// SetCorpusEntries updates the corpus size gauge.
func (m *Metrics) SetCorpusEntries(n int) {
	if m == nil {
		return
	}
	m.CorpusEntries.Set(float64(n))
}

func (m *Metrics) poolStarted() {
	if m != nil {
		m.PoolInFlight.Inc()
	}
}

func (m *Metrics) poolFinished() {
	if m != nil {
		m.PoolInFlight.Dec()
	}
}
