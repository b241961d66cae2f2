package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cory-johannsen/autohtn/internal/htn"
)

// Search result labels.
const (
	ResultFound    = "found"
	ResultNoPlan   = "no_plan"
	ResultError    = "error"
	ResultCanceled = "canceled"
)

// Metrics holds the Prometheus collectors for plan searches.
type Metrics struct {
	registry   *prometheus.Registry
	searches   *prometheus.CounterVec
	duration   prometheus.Histogram
	expansions prometheus.Histogram
	backtracks prometheus.Counter
	pruned     prometheus.Counter
	planSteps  prometheus.Histogram
}

// NewMetrics registers the search collectors on a fresh registry.
//
// Postcondition: Returns a non-nil Metrics whose Handler serves every registered collector.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autohtn",
			Name:      "searches_total",
			Help:      "Plan searches by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "autohtn",
			Name:      "search_duration_seconds",
			Help:      "Wall time of a plan search.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		expansions: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "autohtn",
			Name:      "search_expansions",
			Help:      "Task expansions per plan search.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 12),
		}),
		backtracks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "autohtn",
			Name:      "backtracks_total",
			Help:      "Methods abandoned after their subtree failed.",
		}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "autohtn",
			Name:      "pruned_total",
			Help:      "Branches vetoed by a pruning check.",
		}),
		planSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "autohtn",
			Name:      "plan_steps",
			Help:      "Operators in a found plan.",
			Buckets:   prometheus.LinearBuckets(0, 5, 20),
		}),
	}
	reg.MustRegister(m.searches, m.duration, m.expansions, m.backtracks, m.pruned, m.planSteps)
	return m
}

// ObserveSearch records one finished search.
//
// Precondition: result is one of the Result* constants.
func (m *Metrics) ObserveSearch(result string, stats htn.Stats, steps int, elapsed time.Duration) {
	m.searches.WithLabelValues(result).Inc()
	m.duration.Observe(elapsed.Seconds())
	m.expansions.Observe(float64(stats.Expansions))
	m.backtracks.Add(float64(stats.Backtracks))
	m.pruned.Add(float64(stats.Pruned))
	if result == ResultFound {
		m.planSteps.Observe(float64(steps))
	}
}

// SearchCounter returns the searches_total child for result.
func (m *Metrics) SearchCounter(result string) prometheus.Counter {
	return m.searches.WithLabelValues(result)
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
