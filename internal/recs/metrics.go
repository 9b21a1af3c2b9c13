package recs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Surface labels for recommendation metrics.
const (
	SurfacePosts = "posts"
	SurfaceUsers = "users"
)

// Metric names as constants for consistency.
const (
	MetricRecsRequestsTotal     = "recs_requests_total"
	MetricRecsRequestDuration   = "recs_request_duration_seconds"
	MetricRecsCandidatesScored  = "recs_candidates_scored"
	MetricRecsEmptyResultsTotal = "recs_empty_results_total"
)

// Metrics contains Prometheus metrics for the recommendation pipelines.
// All operations are thread-safe.
type Metrics struct {
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	candidatesScored  *prometheus.HistogramVec
	emptyResultsTotal *prometheus.CounterVec
}

// NewMetrics creates and returns a new Metrics instance with all
// collectors initialized. The metrics are not registered; call Register
// to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRecsRequestsTotal,
				Help: "Total number of recommendation requests by surface",
			},
			[]string{"surface"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricRecsRequestDuration,
				Help:    "Recommendation pipeline duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"surface"},
		),
		candidatesScored: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricRecsCandidatesScored,
				Help:    "Number of candidates scored per recommendation request",
				Buckets: []float64{0, 10, 25, 50, 100, 200},
			},
			[]string{"surface"},
		),
		emptyResultsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRecsEmptyResultsTotal,
				Help: "Total number of degraded empty recommendation responses by reason",
			},
			[]string{"surface", "reason"},
		),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.requestsTotal,
		m.requestDuration,
		m.candidatesScored,
		m.emptyResultsTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveRequest records one completed recommendation request.
func (m *Metrics) ObserveRequest(surface string, seconds float64, candidates int) {
	m.requestsTotal.WithLabelValues(surface).Inc()
	m.requestDuration.WithLabelValues(surface).Observe(seconds)
	m.candidatesScored.WithLabelValues(surface).Observe(float64(candidates))
}

// IncEmptyResult records a degraded empty response. The reason label
// distinguishes upstream failures from genuinely empty candidate sets.
func (m *Metrics) IncEmptyResult(surface, reason string) {
	m.requestsTotal.WithLabelValues(surface).Inc()
	m.emptyResultsTotal.WithLabelValues(surface, reason).Inc()
}
