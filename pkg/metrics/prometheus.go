package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"RegimeFlow/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	regimeState *prometheus.GaugeVec
	probability prometheus.Gauge
	transitions *prometheus.CounterVec
	fallbacks   *prometheus.CounterVec
	samples     prometheus.Counter
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		regimeState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "regimeflow_regime_state",
				Help: "Current regime as one-hot gauges per label",
			},
			[]string{"regime"},
		),
		probability: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "regimeflow_stress_probability",
				Help: "Latest composite stress probability",
			},
		),
		transitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regimeflow_transitions_total",
				Help: "Total number of regime transitions",
			},
			[]string{"from", "to"},
		),
		fallbacks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regimeflow_fallbacks_total",
				Help: "Total number of fail-closed fallback periods",
			},
			[]string{"reason"},
		),
		samples: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "regimeflow_samples_total",
				Help: "Total number of processed feature rows",
			},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regimeflow_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "regimeflow_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordRegime records the current regime as one-hot gauges.
func (r *Recorder) RecordRegime(regime models.Regime) {
	for _, label := range []models.Regime{models.RegimeNormal, models.RegimeHighVol} {
		v := 0.0
		if regime == label {
			v = 1.0
		}
		r.regimeState.WithLabelValues(string(label)).Set(v)
	}
}

// RecordProbability records the latest stress probability.
func (r *Recorder) RecordProbability(p float64) {
	r.probability.Set(p)
}

// RecordTransition records a confirmed regime transition.
func (r *Recorder) RecordTransition(from, to models.Regime) {
	r.transitions.WithLabelValues(string(from), string(to)).Inc()
}

// RecordFallback records a fail-closed fallback period.
func (r *Recorder) RecordFallback(reason string) {
	r.fallbacks.WithLabelValues(reason).Inc()
}

// RecordSample records one processed feature row.
func (r *Recorder) RecordSample() {
	r.samples.Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
