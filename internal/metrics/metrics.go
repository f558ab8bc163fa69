package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's Prometheus collectors. A nil *Metrics is a
// valid no-op receiver so instrumentation stays optional in tests and
// embedded use.
type Metrics struct {
	exportAttempts *prometheus.CounterVec
	exportScale    prometheus.Histogram
	stageDuration  *prometheus.HistogramVec
	runsTotal      *prometheus.CounterVec
}

// New registers the pipeline collectors with the given registerer
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		exportAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "burnsev_export_attempts_total",
			Help: "Export attempts against the compute service, by outcome.",
		}, []string{"outcome"}),
		exportScale: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "burnsev_export_scale_meters",
			Help:    "Raster scale at which exports ultimately succeeded.",
			Buckets: []float64{10, 25, 40, 55, 70, 85, 100, 115, 130, 145},
		}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "burnsev_stage_duration_seconds",
			Help:    "Elapsed time per assessment pipeline stage.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"stage"}),
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "burnsev_runs_total",
			Help: "Completed assessment runs, by outcome.",
		}, []string{"outcome"}),
	}
}

// ObserveExportAttempt records one export attempt with the given outcome
// ("ok", "too_large", "error").
func (m *Metrics) ObserveExportAttempt(outcome string) {
	if m == nil {
		return
	}
	m.exportAttempts.WithLabelValues(outcome).Inc()
}

// ObserveExportScale records the scale in meters of a successful export
func (m *Metrics) ObserveExportScale(scaleM int) {
	if m == nil {
		return
	}
	m.exportScale.Observe(float64(scaleM))
}

// ObserveStage records the elapsed seconds of a named pipeline stage
func (m *Metrics) ObserveStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(seconds)
}

// ObserveRun records a completed run with the given outcome ("ok", "failed")
func (m *Metrics) ObserveRun(outcome string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
}
