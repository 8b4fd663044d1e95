package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mwiater/trigbench/internal/scoring"
)

// Exporter holds the Prometheus collectors for one evaluation run. Each run
// gets its own registry so the textfile only carries this run's series.
type Exporter struct {
	registry *prometheus.Registry

	samples       *prometheus.CounterVec
	parseFailures *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	wla           *prometheus.GaugeVec
	errorKm       *prometheus.GaugeVec
	tbs           *prometheus.GaugeVec
	tfr           *prometheus.GaugeVec
}

// NewExporter registers the trigbench collectors on a fresh registry.
func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trigbench",
			Name:      "samples_total",
			Help:      "Evaluated images by attack type",
		}, []string{"model", "attack_type"}),
		parseFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trigbench",
			Name:      "parse_failures_total",
			Help:      "Predictions that yielded no coordinates",
		}, []string{"model", "attack_type"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trigbench",
			Name:      "inference_duration_seconds",
			Help:      "Duration of location inference requests",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"model"}),
		wla: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "trigbench",
			Name:      "wla_mean",
			Help:      "Mean weighted localization accuracy over samples with a defined error",
		}, []string{"model", "attack_type"}),
		errorKm: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "trigbench",
			Name:      "error_km_mean",
			Help:      "Mean great-circle error in kilometres",
		}, []string{"model", "attack_type"}),
		tbs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "trigbench",
			Name:      "tbs_mean_km",
			Help:      "Mean text bias score (adversarial minus clean error)",
		}, []string{"model"}),
		tfr: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "trigbench",
			Name:      "trap_fall_rate",
			Help:      "Share of trap-checked predictions inside the trap radius",
		}, []string{"model"}),
	}
	e.registry.MustRegister(e.samples, e.parseFailures, e.duration, e.wla, e.errorKm, e.tbs, e.tfr)
	return e
}

// ObserveInference records one inference round trip.
func (e *Exporter) ObserveInference(model string, d time.Duration) {
	e.duration.WithLabelValues(model).Observe(d.Seconds())
}

// ObserveSample counts one scored sample.
func (e *Exporter) ObserveSample(model string, s scoring.Sample) {
	e.samples.WithLabelValues(model, string(s.AttackType)).Inc()
	if s.Predicted == nil {
		e.parseFailures.WithLabelValues(model, string(s.AttackType)).Inc()
	}
}

// SetSummary publishes the dataset-level gauges. Undefined means are left
// unset rather than reported as zero.
func (e *Exporter) SetSummary(model string, summary scoring.Summary, mm ModelMetrics) {
	if summary.MeanAccuracy != nil {
		e.wla.WithLabelValues(model, overallKey).Set(*summary.MeanAccuracy)
	}
	if summary.MeanErrorKm != nil {
		e.errorKm.WithLabelValues(model, overallKey).Set(*summary.MeanErrorKm)
	}
	for _, st := range mm.ByAttack {
		if st.WLA.Count > 0 {
			e.wla.WithLabelValues(model, st.AttackType).Set(st.WLA.Mean)
		}
		if st.ErrorKm.Count > 0 {
			e.errorKm.WithLabelValues(model, st.AttackType).Set(st.ErrorKm.Mean)
		}
	}
	if summary.MeanBias != nil {
		e.tbs.WithLabelValues(model).Set(*summary.MeanBias)
	}
	if summary.TrapFallRate != nil {
		e.tfr.WithLabelValues(model).Set(*summary.TrapFallRate)
	}
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (e *Exporter) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, e.registry); err != nil {
		return fmt.Errorf("error writing metrics textfile: %w", err)
	}
	return nil
}

// Registry exposes the underlying registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}
