package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ValidationMetrics records outcomes of client license validation requests.
type ValidationMetrics struct {
	duration prometheus.Histogram
	outcomes *prometheus.CounterVec
}

// NewValidationMetrics registers the validation metrics on the provided registerer.
func NewValidationMetrics(reg prometheus.Registerer) *ValidationMetrics {
	if reg == nil {
		return &ValidationMetrics{}
	}
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "license_validation_duration_seconds",
		Help:    "Duration of license validation requests in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "license_validation_total",
		Help: "License validation requests by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(duration, outcomes)
	return &ValidationMetrics{
		duration: duration,
		outcomes: outcomes,
	}
}

// ObserveDuration records how long a validation request took.
func (v *ValidationMetrics) ObserveDuration(duration time.Duration) {
	if v == nil || v.duration == nil {
		return
	}
	v.duration.Observe(duration.Seconds())
}

// IncOutcome increments the counter for the named outcome.
func (v *ValidationMetrics) IncOutcome(outcome string) {
	if v == nil || v.outcomes == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	v.outcomes.WithLabelValues(outcome).Inc()
}
