// Package metrics holds the Prometheus collectors for statement processing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	FilesProcessed    *prometheus.CounterVec
	InferenceDuration *prometheus.HistogramVec
	IssuerGuesses     prometheus.Counter
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FilesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statement_parser",
			Name:      "files_processed_total",
			Help:      "Uploaded statement files by terminal status.",
		}, []string{"status"}),
		InferenceDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "statement_parser",
			Name:      "inference_duration_seconds",
			Help:      "Wall time of inference calls, retries included.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"model", "outcome"}),
		IssuerGuesses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "statement_parser",
			Name:      "issuer_guesses_total",
			Help:      "Issuer values replaced by the low-confidence marker.",
		}),
	}
}

// The methods below tolerate a nil receiver so callers can run without metrics.

func (m *Metrics) FileProcessed(status string) {
	if m == nil {
		return
	}
	m.FilesProcessed.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveInference(model, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.InferenceDuration.WithLabelValues(model, outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) IssuerGuessed() {
	if m == nil {
		return
	}
	m.IssuerGuesses.Inc()
}
