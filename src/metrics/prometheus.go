package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink exports engine samples as Prometheus gauges and counters,
// labeled with the sample's category and name.
type PrometheusSink struct {
	samples *prometheus.GaugeVec
	totals  *prometheus.CounterVec
}

// NewPrometheusSink creates a new PrometheusSink registered on the given
// registerer. Pass prometheus.DefaultRegisterer for the process default.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	s := &PrometheusSink{
		samples: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cache_engine_metric",
				Help: "Latest value of an engine metric sample",
			},
			[]string{"category", "name"},
		),
		totals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_engine_samples_total",
				Help: "Total number of samples recorded per metric",
			},
			[]string{"category", "name"},
		),
	}

	if err := reg.Register(s.samples); err != nil {
		return nil, err
	}
	if err := reg.Register(s.totals); err != nil {
		return nil, err
	}
	return s, nil
}

// Record publishes the sample
func (s *PrometheusSink) Record(name string, value float64, timestamp time.Time, category string, metadata map[string]string) {
	s.samples.WithLabelValues(category, name).Set(value)
	s.totals.WithLabelValues(category, name).Inc()
}
