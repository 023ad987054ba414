package metrics

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Sink receives individual metric samples from the engine. Implementations
// decide where samples go; the engine never reads them back.
type Sink interface {
	Record(name string, value float64, timestamp time.Time, category string, metadata map[string]string)
}

// LogSink writes samples to the debug log. It is the default sink.
type LogSink struct {
	log *logrus.Logger
}

// NewLogSink creates a new LogSink instance
func NewLogSink(log *logrus.Logger) *LogSink {
	return &LogSink{log: log}
}

// Record logs the sample at debug level
func (s *LogSink) Record(name string, value float64, timestamp time.Time, category string, metadata map[string]string) {
	s.log.Debugf("metric %s/%s=%f", category, name, value)
}

// NopSink discards all samples.
type NopSink struct{}

// Record discards the sample
func (NopSink) Record(name string, value float64, timestamp time.Time, category string, metadata map[string]string) {
}
