package models

import "time"

// TrendPeriod identifies the bucketing granularity of a trend series.
type TrendPeriod string

const (
	TrendHourly TrendPeriod = "hour"
	TrendDaily  TrendPeriod = "day"
	TrendWeekly TrendPeriod = "week"
)

// MaxPoints returns the retention bound for the period's series.
func (p TrendPeriod) MaxPoints() int {
	switch p {
	case TrendHourly:
		return 24
	case TrendDaily:
		return 30
	case TrendWeekly:
		return 12
	default:
		return 24
	}
}

// TrendPoint is a single metric snapshot inside a trend series.
type TrendPoint struct {
	Timestamp        time.Time `json:"timestamp"`
	HitRatio         float64   `json:"hit_ratio"`
	ResponseTime     float64   `json:"response_time_ms"`
	MemoryUsage      int64     `json:"memory_usage_bytes"`
	EvictionRate     float64   `json:"eviction_rate"`
	PrefetchAccuracy float64   `json:"prefetch_accuracy"`
}

// MetricForecast holds the projected values of one tracked metric.
type MetricForecast struct {
	Metric string    `json:"metric"`
	Values []float64 `json:"values"`
}

// CacheTrend is an ordered, size-bounded sequence of metric snapshots for
// one period, together with the derived forecast.
type CacheTrend struct {
	Period   TrendPeriod      `json:"period"`
	Points   []TrendPoint     `json:"points"`
	Forecast []MetricForecast `json:"forecast,omitempty"`
}

// NewCacheTrend creates a new CacheTrend instance
func NewCacheTrend(period TrendPeriod) *CacheTrend {
	return &CacheTrend{
		Period: period,
		Points: make([]TrendPoint, 0, period.MaxPoints()),
	}
}

// Append adds a snapshot to the series, dropping the oldest entry once the
// period's retention bound is reached.
func (t *CacheTrend) Append(point TrendPoint) {
	t.Points = append(t.Points, point)
	if max := t.Period.MaxPoints(); len(t.Points) > max {
		t.Points = t.Points[len(t.Points)-max:]
	}
}
