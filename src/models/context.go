package models

import "time"

// NetworkType identifies the device's current network transport.
type NetworkType string

const (
	NetworkWifi     NetworkType = "wifi"
	NetworkCellular NetworkType = "cellular"
	NetworkUnknown  NetworkType = "unknown"
)

// LoadingContext is a point-in-time snapshot of the conditions under which
// a data access happened. It is copied, never referenced live.
type LoadingContext struct {
	Route        string      `json:"route"`
	UserID       string      `json:"user_id,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
	NetworkType  NetworkType `json:"network_type"`
	BatteryLevel float64     `json:"battery_level"`
	IsCharging   bool        `json:"is_charging"`
	TimeOfDay    int         `json:"time_of_day"`
	DayOfWeek    int         `json:"day_of_week"`
	AppVersion   string      `json:"app_version,omitempty"`
}

// Snapshot fills the derived time fields from the given instant.
func (c LoadingContext) Snapshot(now time.Time) LoadingContext {
	c.Timestamp = now
	c.TimeOfDay = now.Hour()
	c.DayOfWeek = int(now.Weekday())
	return c
}

// PredictivePattern is a learned, context-keyed record of a recurring user
// action, used to drive prefetching.
type PredictivePattern struct {
	ID              string         `json:"id"`
	Action          string         `json:"action"`
	Sequence        []string       `json:"sequence"`
	Confidence      float64        `json:"confidence"`
	Frequency       int64          `json:"frequency"`
	Context         LoadingContext `json:"context"`
	SuccessRate     float64        `json:"success_rate"`
	AverageLoadTime float64        `json:"average_load_time_ms"`
	LastUsed        time.Time      `json:"last_used"`
}

// PrefetchStrategy grades how urgently predicted data should be loaded.
type PrefetchStrategy string

const (
	StrategyImmediate  PrefetchStrategy = "immediate"
	StrategyBackground PrefetchStrategy = "background"
	StrategyOnDemand   PrefetchStrategy = "on_demand"
	StrategyPreemptive PrefetchStrategy = "preemptive"
)

// PredictionPriority ranks predictions for execution ordering.
type PredictionPriority int

const (
	PriorityLow PredictionPriority = iota
	PriorityMedium
	PriorityHigh
)

// PredictionResult represents one resource the predictor expects to be
// needed soon, with the strategy chosen to load it.
type PredictionResult struct {
	DataType      string             `json:"data_type"`
	Probability   float64            `json:"probability"`
	Strategy      PrefetchStrategy   `json:"strategy"`
	Priority      PredictionPriority `json:"priority"`
	EstimatedSize int64              `json:"estimated_size_bytes"`
	CacheDuration time.Duration      `json:"cache_duration_ns"`
}
