package models

import "time"

// AlertSeverity represents the severity level of an alert
type AlertSeverity string

const (
	AlertSeverityCritical AlertSeverity = "critical"
	AlertSeverityHigh     AlertSeverity = "high"
	AlertSeverityMedium   AlertSeverity = "medium"
	AlertSeverityLow      AlertSeverity = "low"
)

// AlertType represents the type of alert
type AlertType string

const (
	AlertHighMissRate     AlertType = "high_miss_rate"
	AlertHighMemoryUsage  AlertType = "high_memory_usage"
	AlertSlowResponse     AlertType = "slow_response"
	AlertHighEvictionRate AlertType = "high_eviction_rate"
	AlertHighErrorRate    AlertType = "high_error_rate"
)

// PerformanceAlert represents a threshold violation raised by the monitor.
// At most one unacknowledged alert per type exists at a time.
type PerformanceAlert struct {
	ID             string        `json:"id"`
	Type           AlertType     `json:"type"`
	Severity       AlertSeverity `json:"severity"`
	Message        string        `json:"message"`
	Metrics        *CacheMetrics `json:"metrics,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
	Acknowledged   bool          `json:"acknowledged"`
	AcknowledgedAt *time.Time    `json:"acknowledged_at,omitempty"`
	Actions        []string      `json:"actions,omitempty"`
}

// NewPerformanceAlert creates a new PerformanceAlert instance
func NewPerformanceAlert(alertType AlertType, severity AlertSeverity, message string, metrics *CacheMetrics) *PerformanceAlert {
	return &PerformanceAlert{
		ID:        generateID("alert"),
		Type:      alertType,
		Severity:  severity,
		Message:   message,
		Metrics:   metrics,
		Timestamp: time.Now(),
		Actions:   make([]string, 0),
	}
}

// Acknowledge marks the alert as acknowledged
func (a *PerformanceAlert) Acknowledge() {
	now := time.Now()
	a.Acknowledged = true
	a.AcknowledgedAt = &now
}

// AddAction adds a recommended action to the alert
func (a *PerformanceAlert) AddAction(action string) {
	a.Actions = append(a.Actions, action)
}
