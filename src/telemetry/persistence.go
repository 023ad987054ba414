package telemetry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aopopov01/TailTracker-sub005/src/models"
)

const (
	stateKeyMetrics = "telemetry:metrics"
	stateKeyAlerts  = "telemetry:alerts"
	stateKeyTrends  = "telemetry:trends"
)

// saveState writes the monitor's durable state to the store as JSON blobs.
// Persistence failures are reported to the caller but are never fatal.
func (m *Monitor) saveState(ctx context.Context) error {
	m.mu.RLock()
	metricsBlob, err := json.Marshal(m.current)
	if err != nil {
		m.mu.RUnlock()
		return fmt.Errorf("encode metrics: %w", err)
	}
	alertsBlob, err := json.Marshal(m.alerts)
	if err != nil {
		m.mu.RUnlock()
		return fmt.Errorf("encode alerts: %w", err)
	}
	trendsBlob, err := json.Marshal(m.trends)
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode trends: %w", err)
	}

	if err := m.store.Set(ctx, stateKeyMetrics, string(metricsBlob)); err != nil {
		return fmt.Errorf("persist metrics: %w", err)
	}
	if err := m.store.Set(ctx, stateKeyAlerts, string(alertsBlob)); err != nil {
		return fmt.Errorf("persist alerts: %w", err)
	}
	if err := m.store.Set(ctx, stateKeyTrends, string(trendsBlob)); err != nil {
		return fmt.Errorf("persist trends: %w", err)
	}
	return nil
}

// LoadState restores previously persisted metrics, alerts and trends.
// Missing or corrupt blobs are skipped silently; the monitor starts fresh.
func (m *Monitor) LoadState(ctx context.Context) {
	blobs, err := m.store.MultiGet(ctx, []string{stateKeyMetrics, stateKeyAlerts, stateKeyTrends})
	if err != nil {
		m.log.Warnf("Failed to load monitor state: %v", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if blob, ok := blobs[stateKeyMetrics]; ok {
		restored := models.NewCacheMetrics()
		if err := json.Unmarshal([]byte(blob), restored); err == nil {
			m.current = restored
		}
	}
	if blob, ok := blobs[stateKeyAlerts]; ok {
		var alerts []*models.PerformanceAlert
		if err := json.Unmarshal([]byte(blob), &alerts); err == nil {
			m.alerts = alerts
		}
	}
	if blob, ok := blobs[stateKeyTrends]; ok {
		var trends map[models.TrendPeriod]*models.CacheTrend
		if err := json.Unmarshal([]byte(blob), &trends); err == nil && trends != nil {
			m.trends = trends
		}
	}
}
