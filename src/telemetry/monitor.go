package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aopopov01/TailTracker-sub005/src/metrics"
	"github.com/aopopov01/TailTracker-sub005/src/models"
	"github.com/aopopov01/TailTracker-sub005/src/storage"
	"github.com/aopopov01/TailTracker-sub005/src/tiers"
)

// emaAlpha is the smoothing factor for the hit/miss time averages.
const emaAlpha = 0.1

// analysisWindow is the trailing window inspected on each tick.
const analysisWindow = 5 * time.Minute

// defaultAlertMinRequests suppresses ratio alerts until enough traffic has
// been observed to make the ratios meaningful.
const defaultAlertMinRequests = 10

// trimFactor is the share of the event ring kept after an overflow trim.
const trimFactor = 0.8

// StatsProvider is implemented by cache tiers that report statistics to
// the monitor.
type StatsProvider interface {
	Statistics() tiers.TierStatistics
}

// Options configures a Monitor.
type Options struct {
	Interval     time.Duration
	MaxEvents    int
	PersistEvery int
	// AlertMinRequests is the traffic floor below which ratio-based
	// alerts stay quiet. Set to 1 to alert on any sample.
	AlertMinRequests int
}

// Monitor records cache events, maintains consolidated metrics, raises
// threshold alerts and advances the trend series. One Monitor instance is
// constructed at startup and shared by reference.
type Monitor struct {
	log          *logrus.Logger
	store        storage.Store
	sink         metrics.Sink
	interval     time.Duration
	maxEvents    int
	persistEvery int
	alertFloor   int64

	mu             sync.RWMutex
	events         []*models.CacheEvent
	current        *models.CacheMetrics
	evictionCount  int64
	errorCount     int64
	prefetchCount  int64
	alerts         []*models.PerformanceAlert
	trends         map[models.TrendPeriod]*models.CacheTrend
	lastTrendPoint map[models.TrendPeriod]time.Time
	providers      map[string]StatsProvider
	accuracyFn     func() float64

	runMu     sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	tickCount int
}

// NewMonitor creates a new Monitor instance
func NewMonitor(opts Options, store storage.Store, sink metrics.Sink, log *logrus.Logger) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.MaxEvents <= 0 {
		opts.MaxEvents = 1000
	}
	if opts.PersistEvery <= 0 {
		opts.PersistEvery = 6
	}
	if opts.AlertMinRequests <= 0 {
		opts.AlertMinRequests = defaultAlertMinRequests
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Monitor{
		log:            log,
		store:          store,
		sink:           sink,
		interval:       opts.Interval,
		maxEvents:      opts.MaxEvents,
		persistEvery:   opts.PersistEvery,
		alertFloor:     int64(opts.AlertMinRequests),
		current:        models.NewCacheMetrics(),
		trends:         make(map[models.TrendPeriod]*models.CacheTrend),
		lastTrendPoint: make(map[models.TrendPeriod]time.Time),
		providers:      make(map[string]StatsProvider),
	}
}

// RegisterTier attaches a tier's statistics snapshot to the monitoring tick.
// Known names are "memory" and "disk"; others only feed the metrics sink.
func (m *Monitor) RegisterTier(name string, provider StatsProvider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[name] = provider
}

// SetPrefetchAccuracySource wires the predictor's accuracy into the
// consolidated metrics.
func (m *Monitor) SetPrefetchAccuracySource(fn func() float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accuracyFn = fn
}

// RecordEvent appends an event to the bounded ring and folds it into the
// running counters. The ring is trimmed to trimFactor of its capacity once
// it overflows, keeping the most recent entries.
func (m *Monitor) RecordEvent(ev *models.CacheEvent) {
	if ev == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, ev)
	if len(m.events) > m.maxEvents {
		keep := int(trimFactor * float64(m.maxEvents))
		m.events = m.events[len(m.events)-keep:]
	}

	durationMs := float64(ev.Duration) / float64(time.Millisecond)

	switch ev.Type {
	case models.EventHit:
		m.current.TotalRequests++
		m.current.CacheHits++
		m.current.AverageHitTime = ema(m.current.AverageHitTime, durationMs, m.current.CacheHits)
	case models.EventMiss:
		m.current.TotalRequests++
		m.current.CacheMisses++
		m.current.AverageMissTime = ema(m.current.AverageMissTime, durationMs, m.current.CacheMisses)
	case models.EventEviction:
		m.evictionCount++
	case models.EventError:
		m.errorCount++
	case models.EventPrefetch:
		m.prefetchCount++
	}

	m.current.RecomputeHitRatio()
	if m.current.TotalRequests > 0 {
		m.current.EvictionRate = float64(m.evictionCount) / float64(m.current.TotalRequests)
		m.current.ErrorRate = float64(m.errorCount) / float64(m.current.TotalRequests)
	}
	m.current.ResponseTime = m.current.HitRatio*m.current.AverageHitTime +
		(1-m.current.HitRatio)*m.current.AverageMissTime
	m.current.Timestamp = ev.Timestamp
}

// ema folds a sample into an exponential moving average. The first sample
// seeds the average directly.
func ema(old, sample float64, count int64) float64 {
	if count <= 1 {
		return sample
	}
	return old*(1-emaAlpha) + sample*emaAlpha
}

// Start launches the monitoring loop. Calling Start on a running monitor
// is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.log.Infof("Cache monitor started (interval %s)", m.interval)
		for {
			select {
			case <-loopCtx.Done():
				m.log.Info("Cache monitor stopped")
				return
			case <-ticker.C:
				m.tick(loopCtx)
			}
		}
	}()
}

// Stop cancels the monitoring loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel = nil
	m.done = nil
}

// tick runs one monitoring pass. Collection or analysis failures are
// logged and skipped; they never stop the loop.
func (m *Monitor) tick(ctx context.Context) {
	now := time.Now()

	m.collectTierStats()
	m.analyzeWindow(now)
	m.advanceTrends(now)

	snapshot := m.CurrentMetrics()
	m.CheckThresholds(snapshot)
	m.emit(snapshot, now)

	m.tickCount++
	if m.tickCount%m.persistEvery == 0 {
		if err := m.saveState(ctx); err != nil {
			m.log.Warnf("Failed to persist monitor state: %v", err)
		}
	}
}

// collectTierStats merges the registered tiers' snapshots into the
// consolidated metrics.
func (m *Monitor) collectTierStats() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, provider := range m.providers {
		stats := provider.Statistics()
		switch name {
		case "memory":
			m.current.MemoryUsage = stats.MemoryUsage
			m.current.MemoryUtilization = stats.UsagePercent
		case "disk":
			m.current.DiskUsage = stats.DiskUsage
			m.current.DiskUtilization = stats.UsagePercent
		}
	}
	if m.accuracyFn != nil {
		m.current.PrefetchAccuracy = m.accuracyFn()
	}
}

// analyzeWindow inspects the events in the trailing analysis window and
// reports the windowed rates to the sink.
func (m *Monitor) analyzeWindow(now time.Time) {
	cutoff := now.Add(-analysisWindow)

	m.mu.RLock()
	var hits, misses, errors int64
	var totalMs float64
	for _, ev := range m.events {
		if ev.Timestamp.Before(cutoff) {
			continue
		}
		switch ev.Type {
		case models.EventHit:
			hits++
		case models.EventMiss:
			misses++
		case models.EventError:
			errors++
		}
		totalMs += float64(ev.Duration) / float64(time.Millisecond)
	}
	m.mu.RUnlock()

	total := hits + misses
	if total == 0 {
		return
	}
	windowRatio := float64(hits) / float64(total)
	m.sink.Record("window_hit_ratio", windowRatio, now, "cache", nil)
	m.sink.Record("window_avg_duration_ms", totalMs/float64(total), now, "cache", nil)
	m.log.Debugf("Window analysis: %d requests, hit ratio %.2f, %d errors", total, windowRatio, errors)
}

// advanceTrends appends a snapshot to each trend series whose bucket has
// elapsed since the last point, then refreshes its forecast.
func (m *Monitor) advanceTrends(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, period := range []models.TrendPeriod{models.TrendHourly, models.TrendDaily, models.TrendWeekly} {
		if last, ok := m.lastTrendPoint[period]; ok && now.Sub(last) < bucketWidth(period) {
			continue
		}
		trend, ok := m.trends[period]
		if !ok {
			trend = models.NewCacheTrend(period)
			m.trends[period] = trend
		}
		trend.Append(models.TrendPoint{
			Timestamp:        now,
			HitRatio:         m.current.HitRatio,
			ResponseTime:     m.current.ResponseTime,
			MemoryUsage:      m.current.MemoryUsage,
			EvictionRate:     m.current.EvictionRate,
			PrefetchAccuracy: m.current.PrefetchAccuracy,
		})
		trend.Forecast = forecastTrend(trend)
		m.lastTrendPoint[period] = now
	}
}

// bucketWidth maps a trend period to the spacing between its points.
func bucketWidth(period models.TrendPeriod) time.Duration {
	switch period {
	case models.TrendHourly:
		return time.Hour
	case models.TrendDaily:
		return 24 * time.Hour
	case models.TrendWeekly:
		return 7 * 24 * time.Hour
	default:
		return time.Hour
	}
}

// forecastTrend projects every tracked metric of a trend series three
// steps ahead.
func forecastTrend(trend *models.CacheTrend) []models.MetricForecast {
	if len(trend.Points) < 2 {
		return nil
	}

	extract := func(get func(models.TrendPoint) float64) []float64 {
		out := make([]float64, len(trend.Points))
		for i, p := range trend.Points {
			out[i] = get(p)
		}
		return out
	}

	return []models.MetricForecast{
		{Metric: "hit_ratio", Values: forecastSeries(extract(func(p models.TrendPoint) float64 { return p.HitRatio }), forecastSteps)},
		{Metric: "response_time", Values: forecastSeries(extract(func(p models.TrendPoint) float64 { return p.ResponseTime }), forecastSteps)},
		{Metric: "memory_usage", Values: forecastSeries(extract(func(p models.TrendPoint) float64 { return float64(p.MemoryUsage) }), forecastSteps)},
		{Metric: "eviction_rate", Values: forecastSeries(extract(func(p models.TrendPoint) float64 { return p.EvictionRate }), forecastSteps)},
		{Metric: "prefetch_accuracy", Values: forecastSeries(extract(func(p models.TrendPoint) float64 { return p.PrefetchAccuracy }), forecastSteps)},
	}
}

// CheckThresholds evaluates the alert rules against the given metrics and
// raises an alert per violated rule. An existing unacknowledged alert of
// the same type suppresses a duplicate.
func (m *Monitor) CheckThresholds(snapshot *models.CacheMetrics) []*models.PerformanceAlert {
	raised := make([]*models.PerformanceAlert, 0)

	if snapshot.TotalRequests >= m.alertFloor && snapshot.HitRatio < 0.7 {
		severity := models.AlertSeverityMedium
		if snapshot.HitRatio < 0.5 {
			severity = models.AlertSeverityHigh
		}
		alert := models.NewPerformanceAlert(models.AlertHighMissRate, severity,
			fmt.Sprintf("Cache hit ratio at %.2f, below 0.70", snapshot.HitRatio), snapshot)
		alert.AddAction("Increase cache capacity")
		alert.AddAction("Review TTL settings for frequently missed keys")
		raised = m.raise(raised, alert)
	}

	if snapshot.MemoryUtilization > 0.85 {
		severity := models.AlertSeverityHigh
		if snapshot.MemoryUtilization > 0.95 {
			severity = models.AlertSeverityCritical
		}
		alert := models.NewPerformanceAlert(models.AlertHighMemoryUsage, severity,
			fmt.Sprintf("Memory tier at %.0f%% of capacity", snapshot.MemoryUtilization*100), snapshot)
		alert.AddAction("Trigger a compaction pass")
		alert.AddAction("Lower entry TTLs or tier capacity pressure")
		raised = m.raise(raised, alert)
	}

	if snapshot.ResponseTime > 500 {
		severity := models.AlertSeverityMedium
		if snapshot.ResponseTime > 1000 {
			severity = models.AlertSeverityHigh
		}
		alert := models.NewPerformanceAlert(models.AlertSlowResponse, severity,
			fmt.Sprintf("Average response time at %.0fms", snapshot.ResponseTime), snapshot)
		alert.AddAction("Check network conditions and fallback latency")
		raised = m.raise(raised, alert)
	}

	if snapshot.EvictionRate > 0.1 {
		alert := models.NewPerformanceAlert(models.AlertHighEvictionRate, models.AlertSeverityMedium,
			fmt.Sprintf("Eviction rate at %.2f per request", snapshot.EvictionRate), snapshot)
		alert.AddAction("Increase cache capacity")
		raised = m.raise(raised, alert)
	}

	if snapshot.ErrorRate > 0.05 {
		alert := models.NewPerformanceAlert(models.AlertHighErrorRate, models.AlertSeverityHigh,
			fmt.Sprintf("Error rate at %.2f per request", snapshot.ErrorRate), snapshot)
		alert.AddAction("Inspect recent error events for a common source")
		raised = m.raise(raised, alert)
	}

	return raised
}

// raise appends the alert unless an unacknowledged alert of the same type
// already exists.
func (m *Monitor) raise(raised []*models.PerformanceAlert, alert *models.PerformanceAlert) []*models.PerformanceAlert {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.alerts {
		if existing.Type == alert.Type && !existing.Acknowledged {
			return raised
		}
	}
	m.alerts = append(m.alerts, alert)
	m.log.Warnf("Alert raised: %s (%s) %s", alert.Type, alert.Severity, alert.Message)
	return append(raised, alert)
}

// ActiveAlerts returns all unacknowledged alerts.
func (m *Monitor) ActiveAlerts() []*models.PerformanceAlert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	active := make([]*models.PerformanceAlert, 0)
	for _, alert := range m.alerts {
		if !alert.Acknowledged {
			active = append(active, alert)
		}
	}
	return active
}

// AcknowledgeAlert marks the alert with the given ID as acknowledged,
// removing it from the active set.
func (m *Monitor) AcknowledgeAlert(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, alert := range m.alerts {
		if alert.ID == id && !alert.Acknowledged {
			alert.Acknowledge()
			return true
		}
	}
	return false
}

// CurrentMetrics returns a copy of the consolidated metrics.
func (m *Monitor) CurrentMetrics() *models.CacheMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := *m.current
	return &snapshot
}

// Trend returns a copy of the trend series for the given period, or nil
// when no points have been recorded yet.
func (m *Monitor) Trend(period models.TrendPeriod) *models.CacheTrend {
	m.mu.RLock()
	defer m.mu.RUnlock()

	trend, ok := m.trends[period]
	if !ok {
		return nil
	}
	copied := *trend
	copied.Points = append([]models.TrendPoint(nil), trend.Points...)
	copied.Forecast = append([]models.MetricForecast(nil), trend.Forecast...)
	return &copied
}

// EventCount returns the number of events currently retained.
func (m *Monitor) EventCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

// Recommendations derives tuning recommendations from the current metrics.
func (m *Monitor) Recommendations() []models.OptimizationRecommendation {
	return GenerateRecommendations(m.CurrentMetrics())
}

// emit publishes the consolidated metrics to the sink.
func (m *Monitor) emit(snapshot *models.CacheMetrics, now time.Time) {
	m.sink.Record("hit_ratio", snapshot.HitRatio, now, "cache", nil)
	m.sink.Record("response_time_ms", snapshot.ResponseTime, now, "cache", nil)
	m.sink.Record("memory_utilization", snapshot.MemoryUtilization, now, "cache", nil)
	m.sink.Record("eviction_rate", snapshot.EvictionRate, now, "cache", nil)
	m.sink.Record("error_rate", snapshot.ErrorRate, now, "cache", nil)
	m.sink.Record("prefetch_accuracy", snapshot.PrefetchAccuracy, now, "cache", nil)
}
