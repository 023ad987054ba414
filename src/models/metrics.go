package models

import "time"

// CacheMetrics represents the consolidated cache performance counters.
// It is recomputed on every recorded event and on each monitoring tick.
type CacheMetrics struct {
	Timestamp         time.Time `json:"timestamp"`
	TotalRequests     int64     `json:"total_requests"`
	CacheHits         int64     `json:"cache_hits"`
	CacheMisses       int64     `json:"cache_misses"`
	HitRatio          float64   `json:"hit_ratio"`
	AverageHitTime    float64   `json:"average_hit_time_ms"`
	AverageMissTime   float64   `json:"average_miss_time_ms"`
	MemoryUsage       int64     `json:"memory_usage_bytes"`
	MemoryUtilization float64   `json:"memory_utilization"`
	DiskUsage         int64     `json:"disk_usage_bytes"`
	DiskUtilization   float64   `json:"disk_utilization"`
	CompressionRatio  float64   `json:"compression_ratio"`
	NetworkSavings    int64     `json:"network_savings_bytes"`
	EvictionRate      float64   `json:"eviction_rate"`
	PrefetchAccuracy  float64   `json:"prefetch_accuracy"`
	ErrorRate         float64   `json:"error_rate"`
	ResponseTime      float64   `json:"response_time_ms"`
}

// NewCacheMetrics creates a new CacheMetrics instance
func NewCacheMetrics() *CacheMetrics {
	return &CacheMetrics{
		Timestamp: time.Now(),
	}
}

// RecomputeHitRatio derives the hit ratio from the request counters.
// The ratio is 0 when no requests have been observed.
func (m *CacheMetrics) RecomputeHitRatio() {
	if m.TotalRequests <= 0 {
		m.HitRatio = 0
		return
	}
	m.HitRatio = float64(m.CacheHits) / float64(m.TotalRequests)
}

// QueryMetrics represents a single query execution measurement.
type QueryMetrics struct {
	QueryID       string    `json:"query_id"`
	Query         string    `json:"query"`
	Pattern       string    `json:"pattern"`
	ExecutionTime float64   `json:"execution_time_ms"`
	RowsReturned  int64     `json:"rows_returned"`
	RowsAffected  int64     `json:"rows_affected"`
	CacheHit      bool      `json:"cache_hit"`
	Error         string    `json:"error,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewQueryMetrics creates a new QueryMetrics instance
func NewQueryMetrics(queryID, query, pattern string) *QueryMetrics {
	return &QueryMetrics{
		QueryID:   queryID,
		Query:     query,
		Pattern:   pattern,
		Timestamp: time.Now(),
	}
}

// QueryPattern aggregates executions of structurally identical queries,
// grouped by their normalized text.
type QueryPattern struct {
	Pattern           string    `json:"pattern"`
	Frequency         int64     `json:"frequency"`
	AverageTime       float64   `json:"average_time_ms"`
	Cacheable         bool      `json:"cacheable"`
	IndexSuggestions  []string  `json:"index_suggestions"`
	OptimizationScore float64   `json:"optimization_score"`
	FirstSeen         time.Time `json:"first_seen"`
	LastSeen          time.Time `json:"last_seen"`
}

// NewQueryPattern creates a new QueryPattern instance
func NewQueryPattern(pattern string) *QueryPattern {
	now := time.Now()
	return &QueryPattern{
		Pattern:          pattern,
		IndexSuggestions: make([]string, 0),
		FirstSeen:        now,
		LastSeen:         now,
	}
}

// Observe folds a new execution time into the pattern's running averages.
func (qp *QueryPattern) Observe(executionTime float64) {
	qp.Frequency++
	qp.AverageTime += (executionTime - qp.AverageTime) / float64(qp.Frequency)
	qp.LastSeen = time.Now()
}
