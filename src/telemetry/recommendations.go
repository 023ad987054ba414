package telemetry

import (
	"sort"

	"github.com/aopopov01/TailTracker-sub005/src/models"
)

const (
	evictionRateThreshold     = 0.1
	compressionRatioThreshold = 0.8
	compressionDiskThreshold  = 100 << 20 // 100MB
	prefetchAccuracyThreshold = 0.6
	hitMissTimeRatioThreshold = 0.8
)

// GenerateRecommendations derives tuning recommendations from the current
// metrics against fixed thresholds. It is a pure function of its input and
// always returns recommendations sorted by impact score descending.
func GenerateRecommendations(m *models.CacheMetrics) []models.OptimizationRecommendation {
	recs := make([]models.OptimizationRecommendation, 0)

	if m.EvictionRate > evictionRateThreshold {
		recs = append(recs, models.OptimizationRecommendation{
			Type:                models.RecommendCacheSize,
			Priority:            models.AlertSeverityHigh,
			Description:         "Eviction rate is high; entries are being dropped before reuse",
			ExpectedImprovement: "Fewer evictions and a higher hit ratio",
			Implementation:      "Increase the memory tier capacity or raise entry priorities for hot keys",
			ImpactScore:         8,
		})
	}

	if m.CompressionRatio > compressionRatioThreshold && m.DiskUsage > compressionDiskThreshold {
		recs = append(recs, models.OptimizationRecommendation{
			Type:                models.RecommendCompression,
			Priority:            models.AlertSeverityMedium,
			Description:         "Disk usage is large and compression is barely reducing it",
			ExpectedImprovement: "Lower disk footprint for persisted entries",
			Implementation:      "Enable stronger compression for large disk-persisted values",
			ImpactScore:         6,
		})
	}

	if m.PrefetchAccuracy < prefetchAccuracyThreshold {
		recs = append(recs, models.OptimizationRecommendation{
			Type:                models.RecommendPrefetchStrategy,
			Priority:            models.AlertSeverityHigh,
			Description:         "Prefetched entries are rarely used before expiring",
			ExpectedImprovement: "Less wasted bandwidth and memory from speculative loads",
			Implementation:      "Raise the prediction confidence threshold or reduce prefetch counts",
			ImpactScore:         7,
		})
	}

	if m.AverageMissTime > 0 && m.AverageHitTime/m.AverageMissTime > hitMissTimeRatioThreshold {
		recs = append(recs, models.OptimizationRecommendation{
			Type:                models.RecommendTTLTuning,
			Priority:            models.AlertSeverityMedium,
			Description:         "Cache hits are nearly as slow as misses",
			ExpectedImprovement: "Hits should be an order of magnitude faster than misses",
			Implementation:      "Shorten TTLs so stale entries are refreshed, and avoid compressing hot entries",
			ImpactScore:         5,
		})
	}

	sort.Slice(recs, func(i, j int) bool {
		return recs[i].ImpactScore > recs[j].ImpactScore
	})
	return recs
}
