package tiers

import (
	"context"
	"time"
)

// SetOptions controls how an entry is written into a cache tier.
type SetOptions struct {
	TTL      time.Duration
	Priority int
	Compress bool
	Persist  bool
}

// TierStatistics is the snapshot a tier reports to the monitor.
type TierStatistics struct {
	HitRate       float64 `json:"hit_rate"`
	MemoryUsage   int64   `json:"memory_usage_bytes"`
	DiskUsage     int64   `json:"disk_usage_bytes"`
	EvictionCount int64   `json:"eviction_count"`
	UsagePercent  float64 `json:"usage_percent"`
}

// CacheTier is one storage layer in the orchestrator's lookup chain.
type CacheTier interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, data interface{}, opts SetOptions) bool
	Remove(ctx context.Context, key string) bool
	Statistics() TierStatistics
}
