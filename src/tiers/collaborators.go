package tiers

import (
	"context"
	"fmt"
	"sync"
)

// AssetFetcher retrieves binary assets from the CDN layer. Internals of the
// fetcher are out of scope; the orchestrator only probes this surface.
type AssetFetcher interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
	Register(key string, sizeHint int64)
}

// ImagePipeline exposes the image transcoder's tuning surface.
type ImagePipeline interface {
	Analyze(key string, data interface{})
	Quality() int
	SetQuality(quality int)
	CompressionRatio() float64
}

// PoolStats describes one managed memory pool.
type PoolStats struct {
	Name          string  `json:"name"`
	UsedBytes     int64   `json:"used_bytes"`
	CapacityBytes int64   `json:"capacity_bytes"`
	Fragmentation float64 `json:"fragmentation"`
}

// PoolManager exposes the memory-pool manager's compaction surface.
type PoolManager interface {
	Pools() []PoolStats
	Compact(name string) int64
	GC()
}

// StaticAssetFetcher is an in-memory AssetFetcher used as the default
// collaborator and in tests.
type StaticAssetFetcher struct {
	mu     sync.RWMutex
	assets map[string][]byte
}

// NewStaticAssetFetcher creates a new StaticAssetFetcher instance
func NewStaticAssetFetcher() *StaticAssetFetcher {
	return &StaticAssetFetcher{
		assets: make(map[string][]byte),
	}
}

// Put seeds an asset
func (f *StaticAssetFetcher) Put(key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assets[key] = data
}

// Fetch returns a seeded asset or an error when unknown
func (f *StaticAssetFetcher) Fetch(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	data, ok := f.assets[key]
	if !ok {
		return nil, fmt.Errorf("asset %s not found", key)
	}
	return data, nil
}

// Register records an asset key for later fetching
func (f *StaticAssetFetcher) Register(key string, sizeHint int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.assets[key]; !ok {
		f.assets[key] = nil
	}
}

// NoopImagePipeline is the default ImagePipeline collaborator.
type NoopImagePipeline struct {
	mu      sync.RWMutex
	quality int
	ratio   float64
}

// NewNoopImagePipeline creates a new NoopImagePipeline instance
func NewNoopImagePipeline() *NoopImagePipeline {
	return &NoopImagePipeline{quality: 80, ratio: 0.6}
}

// Analyze is a no-op
func (p *NoopImagePipeline) Analyze(key string, data interface{}) {}

// Quality returns the current compression quality
func (p *NoopImagePipeline) Quality() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.quality
}

// SetQuality adjusts the compression quality, clamped to [10,100]
func (p *NoopImagePipeline) SetQuality(quality int) {
	if quality < 10 {
		quality = 10
	}
	if quality > 100 {
		quality = 100
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quality = quality
}

// CompressionRatio reports the observed compression ratio
func (p *NoopImagePipeline) CompressionRatio() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ratio
}

// SetCompressionRatio overrides the reported ratio, used in tests
func (p *NoopImagePipeline) SetCompressionRatio(ratio float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ratio = ratio
}

// SimplePoolManager is an in-memory PoolManager with a fixed pool set.
type SimplePoolManager struct {
	mu    sync.RWMutex
	pools map[string]*PoolStats
}

// NewSimplePoolManager creates a new SimplePoolManager instance
func NewSimplePoolManager() *SimplePoolManager {
	return &SimplePoolManager{
		pools: make(map[string]*PoolStats),
	}
}

// Track registers or updates a pool's statistics
func (m *SimplePoolManager) Track(stats PoolStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := stats
	m.pools[stats.Name] = &copied
}

// Pools returns a snapshot of all tracked pools
func (m *SimplePoolManager) Pools() []PoolStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]PoolStats, 0, len(m.pools))
	for _, p := range m.pools {
		out = append(out, *p)
	}
	return out
}

// Compact defragments a pool and returns the bytes reclaimed
func (m *SimplePoolManager) Compact(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	pool, ok := m.pools[name]
	if !ok {
		return 0
	}
	reclaimed := int64(float64(pool.UsedBytes) * pool.Fragmentation)
	pool.UsedBytes -= reclaimed
	pool.Fragmentation = 0
	return reclaimed
}

// GC is a no-op hook for a coordinated collection pass
func (m *SimplePoolManager) GC() {}
