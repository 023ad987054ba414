package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aopopov01/TailTracker-sub005/src/advisor"
	"github.com/aopopov01/TailTracker-sub005/src/models"
	"github.com/aopopov01/TailTracker-sub005/src/predictor"
	"github.com/aopopov01/TailTracker-sub005/src/telemetry"
	"github.com/aopopov01/TailTracker-sub005/src/tiers"
)

const (
	defaultHealthInterval       = time.Minute
	defaultBaselineRefreshEvery = 10
	defaultTTL                  = 5 * time.Minute

	// degradationThreshold is the composite drift score above which the
	// health loop kicks off an optimization cycle.
	degradationThreshold = 0.2
)

// Options configures an Orchestrator.
type Options struct {
	HealthInterval       time.Duration
	BaselineRefreshEvery int
	DefaultTTL           time.Duration
}

// Components are the collaborators the orchestrator coordinates. Memory is
// required; nil optional collaborators are replaced with in-process defaults.
type Components struct {
	Memory    *tiers.MemoryTier
	Assets    tiers.AssetFetcher
	Images    tiers.ImagePipeline
	Pools     tiers.PoolManager
	Advisor   *advisor.Advisor
	Predictor *predictor.Predictor
	Monitor   *telemetry.Monitor
}

// Orchestrator is the single entry point the application talks to. It walks
// the tier chain on reads, feeds the predictor on writes and navigation, and
// keeps a health loop that reacts to performance drift.
type Orchestrator struct {
	opts Options
	log  *logrus.Logger

	memory    *tiers.MemoryTier
	assets    tiers.AssetFetcher
	images    tiers.ImagePipeline
	pools     tiers.PoolManager
	advisor   *advisor.Advisor
	predictor *predictor.Predictor
	monitor   *telemetry.Monitor

	mu          sync.RWMutex
	baseline    *models.CacheMetrics
	healthTicks int

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a new Orchestrator instance and wires the predictor's loader
// and the monitor's tier providers.
func New(opts Options, c Components, log *logrus.Logger) *Orchestrator {
	if opts.HealthInterval <= 0 {
		opts.HealthInterval = defaultHealthInterval
	}
	if opts.BaselineRefreshEvery <= 0 {
		opts.BaselineRefreshEvery = defaultBaselineRefreshEvery
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = defaultTTL
	}
	if c.Memory == nil {
		c.Memory = tiers.NewMemoryTier(0)
	}
	if c.Assets == nil {
		c.Assets = tiers.NewStaticAssetFetcher()
	}
	if c.Images == nil {
		c.Images = tiers.NewNoopImagePipeline()
	}
	if c.Pools == nil {
		c.Pools = tiers.NewSimplePoolManager()
	}
	if log == nil {
		log = logrus.New()
	}

	o := &Orchestrator{
		opts:      opts,
		log:       log,
		memory:    c.Memory,
		assets:    c.Assets,
		images:    c.Images,
		pools:     c.Pools,
		advisor:   c.Advisor,
		predictor: c.Predictor,
		monitor:   c.Monitor,
	}

	if o.predictor != nil {
		o.predictor.SetLoader(o.loadPredicted)
		if o.monitor != nil {
			o.monitor.SetPrefetchAccuracySource(o.predictor.Accuracy)
		}
	}
	if o.monitor != nil {
		o.monitor.RegisterTier("memory", o.memory)
	}
	return o
}

// GetOptions tunes a single Get call.
type GetOptions struct {
	TTL      time.Duration
	Priority int

	// Fallback produces the value when every tier misses. Its result is
	// written through the cache.
	Fallback func(ctx context.Context) (interface{}, error)

	// Validate rejects stale entries. A rejection counts as a miss and
	// evicts the entry.
	Validate func(value interface{}) bool
}

// GetResult describes where a Get was served from.
type GetResult struct {
	FromCache bool
	Tier      models.TierSource
	Duration  time.Duration
}

// Get resolves a key through the tier chain: memory, the predictive prefetch
// slot, the asset fetcher for asset-shaped keys, the query advisor for
// SQL-shaped keys, then the caller's fallback. Internal tier failures degrade
// to the next tier; a nil value with FromCache false means a full miss.
func (o *Orchestrator) Get(ctx context.Context, key string, opts GetOptions) (interface{}, GetResult) {
	start := time.Now()

	if value, ok := o.memory.Get(ctx, key); ok {
		if opts.Validate == nil || opts.Validate(value) {
			return value, o.finish(ctx, models.EventHit, key, start, models.SourceMemory, true)
		}
		o.memory.Remove(ctx, key)
		o.record(models.NewCacheEvent(models.EventEviction, key, 0, models.SourceMemory))
	}

	if ctx.Err() != nil {
		return nil, GetResult{Duration: time.Since(start)}
	}

	if value, ok := o.memory.Get(ctx, prefetchKey(key)); ok {
		return value, o.finish(ctx, models.EventHit, key, start, models.SourceMemory, true)
	}

	if isAssetKey(key) {
		if data, err := o.assets.Fetch(ctx, key); err == nil {
			o.memory.Set(ctx, key, data, tiers.SetOptions{TTL: o.ttl(opts.TTL), Priority: opts.Priority})
			return data, o.finish(ctx, models.EventHit, key, start, models.SourceCDN, true)
		} else if ctx.Err() != nil {
			return nil, GetResult{Duration: time.Since(start)}
		}
	}

	if o.advisor != nil && advisor.IsQueryShaped(key) {
		result, cached, err := o.advisor.ExecuteQuery(ctx, key, nil, advisor.ExecOptions{TTL: opts.TTL})
		if err == nil {
			source := models.SourceDisk
			if !cached {
				source = models.SourceNetwork
			}
			return result, o.finish(ctx, models.EventHit, key, start, source, cached)
		}
		if ctx.Err() != nil {
			return nil, GetResult{Duration: time.Since(start)}
		}
		o.log.Warnf("Query tier failed for key %s: %v", key, err)
		o.record(models.NewCacheEvent(models.EventError, key, time.Since(start), models.SourceDisk))
	}

	if opts.Fallback != nil {
		value, err := opts.Fallback(ctx)
		if err != nil {
			o.log.Warnf("Fallback failed for key %s: %v", key, err)
			o.record(models.NewCacheEvent(models.EventError, key, time.Since(start), models.SourceNetwork))
			return nil, GetResult{Tier: models.SourceNetwork, Duration: time.Since(start)}
		}
		if ctx.Err() == nil {
			o.Set(ctx, key, value, SetOptions{TTL: opts.TTL, Priority: opts.Priority, SkipPrediction: true})
		}
		return value, o.finish(ctx, models.EventMiss, key, start, models.SourceNetwork, false)
	}

	return nil, o.finish(ctx, models.EventMiss, key, start, models.SourceMemory, false)
}

// SetOptions tunes a single Set call.
type SetOptions struct {
	TTL            time.Duration
	Priority       int
	SkipPrediction bool
}

// Set writes a value into the memory tier, hands asset and image shaped
// payloads to their pipelines, and feeds the predictor unless told not to.
func (o *Orchestrator) Set(ctx context.Context, key string, value interface{}, opts SetOptions) {
	start := time.Now()
	o.memory.Set(ctx, key, value, tiers.SetOptions{TTL: o.ttl(opts.TTL), Priority: opts.Priority})

	if isAssetKey(key) {
		if data, ok := value.([]byte); ok {
			o.assets.Register(key, int64(len(data)))
		} else {
			o.assets.Register(key, 0)
		}
	}
	if isImageKey(key) {
		o.images.Analyze(key, value)
	}

	if !opts.SkipPrediction && o.predictor != nil {
		if action, ok := predictor.ActionForDataType(keyDataType(key)); ok {
			o.predictor.RecordUserAction(action, float64(time.Since(start).Milliseconds()))
		}
	}
}

// Remove drops a key from the memory tier.
func (o *Orchestrator) Remove(ctx context.Context, key string) bool {
	return o.memory.Remove(ctx, key)
}

// TrackNavigation records a route change so the predictor can learn the
// navigation pattern. The pattern is keyed on the origin route: "from here,
// the user tends to open that".
func (o *Orchestrator) TrackNavigation(from, to string, loadTime time.Duration) {
	if o.predictor == nil {
		return
	}
	o.predictor.SetContext(models.LoadingContext{Route: from})
	action := routeAction(to)
	o.predictor.RecordUserAction(action, float64(loadTime.Milliseconds()))
}

// PrefetchForRoute generates predictions for the route and executes the
// resulting loading plan.
func (o *Orchestrator) PrefetchForRoute(ctx context.Context, route string) []models.PredictionResult {
	if o.predictor == nil {
		return nil
	}
	predictions := o.predictor.GeneratePredictions(route)
	o.predictor.ExecutePredictiveLoading(ctx, predictions)
	return predictions
}

// loadPredicted is the predictor's LoadFunc: it resolves a predicted data
// type through the asset fetcher and parks the payload in the prefetch slot.
func (o *Orchestrator) loadPredicted(ctx context.Context, dataType string) error {
	data, err := o.assets.Fetch(ctx, dataType)
	if err != nil {
		return err
	}
	key := "prefetch:" + dataType
	o.memory.Set(ctx, key, data, tiers.SetOptions{TTL: predictor.CacheDurationFor(dataType)})
	ev := models.NewCacheEvent(models.EventPrefetch, key, 0, models.SourceCDN)
	ev.Size = int64(len(data))
	o.record(ev)
	return nil
}

func (o *Orchestrator) finish(ctx context.Context, eventType models.EventType, key string, start time.Time, source models.TierSource, fromCache bool) GetResult {
	elapsed := time.Since(start)
	if ctx.Err() == nil {
		o.record(models.NewCacheEvent(eventType, key, elapsed, source))
	}
	return GetResult{FromCache: fromCache, Tier: source, Duration: elapsed}
}

func (o *Orchestrator) record(ev *models.CacheEvent) {
	if o.monitor != nil {
		o.monitor.RecordEvent(ev)
	}
}

func (o *Orchestrator) ttl(ttl time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return o.opts.DefaultTTL
}

// prefetchKey maps a cache key to the slot a predictive load would have
// parked it under, keyed by the leading data-type segment.
func prefetchKey(key string) string {
	return "prefetch:" + keyDataType(key)
}

// keyDataType extracts the leading segment of a key, e.g.
// "pet_profile:42" yields "pet_profile".
func keyDataType(key string) string {
	if i := strings.IndexAny(key, ":/"); i > 0 {
		return key[:i]
	}
	return key
}

var assetExtensions = []string{".png", ".jpg", ".jpeg", ".webp", ".svg", ".gif", ".mp4"}

func isAssetKey(key string) bool {
	if strings.HasPrefix(key, "asset:") || strings.HasPrefix(key, "https://") || strings.HasPrefix(key, "http://") {
		return true
	}
	lower := strings.ToLower(key)
	for _, ext := range assetExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func isImageKey(key string) bool {
	lower := strings.ToLower(key)
	for _, ext := range assetExtensions {
		if ext != ".mp4" && strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// routeActions maps app routes to the user action that best represents
// landing on them. Unknown routes fall back to a navigation action that the
// predictor tracks but never prefetches for.
var routeActions = map[string]string{
	"/pets":         "view_pet_list",
	"/pet":          "view_pet",
	"/health":       "open_health_records",
	"/vaccinations": "view_vaccinations",
	"/medications":  "view_medications",
	"/map":          "open_map",
	"/photos":       "view_photos",
	"/reminders":    "open_reminders",
	"/lost-pets":    "view_lost_pets",
	"/vets":         "open_vet_contacts",
}

func routeAction(route string) string {
	base := route
	if i := strings.Index(base, "?"); i >= 0 {
		base = base[:i]
	}
	for prefix, action := range routeActions {
		if base == prefix || strings.HasPrefix(base, prefix+"/") {
			return action
		}
	}
	return "navigate:" + base
}
