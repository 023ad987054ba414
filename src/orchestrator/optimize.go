package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/aopopov01/TailTracker-sub005/src/models"
)

// fragmentationCeiling is the pool fragmentation above which a compaction
// pass is worth the pause.
const fragmentationCeiling = 0.3

// Start launches the health loop. The loop samples consolidated metrics
// every HealthInterval, scores drift against the baseline and runs an
// optimization cycle when the score crosses the threshold. The baseline is
// refreshed every BaselineRefreshEvery ticks so slow seasonal shifts do not
// read as degradation.
func (o *Orchestrator) Start(ctx context.Context) {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	if o.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.done = make(chan struct{})

	if o.monitor != nil {
		o.mu.Lock()
		o.baseline = o.monitor.CurrentMetrics()
		o.mu.Unlock()
	}

	go func() {
		defer close(o.done)
		ticker := time.NewTicker(o.opts.HealthInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				o.healthTick(runCtx)
			}
		}
	}()

	o.log.Infof("Orchestrator health loop started with interval %s", o.opts.HealthInterval)
}

// Stop halts the health loop and waits for it to drain.
func (o *Orchestrator) Stop() {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	if o.cancel == nil {
		return
	}
	o.cancel()
	<-o.done
	o.cancel = nil
	o.done = nil
}

// Close stops the health loop and the owned component loops.
func (o *Orchestrator) Close() {
	o.Stop()
	if o.predictor != nil {
		o.predictor.Stop()
	}
	if o.advisor != nil {
		o.advisor.Stop()
	}
	if o.monitor != nil {
		o.monitor.Stop()
	}
}

func (o *Orchestrator) healthTick(ctx context.Context) {
	if o.monitor == nil {
		return
	}
	current := o.monitor.CurrentMetrics()

	o.mu.Lock()
	o.healthTicks++
	baseline := o.baseline
	refresh := o.healthTicks%o.opts.BaselineRefreshEvery == 0
	if refresh {
		o.baseline = current
	}
	o.mu.Unlock()

	if baseline == nil {
		return
	}

	score := degradationScore(baseline, current)
	if score > degradationThreshold {
		o.log.Warnf("Performance degradation %.3f exceeds %.2f, optimizing", score, degradationThreshold)
		o.OptimizePerformance(ctx)
	}
}

// degradationScore averages three drift signals against the baseline: hit
// ratio drop, response time increase (normalized by 10s) and memory growth
// relative to the baseline footprint. Improvements contribute zero.
func degradationScore(baseline, current *models.CacheMetrics) float64 {
	hitDrop := baseline.HitRatio - current.HitRatio
	if hitDrop < 0 {
		hitDrop = 0
	}
	timeRise := (current.ResponseTime - baseline.ResponseTime) / 10000
	if timeRise < 0 {
		timeRise = 0
	}
	var memGrowth float64
	if baseline.MemoryUsage > 0 && current.MemoryUsage > baseline.MemoryUsage {
		memGrowth = float64(current.MemoryUsage-baseline.MemoryUsage) / float64(baseline.MemoryUsage)
	}
	return (hitDrop + timeRise + memGrowth) / 3
}

// OptimizationOutcome reports what an optimization cycle did and the metric
// snapshots around it.
type OptimizationOutcome struct {
	Before          *models.CacheMetrics                `json:"before"`
	After           *models.CacheMetrics                `json:"after"`
	Actions         []string                            `json:"actions"`
	Recommendations []models.OptimizationRecommendation `json:"recommendations"`
	Duration        time.Duration                       `json:"duration_ns"`
}

// OptimizePerformance runs one optimization cycle: compacts fragmented
// pools, widens the memory tier under eviction pressure, drops the image
// quality floor when compression lags, compacts the memory tier, and
// finishes with a pool GC. It reports before/after metrics and the actions
// taken.
func (o *Orchestrator) OptimizePerformance(ctx context.Context) *OptimizationOutcome {
	start := time.Now()
	outcome := &OptimizationOutcome{}
	if o.monitor != nil {
		outcome.Before = o.monitor.CurrentMetrics()
	}

	for _, pool := range o.pools.Pools() {
		if pool.Fragmentation <= fragmentationCeiling {
			continue
		}
		reclaimed := o.pools.Compact(pool.Name)
		outcome.Actions = append(outcome.Actions,
			fmt.Sprintf("compacted pool %s, reclaimed %d bytes", pool.Name, reclaimed))
	}

	if outcome.Before != nil && outcome.Before.EvictionRate > 0.1 {
		capacity := o.memory.Capacity()
		widened := capacity + capacity/4
		o.memory.Resize(widened)
		outcome.Actions = append(outcome.Actions,
			fmt.Sprintf("widened memory tier from %d to %d entries", capacity, widened))
	}

	if o.images.CompressionRatio() > 0.8 {
		quality := o.images.Quality()
		o.images.SetQuality(quality - 10)
		outcome.Actions = append(outcome.Actions,
			fmt.Sprintf("lowered image quality from %d to %d", quality, o.images.Quality()))
	}

	if o.advisor != nil {
		if slow := o.advisor.SlowQueryCount(); slow > 0 {
			outcome.Actions = append(outcome.Actions,
				fmt.Sprintf("database advisor reports %d slow queries", slow))
		}
	}

	if reclaimed := o.memory.Compact(); reclaimed > 0 {
		outcome.Actions = append(outcome.Actions,
			fmt.Sprintf("compacted memory tier, dropped %d expired entries", reclaimed))
	}
	o.pools.GC()

	if o.monitor != nil {
		outcome.After = o.monitor.CurrentMetrics()
		outcome.Recommendations = o.monitor.Recommendations()
	}
	outcome.Duration = time.Since(start)

	o.log.Infof("Optimization cycle finished in %s with %d actions", outcome.Duration, len(outcome.Actions))
	return outcome
}
