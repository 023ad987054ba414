package predictor

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aopopov01/TailTracker-sub005/src/models"
	"github.com/aopopov01/TailTracker-sub005/src/storage"
)

const (
	// successLoadLimit is the load time above which an action is counted
	// as a failed experience.
	successLoadLimit = 5000.0 // ms

	// patternWindow is how far back patterns are considered at all.
	patternWindow = 30 * 24 * time.Hour

	// minConfidence gates patterns out of prediction results.
	minConfidence = 0.3

	// minContextSimilarity gates patterns whose learned context is too far
	// from the current one.
	minContextSimilarity = 0.3

	// Confidence formula weights.
	weightFrequency  = 0.4
	weightRecency    = 0.25
	weightContext    = 0.2
	weightSuccess    = 0.15
	recencyHalfRange = 7.0 // days

	maxSequenceLen = 10
)

// Predictor learns per-context access patterns and schedules graded
// prefetch strategies for the resources it expects to be needed next.
type Predictor struct {
	log   *logrus.Logger
	store storage.Store

	mu          sync.RWMutex
	patterns    map[string]*models.PredictivePattern
	context     models.LoadingContext
	lastAction  string
	maxPatterns int

	backgrounded bool
	connected    bool

	totalPredictions      int64
	successfulPredictions int64

	loader LoadFunc

	preemptiveMu    sync.Mutex
	preemptiveQueue []models.PredictionResult

	runMu  sync.Mutex
	cancel func()
	done   chan struct{}

	tuningInterval time.Duration
}

// LoadFunc performs the actual load of a predicted resource.
type LoadFunc func(ctx context.Context, dataType string) error

// Options configures a Predictor.
type Options struct {
	MaxPatterns    int
	TuningInterval time.Duration
}

// NewPredictor creates a new Predictor instance
func NewPredictor(opts Options, store storage.Store, log *logrus.Logger) *Predictor {
	if opts.MaxPatterns <= 0 {
		opts.MaxPatterns = 500
	}
	if opts.TuningInterval <= 0 {
		opts.TuningInterval = 15 * time.Minute
	}
	return &Predictor{
		log:            log,
		store:          store,
		patterns:       make(map[string]*models.PredictivePattern),
		maxPatterns:    opts.MaxPatterns,
		tuningInterval: opts.TuningInterval,
		connected:      true,
	}
}

// SetLoader wires the function that performs predicted loads.
func (p *Predictor) SetLoader(loader LoadFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loader = loader
}

// SetContext updates the current loading context snapshot.
func (p *Predictor) SetContext(ctx models.LoadingContext) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.context = ctx.Snapshot(time.Now())
}

// SetAppState updates the app lifecycle flags that gate preemptive loading.
func (p *Predictor) SetAppState(backgrounded, connected bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.backgrounded = backgrounded
	p.connected = connected
}

// patternID derives the deterministic identity of a pattern from its
// context key fields.
func patternID(route string, timeOfDay, dayOfWeek int, action string) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s|%d|%d|%s", route, timeOfDay, dayOfWeek, action)))
	return hex.EncodeToString(sum[:])
}

// RecordUserAction folds one observed action into the pattern map. A new
// pattern starts at frequency 1; an existing one updates its running
// success rate and load time means. Confidence is recomputed either way.
func (p *Predictor) RecordUserAction(action string, loadTimeMs float64) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot := p.context.Snapshot(now)
	id := patternID(snapshot.Route, snapshot.TimeOfDay, snapshot.DayOfWeek, action)
	success := loadTimeMs > 0 && loadTimeMs < successLoadLimit

	pattern, ok := p.patterns[id]
	if !ok {
		pattern = &models.PredictivePattern{
			ID:              id,
			Action:          action,
			Sequence:        []string{},
			Frequency:       1,
			Context:         snapshot,
			AverageLoadTime: loadTimeMs,
			LastUsed:        now,
		}
		if success {
			pattern.SuccessRate = 1
		}
		if len(p.patterns) >= p.maxPatterns {
			p.evictWeakestLocked()
		}
		p.patterns[id] = pattern
	} else {
		pattern.Frequency++
		successSample := 0.0
		if success {
			successSample = 1
		}
		n := float64(pattern.Frequency)
		pattern.SuccessRate += (successSample - pattern.SuccessRate) / n
		pattern.AverageLoadTime += (loadTimeMs - pattern.AverageLoadTime) / n
		pattern.LastUsed = now
	}

	if p.lastAction != "" && p.lastAction != action {
		pattern.Sequence = append(pattern.Sequence, p.lastAction)
		if len(pattern.Sequence) > maxSequenceLen {
			pattern.Sequence = pattern.Sequence[len(pattern.Sequence)-maxSequenceLen:]
		}
	}
	p.lastAction = action

	pattern.Confidence = p.confidenceLocked(pattern, now)
}

// confidenceLocked computes the heuristic confidence score:
// 0.4*frequency + 0.25*recency + 0.2*context similarity + 0.15*success,
// clamped to [0,1].
func (p *Predictor) confidenceLocked(pattern *models.PredictivePattern, now time.Time) float64 {
	var maxFreq int64 = 1
	for _, other := range p.patterns {
		if other.Frequency > maxFreq {
			maxFreq = other.Frequency
		}
	}
	if pattern.Frequency > maxFreq {
		maxFreq = pattern.Frequency
	}

	frequencyScore := float64(pattern.Frequency) / float64(maxFreq)
	daysSince := now.Sub(pattern.LastUsed).Hours() / 24
	recencyScore := math.Exp(-daysSince / recencyHalfRange)
	similarity := contextSimilarity(p.context, pattern.Context)

	confidence := weightFrequency*frequencyScore +
		weightRecency*recencyScore +
		weightContext*similarity +
		weightSuccess*pattern.SuccessRate
	return clamp01(confidence)
}

// contextSimilarity averages per-field matches over the fields present in
// both contexts. Hours of day compare proportionally; the rest are exact.
func contextSimilarity(a, b models.LoadingContext) float64 {
	var total float64
	fields := 0

	deltaHours := math.Abs(float64(a.TimeOfDay - b.TimeOfDay))
	total += math.Max(0, 1-deltaHours/12)
	fields++

	if a.DayOfWeek == b.DayOfWeek {
		total++
	}
	fields++

	if a.NetworkType != "" && b.NetworkType != "" {
		if a.NetworkType == b.NetworkType {
			total++
		}
		fields++
	}

	if a.Route != "" && b.Route != "" {
		if a.Route == b.Route {
			total++
		}
		fields++
	}

	return total / float64(fields)
}

// GeneratePredictions returns the resources the predictor expects to be
// needed for the given route, with a prefetch strategy per resource. The
// result count is capped by network type and battery level.
func (p *Predictor) GeneratePredictions(route string) []models.PredictionResult {
	now := time.Now()

	p.mu.RLock()
	current := p.context.Snapshot(now)
	current.Route = route

	candidates := make([]models.PredictionResult, 0)
	for _, pattern := range p.patterns {
		if now.Sub(pattern.LastUsed) > patternWindow {
			continue
		}
		if contextSimilarity(current, pattern.Context) <= minContextSimilarity {
			continue
		}
		if pattern.Confidence < minConfidence {
			continue
		}

		dataType, ok := actionDataTypes[pattern.Action]
		if !ok {
			continue
		}

		probability := clamp01(pattern.Confidence)
		strategy, priority := selectStrategy(probability, current)
		candidates = append(candidates, models.PredictionResult{
			DataType:      dataType,
			Probability:   probability,
			Strategy:      strategy,
			Priority:      priority,
			EstimatedSize: estimatedSizes[dataType],
			CacheDuration: cacheDurations[dataType],
		})
	}
	limit := predictionLimit(current)
	p.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].Probability > candidates[j].Probability
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// selectStrategy maps a probability to a prefetch strategy, degraded one
// step toward lower urgency on cellular while not charging, and forced to
// on-demand when the battery is nearly drained.
func selectStrategy(probability float64, ctx models.LoadingContext) (models.PrefetchStrategy, models.PredictionPriority) {
	var strategy models.PrefetchStrategy
	var priority models.PredictionPriority

	switch {
	case probability > 0.8:
		strategy, priority = models.StrategyImmediate, models.PriorityHigh
	case probability > 0.6:
		strategy, priority = models.StrategyBackground, models.PriorityMedium
	case probability > 0.4:
		strategy, priority = models.StrategyOnDemand, models.PriorityLow
	default:
		strategy, priority = models.StrategyPreemptive, models.PriorityLow
	}

	if ctx.NetworkType == models.NetworkCellular && !ctx.IsCharging {
		strategy, priority = degrade(strategy)
	}
	if ctx.BatteryLevel > 0 && ctx.BatteryLevel < 0.2 {
		strategy, priority = models.StrategyOnDemand, models.PriorityLow
	}
	return strategy, priority
}

// degrade steps a strategy one level toward lower urgency.
func degrade(strategy models.PrefetchStrategy) (models.PrefetchStrategy, models.PredictionPriority) {
	switch strategy {
	case models.StrategyImmediate:
		return models.StrategyBackground, models.PriorityMedium
	case models.StrategyBackground:
		return models.StrategyOnDemand, models.PriorityLow
	default:
		return models.StrategyPreemptive, models.PriorityLow
	}
}

// predictionLimit caps result counts by network type, tightened further on
// a low battery.
func predictionLimit(ctx models.LoadingContext) int {
	limit := 5
	switch ctx.NetworkType {
	case models.NetworkWifi:
		limit = 10
	case models.NetworkCellular:
		limit = 3
	}
	if ctx.BatteryLevel > 0 && ctx.BatteryLevel < 0.3 && limit > 2 {
		limit = 2
	}
	return limit
}

// Accuracy reports the share of executed predictions that loaded
// successfully. With no executions yet it reports 1 so that an idle
// predictor never looks degraded.
func (p *Predictor) Accuracy() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.totalPredictions == 0 {
		return 1
	}
	return float64(p.successfulPredictions) / float64(p.totalPredictions)
}

// PatternCount returns the number of learned patterns.
func (p *Predictor) PatternCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.patterns)
}

// Pattern returns a copy of the pattern for the given context key fields,
// or nil when nothing has been learned for them.
func (p *Predictor) Pattern(route string, timeOfDay, dayOfWeek int, action string) *models.PredictivePattern {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pattern, ok := p.patterns[patternID(route, timeOfDay, dayOfWeek, action)]
	if !ok {
		return nil
	}
	copied := *pattern
	copied.Sequence = append([]string(nil), pattern.Sequence...)
	return &copied
}

// evictWeakestLocked removes the lowest-confidence pattern to keep the
// map inside its capacity bound.
func (p *Predictor) evictWeakestLocked() {
	var weakestID string
	var weakest *models.PredictivePattern
	for id, pattern := range p.patterns {
		if weakest == nil || pattern.Confidence < weakest.Confidence {
			weakestID = id
			weakest = pattern
		}
	}
	if weakest != nil {
		delete(p.patterns, weakestID)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
