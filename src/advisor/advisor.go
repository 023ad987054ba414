package advisor

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aopopov01/TailTracker-sub005/src/db"
	"github.com/aopopov01/TailTracker-sub005/src/models"
)

// Options configures an Advisor.
type Options struct {
	CacheEnabled        bool
	CacheTTL            time.Duration
	MaxResultSetSize    int64
	BatchSize           int
	BatchDebounce       time.Duration
	MaintenanceInterval time.Duration
	MaxPatterns         int
	MaxMetrics          int
}

// DefaultOptions returns the default advisor configuration
func DefaultOptions() Options {
	return Options{
		CacheEnabled:        true,
		CacheTTL:            5 * time.Minute,
		MaxResultSetSize:    1 << 20,
		BatchSize:           10,
		BatchDebounce:       100 * time.Millisecond,
		MaintenanceInterval: 5 * time.Minute,
		MaxPatterns:         500,
		MaxMetrics:          2000,
	}
}

type cachedResult struct {
	result   *db.Result
	storedAt time.Time
	ttl      time.Duration
}

func (c *cachedResult) fresh(now time.Time) bool {
	return now.Sub(c.storedAt) < c.ttl
}

// Advisor wraps the database execution primitive with a result cache, the
// static rule analyzer, an index advisor and a debounced batch executor.
type Advisor struct {
	log      *logrus.Logger
	executor db.Executor
	opts     Options

	mu          sync.RWMutex
	cache       map[string]*cachedResult
	metrics     []*models.QueryMetrics
	patterns    map[string]*models.QueryPattern
	indexes     []models.DatabaseIndex
	slowQueries int64

	batchMu    sync.Mutex
	batchQueue []*batchItem
	batchTimer *time.Timer

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewAdvisor creates a new Advisor instance
func NewAdvisor(opts Options, executor db.Executor, log *logrus.Logger) *Advisor {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.BatchDebounce <= 0 {
		opts.BatchDebounce = 100 * time.Millisecond
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.MaxResultSetSize <= 0 {
		opts.MaxResultSetSize = 1 << 20
	}
	if opts.MaintenanceInterval <= 0 {
		opts.MaintenanceInterval = 5 * time.Minute
	}
	if opts.MaxPatterns <= 0 {
		opts.MaxPatterns = 500
	}
	if opts.MaxMetrics <= 0 {
		opts.MaxMetrics = 2000
	}
	return &Advisor{
		log:      log,
		executor: executor,
		opts:     opts,
		cache:    make(map[string]*cachedResult),
		patterns: make(map[string]*models.QueryPattern),
	}
}

// ExecOptions controls one execution through the advisor.
type ExecOptions struct {
	SkipCache   bool
	SkipRewrite bool
	TTL         time.Duration
}

var (
	writeStatementRe = regexp.MustCompile(`(?i)^\s*(INSERT|UPDATE|DELETE|REPLACE|CREATE|DROP|ALTER|TRUNCATE)\b`)
	volatileTimeRe   = regexp.MustCompile(`(?i)\b(NOW\s*\(|CURRENT_TIMESTAMP|CURRENT_DATE|CURRENT_TIME|RANDOM\s*\(|DATETIME\s*\(\s*'now')`)
)

// isCacheable reports whether results for the statement may be cached at
// all. Writes and statements with volatile time functions never are.
func isCacheable(sql string) bool {
	return !writeStatementRe.MatchString(sql) && !volatileTimeRe.MatchString(sql)
}

// ExecuteQuery runs one statement through the cache, the rewriter and the
// execution primitive. Execution errors are recorded in the metrics and
// then returned to the caller; this is the one surface that propagates
// errors upward.
func (a *Advisor) ExecuteQuery(ctx context.Context, sql string, params []interface{}, opts ExecOptions) (*db.Result, bool, error) {
	pattern := Normalize(sql)
	queryID := QueryID(sql, params)
	cacheable := isCacheable(sql)

	if a.opts.CacheEnabled && !opts.SkipCache && cacheable {
		if result := a.cachedLookup(queryID); result != nil {
			a.record(queryID, sql, pattern, 0, result, true, nil)
			return result, true, nil
		}
	}

	executed := sql
	if !opts.SkipRewrite {
		if rewritten, ok := RewriteQuery(sql); ok {
			a.log.Debugf("Rewrote query %s", queryID)
			executed = rewritten
		}
	}

	start := time.Now()
	result, err := a.executor.Execute(ctx, executed, params)
	elapsed := float64(time.Since(start)) / float64(time.Millisecond)

	a.record(queryID, sql, pattern, elapsed, result, false, err)
	if err != nil {
		return nil, false, err
	}

	if a.opts.CacheEnabled && cacheable && result.Size() <= a.opts.MaxResultSetSize {
		ttl := opts.TTL
		if ttl <= 0 {
			ttl = a.opts.CacheTTL
		}
		a.mu.Lock()
		a.cache[queryID] = &cachedResult{result: result, storedAt: time.Now(), ttl: ttl}
		a.mu.Unlock()
	}

	return result, false, nil
}

// cachedLookup returns a fresh cached result or nil, evicting stale
// entries on the way.
func (a *Advisor) cachedLookup(queryID string) *db.Result {
	now := time.Now()

	a.mu.Lock()
	defer a.mu.Unlock()

	cached, ok := a.cache[queryID]
	if !ok {
		return nil
	}
	if !cached.fresh(now) {
		delete(a.cache, queryID)
		return nil
	}
	return cached.result
}

// record stores the per-execution metric and folds the execution into the
// normalized pattern aggregate.
func (a *Advisor) record(queryID, sql, pattern string, elapsed float64, result *db.Result, cacheHit bool, err error) {
	metric := models.NewQueryMetrics(queryID, sql, pattern)
	metric.ExecutionTime = elapsed
	metric.CacheHit = cacheHit
	if result != nil {
		metric.RowsReturned = int64(len(result.Rows))
		metric.RowsAffected = result.RowsAffected
	}
	if err != nil {
		metric.Error = err.Error()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.metrics = append(a.metrics, metric)
	if len(a.metrics) > a.opts.MaxMetrics {
		a.metrics = a.metrics[len(a.metrics)-a.opts.MaxMetrics:]
	}

	if elapsed > slowQueryThresholdMs {
		a.slowQueries++
	}

	agg, ok := a.patterns[pattern]
	if !ok {
		if len(a.patterns) >= a.opts.MaxPatterns {
			a.evictColdestPatternLocked()
		}
		agg = models.NewQueryPattern(pattern)
		agg.Cacheable = isCacheable(sql)
		analysis := AnalyzeQuery(sql)
		agg.OptimizationScore = analysis.Score
		agg.IndexSuggestions = suggestionStatements(indexCandidates(sql))
		a.patterns[pattern] = agg
	}
	if !cacheHit {
		agg.Observe(elapsed)
	} else {
		agg.LastSeen = metric.Timestamp
	}
}

// slowQueryThresholdMs marks an execution as slow for reporting purposes.
const slowQueryThresholdMs = 100.0

// evictColdestPatternLocked drops the least recently seen pattern.
func (a *Advisor) evictColdestPatternLocked() {
	var coldestKey string
	var coldest *models.QueryPattern
	for key, pattern := range a.patterns {
		if coldest == nil || pattern.LastSeen.Before(coldest.LastSeen) {
			coldestKey = key
			coldest = pattern
		}
	}
	if coldest != nil {
		delete(a.patterns, coldestKey)
	}
}

// SlowPatterns returns patterns whose running average exceeds the given
// threshold and that executed at least minFrequency times, slowest first.
func (a *Advisor) SlowPatterns(thresholdMs float64, minFrequency int64) []*models.QueryPattern {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]*models.QueryPattern, 0)
	for _, pattern := range a.patterns {
		if pattern.AverageTime > thresholdMs && pattern.Frequency >= minFrequency {
			copied := *pattern
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AverageTime > out[j].AverageTime })
	return out
}

// SlowQueryCount returns the number of slow executions observed so far.
func (a *Advisor) SlowQueryCount() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.slowQueries
}

// PatternCount returns the number of tracked query patterns.
func (a *Advisor) PatternCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.patterns)
}

// AverageScore returns the mean optimization score across tracked patterns,
// or a perfect 10 when nothing has been observed yet.
func (a *Advisor) AverageScore() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if len(a.patterns) == 0 {
		return 10
	}
	var sum float64
	for _, p := range a.patterns {
		sum += p.OptimizationScore
	}
	return sum / float64(len(a.patterns))
}

// Pattern returns a copy of the aggregate for the given statement text.
func (a *Advisor) Pattern(sql string) *models.QueryPattern {
	key := Normalize(sql)

	a.mu.RLock()
	defer a.mu.RUnlock()

	pattern, ok := a.patterns[key]
	if !ok {
		return nil
	}
	copied := *pattern
	copied.IndexSuggestions = append([]string(nil), pattern.IndexSuggestions...)
	return &copied
}

// Start launches the periodic maintenance loop. Calling Start on a
// running advisor is a no-op.
func (a *Advisor) Start(ctx context.Context) {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	if a.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})

	go func() {
		defer close(a.done)
		ticker := time.NewTicker(a.opts.MaintenanceInterval)
		defer ticker.Stop()

		a.log.Infof("Query advisor started (maintenance every %s)", a.opts.MaintenanceInterval)
		for {
			select {
			case <-loopCtx.Done():
				a.log.Info("Query advisor stopped")
				return
			case <-ticker.C:
				a.Maintain()
			}
		}
	}()
}

// Stop cancels the maintenance loop and waits for it to exit.
func (a *Advisor) Stop() {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	if a.cancel == nil {
		return
	}
	a.cancel()
	<-a.done
	a.cancel = nil
	a.done = nil
}

const (
	metricRetention  = 24 * time.Hour
	patternRetention = 24 * time.Hour
	patternMinUsage  = 5
	slowSurfaceMs    = 50.0
	poorScoreCeiling = 5.0
)

// Maintain purges stale metrics and cold patterns, surfaces problem
// patterns in the log and regenerates the aggregated index suggestions.
func (a *Advisor) Maintain() {
	now := time.Now()

	a.mu.Lock()
	cutoff := now.Add(-metricRetention)
	kept := a.metrics[:0]
	for _, metric := range a.metrics {
		if metric.Timestamp.After(cutoff) {
			kept = append(kept, metric)
		}
	}
	a.metrics = kept

	for key, pattern := range a.patterns {
		if now.Sub(pattern.LastSeen) > patternRetention && pattern.Frequency < patternMinUsage {
			delete(a.patterns, key)
		}
	}

	for id, cached := range a.cache {
		if !cached.fresh(now) {
			delete(a.cache, id)
		}
	}

	slow := 0
	poor := 0
	for _, pattern := range a.patterns {
		if pattern.AverageTime > slowSurfaceMs && pattern.Frequency >= patternMinUsage {
			slow++
		}
		if pattern.OptimizationScore < poorScoreCeiling {
			poor++
		}
	}
	a.mu.Unlock()

	if slow > 0 || poor > 0 {
		a.log.Infof("Advisor maintenance: %d slow patterns, %d poorly scored", slow, poor)
	}

	a.refreshIndexSuggestions()
}

// ResultCacheLen returns the number of live cached results.
func (a *Advisor) ResultCacheLen() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.cache)
}

// InvalidateCache drops every cached result.
func (a *Advisor) InvalidateCache() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cache = make(map[string]*cachedResult)
}

// QueryMetricsSnapshot returns a copy of the retained execution metrics.
func (a *Advisor) QueryMetricsSnapshot() []*models.QueryMetrics {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]*models.QueryMetrics, len(a.metrics))
	for i, metric := range a.metrics {
		copied := *metric
		out[i] = &copied
	}
	return out
}

// AnalysisScoreFor is a convenience wrapper exposing the pattern score for
// an arbitrary statement without executing it.
func AnalysisScoreFor(sql string) float64 {
	return AnalyzeQuery(sql).Score
}

// IsQueryShaped reports whether a cache key looks like a SQL statement,
// used by the orchestrator to route keys to the advisor tier.
func IsQueryShaped(key string) bool {
	trimmed := strings.ToUpper(strings.TrimSpace(key))
	return strings.HasPrefix(trimmed, "SELECT") || strings.HasPrefix(trimmed, "WITH")
}
