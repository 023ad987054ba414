package advisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aopopov01/TailTracker-sub005/src/db"
	"github.com/aopopov01/TailTracker-sub005/src/models"
)

func newTestAdvisor(opts Options, executor db.Executor) *Advisor {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewAdvisor(opts, executor, log)
}

func petRows() *db.Result {
	return &db.Result{Rows: []map[string]interface{}{{"id": int64(1), "name": "Rex"}}}
}

func TestExecuteQueryCachesResults(t *testing.T) {
	ctx := context.Background()
	stub := db.NewStubExecutor()
	stub.Respond("FROM pets", petRows())
	a := newTestAdvisor(DefaultOptions(), stub)

	result, cached, err := a.ExecuteQuery(ctx, "SELECT name FROM pets WHERE id = $1", []interface{}{1}, ExecOptions{})
	require.NoError(t, err)
	assert.False(t, cached)
	require.Len(t, result.Rows, 1)

	result, cached, err = a.ExecuteQuery(ctx, "SELECT name FROM pets WHERE id = $1", []interface{}{1}, ExecOptions{})
	require.NoError(t, err)
	assert.True(t, cached)
	require.Len(t, result.Rows, 1)

	// The second call never reached the executor.
	assert.Len(t, stub.Calls(), 1)

	// Different parameters are a different cache identity.
	_, cached, err = a.ExecuteQuery(ctx, "SELECT name FROM pets WHERE id = $1", []interface{}{2}, ExecOptions{})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Len(t, stub.Calls(), 2)
}

func TestExecuteQuerySkipCache(t *testing.T) {
	ctx := context.Background()
	stub := db.NewStubExecutor()
	a := newTestAdvisor(DefaultOptions(), stub)

	_, _, err := a.ExecuteQuery(ctx, "SELECT name FROM pets", nil, ExecOptions{})
	require.NoError(t, err)
	_, cached, err := a.ExecuteQuery(ctx, "SELECT name FROM pets", nil, ExecOptions{SkipCache: true})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Len(t, stub.Calls(), 2)
}

func TestVolatileAndWriteStatementsNeverCache(t *testing.T) {
	ctx := context.Background()
	stub := db.NewStubExecutor()
	a := newTestAdvisor(DefaultOptions(), stub)

	for i := 0; i < 2; i++ {
		_, cached, err := a.ExecuteQuery(ctx, "SELECT id FROM visits WHERE at > NOW()", nil, ExecOptions{})
		require.NoError(t, err)
		assert.False(t, cached)
	}
	assert.Len(t, stub.Calls(), 2)

	for i := 0; i < 2; i++ {
		_, cached, err := a.ExecuteQuery(ctx, "INSERT INTO pets (name) VALUES ($1)", []interface{}{"Rex"}, ExecOptions{})
		require.NoError(t, err)
		assert.False(t, cached)
	}
	assert.Len(t, stub.Calls(), 4)
}

func TestCacheTTLExpiry(t *testing.T) {
	ctx := context.Background()
	stub := db.NewStubExecutor()
	opts := DefaultOptions()
	opts.CacheTTL = 10 * time.Millisecond
	a := newTestAdvisor(opts, stub)

	_, _, err := a.ExecuteQuery(ctx, "SELECT name FROM pets", nil, ExecOptions{})
	require.NoError(t, err)

	time.Sleep(25 * time.Millisecond)

	_, cached, err := a.ExecuteQuery(ctx, "SELECT name FROM pets", nil, ExecOptions{})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Len(t, stub.Calls(), 2)
}

func TestExecuteQueryErrorPropagates(t *testing.T) {
	ctx := context.Background()
	stub := db.NewStubExecutor()
	stub.Fail("FROM broken", errors.New("relation does not exist"))
	a := newTestAdvisor(DefaultOptions(), stub)

	_, _, err := a.ExecuteQuery(ctx, "SELECT id FROM broken", nil, ExecOptions{})
	require.Error(t, err)

	// The failed execution is still recorded.
	snapshot := a.QueryMetricsSnapshot()
	require.Len(t, snapshot, 1)
	assert.NotEmpty(t, snapshot[0].Error)
	assert.Equal(t, 1, a.PatternCount())
}

func TestExecuteQueryAppliesRewrite(t *testing.T) {
	ctx := context.Background()
	stub := db.NewStubExecutor()
	a := newTestAdvisor(DefaultOptions(), stub)

	_, _, err := a.ExecuteQuery(ctx,
		"SELECT name FROM pets WHERE id = 1 OR id = 2 OR id = 3", nil, ExecOptions{})
	require.NoError(t, err)

	calls := stub.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0], "IN (1, 2, 3)")

	// Same shape with different literals shares the fingerprinted query
	// identity, so skip the cache to force a second execution.
	_, _, err = a.ExecuteQuery(ctx,
		"SELECT name FROM pets WHERE id = 4 OR id = 5 OR id = 6", nil,
		ExecOptions{SkipCache: true, SkipRewrite: true})
	require.NoError(t, err)
	calls = stub.Calls()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[1], "OR id = 5")
}

func TestCacheIdentityIgnoresLiterals(t *testing.T) {
	ctx := context.Background()
	stub := db.NewStubExecutor()
	a := newTestAdvisor(DefaultOptions(), stub)

	_, _, err := a.ExecuteQuery(ctx, "SELECT name FROM pets WHERE id = 7", nil, ExecOptions{})
	require.NoError(t, err)

	// Literals are normalized away, so a different constant hits the same
	// cache entry. Callers that vary values must bind them as params.
	_, cached, err := a.ExecuteQuery(ctx, "SELECT name FROM pets WHERE id = 8", nil, ExecOptions{})
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 1, len(stub.Calls()))

	// Bound params keep their own identity.
	_, cached, err = a.ExecuteQuery(ctx, "SELECT name FROM pets WHERE id = $1", []interface{}{8}, ExecOptions{})
	require.NoError(t, err)
	assert.False(t, cached)
}

func TestPatternAggregation(t *testing.T) {
	ctx := context.Background()
	stub := db.NewStubExecutor()
	a := newTestAdvisor(DefaultOptions(), stub)

	for _, id := range []interface{}{1, 2, 3} {
		_, _, err := a.ExecuteQuery(ctx, "SELECT name FROM pets WHERE id = $1", []interface{}{id}, ExecOptions{})
		require.NoError(t, err)
	}

	pattern := a.Pattern("SELECT name FROM pets WHERE id = $1")
	require.NotNil(t, pattern)
	assert.Equal(t, int64(3), pattern.Frequency)
	assert.Equal(t, 10.0, pattern.OptimizationScore)
	assert.True(t, pattern.Cacheable)
}

func TestSlowPatterns(t *testing.T) {
	a := newTestAdvisor(DefaultOptions(), db.NewStubExecutor())

	for i := 0; i < 5; i++ {
		a.record("q1", "SELECT * FROM photos", "select * from photos", 180, nil, false, nil)
	}
	a.record("q2", "SELECT id FROM pets", "select id from pets", 2, nil, false, nil)

	slow := a.SlowPatterns(100, 3)
	require.Len(t, slow, 1)
	assert.Equal(t, "select * from photos", slow[0].Pattern)
	assert.Equal(t, int64(5), a.SlowQueryCount())
}

func TestMaintainPurgesColdState(t *testing.T) {
	a := newTestAdvisor(DefaultOptions(), db.NewStubExecutor())

	stale := time.Now().Add(-25 * time.Hour)

	a.mu.Lock()
	cold := models.NewQueryPattern("select a from b")
	cold.Frequency = 1
	cold.LastSeen = stale
	a.patterns["select a from b"] = cold

	hot := models.NewQueryPattern("select c from d")
	hot.Frequency = 50
	hot.LastSeen = stale
	a.patterns["select c from d"] = hot

	oldMetric := models.NewQueryMetrics("q", "SELECT a FROM b", "select a from b")
	oldMetric.Timestamp = stale
	a.metrics = append(a.metrics, oldMetric)

	a.cache["dead"] = &cachedResult{result: petRows(), storedAt: stale, ttl: time.Minute}
	a.mu.Unlock()

	a.Maintain()

	assert.Equal(t, 1, a.PatternCount())
	assert.NotNil(t, a.Pattern("select c from d"))
	assert.Empty(t, a.QueryMetricsSnapshot())
	assert.Equal(t, 0, a.ResultCacheLen())
}

func TestIndexSuggestionsAggregate(t *testing.T) {
	ctx := context.Background()
	a := newTestAdvisor(DefaultOptions(), db.NewStubExecutor())

	for i := 0; i < 4; i++ {
		_, _, err := a.ExecuteQuery(ctx,
			"SELECT name FROM pets WHERE species = $1", []interface{}{i}, ExecOptions{SkipCache: true})
		require.NoError(t, err)
	}

	a.Maintain()

	suggestions := a.IndexSuggestions()
	require.NotEmpty(t, suggestions)
	assert.Equal(t, "pets", suggestions[0].Table)
	assert.Equal(t, []string{"species"}, suggestions[0].Columns)
	assert.Equal(t, int64(4), suggestions[0].Frequency)
}

func TestBatchQueryFlushesAtSize(t *testing.T) {
	stub := db.NewStubExecutor()
	stub.Respond("FROM pets", petRows())

	opts := DefaultOptions()
	opts.BatchSize = 2
	opts.BatchDebounce = time.Minute // only the size trigger may fire
	a := newTestAdvisor(opts, stub)

	var wg sync.WaitGroup
	results := make([]*db.Result, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = a.BatchQuery(context.Background(), "SELECT name FROM pets", nil)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	for _, result := range results {
		require.NotNil(t, result)
		assert.Len(t, result.Rows, 1)
	}
	assert.Equal(t, 0, a.PendingBatchLen())
}

func TestBatchQueryIndependentOutcomes(t *testing.T) {
	stub := db.NewStubExecutor()
	stub.Respond("FROM pets", petRows())
	stub.Fail("FROM broken", errors.New("boom"))

	opts := DefaultOptions()
	opts.BatchSize = 10
	opts.BatchDebounce = 10 * time.Millisecond
	a := newTestAdvisor(opts, stub)

	statements := []string{
		"SELECT name FROM pets WHERE id = 1",
		"SELECT id FROM broken",
		"SELECT name FROM pets WHERE id = 2",
	}

	var wg sync.WaitGroup
	errs := make([]error, len(statements))
	for i, sql := range statements {
		wg.Add(1)
		go func(i int, sql string) {
			defer wg.Done()
			_, errs[i] = a.BatchQuery(context.Background(), sql, nil)
		}(i, sql)
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.Error(t, errs[1])
	assert.NoError(t, errs[2])
}

func TestBatchQueryContextCancellation(t *testing.T) {
	opts := DefaultOptions()
	opts.BatchSize = 10
	opts.BatchDebounce = time.Minute
	a := newTestAdvisor(opts, db.NewStubExecutor())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := a.BatchQuery(ctx, "SELECT name FROM pets", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAverageScore(t *testing.T) {
	a := newTestAdvisor(DefaultOptions(), db.NewStubExecutor())
	assert.Equal(t, 10.0, a.AverageScore())

	a.record("q1", "SELECT name FROM pets WHERE id = 1", "p1", 1, nil, false, nil)
	a.record("q2", "SELECT * FROM pets", "p2", 1, nil, false, nil)
	assert.InDelta(t, 9.5, a.AverageScore(), 1e-9)
}
