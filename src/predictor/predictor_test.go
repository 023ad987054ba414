package predictor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aopopov01/TailTracker-sub005/src/models"
	"github.com/aopopov01/TailTracker-sub005/src/storage"
)

func newTestPredictor(opts Options) *Predictor {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewPredictor(opts, storage.NewMemoryStore(), log)
}

func TestRecordUserActionLearnsPattern(t *testing.T) {
	p := newTestPredictor(Options{})
	p.SetContext(models.LoadingContext{Route: "/pets", NetworkType: models.NetworkWifi})

	p.RecordUserAction("view_pet", 120)
	p.RecordUserAction("view_pet", 80)

	now := time.Now()
	pattern := p.Pattern("/pets", now.Hour(), int(now.Weekday()), "view_pet")
	require.NotNil(t, pattern)
	assert.Equal(t, int64(2), pattern.Frequency)
	assert.InDelta(t, 1.0, pattern.SuccessRate, 1e-9)
	assert.InDelta(t, 100, pattern.AverageLoadTime, 1e-9)

	// A fresh pattern in its own context maxes out every confidence term.
	assert.InDelta(t, 1.0, pattern.Confidence, 1e-6)
}

func TestRecordUserActionFailureGate(t *testing.T) {
	p := newTestPredictor(Options{})
	p.SetContext(models.LoadingContext{Route: "/pets"})

	// Zero and over-limit load times count as failed experiences.
	p.RecordUserAction("view_pet", 0)
	p.RecordUserAction("view_pet", 6000)

	now := time.Now()
	pattern := p.Pattern("/pets", now.Hour(), int(now.Weekday()), "view_pet")
	require.NotNil(t, pattern)
	assert.Equal(t, 0.0, pattern.SuccessRate)
}

func TestPatternCapacityEviction(t *testing.T) {
	p := newTestPredictor(Options{MaxPatterns: 2})
	p.SetContext(models.LoadingContext{Route: "/pets"})

	p.RecordUserAction("view_pet", 100)
	p.RecordUserAction("view_photos", 100)
	p.RecordUserAction("open_map", 100)

	assert.Equal(t, 2, p.PatternCount())
}

func TestSelectStrategyLadder(t *testing.T) {
	plain := models.LoadingContext{NetworkType: models.NetworkWifi, BatteryLevel: 0.9}

	tests := []struct {
		name        string
		probability float64
		ctx         models.LoadingContext
		strategy    models.PrefetchStrategy
		priority    models.PredictionPriority
	}{
		{"immediate", 0.85, plain, models.StrategyImmediate, models.PriorityHigh},
		{"background", 0.7, plain, models.StrategyBackground, models.PriorityMedium},
		{"on_demand", 0.5, plain, models.StrategyOnDemand, models.PriorityLow},
		{"preemptive", 0.3, plain, models.StrategyPreemptive, models.PriorityLow},
		{
			"cellular degrades one step",
			0.85,
			models.LoadingContext{NetworkType: models.NetworkCellular, BatteryLevel: 0.9},
			models.StrategyBackground, models.PriorityMedium,
		},
		{
			"charging cancels the cellular degrade",
			0.85,
			models.LoadingContext{NetworkType: models.NetworkCellular, BatteryLevel: 0.9, IsCharging: true},
			models.StrategyImmediate, models.PriorityHigh,
		},
		{
			"critical battery forces on-demand",
			0.95,
			models.LoadingContext{NetworkType: models.NetworkWifi, BatteryLevel: 0.1},
			models.StrategyOnDemand, models.PriorityLow,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			strategy, priority := selectStrategy(tc.probability, tc.ctx)
			assert.Equal(t, tc.strategy, strategy)
			assert.Equal(t, tc.priority, priority)
		})
	}
}

func TestPredictionLimit(t *testing.T) {
	assert.Equal(t, 10, predictionLimit(models.LoadingContext{NetworkType: models.NetworkWifi}))
	assert.Equal(t, 3, predictionLimit(models.LoadingContext{NetworkType: models.NetworkCellular}))
	assert.Equal(t, 5, predictionLimit(models.LoadingContext{NetworkType: models.NetworkUnknown}))
	assert.Equal(t, 2, predictionLimit(models.LoadingContext{NetworkType: models.NetworkWifi, BatteryLevel: 0.25}))
}

func TestContextSimilarity(t *testing.T) {
	a := models.LoadingContext{Route: "/pets", NetworkType: models.NetworkWifi, TimeOfDay: 9, DayOfWeek: 1}

	assert.InDelta(t, 1.0, contextSimilarity(a, a), 1e-9)

	// Hour distance is a plain delta scored as max(0, 1-|delta|/12), so
	// 9h vs 11h loses 2/12 of the hour term and 23h vs 1h bottoms out.
	b := a
	b.TimeOfDay = 11
	assert.InDelta(t, contextSimilarity(a, a)-(2.0/12)/4, contextSimilarity(a, b), 1e-9)

	c := a
	c.TimeOfDay = 23
	d := a
	d.TimeOfDay = 1
	sim := contextSimilarity(c, d)
	assert.InDelta(t, contextSimilarity(a, a)-1.0/4, sim, 1e-9)

	// Absent optional fields drop out of the average instead of counting
	// against it.
	e := models.LoadingContext{TimeOfDay: 9, DayOfWeek: 1}
	assert.InDelta(t, 1.0, contextSimilarity(e, models.LoadingContext{TimeOfDay: 9, DayOfWeek: 1}), 1e-9)
}

func TestGeneratePredictionsFiltersAndSorts(t *testing.T) {
	p := newTestPredictor(Options{})
	p.SetContext(models.LoadingContext{Route: "/pets", NetworkType: models.NetworkWifi, BatteryLevel: 0.9})

	for i := 0; i < 5; i++ {
		p.RecordUserAction("view_pet", 100)
	}
	p.RecordUserAction("view_photos", 100)
	// Unmapped actions never surface as predictions.
	p.RecordUserAction("navigate:/settings", 100)

	predictions := p.GeneratePredictions("/pets")
	require.NotEmpty(t, predictions)
	assert.Equal(t, "pet_profile", predictions[0].DataType)
	assert.Equal(t, models.StrategyImmediate, predictions[0].Strategy)
	assert.Equal(t, models.PriorityHigh, predictions[0].Priority)
	assert.Equal(t, int64(8<<10), predictions[0].EstimatedSize)
	assert.Equal(t, 30*time.Minute, predictions[0].CacheDuration)

	for _, prediction := range predictions {
		assert.NotEqual(t, "navigate:/settings", prediction.DataType)
	}
	for i := 1; i < len(predictions); i++ {
		if predictions[i-1].Priority == predictions[i].Priority {
			assert.GreaterOrEqual(t, predictions[i-1].Probability, predictions[i].Probability)
		} else {
			assert.Greater(t, predictions[i-1].Priority, predictions[i].Priority)
		}
	}
}

func TestGeneratePredictionsCellularCap(t *testing.T) {
	p := newTestPredictor(Options{})
	p.SetContext(models.LoadingContext{Route: "/pets", NetworkType: models.NetworkCellular, IsCharging: true})

	for action := range actionDataTypes {
		for i := 0; i < 3; i++ {
			p.RecordUserAction(action, 100)
		}
	}

	predictions := p.GeneratePredictions("/pets")
	assert.LessOrEqual(t, len(predictions), 3)
}

func TestExecutePredictiveLoading(t *testing.T) {
	p := newTestPredictor(Options{})

	loaded := make([]string, 0)
	p.SetLoader(func(ctx context.Context, dataType string) error {
		loaded = append(loaded, dataType)
		if dataType == "map_tiles" {
			return errors.New("offline")
		}
		return nil
	})

	p.ExecutePredictiveLoading(context.Background(), []models.PredictionResult{
		{DataType: "pet_profile", Strategy: models.StrategyImmediate},
		{DataType: "map_tiles", Strategy: models.StrategyImmediate},
		{DataType: "reminders", Strategy: models.StrategyPreemptive},
		{DataType: "vet_contacts", Strategy: models.StrategyOnDemand},
	})

	// Immediate loads run synchronously; preemptive ones only queue.
	assert.Equal(t, []string{"pet_profile", "map_tiles"}, loaded)
	assert.Equal(t, 1, p.PreemptiveQueueLen())
	assert.InDelta(t, 0.5, p.Accuracy(), 1e-9)
}

func TestDrainPreemptiveRequiresIdleState(t *testing.T) {
	p := newTestPredictor(Options{})
	p.SetLoader(func(ctx context.Context, dataType string) error { return nil })
	p.enqueuePreemptive(models.PredictionResult{DataType: "reminders", Strategy: models.StrategyPreemptive})

	// Foregrounded apps never drain.
	assert.False(t, p.drainPreemptive(context.Background()))

	p.SetAppState(true, true)
	assert.True(t, p.drainPreemptive(context.Background()))
	assert.Equal(t, 0, p.PreemptiveQueueLen())

	// Empty queue drains nothing.
	assert.False(t, p.drainPreemptive(context.Background()))
}

func TestAccuracyDefaultsToPerfect(t *testing.T) {
	p := newTestPredictor(Options{})
	assert.Equal(t, 1.0, p.Accuracy())
}

func TestTuneDecaysOnPoorOutcomes(t *testing.T) {
	p := newTestPredictor(Options{})
	p.SetContext(models.LoadingContext{Route: "/pets"})
	p.RecordUserAction("view_pet", 100)

	for i := 0; i < 5; i++ {
		p.recordOutcome(false)
	}

	now := time.Now()
	before := p.Pattern("/pets", now.Hour(), int(now.Weekday()), "view_pet").Confidence
	p.Tune()
	after := p.Pattern("/pets", now.Hour(), int(now.Weekday()), "view_pet").Confidence
	assert.InDelta(t, before*0.9, after, 1e-9)
}

func TestTuneBoostsStrongPatterns(t *testing.T) {
	p := newTestPredictor(Options{})
	for i := 0; i < 5; i++ {
		p.recordOutcome(true)
	}

	p.mu.Lock()
	p.patterns["strong"] = &models.PredictivePattern{
		ID: "strong", Action: "view_pet", Confidence: 0.5, SuccessRate: 0.9, LastUsed: time.Now(),
	}
	p.patterns["weak"] = &models.PredictivePattern{
		ID: "weak", Action: "open_map", Confidence: 0.5, SuccessRate: 0.4, LastUsed: time.Now(),
	}
	p.patterns["capped"] = &models.PredictivePattern{
		ID: "capped", Action: "view_photos", Confidence: 0.95, SuccessRate: 0.9, LastUsed: time.Now(),
	}
	p.mu.Unlock()

	p.Tune()

	p.mu.RLock()
	defer p.mu.RUnlock()
	assert.InDelta(t, 0.55, p.patterns["strong"].Confidence, 1e-9)
	assert.InDelta(t, 0.5, p.patterns["weak"].Confidence, 1e-9)
	assert.Equal(t, 1.0, p.patterns["capped"].Confidence)
}

func TestTunePrunesStaleWeakPatterns(t *testing.T) {
	p := newTestPredictor(Options{})

	stale := time.Now().Add(-31 * 24 * time.Hour)
	p.mu.Lock()
	p.patterns["stale-weak"] = &models.PredictivePattern{ID: "stale-weak", Confidence: 0.2, LastUsed: stale}
	p.patterns["stale-strong"] = &models.PredictivePattern{ID: "stale-strong", Confidence: 0.6, LastUsed: stale}
	p.patterns["fresh-weak"] = &models.PredictivePattern{ID: "fresh-weak", Confidence: 0.2, LastUsed: time.Now()}
	p.mu.Unlock()

	p.Tune()

	p.mu.RLock()
	defer p.mu.RUnlock()
	assert.NotContains(t, p.patterns, "stale-weak")
	assert.Contains(t, p.patterns, "stale-strong")
	assert.Contains(t, p.patterns, "fresh-weak")
}

func TestPatternPersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	p := NewPredictor(Options{}, store, log)
	p.SetContext(models.LoadingContext{Route: "/pets"})
	p.RecordUserAction("view_pet", 100)
	require.NoError(t, p.savePatterns(ctx))

	restored := NewPredictor(Options{}, store, log)
	restored.LoadPatterns(ctx)
	assert.Equal(t, 1, restored.PatternCount())
}

func TestActionForDataType(t *testing.T) {
	action, ok := ActionForDataType("pet_profile")
	require.True(t, ok)
	assert.Equal(t, "view_pet", action)

	_, ok = ActionForDataType("unknown_blob")
	assert.False(t, ok)
}
