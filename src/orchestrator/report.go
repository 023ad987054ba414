package orchestrator

import "time"

// Component weights of the composite performance score.
const (
	weightCache       = 0.30
	weightMemory      = 0.20
	weightDatabase    = 0.20
	weightImages      = 0.15
	weightPredictions = 0.15
)

// PerformanceReport is the weighted health summary exposed to dashboards.
type PerformanceReport struct {
	Timestamp        time.Time `json:"timestamp"`
	CacheScore       float64   `json:"cache_score"`
	MemoryScore      float64   `json:"memory_score"`
	DatabaseScore    float64   `json:"database_score"`
	ImageScore       float64   `json:"image_score"`
	PredictionScore  float64   `json:"prediction_score"`
	CompositeScore   float64   `json:"composite_score"`
	Grade            string    `json:"grade"`
	Status           string    `json:"status"`
	ActiveAlerts     int       `json:"active_alerts"`
	TrackedPatterns  int       `json:"tracked_patterns"`
	SlowQueries      int64     `json:"slow_queries"`
	PrefetchAccuracy float64   `json:"prefetch_accuracy"`
}

// Report computes the weighted composite score across the cache, memory,
// database, image and prediction subsystems, on a 0-100 scale each.
func (o *Orchestrator) Report() *PerformanceReport {
	report := &PerformanceReport{Timestamp: time.Now()}

	// Subsystems without signal yet score as healthy.
	report.CacheScore = 100
	report.MemoryScore = 100
	report.DatabaseScore = 100
	report.ImageScore = 100
	report.PredictionScore = 100

	if o.monitor != nil {
		current := o.monitor.CurrentMetrics()
		if current.TotalRequests > 0 {
			report.CacheScore = clampScore(current.HitRatio * 100)
		}
		if current.MemoryUtilization > 0 {
			report.MemoryScore = clampScore((1 - current.MemoryUtilization) * 100)
		}
		report.ActiveAlerts = len(o.monitor.ActiveAlerts())
	}

	if o.advisor != nil {
		report.DatabaseScore = clampScore(o.advisor.AverageScore() * 10)
		report.SlowQueries = o.advisor.SlowQueryCount()
	}

	// Full marks at 2x compression (ratio 0.5), zero when nothing shrinks.
	if ratio := o.images.CompressionRatio(); ratio > 0 {
		report.ImageScore = clampScore((1 - ratio) * 200)
	}

	if o.predictor != nil {
		report.PredictionScore = clampScore(o.predictor.Accuracy() * 100)
		report.TrackedPatterns = o.predictor.PatternCount()
		report.PrefetchAccuracy = o.predictor.Accuracy()
	}

	report.CompositeScore = report.CacheScore*weightCache +
		report.MemoryScore*weightMemory +
		report.DatabaseScore*weightDatabase +
		report.ImageScore*weightImages +
		report.PredictionScore*weightPredictions

	report.Grade, report.Status = gradeFor(report.CompositeScore)
	return report
}

func gradeFor(score float64) (string, string) {
	switch {
	case score >= 90:
		return "A", "excellent"
	case score >= 80:
		return "B", "good"
	case score >= 70:
		return "C", "fair"
	case score >= 60:
		return "D", "degraded"
	default:
		return "F", "critical"
	}
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
