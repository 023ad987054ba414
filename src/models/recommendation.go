package models

// RecommendationType classifies an optimization recommendation.
type RecommendationType string

const (
	RecommendCacheSize        RecommendationType = "cache_size"
	RecommendCompression      RecommendationType = "compression"
	RecommendPrefetchStrategy RecommendationType = "prefetch_strategy"
	RecommendTTLTuning        RecommendationType = "ttl_tuning"
	RecommendQueryRewrite     RecommendationType = "query_rewrite"
	RecommendIndex            RecommendationType = "index"
)

// OptimizationRecommendation represents an advisory tuning suggestion.
// Lists of recommendations are always sorted by impact score descending.
type OptimizationRecommendation struct {
	Type                RecommendationType `json:"type"`
	Priority            AlertSeverity      `json:"priority"`
	Description         string             `json:"description"`
	ExpectedImprovement string             `json:"expected_improvement"`
	Implementation      string             `json:"implementation"`
	ImpactScore         float64            `json:"impact_score"`
}
