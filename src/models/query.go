package models

import "time"

// QueryIssue represents a single rule violation found in a query.
type QueryIssue struct {
	RuleID     string        `json:"rule_id"`
	Severity   AlertSeverity `json:"severity"`
	Message    string        `json:"message"`
	Suggestion string        `json:"suggestion"`
	Impact     float64       `json:"impact"`
}

// QueryAnalysis represents the result of analyzing a SQL query against the
// static rule set. Analysis is a pure function of the query text: analyzing
// the same text twice yields identical issues and score.
type QueryAnalysis struct {
	Query      string       `json:"query"`
	Normalized string       `json:"normalized"`
	Issues     []QueryIssue `json:"issues"`
	Score      float64      `json:"score"`
	Rewritten  string       `json:"rewritten,omitempty"`
	Timestamp  time.Time    `json:"timestamp"`
}

// NewQueryAnalysis creates a new QueryAnalysis instance
func NewQueryAnalysis(query string) *QueryAnalysis {
	return &QueryAnalysis{
		Query:     query,
		Issues:    make([]QueryIssue, 0),
		Score:     10,
		Timestamp: time.Now(),
	}
}

// DatabaseIndex is an advisory index suggestion. It is never applied, only
// surfaced to the caller.
type DatabaseIndex struct {
	Table         string   `json:"table"`
	Columns       []string `json:"columns"`
	Type          string   `json:"type"`
	Frequency     int64    `json:"frequency"`
	Effectiveness float64  `json:"effectiveness"`
	Statement     string   `json:"statement"`
}
