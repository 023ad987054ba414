package advisor

import (
	"regexp"
	"strings"

	"github.com/aopopov01/TailTracker-sub005/src/models"
)

// Rule is one entry of the static analysis rule set. Matching is a pure
// function of the query text, so applying the rule twice always yields the
// same outcome. Rules with a Rewrite are active auto-fixes; the rest are
// advisory only.
type Rule struct {
	ID         string
	Severity   models.AlertSeverity
	Message    string
	Suggestion string
	Impact     float64
	Matches    func(q string) bool
	Rewrite    func(q string) (string, bool)
}

var (
	selectStarRe      = regexp.MustCompile(`(?i)\bSELECT\s+\*`)
	updateDeleteRe    = regexp.MustCompile(`(?i)^\s*(UPDATE|DELETE)\b`)
	whereRe           = regexp.MustCompile(`(?i)\bWHERE\b`)
	functionInWhereRe = regexp.MustCompile(`(?i)\bWHERE\b.*\b(UPPER|LOWER|SUBSTR|SUBSTRING|TRIM|LENGTH|ABS|ROUND|COALESCE|CAST|DATE|STRFTIME)\s*\(`)
	inequalityRe      = regexp.MustCompile(`!=|<>`)
	orRe              = regexp.MustCompile(`(?i)\s+OR\s+`)
	leadingWildcardRe = regexp.MustCompile(`(?i)\bLIKE\s+'%`)
	subqueryInSelect  = regexp.MustCompile(`(?i)\bSELECT\b[^;]*?\(\s*SELECT\b[^;]*?\bFROM\b`)
	orderByRe         = regexp.MustCompile(`(?i)\bORDER\s+BY\b`)
	limitRe           = regexp.MustCompile(`(?i)\bLIMIT\s+\d+`)
)

// rules is the fixed, ordered rule set applied by AnalyzeQuery.
var rules = []Rule{
	{
		ID:         "select_star",
		Severity:   models.AlertSeverityMedium,
		Message:    "SELECT * fetches every column",
		Suggestion: "List only the columns the caller actually reads",
		Impact:     10,
		Matches:    func(q string) bool { return selectStarRe.MatchString(q) },
	},
	{
		ID:         "missing_where",
		Severity:   models.AlertSeverityCritical,
		Message:    "UPDATE or DELETE without a WHERE clause affects every row",
		Suggestion: "Add a WHERE clause unless a full-table write is intended",
		Impact:     25,
		Matches: func(q string) bool {
			return updateDeleteRe.MatchString(q) && !whereRe.MatchString(q)
		},
	},
	{
		ID:         "function_in_where",
		Severity:   models.AlertSeverityHigh,
		Message:    "Function call on a column in WHERE prevents index use",
		Suggestion: "Move the computation to the comparison value or store a computed column",
		Impact:     20,
		Matches:    func(q string) bool { return functionInWhereRe.MatchString(q) },
	},
	{
		ID:         "inequality_operator",
		Severity:   models.AlertSeverityLow,
		Message:    "Inequality comparisons cannot use index range scans efficiently",
		Suggestion: "Prefer positive conditions or split into indexed ranges",
		Impact:     10,
		Matches:    func(q string) bool { return inequalityRe.MatchString(q) },
	},
	{
		ID:         "multiple_or",
		Severity:   models.AlertSeverityMedium,
		Message:    "Chained OR conditions on one column defeat index selection",
		Suggestion: "Collapse same-column equality chains into IN (...)",
		Impact:     15,
		Matches:    func(q string) bool { return len(orRe.FindAllString(q, -1)) >= 2 },
		Rewrite:    collapseOrChain,
	},
	{
		ID:         "leading_wildcard",
		Severity:   models.AlertSeverityHigh,
		Message:    "LIKE with a leading wildcard forces a full scan",
		Suggestion: "Anchor the pattern or use a dedicated search index",
		Impact:     20,
		Matches:    func(q string) bool { return leadingWildcardRe.MatchString(q) },
	},
	{
		ID:         "subquery_in_select",
		Severity:   models.AlertSeverityHigh,
		Message:    "Correlated subquery in the SELECT list runs once per row",
		Suggestion: "Rewrite as a JOIN or a lateral aggregate",
		Impact:     25,
		Matches:    func(q string) bool { return subqueryInSelect.MatchString(q) },
	},
	{
		ID:         "missing_limit",
		Severity:   models.AlertSeverityLow,
		Message:    "ORDER BY without LIMIT sorts and returns the whole result",
		Suggestion: "Add a LIMIT when only the top rows are consumed",
		Impact:     10,
		Matches: func(q string) bool {
			return orderByRe.MatchString(q) && !limitRe.MatchString(q)
		},
	},
}

// AnalyzeQuery matches the query against the fixed rule set and scores it.
// The score starts at 10 and loses impact*0.1 per matched rule, clamped to
// [0,10]. Analysis never touches shared state.
func AnalyzeQuery(sql string) *models.QueryAnalysis {
	analysis := models.NewQueryAnalysis(sql)
	analysis.Normalized = Normalize(sql)

	penalty := 0.0
	for _, rule := range rules {
		if !rule.Matches(sql) {
			continue
		}
		analysis.Issues = append(analysis.Issues, models.QueryIssue{
			RuleID:     rule.ID,
			Severity:   rule.Severity,
			Message:    rule.Message,
			Suggestion: rule.Suggestion,
			Impact:     rule.Impact,
		})
		penalty += rule.Impact * 0.1
	}

	analysis.Score = clampScore(10 - penalty)
	if rewritten, ok := RewriteQuery(sql); ok {
		analysis.Rewritten = rewritten
	}
	return analysis
}

// RewriteQuery applies the active auto-fixes in rule order and reports
// whether the text changed.
func RewriteQuery(sql string) (string, bool) {
	out := sql
	changed := false
	for _, rule := range rules {
		if rule.Rewrite == nil || !rule.Matches(out) {
			continue
		}
		if rewritten, ok := rule.Rewrite(out); ok {
			out = rewritten
			changed = true
		}
	}
	return out, changed
}

var orTermRe = regexp.MustCompile(`(?i)^\s*(\w+(?:\.\w+)?)\s*=\s*('[^']*'|\?|\d+(?:\.\d+)?)\s*$`)

// collapseOrChain rewrites a chain of same-column equality ORs into an IN
// list. Only plain WHERE clauses are touched: any parentheses or AND in
// the clause leaves the query unchanged.
func collapseOrChain(sql string) (string, bool) {
	loc := whereRe.FindStringIndex(sql)
	if loc == nil {
		return sql, false
	}

	head := sql[:loc[1]]
	rest := sql[loc[1]:]

	// Keep trailing clauses out of the OR chain.
	tail := ""
	if m := regexp.MustCompile(`(?i)\b(ORDER\s+BY|GROUP\s+BY|LIMIT|HAVING)\b`).FindStringIndex(rest); m != nil {
		tail = rest[m[0]:]
		rest = rest[:m[0]]
	}

	if strings.ContainsAny(rest, "()") || regexp.MustCompile(`(?i)\bAND\b`).MatchString(rest) {
		return sql, false
	}

	terms := orRe.Split(rest, -1)
	if len(terms) < 3 {
		return sql, false
	}

	column := ""
	values := make([]string, 0, len(terms))
	for _, term := range terms {
		m := orTermRe.FindStringSubmatch(term)
		if m == nil {
			return sql, false
		}
		if column == "" {
			column = m[1]
		} else if !strings.EqualFold(column, m[1]) {
			return sql, false
		}
		values = append(values, m[2])
	}

	rewritten := head + " " + column + " IN (" + strings.Join(values, ", ") + ")"
	if tail != "" {
		rewritten += " " + tail
	}
	return rewritten, true
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}
