package advisor

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/aopopov01/TailTracker-sub005/src/models"
)

const maxIndexSuggestions = 20

var (
	fromTableRe   = regexp.MustCompile(`(?i)\bFROM\s+([a-zA-Z_]\w*)`)
	joinTableRe   = regexp.MustCompile(`(?i)\bJOIN\s+([a-zA-Z_]\w*)`)
	whereClauseRe = regexp.MustCompile(`(?i)\bWHERE\b(.*?)(?:\bORDER\s+BY\b|\bGROUP\s+BY\b|\bLIMIT\b|$)`)
	columnCondRe  = regexp.MustCompile(`([a-zA-Z_]\w*(?:\.[a-zA-Z_]\w*)?)\s*(?:=|>=|<=|<>|!=|>|<|\bIN\b|\bLIKE\b)`)
	joinCondRe    = regexp.MustCompile(`(?i)\bON\s+([\w.]+)\s*=\s*([\w.]+)`)
)

// sqlKeywords are tokens the condition regex may capture that are not
// column references.
var sqlKeywords = map[string]bool{
	"and": true, "or": true, "not": true, "in": true, "like": true,
	"is": true, "null": true, "between": true, "exists": true,
}

// indexCandidates derives advisory index candidates for one statement by
// extracting table and column references from its FROM, WHERE and JOIN
// clauses. The statement is never executed.
func indexCandidates(sql string) []models.DatabaseIndex {
	tables := parseTables(sql)
	if len(tables) == 0 {
		for _, m := range fromTableRe.FindAllStringSubmatch(sql, -1) {
			tables = append(tables, m[1])
		}
		for _, m := range joinTableRe.FindAllStringSubmatch(sql, -1) {
			tables = append(tables, m[1])
		}
	}
	if len(tables) == 0 {
		return nil
	}

	columnsByTable := make(map[string][]string)
	appendColumn := func(table, column string) {
		for _, existing := range columnsByTable[table] {
			if existing == column {
				return
			}
		}
		columnsByTable[table] = append(columnsByTable[table], column)
	}

	primary := tables[0]
	known := make(map[string]bool, len(tables))
	for _, table := range tables {
		known[table] = true
	}

	if m := whereClauseRe.FindStringSubmatch(sql); m != nil {
		for _, cond := range columnCondRe.FindAllStringSubmatch(m[1], -1) {
			table, column := splitQualified(cond[1], primary)
			if sqlKeywords[strings.ToLower(column)] {
				continue
			}
			if !known[table] {
				table = primary
			}
			appendColumn(table, column)
		}
	}

	for _, cond := range joinCondRe.FindAllStringSubmatch(sql, -1) {
		for _, side := range []string{cond[1], cond[2]} {
			table, column := splitQualified(side, primary)
			if !known[table] {
				continue
			}
			appendColumn(table, column)
		}
	}

	candidates := make([]models.DatabaseIndex, 0, len(columnsByTable))
	for table, columns := range columnsByTable {
		if len(columns) == 0 {
			continue
		}
		sort.Strings(columns)
		candidates = append(candidates, models.DatabaseIndex{
			Table:     table,
			Columns:   columns,
			Type:      "btree",
			Statement: indexStatement(table, columns),
		})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Table < candidates[j].Table })
	return candidates
}

// splitQualified splits a possibly table-qualified column reference.
func splitQualified(ref, defaultTable string) (table, column string) {
	if idx := strings.Index(ref, "."); idx >= 0 {
		return ref[:idx], ref[idx+1:]
	}
	return defaultTable, ref
}

// indexStatement renders the advisory CREATE INDEX text.
func indexStatement(table string, columns []string) string {
	return fmt.Sprintf("CREATE INDEX idx_%s_%s ON %s (%s)",
		table, strings.Join(columns, "_"), table, strings.Join(columns, ", "))
}

// suggestionStatements flattens candidates to their statement text.
func suggestionStatements(candidates []models.DatabaseIndex) []string {
	out := make([]string, len(candidates))
	for i, candidate := range candidates {
		out[i] = candidate.Statement
	}
	return out
}

// refreshIndexSuggestions aggregates the per-pattern candidates across
// every tracked pattern, weighted by execution frequency, and retains the
// top suggestions.
func (a *Advisor) refreshIndexSuggestions() {
	a.mu.RLock()
	type weighted struct {
		index     models.DatabaseIndex
		frequency int64
		score     float64
	}
	byStatement := make(map[string]*weighted)
	for _, pattern := range a.patterns {
		for _, statement := range pattern.IndexSuggestions {
			entry, ok := byStatement[statement]
			if !ok {
				entry = &weighted{index: indexFromStatement(statement)}
				byStatement[statement] = entry
			}
			entry.frequency += pattern.Frequency
			entry.score += float64(pattern.Frequency) * (10 - pattern.OptimizationScore)
		}
	}
	a.mu.RUnlock()

	aggregated := make([]models.DatabaseIndex, 0, len(byStatement))
	for _, entry := range byStatement {
		index := entry.index
		index.Frequency = entry.frequency
		if entry.frequency > 0 {
			index.Effectiveness = clampScore(entry.score/float64(entry.frequency)) / 10
		}
		aggregated = append(aggregated, index)
	}
	sort.Slice(aggregated, func(i, j int) bool {
		if aggregated[i].Frequency != aggregated[j].Frequency {
			return aggregated[i].Frequency > aggregated[j].Frequency
		}
		return aggregated[i].Statement < aggregated[j].Statement
	})
	if len(aggregated) > maxIndexSuggestions {
		aggregated = aggregated[:maxIndexSuggestions]
	}

	a.mu.Lock()
	a.indexes = aggregated
	a.mu.Unlock()
}

var indexStatementRe = regexp.MustCompile(`CREATE INDEX \S+ ON (\S+) \(([^)]*)\)`)

// indexFromStatement reconstructs the structured form of an advisory
// statement produced by indexStatement.
func indexFromStatement(statement string) models.DatabaseIndex {
	index := models.DatabaseIndex{Type: "btree", Statement: statement}
	if m := indexStatementRe.FindStringSubmatch(statement); m != nil {
		index.Table = m[1]
		for _, column := range strings.Split(m[2], ",") {
			index.Columns = append(index.Columns, strings.TrimSpace(column))
		}
	}
	return index
}

// IndexSuggestions returns the aggregated advisory index list, most
// frequently supported first.
func (a *Advisor) IndexSuggestions() []models.DatabaseIndex {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]models.DatabaseIndex(nil), a.indexes...)
}
