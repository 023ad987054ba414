package advisor

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

var (
	stringLiteralRe = regexp.MustCompile(`'(?:[^']|'')*'`)
	numberLiteralRe = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
)

// Normalize replaces literals in the query text with placeholders and
// collapses whitespace, so structurally identical queries share one
// pattern. Parseable statements go through the PostgreSQL normalizer;
// anything else falls back to textual literal replacement.
func Normalize(sql string) string {
	if normalized, err := pg_query.Normalize(sql); err == nil {
		return collapseWhitespace(normalized)
	}

	out := stringLiteralRe.ReplaceAllString(sql, "?")
	out = numberLiteralRe.ReplaceAllString(out, "?")
	return collapseWhitespace(out)
}

// QueryID derives the cache identity of one execution from the normalized
// statement and its bound parameters. Parseable statements use the
// PostgreSQL fingerprint so formatting differences collapse to one ID.
func QueryID(sql string, params []interface{}) string {
	base := ""
	if fp, err := pg_query.Fingerprint(sql); err == nil {
		base = fp
	} else {
		sum := md5.Sum([]byte(Normalize(sql)))
		base = hex.EncodeToString(sum[:])
	}

	encoded, err := json.Marshal(params)
	if err != nil || len(params) == 0 {
		return base
	}
	sum := md5.Sum(encoded)
	return base + ":" + hex.EncodeToString(sum[:])
}

// parseTables extracts the referenced table names from a parseable
// statement's FROM clause, descending into joins.
func parseTables(sql string) []string {
	result, err := pg_query.Parse(sql)
	if err != nil {
		return nil
	}

	tables := make([]string, 0)
	for _, stmt := range result.Stmts {
		if stmt.Stmt == nil {
			continue
		}
		switch node := stmt.Stmt.Node.(type) {
		case *pg_query.Node_SelectStmt:
			tables = append(tables, fromClauseTables(node.SelectStmt.FromClause)...)
		case *pg_query.Node_UpdateStmt:
			if rel := node.UpdateStmt.Relation; rel != nil && rel.Relname != "" {
				tables = append(tables, rel.Relname)
			}
		case *pg_query.Node_DeleteStmt:
			if rel := node.DeleteStmt.Relation; rel != nil && rel.Relname != "" {
				tables = append(tables, rel.Relname)
			}
		case *pg_query.Node_InsertStmt:
			if rel := node.InsertStmt.Relation; rel != nil && rel.Relname != "" {
				tables = append(tables, rel.Relname)
			}
		}
	}
	return tables
}

// fromClauseTables walks a FROM clause, collecting relation names from
// plain ranges and both sides of join expressions.
func fromClauseTables(fromClause []*pg_query.Node) []string {
	tables := make([]string, 0)
	for _, node := range fromClause {
		if node == nil {
			continue
		}
		switch from := node.Node.(type) {
		case *pg_query.Node_RangeVar:
			if from.RangeVar != nil && from.RangeVar.Relname != "" {
				tables = append(tables, from.RangeVar.Relname)
			}
		case *pg_query.Node_JoinExpr:
			if from.JoinExpr == nil {
				continue
			}
			if from.JoinExpr.Larg != nil {
				tables = append(tables, fromClauseTables([]*pg_query.Node{from.JoinExpr.Larg})...)
			}
			if from.JoinExpr.Rarg != nil {
				tables = append(tables, fromClauseTables([]*pg_query.Node{from.JoinExpr.Rarg})...)
			}
		}
	}
	return tables
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
