package db

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// StubExecutor is an Executor with scripted responses, used as the default
// collaborator when no database is configured and in tests.
type StubExecutor struct {
	mu        sync.Mutex
	responses map[string]*Result
	errors    map[string]error
	latency   time.Duration
	calls     []string
}

// NewStubExecutor creates a new StubExecutor instance
func NewStubExecutor() *StubExecutor {
	return &StubExecutor{
		responses: make(map[string]*Result),
		errors:    make(map[string]error),
	}
}

// Respond scripts a result for statements containing the given fragment
func (e *StubExecutor) Respond(fragment string, result *Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.responses[fragment] = result
}

// Fail scripts an error for statements containing the given fragment
func (e *StubExecutor) Fail(fragment string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errors[fragment] = err
}

// SetLatency adds an artificial delay to every execution
func (e *StubExecutor) SetLatency(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.latency = d
}

// Calls returns every statement executed so far
func (e *StubExecutor) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.calls))
	copy(out, e.calls)
	return out
}

// Execute returns the scripted response for the statement
func (e *StubExecutor) Execute(ctx context.Context, sql string, params []interface{}) (*Result, error) {
	e.mu.Lock()
	e.calls = append(e.calls, sql)
	latency := e.latency
	var scriptedErr error
	var scripted *Result
	for fragment, err := range e.errors {
		if strings.Contains(sql, fragment) {
			scriptedErr = err
			break
		}
	}
	if scriptedErr == nil {
		for fragment, result := range e.responses {
			if strings.Contains(sql, fragment) {
				scripted = result
				break
			}
		}
	}
	e.mu.Unlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if scriptedErr != nil {
		return nil, fmt.Errorf("execute %q: %w", sql, scriptedErr)
	}
	if scripted != nil {
		return scripted, nil
	}
	if isReadStatement(sql) {
		return &Result{Rows: []map[string]interface{}{}}, nil
	}
	return &Result{RowsAffected: 1}, nil
}
