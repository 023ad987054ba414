package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// Result carries the outcome of one statement execution. Read statements
// populate Rows; write statements populate RowsAffected.
type Result struct {
	Rows         []map[string]interface{} `json:"rows,omitempty"`
	RowsAffected int64                    `json:"rows_affected"`
}

// Size returns a rough byte estimate of the result set, used by the advisor
// to decide whether a result is worth caching.
func (r *Result) Size() int64 {
	if r == nil {
		return 0
	}
	var size int64
	for _, row := range r.Rows {
		for col, val := range row {
			size += int64(len(col))
			if s, ok := val.(string); ok {
				size += int64(len(s))
			} else {
				size += 8
			}
		}
	}
	return size
}

// Executor is the opaque database execution primitive the advisor wraps.
type Executor interface {
	Execute(ctx context.Context, sql string, params []interface{}) (*Result, error)
}

// ConnectionConfig holds database connection configuration
type ConnectionConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxConnections  int
	MinConnections  int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// PgxExecutor is an Executor backed by a pgx connection pool.
type PgxExecutor struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewPgxExecutor creates a new PgxExecutor, connecting and pinging the
// configured database.
func NewPgxExecutor(ctx context.Context, config ConnectionConfig, log *logrus.Logger) (*PgxExecutor, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		config.User,
		config.Password,
		config.Host,
		config.Port,
		config.Database,
		config.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if config.MaxConnections > 0 {
		poolConfig.MaxConns = int32(config.MaxConnections)
	} else {
		poolConfig.MaxConns = 10
	}
	if config.MinConnections > 0 {
		poolConfig.MinConns = int32(config.MinConnections)
	} else {
		poolConfig.MinConns = 2
	}
	if config.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = config.ConnMaxLifetime
	} else {
		poolConfig.MaxConnLifetime = time.Hour
	}
	if config.ConnMaxIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.ConnMaxIdleTime
	} else {
		poolConfig.MaxConnIdleTime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Infof("Connected to database %s@%s:%d", config.Database, config.Host, config.Port)

	return &PgxExecutor{pool: pool, log: log}, nil
}

// Execute runs one statement. SELECT-shaped statements are scanned into
// generic row maps; everything else reports affected rows.
func (e *PgxExecutor) Execute(ctx context.Context, sql string, params []interface{}) (*Result, error) {
	if isReadStatement(sql) {
		rows, err := e.pool.Query(ctx, sql, params...)
		if err != nil {
			return nil, fmt.Errorf("failed to execute query: %w", err)
		}
		defer rows.Close()

		result := &Result{Rows: make([]map[string]interface{}, 0)}
		fields := rows.FieldDescriptions()

		for rows.Next() {
			values, err := rows.Values()
			if err != nil {
				return nil, fmt.Errorf("failed to read row: %w", err)
			}
			row := make(map[string]interface{}, len(fields))
			for i, field := range fields {
				row[field.Name] = values[i]
			}
			result.Rows = append(result.Rows, row)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to iterate rows: %w", err)
		}
		result.RowsAffected = int64(len(result.Rows))
		return result, nil
	}

	tag, err := e.pool.Exec(ctx, sql, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute statement: %w", err)
	}
	return &Result{RowsAffected: tag.RowsAffected()}, nil
}

// Stats returns connection pool statistics
func (e *PgxExecutor) Stats() map[string]interface{} {
	stat := e.pool.Stat()
	return map[string]interface{}{
		"acquired_conns": stat.AcquiredConns(),
		"idle_conns":     stat.IdleConns(),
		"max_conns":      stat.MaxConns(),
		"total_conns":    stat.TotalConns(),
	}
}

// Close closes the underlying pool
func (e *PgxExecutor) Close() {
	e.pool.Close()
}

// isReadStatement reports whether the statement returns a row set.
func isReadStatement(sql string) bool {
	trimmed := strings.ToUpper(strings.TrimSpace(sql))
	return strings.HasPrefix(trimmed, "SELECT") || strings.HasPrefix(trimmed, "WITH")
}
