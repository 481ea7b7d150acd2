// Package storage implements the Storage Writer and the Enhanced DB Client
// (spec §4.9, §4.10): a pgx connection pool with query monitoring and
// slow-query detection, a Redis-backed read cache, and transactional
// batched inserts into the partitioned audit_log table.
package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"auditcore/internal/platform/config"
	"auditcore/pkg/errs"
)

// QueryStats describes one executed query, feeding both the Metrics
// Collector's db_query_ms histogram and slow-query flagging.
type QueryStats struct {
	Name        string
	Duration    time.Duration
	RowsFetched int
	Slow        bool
}

// StatsSink receives QueryStats after every query (spec §4.10 query
// monitoring). The Metrics Collector implements this.
type StatsSink interface {
	Observe(QueryStats)
}

// DBClient wraps a pgx pool with query monitoring and health reporting.
type DBClient struct {
	pool        *pgxpool.Pool
	slowQueryMS int64
	stats       StatsSink
	log         *slog.Logger
}

// NewDBClient opens a pgx pool from cfg.
func NewDBClient(ctx context.Context, cfg config.DBConfig, stats StatsSink, log *slog.Logger) (*DBClient, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.CodeConfig, "parse database DSN failed", err)
	}
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MaxConnIdleTime = cfg.IdleTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errs.Wrap(errs.CodeTransient, "open database pool failed", err)
	}

	return &DBClient{pool: pool, slowQueryMS: cfg.SlowQueryMS, stats: stats, log: log}, nil
}

// NewDBClientForPool wraps an already-open pgx pool, bypassing DSN parsing.
// Used by integration tests that obtain their pool from a test container.
func NewDBClientForPool(pool *pgxpool.Pool) *DBClient {
	return &DBClient{pool: pool, slowQueryMS: 1_000}
}

// Pool exposes the underlying pgx pool for callers that need direct access
// (the Storage Writer's transactional batch path).
func (c *DBClient) Pool() *pgxpool.Pool { return c.pool }

// Close releases the pool.
func (c *DBClient) Close() { c.pool.Close() }

// Health reports pool stats and a boolean healthy flag (spec §4.10).
type Health struct {
	Active   int32
	Idle     int32
	MaxConns int32
	Healthy  bool
}

// Health returns the current pool health snapshot.
func (c *DBClient) Health(ctx context.Context) Health {
	stat := c.pool.Stat()
	h := Health{
		Active:   stat.AcquiredConns(),
		Idle:     stat.IdleConns(),
		MaxConns: stat.MaxConns(),
	}
	h.Healthy = c.pool.Ping(ctx) == nil
	return h
}

// observe records query stats and flags slow queries.
func (c *DBClient) observe(name string, start time.Time, rows int) {
	d := time.Since(start)
	slow := d.Milliseconds() >= c.slowQueryMS
	if slow && c.log != nil {
		c.log.Warn("slow query", "query", name, "duration_ms", d.Milliseconds())
	}
	if c.stats != nil {
		c.stats.Observe(QueryStats{Name: name, Duration: d, RowsFetched: rows, Slow: slow})
	}
}
