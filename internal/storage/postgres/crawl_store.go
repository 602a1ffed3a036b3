// Package postgres persists crawl records in Postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/font-crawler/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "crawls"

// Config controls the Postgres connection pool used for crawl rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// CrawlStore writes and reads crawl rows.
type CrawlStore struct {
	pool  pool
	table string
}

// NewCrawlStore connects a pool using cfg.
func NewCrawlStore(ctx context.Context, cfg Config) (*CrawlStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &CrawlStore{pool: p, table: table}, nil
}

// NewCrawlStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewCrawlStoreWithPool(p pool, table string) (*CrawlStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &CrawlStore{pool: p, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		return defaultTable, nil
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *CrawlStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the crawl table when it does not exist.
func (s *CrawlStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id            TEXT PRIMARY KEY,
	start_url     TEXT NOT NULL,
	strategy      TEXT NOT NULL,
	page_limit    INTEGER NOT NULL,
	status        TEXT NOT NULL,
	reason        TEXT NOT NULL DEFAULT '',
	fonts         TEXT[] NOT NULL DEFAULT '{}',
	pages_visited INTEGER NOT NULL DEFAULT 0,
	pages_failed  INTEGER NOT NULL DEFAULT 0,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create crawl table: %w", err)
	}
	return nil
}

// SaveCrawl upserts a crawl row.
func (s *CrawlStore) SaveCrawl(ctx context.Context, record crawler.CrawlRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("crawl store is not configured")
	}
	if record.ID == "" {
		return fmt.Errorf("crawl id is required")
	}
	fonts := record.Fonts
	if fonts == nil {
		fonts = []string{}
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	start_url,
	strategy,
	page_limit,
	status,
	reason,
	fonts,
	pages_visited,
	pages_failed,
	started_at,
	finished_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	reason = EXCLUDED.reason,
	fonts = EXCLUDED.fonts,
	pages_visited = EXCLUDED.pages_visited,
	pages_failed = EXCLUDED.pages_failed,
	finished_at = EXCLUDED.finished_at`, s.table)

	args := []any{
		record.ID,
		record.Request.StartURL,
		string(record.Request.Strategy),
		record.Request.PageLimit,
		string(record.Status),
		record.Reason,
		fonts,
		record.PagesVisited,
		record.PagesFailed,
		record.StartedAt,
		record.FinishedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert crawl: %w", err)
	}
	return nil
}

// GetCrawl loads a crawl row by id.
func (s *CrawlStore) GetCrawl(ctx context.Context, id string) (crawler.CrawlRecord, error) {
	if s == nil || s.pool == nil {
		return crawler.CrawlRecord{}, fmt.Errorf("crawl store is not configured")
	}
	query := fmt.Sprintf(`
SELECT start_url, strategy, page_limit, status, reason, fonts,
	pages_visited, pages_failed, started_at, finished_at
FROM %s WHERE id = $1`, s.table)

	var (
		rec      = crawler.CrawlRecord{ID: id}
		strategy string
		status   string
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&rec.Request.StartURL,
		&strategy,
		&rec.Request.PageLimit,
		&status,
		&rec.Reason,
		&rec.Fonts,
		&rec.PagesVisited,
		&rec.PagesFailed,
		&rec.StartedAt,
		&rec.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return crawler.CrawlRecord{}, fmt.Errorf("get crawl %s: %w", id, crawler.ErrCrawlNotFound)
	}
	if err != nil {
		return crawler.CrawlRecord{}, fmt.Errorf("select crawl: %w", err)
	}
	rec.Request.Strategy = crawler.Strategy(strategy)
	rec.Status = crawler.CrawlStatus(status)
	if rec.Fonts == nil {
		rec.Fonts = []string{}
	}
	return rec, nil
}
