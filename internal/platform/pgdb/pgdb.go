package pgdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
)

// Client runs analyst queries against the relational store.
type Client struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// New opens a pool. It returns (nil, nil) when url is empty.
func New(ctx context.Context, log *logger.Logger, url string) (*Client, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, nil
	}
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("pgdb: parse config: %w", err)
	}
	if cfg.MaxConns == 0 || cfg.MaxConns > 10 {
		cfg.MaxConns = 10
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgdb: connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgdb: ping: %w", err)
	}
	return &Client{pool: pool, log: log.With("client", "PgxPool")}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.pool == nil {
		return fmt.Errorf("pgdb: not connected")
	}
	return c.pool.Ping(ctx)
}

// QueryReadOnly runs sql inside a read-only transaction and returns column names plus rows.
func (c *Client) QueryReadOnly(ctx context.Context, sql string, args ...any) ([]string, []map[string]any, error) {
	if c == nil || c.pool == nil {
		return nil, nil, fmt.Errorf("pgdb: not connected")
	}
	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, nil, fmt.Errorf("pgdb: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("pgdb: query: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, nil, fmt.Errorf("pgdb: collect: %w", err)
	}
	fields := rows.FieldDescriptions()
	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		cols = append(cols, f.Name)
	}
	return cols, out, nil
}

func (c *Client) Close() {
	if c == nil || c.pool == nil {
		return
	}
	c.pool.Close()
}
