// Package database provides the PostgreSQL client, embedded schema
// migrations, and the guild-scoped transaction helper that backs row-level
// security.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Client wraps a pgx connection pool.
type Client struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewClient connects a pool using the given configuration.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Client{pool: pool, cfg: cfg}, nil
}

// Pool returns the underlying pgx pool for direct queries.
func (c *Client) Pool() *pgxpool.Pool {
	return c.pool
}

// Config returns the configuration the client was built with.
func (c *Client) Config() Config {
	return c.cfg
}

// Close releases the pool.
func (c *Client) Close() {
	c.pool.Close()
}

// Health pings the database with a short deadline.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}

// InGuildTx runs fn inside a transaction whose session carries the guild id
// in app.current_guild. Row-level-security policies on games, templates,
// and participants read that setting, so even a missing application-layer
// filter cannot leak rows across tenants. set_config(..., true) is
// transaction-local and resets on COMMIT/ROLLBACK, which matters because
// connections return to a shared pool.
func (c *Client) InGuildTx(ctx context.Context, guildID string, fn func(tx pgx.Tx) error) error {
	return c.inTx(ctx, guildID, fn)
}

// InTx runs fn inside a plain transaction with no tenant scope. Reserved
// for cross-guild lookups (session resolution, daemon fires) that run on
// tables without RLS.
func (c *Client) InTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return c.inTx(ctx, "", fn)
}

func (c *Client) inTx(ctx context.Context, guildID string, fn func(tx pgx.Tx) error) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if guildID != "" {
		if _, err := tx.Exec(ctx, "SELECT set_config('app.current_guild', $1, true)", guildID); err != nil {
			return fmt.Errorf("setting guild context: %w", err)
		}
	}

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
