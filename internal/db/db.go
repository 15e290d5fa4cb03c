// Package db is the persistence façade (C9): async read/write of account,
// character, item, area-trigger and realm rows over three independent
// connection pools, matching the auth/realm/game database split spec.md §6
// names.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool wraps a pgx connection pool for one of the three databases this
// system speaks to.
type Pool struct {
	pool *pgxpool.Pool
}

// Connect opens a pool against dsn and verifies connectivity within ctx.
func Connect(ctx context.Context, dsn string) (*Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("db: connecting: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db: pinging: %w", err)
	}
	return &Pool{pool: pool}, nil
}

// Close releases the pool's connections.
func (p *Pool) Close() {
	p.pool.Close()
}

// Raw exposes the underlying pgxpool.Pool, for goose migrations and
// repository construction.
func (p *Pool) Raw() *pgxpool.Pool {
	return p.pool
}
