// Package database is the storage gateway: it adapts PostgreSQL behind
// parameterized queries, streaming result sets, and transactional
// cursors with savepoint support. All SQL issued by the rest of the
// system goes through this package.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrZeroRows is the only distinguished "no row" error. Callers
// translate it into the appropriate invalid-id error; every other
// database error propagates unchanged.
var ErrZeroRows = errors.New("zero rows in result")

// ErrMultipleRows reports that a query expected to produce exactly one
// row produced more.
var ErrMultipleRows = errors.New("multiple rows in result")

// Params carries late-bound named parameters for a statement. Slice
// values expand their placeholder to ANY($n).
type Params map[string]any

// Pool is the connection-pool surface the gateway runs on. Satisfied
// by *pgxpool.Pool; tests substitute a scripted in-memory pool.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

type Gateway struct {
	pool Pool
}

// NewGateway wraps an already-open pool.
func NewGateway(pool Pool) *Gateway { return &Gateway{pool: pool} }

func Open(ctx context.Context, dsn string) (*Gateway, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 25
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Gateway{pool: pool}, nil
}

func (g *Gateway) Close() { g.pool.Close() }

func (g *Gateway) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return g.pool.Ping(ctx)
}

func (g *Gateway) Migrate(ctx context.Context) error {
	_, err := g.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	_, err = g.pool.Exec(ctx, seedSettings)
	if err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}
	return nil
}

// Query runs a read-only statement outside any transaction.
func (g *Gateway) Query(ctx context.Context, text string, params Params) *ResultSet {
	sql, args, err := Expand(text, params)
	if err != nil {
		return &ResultSet{err: err}
	}
	rows, err := g.pool.Query(ctx, sql, args...)
	if err != nil {
		return &ResultSet{err: err}
	}
	return &ResultSet{rows: rows}
}

// Begin opens a TransactionCursor holding one database transaction.
// All statements issued through the cursor share a snapshot and commit
// atomically; if an error escapes the caller must Rollback.
func (g *Gateway) Begin(ctx context.Context) (*TransactionCursor, error) {
	tx, err := g.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &TransactionCursor{tx: tx}, nil
}
