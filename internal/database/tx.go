package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// TransactionCursor holds one database transaction. Statements issued
// through it share the transaction's snapshot; Commit or Rollback ends
// it. Savepoints let finalizers speculate and roll back without
// abandoning the outer transaction.
type TransactionCursor struct {
	tx   pgx.Tx
	done bool
}

func (c *TransactionCursor) Query(ctx context.Context, text string, params Params) *ResultSet {
	sql, args, err := Expand(text, params)
	if err != nil {
		return &ResultSet{err: err}
	}
	rows, err := c.tx.Query(ctx, sql, args...)
	if err != nil {
		return &ResultSet{err: err}
	}
	return &ResultSet{rows: rows}
}

// Execute runs a statement and returns the affected row count.
func (c *TransactionCursor) Execute(ctx context.Context, text string, params Params) (int64, error) {
	sql, args, err := Expand(text, params)
	if err != nil {
		return 0, err
	}
	tag, err := c.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ExecuteMany runs one statement once per parameter set, pipelined in
// a single batch round trip.
func (c *TransactionCursor) ExecuteMany(ctx context.Context, text string, paramsList []Params) error {
	if len(paramsList) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, params := range paramsList {
		sql, args, err := Expand(text, params)
		if err != nil {
			return err
		}
		batch.Queue(sql, args...)
	}
	results := c.tx.SendBatch(ctx, batch)
	defer results.Close()
	for range paramsList {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// Insert runs an INSERT carrying a RETURNING clause for the generated
// id and returns it.
func (c *TransactionCursor) Insert(ctx context.Context, text string, params Params) (int64, error) {
	var id int64
	if err := c.Query(ctx, text, params).Scalar(&id); err != nil {
		if errors.Is(err, ErrZeroRows) {
			return 0, fmt.Errorf("insert returned no id")
		}
		return 0, err
	}
	return id, nil
}

// InsertMany inserts one row per parameter set and returns the
// generated ids in order.
func (c *TransactionCursor) InsertMany(ctx context.Context, text string, paramsList []Params) ([]int64, error) {
	if len(paramsList) == 0 {
		return nil, nil
	}
	batch := &pgx.Batch{}
	for _, params := range paramsList {
		sql, args, err := Expand(text, params)
		if err != nil {
			return nil, err
		}
		batch.Queue(sql, args...)
	}
	results := c.tx.SendBatch(ctx, batch)
	defer results.Close()
	ids := make([]int64, 0, len(paramsList))
	for range paramsList {
		var id int64
		if err := results.QueryRow().Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Delete runs a DELETE and returns the affected row count.
func (c *TransactionCursor) Delete(ctx context.Context, text string, params Params) (int64, error) {
	return c.Execute(ctx, text, params)
}

func (c *TransactionCursor) Commit(ctx context.Context) error {
	c.done = true
	if err := c.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. Safe to defer after Commit.
func (c *TransactionCursor) Rollback(ctx context.Context) {
	if c.done {
		return
	}
	c.done = true
	_ = c.tx.Rollback(ctx)
}

// Savepoint opens a nested transaction. Rolling it back undoes only
// the work since the savepoint; the outer cursor stays usable.
func (c *TransactionCursor) Savepoint(ctx context.Context) (*Savepoint, error) {
	inner, err := c.tx.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("savepoint: %w", err)
	}
	return &Savepoint{cursor: &TransactionCursor{tx: inner}}, nil
}

type Savepoint struct {
	cursor *TransactionCursor
}

// Cursor exposes the nested transaction for statements that should be
// undoable by Rollback.
func (s *Savepoint) Cursor() *TransactionCursor { return s.cursor }

// Release keeps the savepoint's work in the outer transaction.
func (s *Savepoint) Release(ctx context.Context) error {
	s.cursor.done = true
	return s.cursor.tx.Commit(ctx)
}

// Rollback discards the savepoint's work.
func (s *Savepoint) Rollback(ctx context.Context) error {
	s.cursor.done = true
	return s.cursor.tx.Rollback(ctx)
}
