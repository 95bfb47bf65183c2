package database

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ResultSet is a streaming result. Exactly one of the consuming
// methods may be called; each closes the underlying rows.
type ResultSet struct {
	rows pgx.Rows
	err  error
}

// Err exposes a query-construction or execution error, if any.
func (r *ResultSet) Err() error { return r.err }

// One scans exactly one row into dest. Zero rows yields ErrZeroRows,
// more than one yields ErrMultipleRows.
func (r *ResultSet) One(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	defer r.rows.Close()
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return err
		}
		return ErrZeroRows
	}
	if err := r.rows.Scan(dest...); err != nil {
		return err
	}
	if r.rows.Next() {
		return ErrMultipleRows
	}
	return r.rows.Err()
}

// MaybeOne scans at most one row into dest, reporting whether a row
// was present.
func (r *ResultSet) MaybeOne(dest ...any) (bool, error) {
	err := r.One(dest...)
	switch {
	case errors.Is(err, ErrZeroRows):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// Each streams every row through fn. fn receives a scan function bound
// to the current row.
func (r *ResultSet) Each(fn func(scan func(dest ...any) error) error) error {
	if r.err != nil {
		return r.err
	}
	defer r.rows.Close()
	for r.rows.Next() {
		if err := fn(r.rows.Scan); err != nil {
			return err
		}
	}
	return r.rows.Err()
}

// Scalar scans the single column of the single row into dest.
func (r *ResultSet) Scalar(dest any) error { return r.One(dest) }

// Empty reports whether the result contains no rows.
func (r *ResultSet) Empty() (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	defer r.rows.Close()
	if r.rows.Next() {
		return false, r.rows.Err()
	}
	return true, r.rows.Err()
}

// Ignore drains and discards the result, keeping only errors.
func (r *ResultSet) Ignore() error {
	if r.err != nil {
		return r.err
	}
	r.rows.Close()
	return r.rows.Err()
}

// Scalars collects the single column of every row.
func Scalars[T any](r *ResultSet) ([]T, error) {
	if r.err != nil {
		return nil, r.err
	}
	values, err := pgx.CollectRows(r.rows, pgx.RowTo[T])
	if err != nil {
		return nil, fmt.Errorf("collect scalars: %w", err)
	}
	return values, nil
}

// All collects every row through a per-row constructor.
func All[T any](r *ResultSet, scan func(row pgx.CollectableRow) (T, error)) ([]T, error) {
	if r.err != nil {
		return nil, r.err
	}
	return pgx.CollectRows(r.rows, scan)
}
