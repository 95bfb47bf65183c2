package dbquery

import (
	"context"
	"errors"

	"github.com/critic-scm/critic/internal/database"
)

// Queryer is satisfied by both the gateway and a transaction cursor.
type Queryer interface {
	Query(ctx context.Context, text string, params database.Params) *database.ResultSet
}

// RowScanner materializes one value from the current row.
type RowScanner[T any] func(scan func(dest ...any) error) (T, error)

// FetchByID loads one row by primary key, converting the zero-row case
// to an InvalidIDError.
func FetchByID[T any](ctx context.Context, q Queryer, table Table, id int64, scan RowScanner[T]) (T, error) {
	var zero T
	sql := table.Select().Where(table.IDColumn + "={id}").SQL()
	value, found, err := fetchOne(q.Query(ctx, sql, database.Params{"id": id}), scan)
	if err != nil {
		return zero, err
	}
	if !found {
		return zero, &InvalidIDError{Entity: table.Name, ID: id}
	}
	return value, nil
}

// FetchByIDs loads rows for every requested id, preserving request
// order. Missing ids are reported together in an InvalidIDsError.
func FetchByIDs[T any](ctx context.Context, q Queryer, table Table, ids []int64, idOf func(T) int64, scan RowScanner[T]) ([]T, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sql := table.Select().Where(table.IDColumn + "={ids}").SQL()
	byID := make(map[int64]T, len(ids))
	err := q.Query(ctx, sql, database.Params{"ids": ids}).Each(
		func(scanRow func(dest ...any) error) error {
			value, err := scan(scanRow)
			if err != nil {
				return err
			}
			byID[idOf(value)] = value
			return nil
		})
	if err != nil {
		return nil, err
	}
	var missing []int64
	values := make([]T, 0, len(ids))
	for _, id := range ids {
		value, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		values = append(values, value)
	}
	if len(missing) > 0 {
		return nil, &InvalidIDsError{Entity: table.Name, IDs: missing}
	}
	return values, nil
}

// FetchByColumn loads one row by an alternate key column, converting
// the zero-row case to a NotDefinedError.
func FetchByColumn[T any](ctx context.Context, q Queryer, table Table, column string, value any, scan RowScanner[T]) (T, error) {
	var zero T
	sql := table.Select().Where(FormatCondition(column, "value", value)).SQL()
	params := database.Params{}
	if value != nil {
		params["value"] = value
	}
	result, found, err := fetchOne(q.Query(ctx, sql, params), scan)
	if err != nil {
		return zero, err
	}
	if !found {
		return zero, &NotDefinedError{Entity: table.Name, Column: column, Value: value}
	}
	return result, nil
}

// FetchAll streams every row matching the given conditions.
func FetchAll[T any](ctx context.Context, q Queryer, sql string, params database.Params, scan RowScanner[T]) ([]T, error) {
	var values []T
	err := q.Query(ctx, sql, params).Each(func(scanRow func(dest ...any) error) error {
		value, err := scan(scanRow)
		if err != nil {
			return err
		}
		values = append(values, value)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

func fetchOne[T any](rs *database.ResultSet, scan RowScanner[T]) (T, bool, error) {
	var (
		value T
		found bool
	)
	err := rs.Each(func(scanRow func(dest ...any) error) error {
		if found {
			return database.ErrMultipleRows
		}
		v, err := scan(scanRow)
		if err != nil {
			return err
		}
		value, found = v, true
		return nil
	})
	if err != nil {
		var zero T
		if errors.Is(err, database.ErrZeroRows) {
			return zero, false, nil
		}
		return zero, false, err
	}
	return value, found, nil
}
