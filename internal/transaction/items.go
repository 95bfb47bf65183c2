package transaction

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/critic-scm/critic/internal/database"
	"github.com/critic-scm/critic/internal/dbquery"
)

// Item is one typed unit of work in the transaction's FIFO queue.
// Items run in order against the single transaction cursor; an item
// may append further items while running.
type Item interface {
	run(ctx context.Context, tx *Transaction, cursor *database.TransactionCursor) error
}

// Deferred is an id slot filled while the queue drains, typically by
// an Insert's RETURNING clause. Downstream items read the value
// through Get once their turn comes.
type Deferred[T any] struct {
	value T
	set   bool
}

func (d *Deferred[T]) fill(value T) {
	d.value = value
	d.set = true
}

func (d *Deferred[T]) Get() (T, error) {
	if !d.set {
		var zero T
		return zero, errors.New("deferred value read before it was produced")
	}
	return d.value, nil
}

// Insert adds one row. When Returning is non-nil the generated id is
// written into it.
type Insert struct {
	Table     string
	Values    database.Params
	IDColumn  string
	Returning *Deferred[int64]
}

func (item Insert) run(ctx context.Context, tx *Transaction, cursor *database.TransactionCursor) error {
	tx.TouchTables(item.Table)
	columns := sortedColumns(item.Values)
	table := dbquery.Table{Name: item.Table, IDColumn: idColumn(item.IDColumn)}
	sql := table.InsertSQL(columns...)
	id, err := cursor.Insert(ctx, sql, item.Values)
	if err != nil {
		return fmt.Errorf("insert into %s: %w", item.Table, err)
	}
	if item.Returning != nil {
		item.Returning.fill(id)
	}
	return nil
}

// InsertMany adds a batch of uniformly-shaped rows.
type InsertMany struct {
	Table string
	Rows  []database.Params
}

func (item InsertMany) run(ctx context.Context, tx *Transaction, cursor *database.TransactionCursor) error {
	if len(item.Rows) == 0 {
		return nil
	}
	tx.TouchTables(item.Table)
	columns := sortedColumns(item.Rows[0])
	placeholders := make([]string, len(columns))
	for i, column := range columns {
		placeholders[i] = "{" + column + "}"
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		item.Table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	if err := cursor.ExecuteMany(ctx, sql, item.Rows); err != nil {
		return fmt.Errorf("insert many into %s: %w", item.Table, err)
	}
	return nil
}

// Update sets columns on rows matched by the conditions.
type Update struct {
	Table      string
	Values     database.Params
	Conditions []string
	Params     database.Params
}

func (item Update) run(ctx context.Context, tx *Transaction, cursor *database.TransactionCursor) error {
	tx.TouchTables(item.Table)
	table := dbquery.Table{Name: item.Table}
	sql := table.UpdateSQL(sortedColumns(item.Values), item.Conditions)
	if _, err := cursor.Execute(ctx, sql, merge(item.Values, item.Params)); err != nil {
		return fmt.Errorf("update %s: %w", item.Table, err)
	}
	return nil
}

// UpdateMany runs one parameterized UPDATE per parameter set.
type UpdateMany struct {
	Table     string
	Statement string
	Rows      []database.Params
}

func (item UpdateMany) run(ctx context.Context, tx *Transaction, cursor *database.TransactionCursor) error {
	if len(item.Rows) == 0 {
		return nil
	}
	tx.TouchTables(item.Table)
	if err := cursor.ExecuteMany(ctx, item.Statement, item.Rows); err != nil {
		return fmt.Errorf("update many %s: %w", item.Table, err)
	}
	return nil
}

// Delete removes rows matched by the conditions.
type Delete struct {
	Table      string
	Conditions []string
	Params     database.Params
}

func (item Delete) run(ctx context.Context, tx *Transaction, cursor *database.TransactionCursor) error {
	tx.TouchTables(item.Table)
	table := dbquery.Table{Name: item.Table}
	if _, err := cursor.Delete(ctx, table.DeleteSQL(item.Conditions), item.Params); err != nil {
		return fmt.Errorf("delete from %s: %w", item.Table, err)
	}
	return nil
}

// Verify asserts current row values, failing the transaction on any
// mismatch. It backs optimistic checks such as "the comment is still
// in the state the draft change was written against".
type Verify struct {
	Statement string
	Params    database.Params
	Expected  []any
	Code      string
}

func (item Verify) run(ctx context.Context, tx *Transaction, cursor *database.TransactionCursor) error {
	actual := make([]any, len(item.Expected))
	dest := make([]any, len(item.Expected))
	for i := range actual {
		dest[i] = &actual[i]
	}
	err := cursor.Query(ctx, item.Statement, item.Params).One(dest...)
	if errors.Is(err, database.ErrZeroRows) {
		return Errorf(verifyCode(item.Code), "verified row no longer exists")
	}
	if err != nil {
		return err
	}
	for i, expected := range item.Expected {
		if fmt.Sprint(actual[i]) != fmt.Sprint(expected) {
			return Errorf(verifyCode(item.Code),
				"row value %d changed: expected %v, found %v", i, expected, actual[i])
		}
	}
	return nil
}

// Fetch scans one row into Dest.
type Fetch struct {
	Statement string
	Params    database.Params
	Dest      []any
}

func (item Fetch) run(ctx context.Context, tx *Transaction, cursor *database.TransactionCursor) error {
	return cursor.Query(ctx, item.Statement, item.Params).One(item.Dest...)
}

// FetchAll streams every row through Each.
type FetchAll struct {
	Statement string
	Params    database.Params
	Each      func(scan func(dest ...any) error) error
}

func (item FetchAll) run(ctx context.Context, tx *Transaction, cursor *database.TransactionCursor) error {
	return cursor.Query(ctx, item.Statement, item.Params).Each(item.Each)
}

// FetchScalars collects a single-column result into Dest.
type FetchScalars struct {
	Statement string
	Params    database.Params
	Dest      *[]int64
}

func (item FetchScalars) run(ctx context.Context, tx *Transaction, cursor *database.TransactionCursor) error {
	values, err := database.Scalars[int64](cursor.Query(ctx, item.Statement, item.Params))
	if err != nil {
		return err
	}
	*item.Dest = values
	return nil
}

// RawQuery runs a statement for its side effect.
type RawQuery struct {
	Statement string
	Params    database.Params
	Table     string
}

func (item RawQuery) run(ctx context.Context, tx *Transaction, cursor *database.TransactionCursor) error {
	if item.Table != "" {
		tx.TouchTables(item.Table)
	}
	if _, err := cursor.Execute(ctx, item.Statement, item.Params); err != nil {
		return fmt.Errorf("raw query: %w", err)
	}
	return nil
}

// Call runs arbitrary work at its position in the queue. Used by
// modifiers and helpers that need a produced id before they can build
// their statements.
type Call struct {
	Fn func(ctx context.Context, tx *Transaction, cursor *database.TransactionCursor) error
}

func (item Call) run(ctx context.Context, tx *Transaction, cursor *database.TransactionCursor) error {
	return item.Fn(ctx, tx, cursor)
}

func sortedColumns(values database.Params) []string {
	columns := make([]string, 0, len(values))
	for column := range values {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	return columns
}

func merge(a, b database.Params) database.Params {
	merged := make(database.Params, len(a)+len(b))
	for key, value := range a {
		merged[key] = value
	}
	for key, value := range b {
		merged[key] = value
	}
	return merged
}

func idColumn(column string) string {
	if column == "" {
		return "id"
	}
	return column
}

func verifyCode(code string) string {
	if code == "" {
		return "VERIFY_FAILED"
	}
	return code
}
