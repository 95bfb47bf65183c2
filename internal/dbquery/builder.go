package dbquery

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Table carries the metadata the builders work from.
type Table struct {
	Name         string
	Columns      []string
	IDColumn     string
	DefaultOrder string
	DefaultJoins []string
}

// Select starts a SELECT of the given columns, defaulting to the
// table's column list.
func (t Table) Select(columns ...string) *SelectBuilder {
	if len(columns) == 0 {
		columns = t.Columns
	}
	return &SelectBuilder{
		table:   t,
		columns: columns,
		joins:   append([]string(nil), t.DefaultJoins...),
		orderBy: t.DefaultOrder,
	}
}

type SelectBuilder struct {
	table      Table
	columns    []string
	conditions []string
	joins      []string
	orderBy    string
	limit      int
	distinctOn string
}

// Where appends conditions, joined by AND.
func (b *SelectBuilder) Where(conditions ...string) *SelectBuilder {
	b.conditions = append(b.conditions, conditions...)
	return b
}

func (b *SelectBuilder) Join(joins ...string) *SelectBuilder {
	b.joins = append(b.joins, joins...)
	return b
}

func (b *SelectBuilder) OrderBy(expr string) *SelectBuilder {
	b.orderBy = expr
	return b
}

func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	b.limit = n
	return b
}

func (b *SelectBuilder) DistinctOn(expr string) *SelectBuilder {
	b.distinctOn = expr
	return b
}

func (b *SelectBuilder) SQL() string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if b.distinctOn != "" {
		sb.WriteString("DISTINCT ON (")
		sb.WriteString(b.distinctOn)
		sb.WriteString(") ")
	}
	sb.WriteString(strings.Join(b.columns, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(b.table.Name)
	for _, join := range b.joins {
		sb.WriteString(" ")
		sb.WriteString(join)
	}
	if len(b.conditions) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.conditions, " AND "))
	}
	if b.orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(b.orderBy)
	}
	if b.limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(b.limit))
	}
	return sb.String()
}

// InsertSQL builds an INSERT binding each column to the parameter of
// the same name and returning the generated id.
func (t Table) InsertSQL(columns ...string) string {
	placeholders := make([]string, len(columns))
	for i, column := range columns {
		placeholders[i] = "{" + column + "}"
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		t.Name, strings.Join(columns, ", "), strings.Join(placeholders, ", "), t.IDColumn,
	)
}

// UpdateSQL builds an UPDATE of the given columns constrained by the
// given conditions.
func (t Table) UpdateSQL(columns []string, conditions []string) string {
	assignments := make([]string, len(columns))
	for i, column := range columns {
		assignments[i] = column + "={" + column + "}"
	}
	sql := fmt.Sprintf("UPDATE %s SET %s", t.Name, strings.Join(assignments, ", "))
	if len(conditions) > 0 {
		sql += " WHERE " + strings.Join(conditions, " AND ")
	}
	return sql
}

func (t Table) DeleteSQL(conditions []string) string {
	sql := "DELETE FROM " + t.Name
	if len(conditions) > 0 {
		sql += " WHERE " + strings.Join(conditions, " AND ")
	}
	return sql
}

// FormatCondition renders a column comparison appropriate for the
// runtime shape of the value: IS NULL for nil, equality otherwise.
// Slice-shaped values read the same at this level; the placeholder
// expansion turns them into `= ANY($n)` at bind time.
func FormatCondition(column, param string, value any) string {
	if value == nil {
		return column + " IS NULL"
	}
	if rv := reflect.ValueOf(value); rv.Kind() == reflect.Ptr && rv.IsNil() {
		return column + " IS NULL"
	}
	return column + "={" + param + "}"
}
