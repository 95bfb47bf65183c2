// Package dbquery builds SQL statements from table metadata and wraps
// the common by-id and by-column fetch patterns with uniform error
// routing.
package dbquery

import (
	"fmt"
	"strings"
)

// InvalidIDError reports that an id references no row of an entity.
type InvalidIDError struct {
	Entity string
	ID     int64
}

func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("invalid %s id: %d", e.Entity, e.ID)
}

// InvalidIDsError reports the subset of a requested id set that
// references no rows.
type InvalidIDsError struct {
	Entity string
	IDs    []int64
}

func (e *InvalidIDsError) Error() string {
	parts := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("invalid %s ids: %s", e.Entity, strings.Join(parts, ", "))
}

// NotDefinedError reports that a key column lookup matched nothing.
type NotDefinedError struct {
	Entity string
	Column string
	Value  any
}

func (e *NotDefinedError) Error() string {
	return fmt.Sprintf("%s with %s=%v is not defined", e.Entity, e.Column, e.Value)
}

// InvalidNameError reports a name that references no row.
type InvalidNameError struct {
	Entity string
	Name   string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid %s name: %q", e.Entity, e.Name)
}

// InvalidKeyError reports a composite key that references no row.
type InvalidKeyError struct {
	Entity string
	Key    any
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid %s key: %v", e.Entity, e.Key)
}

// NotFoundError is the generic argument-references-no-row error for
// lookups that are neither by id nor by a single key column.
type NotFoundError struct {
	Entity string
	What   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.What)
}
