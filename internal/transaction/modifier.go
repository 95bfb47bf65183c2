package transaction

import (
	"context"
	"fmt"

	"github.com/critic-scm/critic/internal/database"
	"github.com/critic-scm/critic/internal/pubsub"
)

// Modifier accumulates column updates for one existing row and emits a
// single modified or deleted event for it at commit, no matter how many
// setters touched it. A modifier nobody touched is a no-op.
type Modifier struct {
	tx       *Transaction
	resource string
	table    string
	id       int64

	updates  database.Params
	extras   map[string]any
	channels []string
	deleted  bool
	queued   bool
}

// Modify returns a modifier for one row. resource is the event
// resource name ("reviews", "comments", …), table the backing table.
func (tx *Transaction) Modify(resource, table string, id int64) *Modifier {
	return &Modifier{
		tx:       tx,
		resource: resource,
		table:    table,
		id:       id,
		updates:  make(database.Params),
		extras:   make(map[string]any),
	}
}

// Set records a column update. The last write for a column wins.
func (m *Modifier) Set(column string, value any) *Modifier {
	m.updates[column] = value
	m.ensureQueued()
	return m
}

// SetMany records several column updates at once.
func (m *Modifier) SetMany(values database.Params) *Modifier {
	for column, value := range values {
		m.updates[column] = value
	}
	m.ensureQueued()
	return m
}

// Extra attaches a resource-specific field to the emitted event
// without updating any column.
func (m *Modifier) Extra(key string, value any) *Modifier {
	m.extras[key] = value
	return m
}

// NotifyOn adds channels beyond the standard resource pair, such as a
// review-scoped sub-channel.
func (m *Modifier) NotifyOn(channels ...string) *Modifier {
	m.channels = append(m.channels, channels...)
	return m
}

// Delete marks the row for deletion. Pending column updates are
// discarded; the event action becomes deleted.
func (m *Modifier) Delete() *Modifier {
	m.deleted = true
	m.updates = make(database.Params)
	m.ensureQueued()
	return m
}

func (m *Modifier) ensureQueued() {
	if m.queued {
		return
	}
	m.queued = true
	m.tx.Push(Call{Fn: m.flush})
}

func (m *Modifier) flush(ctx context.Context, tx *Transaction, cursor *database.TransactionCursor) error {
	channels := append(pubsub.ResourceChannels(m.resource, m.id), m.channels...)

	if m.deleted {
		tx.TouchTables(m.table)
		statement := fmt.Sprintf("DELETE FROM %s WHERE id={id}", m.table)
		if _, err := cursor.Delete(ctx, statement, database.Params{"id": m.id}); err != nil {
			return fmt.Errorf("delete %s %d: %w", m.resource, m.id, err)
		}
		tx.PublishTo(channels, pubsub.Payload{
			ResourceName: m.resource,
			ObjectID:     m.id,
			Action:       pubsub.ActionDeleted,
			Extras:       m.extras,
		})
		return nil
	}

	if len(m.updates) == 0 {
		return nil
	}
	if err := (Update{
		Table:      m.table,
		Values:     m.updates,
		Conditions: []string{"id={id}"},
		Params:     database.Params{"id": m.id},
	}).run(ctx, tx, cursor); err != nil {
		return err
	}
	tx.PublishTo(channels, pubsub.Payload{
		ResourceName: m.resource,
		ObjectID:     m.id,
		Action:       pubsub.ActionModified,
		Updates:      m.updates,
		Extras:       m.extras,
	})
	return nil
}

// CreateAPIObject inserts a row and queues the created event, handing
// back the deferred id for downstream items.
func (tx *Transaction) CreateAPIObject(resource, table string, values database.Params, extras map[string]any, channels ...string) *Deferred[int64] {
	id := &Deferred[int64]{}
	tx.Push(
		Insert{Table: table, Values: values, Returning: id},
		Call{Fn: func(ctx context.Context, tx *Transaction, cursor *database.TransactionCursor) error {
			objectID, err := id.Get()
			if err != nil {
				return err
			}
			all := append(pubsub.ResourceChannels(resource, objectID), channels...)
			tx.PublishTo(all, pubsub.Payload{
				ResourceName: resource,
				ObjectID:     objectID,
				Action:       pubsub.ActionCreated,
				Extras:       extras,
			})
			return nil
		}},
	)
	return id
}
