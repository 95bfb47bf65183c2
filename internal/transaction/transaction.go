// Package transaction implements the single-writer mutation path: a
// queue of typed items, derived-state finalizers, row locks, and the
// transactional event outbox, all committed through one database
// transaction per API request.
package transaction

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/critic-scm/critic/internal/database"
	"github.com/critic-scm/critic/internal/pubsub"
	"github.com/critic-scm/critic/internal/session"
)

// Waker nudges named background services after commit so they pick up
// new work without polling delay.
type Waker interface {
	Wake(names ...string)
}

type lockKey struct {
	table  string
	column string
}

// Transaction accumulates mutations and commits them atomically. It is
// not safe for concurrent use; each API request builds and commits its
// own transaction on its own goroutine.
type Transaction struct {
	session *session.Session
	gateway *database.Gateway
	outbox  *pubsub.Outbox
	waker   Waker
	logger  *slog.Logger

	items   []Item
	drained int

	tables     map[string]struct{}
	locks      map[lockKey]map[int64]struct{}
	finalizers []Finalizer
	registered map[string]struct{}

	preCommit  []func(ctx context.Context, cursor *database.TransactionCursor) error
	postCommit []func(ctx context.Context)
	messages   []pubsub.Message
	wake       map[string]struct{}
	shared     map[string]any

	finished bool
}

// Begin claims the session's transaction slot and returns an empty
// transaction. Callers must end it with Commit or Abort.
func Begin(sess *session.Session, gateway *database.Gateway, outbox *pubsub.Outbox, waker Waker, logger *slog.Logger) (*Transaction, error) {
	if err := sess.EnterTransaction(); err != nil {
		return nil, err
	}
	return &Transaction{
		session:    sess,
		gateway:    gateway,
		outbox:     outbox,
		waker:      waker,
		logger:     logger,
		tables:     make(map[string]struct{}),
		locks:      make(map[lockKey]map[int64]struct{}),
		registered: make(map[string]struct{}),
		wake:       make(map[string]struct{}),
		shared:     make(map[string]any),
	}, nil
}

func (tx *Transaction) Session() *session.Session { return tx.session }

// Push appends items to the queue. Items appended while the queue is
// draining run after the currently queued ones, in order.
func (tx *Transaction) Push(items ...Item) {
	tx.items = append(tx.items, items...)
}

// TouchTables records tables whose rows this transaction writes; the
// session cache refreshes them after commit.
func (tx *Transaction) TouchTables(tables ...string) {
	for _, table := range tables {
		tx.tables[table] = struct{}{}
	}
}

// Lock registers rows to be locked FOR UPDATE at the start of commit.
// Locks registered for the same (table, column) pair are taken in one
// statement, with ids sorted to keep lock order deterministic across
// concurrent transactions.
func (tx *Transaction) Lock(table, column string, ids ...int64) {
	key := lockKey{table: table, column: column}
	set, ok := tx.locks[key]
	if !ok {
		set = make(map[int64]struct{})
		tx.locks[key] = set
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
}

// AddFinalizer registers a finalizer; a second registration with the
// same key is dropped.
func (tx *Transaction) AddFinalizer(finalizer Finalizer) {
	if _, ok := tx.registered[finalizer.Key()]; ok {
		return
	}
	tx.registered[finalizer.Key()] = struct{}{}
	tx.finalizers = append(tx.finalizers, finalizer)
}

// PreCommit runs fn inside the database transaction, after items and
// finalizers but before the commit itself.
func (tx *Transaction) PreCommit(fn func(ctx context.Context, cursor *database.TransactionCursor) error) {
	tx.preCommit = append(tx.preCommit, fn)
}

// PostCommit runs fn after a successful commit. Post-commit work must
// tolerate the process dying before it runs.
func (tx *Transaction) PostCommit(fn func(ctx context.Context)) {
	tx.postCommit = append(tx.postCommit, fn)
}

// Publish queues a message for delivery after commit. The message is
// written to the outbox inside the database transaction.
func (tx *Transaction) Publish(msg pubsub.Message) {
	tx.messages = append(tx.messages, msg)
}

// PublishTo is Publish with the channel list built inline.
func (tx *Transaction) PublishTo(channels []string, payload pubsub.Payload) {
	tx.Publish(pubsub.Message{Channels: channels, Payload: payload})
}

// WakeService schedules a post-commit wake of a named background
// service.
func (tx *Transaction) WakeService(name string) {
	tx.wake[name] = struct{}{}
}

// Shared returns a value stashed by an earlier item or finalizer in
// this transaction.
func (tx *Transaction) Shared(key string) (any, bool) {
	value, ok := tx.shared[key]
	return value, ok
}

func (tx *Transaction) SetShared(key string, value any) {
	tx.shared[key] = value
}

// Commit runs the queued work and commits. On any error the database
// transaction rolls back and no events are delivered.
func (tx *Transaction) Commit(ctx context.Context) (err error) {
	if tx.finished {
		return Errorf("TRANSACTION_FINISHED", "transaction already committed or aborted")
	}
	tx.finished = true
	defer tx.session.LeaveTransaction()

	ctx, span := otel.Tracer("critic/transaction").Start(ctx, "transaction.Commit")
	defer span.End()
	span.SetAttributes(
		attribute.Int("items", len(tx.items)),
		attribute.Int("finalizers", len(tx.finalizers)),
	)

	started := time.Now()
	defer func() {
		commitDuration.Observe(time.Since(started).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "commit failed")
			commitsTotal.WithLabelValues("error").Inc()
		} else {
			commitsTotal.WithLabelValues("ok").Inc()
		}
	}()

	cursor, err := tx.gateway.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer cursor.Rollback(ctx)

	if err := tx.takeLocks(ctx, cursor); err != nil {
		return err
	}
	if err := tx.drain(ctx, cursor); err != nil {
		return err
	}
	if err := tx.runFinalizers(ctx, cursor); err != nil {
		return err
	}
	for _, fn := range tx.preCommit {
		if err := fn(ctx, cursor); err != nil {
			return err
		}
	}

	reserved, err := tx.outbox.Reserve(ctx, cursor, tx.messages)
	if err != nil {
		return err
	}

	if err := cursor.Commit(ctx); err != nil {
		return err
	}

	for _, fn := range tx.postCommit {
		fn(ctx)
	}

	tables := make([]string, 0, len(tx.tables))
	for table := range tx.tables {
		tables = append(tables, table)
	}
	tx.session.Cache().RefreshTables(ctx, tables)

	if err := tx.outbox.Flush(ctx, tx.gateway, reserved); err != nil {
		// The commit stands; delivery is retried by the pubsub service.
		tx.logger.Warn("post-commit event delivery failed", "error", err)
	}
	itemsTotal.Add(float64(tx.drained))

	if tx.waker != nil && len(tx.wake) > 0 {
		names := make([]string, 0, len(tx.wake))
		for name := range tx.wake {
			names = append(names, name)
		}
		sort.Strings(names)
		tx.waker.Wake(names...)
	}
	return nil
}

// Abort releases the session's transaction slot without running the
// queued items.
func (tx *Transaction) Abort() {
	if tx.finished {
		return
	}
	tx.finished = true
	tx.session.LeaveTransaction()
}

func (tx *Transaction) takeLocks(ctx context.Context, cursor *database.TransactionCursor) error {
	keys := make([]lockKey, 0, len(tx.locks))
	for key := range tx.locks {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].table != keys[j].table {
			return keys[i].table < keys[j].table
		}
		return keys[i].column < keys[j].column
	})
	for _, key := range keys {
		ids := make([]int64, 0, len(tx.locks[key]))
		for id := range tx.locks[key] {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		statement := fmt.Sprintf(
			"SELECT %s FROM %s WHERE %s={ids} ORDER BY %s FOR UPDATE",
			key.column, key.table, key.column, key.column)
		if err := cursor.Query(ctx, statement, database.Params{"ids": ids}).Ignore(); err != nil {
			return fmt.Errorf("lock %s rows: %w", key.table, err)
		}
	}
	return nil
}

// drain runs queued items by index so items appended mid-drain still
// run in order.
func (tx *Transaction) drain(ctx context.Context, cursor *database.TransactionCursor) error {
	for tx.drained < len(tx.items) {
		item := tx.items[tx.drained]
		tx.drained++
		if err := item.run(ctx, tx, cursor); err != nil {
			return err
		}
	}
	return nil
}

func (tx *Transaction) runFinalizers(ctx context.Context, cursor *database.TransactionCursor) error {
	ordered, err := orderFinalizers(tx.finalizers)
	if err != nil {
		return err
	}
	for _, finalizer := range ordered {
		if err := finalizer.Run(ctx, tx, cursor); err != nil {
			return fmt.Errorf("finalizer %s: %w", finalizer.Key(), err)
		}
		if err := tx.drain(ctx, cursor); err != nil {
			return err
		}
	}
	return nil
}
