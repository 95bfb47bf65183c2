package database

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// FakePool is a scripted in-memory Pool. Tests that exercise the
// transaction layer register canned results by SQL substring, run the
// code under test against a gateway wrapping the fake, and assert on
// the recorded statement sequence.
type FakePool struct {
	mu         sync.Mutex
	rules      []*fakeRule
	statements []Statement

	// CommitErr fails the outermost transaction commit when set.
	CommitErr error
}

// Statement is one recorded SQL execution, including transaction
// control markers (BEGIN, COMMIT, SAVEPOINT, ...).
type Statement struct {
	SQL  string
	Args []any
}

type fakeRule struct {
	substr   string
	rows     [][]any
	affected int64
	err      error
	once     bool
	used     bool
}

func NewFakePool() *FakePool { return &FakePool{} }

// On returns the given rows for every statement containing substr.
// Rules are consulted in registration order; the first match wins.
func (p *FakePool) On(substr string, rows ...[]any) {
	p.addRule(&fakeRule{substr: substr, rows: rows})
}

// OnOnce is On for a single match; later statements fall through to
// subsequent rules, so one query can produce different results over
// the course of a test.
func (p *FakePool) OnOnce(substr string, rows ...[]any) {
	p.addRule(&fakeRule{substr: substr, rows: rows, once: true})
}

// OnExec reports the given affected-row count for matching statements.
func (p *FakePool) OnExec(substr string, affected int64) {
	p.addRule(&fakeRule{substr: substr, affected: affected})
}

// OnError fails matching statements.
func (p *FakePool) OnError(substr string, err error) {
	p.addRule(&fakeRule{substr: substr, err: err})
}

func (p *FakePool) addRule(r *fakeRule) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rules = append(p.rules, r)
}

// Recorded returns the statements executed so far, in order.
func (p *FakePool) Recorded() []Statement {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Statement(nil), p.statements...)
}

// Executed reports whether any recorded statement contains substr.
func (p *FakePool) Executed(substr string) bool {
	return p.indexOf(substr, 0) >= 0
}

// ExecutedBefore reports whether a statement containing first was
// recorded before one containing second.
func (p *FakePool) ExecutedBefore(first, second string) bool {
	i := p.indexOf(first, 0)
	if i < 0 {
		return false
	}
	return p.indexOf(second, i+1) >= 0
}

func (p *FakePool) indexOf(substr string, from int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := from; i < len(p.statements); i++ {
		if strings.Contains(p.statements[i].SQL, substr) {
			return i
		}
	}
	return -1
}

func (p *FakePool) record(sql string, args []any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statements = append(p.statements, Statement{SQL: sql, Args: args})
}

func (p *FakePool) match(sql string) *fakeRule {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.rules {
		if r.once && r.used {
			continue
		}
		if strings.Contains(sql, r.substr) {
			r.used = true
			return r
		}
	}
	return nil
}

func (p *FakePool) run(sql string, args []any) ([][]any, pgconn.CommandTag, error) {
	p.record(sql, args)
	r := p.match(sql)
	if r == nil {
		return nil, pgconn.NewCommandTag("OK 0"), nil
	}
	if r.err != nil {
		return nil, pgconn.CommandTag{}, r.err
	}
	tag := pgconn.NewCommandTag(fmt.Sprintf("OK %d", r.affected))
	return r.rows, tag, nil
}

func (p *FakePool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	rows, _, err := p.run(sql, args)
	if err != nil {
		return nil, err
	}
	return &fakeRows{rows: rows}, nil
}

func (p *FakePool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	_, tag, err := p.run(sql, args)
	return tag, err
}

func (p *FakePool) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	p.record("BEGIN", nil)
	return &fakeTx{pool: p}, nil
}

func (p *FakePool) Ping(ctx context.Context) error { return nil }

func (p *FakePool) Close() {}

type fakeTx struct {
	pool  *FakePool
	depth int
}

func (t *fakeTx) Begin(ctx context.Context) (pgx.Tx, error) {
	t.pool.record("SAVEPOINT", nil)
	return &fakeTx{pool: t.pool, depth: t.depth + 1}, nil
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.depth > 0 {
		t.pool.record("RELEASE SAVEPOINT", nil)
		return nil
	}
	t.pool.record("COMMIT", nil)
	return t.pool.CommitErr
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if t.depth > 0 {
		t.pool.record("ROLLBACK TO SAVEPOINT", nil)
	} else {
		t.pool.record("ROLLBACK", nil)
	}
	return nil
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.pool.Exec(ctx, sql, args...)
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.pool.Query(ctx, sql, args...)
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	rows, _, err := t.pool.run(sql, args)
	return &fakeRow{rows: rows, err: err}
}

func (t *fakeTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return &fakeBatchResults{pool: t.pool, queued: b.QueuedQueries}
}

func (t *fakeTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, fmt.Errorf("copy from is not supported")
}

func (t *fakeTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, fmt.Errorf("prepare is not supported")
}

func (t *fakeTx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }

func (t *fakeTx) Conn() *pgx.Conn { return nil }

type fakeBatchResults struct {
	pool   *FakePool
	queued []*pgx.QueuedQuery
	next   int
}

func (b *fakeBatchResults) take() ([][]any, pgconn.CommandTag, error) {
	if b.next >= len(b.queued) {
		return nil, pgconn.CommandTag{}, fmt.Errorf("batch has no more queued statements")
	}
	q := b.queued[b.next]
	b.next++
	return b.pool.run(q.SQL, q.Arguments)
}

func (b *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	_, tag, err := b.take()
	return tag, err
}

func (b *fakeBatchResults) Query() (pgx.Rows, error) {
	rows, _, err := b.take()
	if err != nil {
		return nil, err
	}
	return &fakeRows{rows: rows}, nil
}

func (b *fakeBatchResults) QueryRow() pgx.Row {
	rows, _, err := b.take()
	return &fakeRow{rows: rows, err: err}
}

func (b *fakeBatchResults) Close() error { return nil }

type fakeRows struct {
	rows [][]any
	idx  int
	err  error
}

func (r *fakeRows) Next() bool {
	if r.err != nil || r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	row := r.rows[r.idx-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan expects %d destinations, row has %d columns", len(dest), len(row))
	}
	for i, d := range dest {
		if err := assign(d, row[i]); err != nil {
			r.err = err
			return err
		}
	}
	return nil
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error) {
	if r.idx == 0 || r.idx > len(r.rows) {
		return nil, fmt.Errorf("no current row")
	}
	return r.rows[r.idx-1], nil
}
func (r *fakeRows) RawValues() [][]byte { return nil }
func (r *fakeRows) Conn() *pgx.Conn     { return nil }

type fakeRow struct {
	rows [][]any
	err  error
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(r.rows) == 0 {
		return pgx.ErrNoRows
	}
	rows := &fakeRows{rows: r.rows}
	rows.Next()
	return rows.Scan(dest...)
}

// assign stores a scripted column value into a scan destination,
// converting between compatible types and allocating through one level
// of pointer indirection for nullable columns.
func assign(dest, value any) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Pointer || dv.IsNil() {
		return fmt.Errorf("scan destination must be a non-nil pointer, got %T", dest)
	}
	elem := dv.Elem()
	if value == nil {
		elem.Set(reflect.Zero(elem.Type()))
		return nil
	}
	sv := reflect.ValueOf(value)
	switch {
	case sv.Type().AssignableTo(elem.Type()):
		elem.Set(sv)
	case elem.Kind() != reflect.Pointer && sv.Type().ConvertibleTo(elem.Type()):
		elem.Set(sv.Convert(elem.Type()))
	case elem.Kind() == reflect.Pointer && sv.Type().ConvertibleTo(elem.Type().Elem()):
		boxed := reflect.New(elem.Type().Elem())
		boxed.Elem().Set(sv.Convert(elem.Type().Elem()))
		elem.Set(boxed)
	default:
		return fmt.Errorf("cannot scan %T into %T", value, dest)
	}
	return nil
}
