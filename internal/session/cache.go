// Package session holds the per-caller state the engine operates
// under: the effective user, authentication labels, access token, the
// typed identity cache, and the single-transaction discipline.
package session

import (
	"context"
	"sync"
)

// CacheKey identifies one cached object within its type. Usually the
// primary key; composite-keyed types use small comparable structs.
type CacheKey any

// FileChangeKey is the cache key for file changes, which have no
// surrogate id of their own.
type FileChangeKey struct {
	ChangesetID int64
	FileID      int64
}

// SettingKey identifies a setting row within its scope.
type SettingKey struct {
	Scope string
	Name  string
}

// ReloadFunc reads the current row behind one cached object. Returning
// an error drops the entry instead of replacing it.
type ReloadFunc func(ctx context.Context, key CacheKey) (any, error)

// Cache is the per-session identity map, keyed by (table, key). A hit
// short-circuits the database round trip; a miss loads, stores, and
// returns. After a transaction commits, the tables it touched are
// refreshed: cached rows are re-read by key where the table has a
// registered reloader, and dropped wholesale where it does not.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]map[CacheKey]any
	reloaders map[string]ReloadFunc
}

func NewCache() *Cache {
	return &Cache{
		entries:   make(map[string]map[CacheKey]any),
		reloaders: make(map[string]ReloadFunc),
	}
}

// SetReloader registers the per-table row reader RefreshTables uses.
// Fetch layers register one per cached table so commits replace stale
// objects instead of evicting them.
func (c *Cache) SetReloader(table string, reload ReloadFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reloaders[table] = reload
}

func (c *Cache) Lookup(table string, key CacheKey) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byKey, ok := c.entries[table]
	if !ok {
		return nil, false
	}
	value, ok := byKey[key]
	return value, ok
}

func (c *Cache) Store(table string, key CacheKey, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byKey, ok := c.entries[table]
	if !ok {
		byKey = make(map[CacheKey]any)
		c.entries[table] = byKey
	}
	byKey[key] = value
}

func (c *Cache) Drop(table string, key CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if byKey, ok := c.entries[table]; ok {
		delete(byKey, key)
	}
}

// Invalidate drops every cached object of the given tables.
func (c *Cache) Invalidate(tables []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, table := range tables {
		delete(c.entries, table)
	}
}

// RefreshTables re-reads the current rows behind every cached object of
// the given tables and replaces each entry atomically. Entries whose
// reload fails, and all entries of tables without a reloader, are
// dropped so the next fetch re-materializes them.
func (c *Cache) RefreshTables(ctx context.Context, tables []string) {
	type pending struct {
		table string
		key   CacheKey
		load  ReloadFunc
	}
	var work []pending

	c.mu.Lock()
	for _, table := range tables {
		byKey, ok := c.entries[table]
		if !ok {
			continue
		}
		reload, ok := c.reloaders[table]
		if !ok {
			delete(c.entries, table)
			continue
		}
		for key := range byKey {
			work = append(work, pending{table: table, key: key, load: reload})
		}
	}
	c.mu.Unlock()

	for _, p := range work {
		value, err := p.load(ctx, p.key)
		c.mu.Lock()
		if byKey, ok := c.entries[p.table]; ok {
			if err != nil || value == nil {
				delete(byKey, p.key)
			} else {
				byKey[p.key] = value
			}
		}
		c.mu.Unlock()
	}
}

// Size reports the total number of cached objects.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, byKey := range c.entries {
		n += len(byKey)
	}
	return n
}

// Cached is the fetch-through helper: a hit returns the cached value,
// a miss runs load and stores the result.
func Cached[T any](c *Cache, table string, key CacheKey, load func() (T, error)) (T, error) {
	if value, ok := c.Lookup(table, key); ok {
		if typed, ok := value.(T); ok {
			return typed, nil
		}
	}
	value, err := load()
	if err != nil {
		var zero T
		return zero, err
	}
	c.Store(table, key, value)
	return value, nil
}
