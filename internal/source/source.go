// Package source provides the row sources a table view reads from: an
// in-memory collection and a cache over loaders for CSV files, Postgres,
// SQLite and Parquet. Watcher and Refresher keep cached sources current.
package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JonMunkholm/datagrid/internal/core"
	"github.com/JonMunkholm/datagrid/internal/logging"
	"golang.org/x/sync/singleflight"
)

// Loader reads a complete row collection from an external store.
type Loader interface {
	Load(ctx context.Context) ([]core.Row, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context) ([]core.Row, error)

func (f LoaderFunc) Load(ctx context.Context) ([]core.Row, error) { return f(ctx) }

// Reloader is a source that can re-read its backing store.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Memory is a row source over an in-process slice.
type Memory struct {
	mu      sync.RWMutex
	rows    []core.Row
	version uint64
}

// NewMemory returns a source holding rows.
func NewMemory(rows []core.Row) *Memory {
	m := &Memory{}
	m.Replace(rows)
	return m
}

// AllRows returns the held rows.
func (m *Memory) AllRows(ctx context.Context) ([]core.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rows, nil
}

// Version increments on every Replace.
func (m *Memory) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// Replace swaps the held rows.
func (m *Memory) Replace(rows []core.Row) {
	own := make([]core.Row, len(rows))
	copy(own, rows)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = own
	m.version++
}

// Cached loads rows on first use and serves them until Reload.
// A failed reload keeps the previous rows and version.
type Cached struct {
	name   string
	loader Loader

	mu       sync.RWMutex
	rows     []core.Row
	version  uint64
	loadedAt time.Time
	loading  sync.Mutex
	first    singleflight.Group
}

// NewCached wraps loader. name identifies the source in logs.
func NewCached(name string, loader Loader) *Cached {
	return &Cached{name: name, loader: loader}
}

// Name returns the source name.
func (c *Cached) Name() string { return c.name }

// AllRows returns the cached rows, loading them first if needed.
// Concurrent first readers share a single load run with the first caller's
// context.
func (c *Cached) AllRows(ctx context.Context) ([]core.Row, error) {
	if rows, ok := c.loaded(); ok {
		return rows, nil
	}

	_, err, _ := c.first.Do(c.name, func() (any, error) {
		if _, ok := c.loaded(); ok {
			return nil, nil
		}
		return nil, c.Reload(ctx)
	})
	if err != nil {
		return nil, err
	}
	rows, _ := c.loaded()
	return rows, nil
}

func (c *Cached) loaded() ([]core.Row, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rows, c.version > 0
}

// Version is zero until the first successful load and increments with
// every reload after it.
func (c *Cached) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// LoadedAt returns when the rows were last loaded.
func (c *Cached) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

// Reload reads the backing store and replaces the cached rows.
func (c *Cached) Reload(ctx context.Context) error {
	c.loading.Lock()
	defer c.loading.Unlock()

	start := time.Now()
	rows, err := c.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("reload %s: %w", c.name, err)
	}

	c.mu.Lock()
	c.rows = rows
	c.version++
	c.loadedAt = time.Now()
	version := c.version
	c.mu.Unlock()

	logging.FromContext(ctx).Info("source loaded",
		"source", c.name,
		"rows", len(rows),
		"version", version,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
