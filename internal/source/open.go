package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/datagrid/internal/core"
)

// Source kinds accepted by Spec.Kind.
const (
	KindMemory   = "memory"
	KindCSV      = "csv"
	KindParquet  = "parquet"
	KindSQLite   = "sqlite"
	KindPostgres = "postgres"
)

// Spec describes where a table's rows come from.
type Spec struct {
	Kind    string `yaml:"kind"`
	Path    string `yaml:"path"`    // csv, parquet and sqlite files
	Table   string `yaml:"table"`   // sqlite and postgres table, defaults to the table key
	Refresh string `yaml:"refresh"` // cron schedule for periodic reloads
	Watch   bool   `yaml:"watch"`   // reload csv and parquet files when they change
}

// Deps holds shared connections that database-backed sources draw on.
type Deps struct {
	Postgres Querier
	SQLite   *sql.DB
}

// Opened is a source built from a Spec plus what keeps it current.
type Opened struct {
	Source   core.RowSource
	Cached   *Cached // nil for memory sources
	Watcher  *Watcher
	Schedule string
}

// Open builds the row source described by spec. Rows are read lazily on
// first use. A watcher is created for watched files but not started.
func Open(spec Spec, def core.TableDefinition, deps Deps, seed []core.Row) (*Opened, error) {
	kind := strings.ToLower(strings.TrimSpace(spec.Kind))
	if kind == "" {
		kind = KindMemory
	}

	var loader Loader
	switch kind {
	case KindMemory:
		return &Opened{Source: NewMemory(seed)}, nil
	case KindCSV:
		if spec.Path == "" {
			return nil, fmt.Errorf("source %s: csv path is required", def.Info.Key)
		}
		loader = NewCSVFile(spec.Path, def)
	case KindParquet:
		if spec.Path == "" {
			return nil, fmt.Errorf("source %s: parquet path is required", def.Info.Key)
		}
		loader = NewParquet(spec.Path, def)
	case KindSQLite:
		db := deps.SQLite
		if spec.Path != "" {
			opened, err := OpenSQLite(spec.Path)
			if err != nil {
				return nil, fmt.Errorf("source %s: %w", def.Info.Key, err)
			}
			db = opened
		}
		if db == nil {
			return nil, fmt.Errorf("source %s: no sqlite database configured", def.Info.Key)
		}
		loader = NewSQLite(db, spec.Table, def)
	case KindPostgres:
		if deps.Postgres == nil {
			return nil, fmt.Errorf("source %s: no postgres connection configured", def.Info.Key)
		}
		loader = NewPostgres(deps.Postgres, spec.Table, def)
	default:
		return nil, fmt.Errorf("source %s: unknown source kind %q", def.Info.Key, spec.Kind)
	}

	cached := NewCached(def.Info.Key, loader)
	out := &Opened{Source: cached, Cached: cached, Schedule: spec.Refresh}

	if spec.Watch && (kind == KindCSV || kind == KindParquet) {
		w, err := NewWatcher(spec.Path, cached, DefaultDebounce)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", def.Info.Key, err)
		}
		out.Watcher = w
	}
	return out, nil
}

// Keep starts the watcher and registers the refresh schedule of an opened
// source. Both stop when ctx is cancelled.
func (o *Opened) Keep(ctx context.Context, name string, r *Refresher) error {
	if o.Watcher != nil {
		go o.Watcher.Run(ctx)
	}
	if o.Schedule != "" && o.Cached != nil && r != nil {
		return r.Add(ctx, name, o.Schedule, o.Cached)
	}
	return nil
}

// Age reports how long ago a cached source last loaded, or zero.
func (o *Opened) Age() time.Duration {
	if o.Cached == nil || o.Cached.LoadedAt().IsZero() {
		return 0
	}
	return time.Since(o.Cached.LoadedAt())
}
