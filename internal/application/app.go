// Package application wires configuration, table sources, the export engine
// and metrics into one App shared by the HTTP server and the CLI.
package application

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/datagrid/internal/config"
	"github.com/JonMunkholm/datagrid/internal/core"
	"github.com/JonMunkholm/datagrid/internal/export"
	"github.com/JonMunkholm/datagrid/internal/metrics"
	"github.com/JonMunkholm/datagrid/internal/schema"
	"github.com/JonMunkholm/datagrid/internal/sink"
	"github.com/JonMunkholm/datagrid/internal/source"
)

// App owns the long-lived state of a running instance.
type App struct {
	cfg *config.Config

	pool   *pgxpool.Pool
	sqlite map[string]*sql.DB // by file path

	mu      sync.RWMutex
	sources map[string]*source.Opened

	refresher *source.Refresher
	metrics   *metrics.Collector
	limiter   *export.Limiter
	engine    *export.Engine
	jobs      *export.Manager
	archive   core.DownloadSink
}

// New builds an App from cfg: it registers schema files, connects
// databases, opens every table's source and prepares the export engine.
// Sources are not read until first use or Start.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{
		cfg:       cfg,
		sources:   make(map[string]*source.Opened),
		sqlite:    make(map[string]*sql.DB),
		refresher: source.NewRefresher(),
		metrics:   metrics.New(cfg.Metrics.Runtime),
		limiter:   export.NewLimiter(cfg.Export.MaxConcurrent, cfg.Export.MaxWaitTime),
	}

	specs := map[string]source.Spec{
		schema.TasksKey: {
			Kind:    cfg.Source.Kind,
			Path:    cfg.Source.Path,
			Table:   cfg.Source.Table,
			Refresh: cfg.Source.Refresh,
			Watch:   cfg.Source.Watch,
		},
	}
	if cfg.Source.SchemaDir != "" {
		file, err := schema.LoadDir(cfg.Source.SchemaDir)
		if err != nil {
			return nil, err
		}
		if err := file.Register(); err != nil {
			return nil, err
		}
		for key, spec := range file.Sources() {
			specs[key] = spec
		}
		slog.Info("schema files loaded", "dir", cfg.Source.SchemaDir, "tables", len(file.Tables))
	}

	if err := a.connect(ctx, specs); err != nil {
		a.closeDatabases()
		return nil, err
	}

	for key, spec := range specs {
		def, ok := core.Get(key)
		if !ok {
			a.closeDatabases()
			return nil, fmt.Errorf("source for %s: %w", key, core.ErrUnknownTable)
		}
		var seed []core.Row
		if key == schema.TasksKey {
			seed = schema.SampleTasks(cfg.Source.SampleRows, time.Now())
		}
		deps := source.Deps{Postgres: a.pool}
		if strings.EqualFold(spec.Kind, source.KindSQLite) && spec.Path != "" {
			deps.SQLite = a.sqlite[spec.Path]
			spec.Path = ""
		}
		opened, err := source.Open(spec, def, deps, seed)
		if err != nil {
			a.closeDatabases()
			return nil, err
		}
		a.sources[key] = opened
	}

	if err := a.setupExports(); err != nil {
		a.closeDatabases()
		return nil, err
	}
	return a, nil
}

// connect opens the shared Postgres pool when a postgres source is declared
// and one SQLite handle per database file.
func (a *App) connect(ctx context.Context, specs map[string]source.Spec) error {
	for _, spec := range specs {
		if strings.EqualFold(spec.Kind, source.KindSQLite) && spec.Path != "" {
			if _, ok := a.sqlite[spec.Path]; ok {
				continue
			}
			db, err := source.OpenSQLite(spec.Path)
			if err != nil {
				return err
			}
			a.sqlite[spec.Path] = db
			continue
		}
		if !strings.EqualFold(spec.Kind, source.KindPostgres) || a.pool != nil {
			continue
		}
		if a.cfg.Database.URL == "" {
			return fmt.Errorf("postgres source declared but DATABASE_URL is not set")
		}
		pool, err := source.ConnectPostgres(ctx, source.PoolConfig{
			URL:             a.cfg.Database.URL,
			MaxConns:        a.cfg.Database.MaxConns,
			MinConns:        a.cfg.Database.MinConns,
			MaxConnLifetime: a.cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: a.cfg.Database.MaxConnIdleTime,
		})
		if err != nil {
			return err
		}
		a.pool = pool
		slog.Info("connected to database", "max_conns", a.cfg.Database.MaxConns)
	}
	return nil
}

func (a *App) setupExports() error {
	if dir := a.cfg.Export.Dir; dir != "" {
		d, err := sink.NewDir(dir)
		if err != nil {
			return err
		}
		a.archive = d
		if a.cfg.Export.LZ4Level >= 0 {
			level, err := sink.ParseLZ4Level(a.cfg.Export.LZ4Level)
			if err != nil {
				return err
			}
			a.archive = sink.NewLZ4(d, level)
		}
	}

	a.engine = export.NewEngine(a.archive, export.WithObserver(a.metrics))
	a.jobs = export.NewManager(a.engine, a.limiter, a.cfg.Export.JobRetention)

	gauges := []struct {
		subsystem, name, help string
		fn                    func() int
	}{
		{"export", "jobs_active", "Export jobs not yet finished.", a.jobs.Active},
		{"export", "slots_in_use", "Export limiter slots currently held.", a.limiter.ActiveCount},
		{"export", "slots_max", "Export limiter capacity.", a.limiter.MaxConcurrent},
	}
	for _, g := range gauges {
		if err := a.metrics.Gauge(g.subsystem, g.name, g.help, g.fn); err != nil {
			return fmt.Errorf("register %s gauge: %w", g.name, err)
		}
	}
	return nil
}

// Start loads cached sources, starts file watchers and the refresh
// schedule. Everything stops when ctx is cancelled.
func (a *App) Start(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for key, opened := range a.sources {
		if err := opened.Keep(ctx, key, a.refresher); err != nil {
			return fmt.Errorf("source %s: %w", key, err)
		}
		if opened.Cached != nil && opened.Schedule == "" {
			if err := opened.Cached.Reload(ctx); err != nil {
				slog.Warn("initial load failed", "table", key, "error", err)
			}
		}
	}
	a.refresher.Start(ctx)
	return nil
}

// Config returns the configuration the app was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Metrics returns the metrics collector.
func (a *App) Metrics() *metrics.Collector { return a.metrics }

// Engine returns the export engine.
func (a *App) Engine() *export.Engine { return a.engine }

// Jobs returns the background export manager.
func (a *App) Jobs() *export.Manager { return a.jobs }

// Limiter returns the export concurrency limiter.
func (a *App) Limiter() *export.Limiter { return a.limiter }

// Archive returns the sink that keeps copies of background exports, or nil.
func (a *App) Archive() core.DownloadSink { return a.archive }

// Source returns the row source of a registered table.
func (a *App) Source(table string) (core.RowSource, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	opened, ok := a.sources[table]
	if !ok {
		return nil, fmt.Errorf("table %q: %w", table, core.ErrUnknownTable)
	}
	return opened.Source, nil
}

// Reload re-reads a table's backing store. Memory sources are a no-op.
func (a *App) Reload(ctx context.Context, table string) error {
	a.mu.RLock()
	opened, ok := a.sources[table]
	a.mu.RUnlock()
	if !ok {
		return fmt.Errorf("table %q: %w", table, core.ErrUnknownTable)
	}
	if opened.Cached == nil {
		return nil
	}
	return opened.Cached.Reload(ctx)
}

// SourceStatus describes one table's source for health reporting.
type SourceStatus struct {
	Table    string    `json:"table"`
	Version  uint64    `json:"version"`
	Cached   bool      `json:"cached"`
	LoadedAt time.Time `json:"loaded_at,omitempty"`
	NextRun  time.Time `json:"next_refresh,omitempty"`
}

// Sources reports every table source, sorted by table key.
func (a *App) Sources() []SourceStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]SourceStatus, 0, len(a.sources))
	for key, opened := range a.sources {
		st := SourceStatus{Table: key, Version: opened.Source.Version(), Cached: opened.Cached != nil}
		if opened.Cached != nil {
			st.LoadedAt = opened.Cached.LoadedAt()
		}
		if next, ok := a.refresher.NextRun(key); ok {
			st.NextRun = next
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Table < out[j].Table })
	return out
}

// Shutdown waits for export jobs, stops refreshes and closes databases.
func (a *App) Shutdown(ctx context.Context) error {
	status := a.limiter.Status()
	if status.Active > 0 {
		slog.Info("waiting for exports to complete", "active", status.Active)
	}
	err := a.jobs.Shutdown(ctx)
	if err == nil {
		err = a.limiter.WaitForDrain(ctx)
	}
	if err != nil {
		slog.Warn("exports did not complete in time", "error", err)
	}
	a.refresher.Stop()
	a.closeDatabases()
	return err
}

func (a *App) closeDatabases() {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	for path, db := range a.sqlite {
		db.Close()
		delete(a.sqlite, path)
	}
}
