package source

// refresher.go reloads cached sources on cron schedules. Each registered
// source runs once when the refresher starts and then on its schedule.
// A failed reload is logged and the previous rows stay in service.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Refresher runs scheduled reloads.
type Refresher struct {
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
	targets map[string]Reloader
	running bool
}

// NewRefresher returns an idle refresher.
func NewRefresher() *Refresher {
	return &Refresher{
		cron:    cron.New(),
		logger:  slog.Default().With("component", "source.refresher"),
		entries: make(map[string]cron.EntryID),
		targets: make(map[string]Reloader),
	}
}

// Add schedules target under name using a standard five-field cron
// expression or a descriptor such as "@every 5m".
func (r *Refresher) Add(ctx context.Context, name, schedule string, target Reloader) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.entries[name]; dup {
		return fmt.Errorf("refresh for %q already scheduled", name)
	}

	id, err := r.cron.AddFunc(schedule, func() { r.run(ctx, name, target) })
	if err != nil {
		return fmt.Errorf("schedule refresh for %q: %w", name, err)
	}
	r.entries[name] = id
	r.targets[name] = target
	return nil
}

// Start reloads every target once, then starts the schedule. The
// refresher stops when ctx is cancelled.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	targets := make(map[string]Reloader, len(r.targets))
	for name, t := range r.targets {
		targets[name] = t
	}
	r.mu.Unlock()

	r.logger.Info("source refresher started", "sources", len(targets))
	for name, t := range targets {
		r.run(ctx, name, t)
	}
	r.cron.Start()

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
}

// Stop halts the schedule and waits for running reloads.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	<-r.cron.Stop().Done()
	r.running = false
	r.logger.Info("source refresher stopped")
}

// NextRun returns when name is next reloaded.
func (r *Refresher) NextRun(name string) (time.Time, bool) {
	r.mu.Lock()
	id, ok := r.entries[name]
	r.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return r.cron.Entry(id).Next, true
}

func (r *Refresher) run(ctx context.Context, name string, target Reloader) {
	start := time.Now()
	if err := target.Reload(ctx); err != nil {
		r.logger.Error("scheduled reload failed", "source", name, "error", err)
		return
	}
	r.logger.Debug("scheduled reload completed",
		"source", name,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
