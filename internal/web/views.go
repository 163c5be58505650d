package web

// views.go keeps the mounted table views of the UI. A view is created when a
// table page is opened, addressed by an opaque id, and dropped after it has
// been idle for the configured timeout.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/datagrid/internal/core"
)

// DefaultViewIdle is how long an untouched view is kept.
const DefaultViewIdle = 30 * time.Minute

type mountedView struct {
	id       string
	table    string
	view     *core.TableView
	created  time.Time
	lastUsed time.Time
}

// ViewStore holds mounted views by id. It is safe for concurrent use.
type ViewStore struct {
	mu       sync.Mutex
	views    map[string]*mountedView
	idle     time.Duration
	observer core.Observer
	now      func() time.Time
}

// NewViewStore creates a store dropping views idle for longer than idle.
// observer may be nil.
func NewViewStore(idle time.Duration, observer core.Observer) *ViewStore {
	if idle <= 0 {
		idle = DefaultViewIdle
	}
	return &ViewStore{
		views:    make(map[string]*mountedView),
		idle:     idle,
		observer: observer,
		now:      time.Now,
	}
}

// Mount creates a view of def over src and returns its id.
func (s *ViewStore) Mount(def core.TableDefinition, src core.RowSource) (string, *core.TableView, error) {
	var opts []core.ViewOption
	if s.observer != nil {
		opts = append(opts, core.WithObserver(s.observer))
	}
	view, err := core.NewTableView(def, src, opts...)
	if err != nil {
		return "", nil, err
	}

	now := s.now()
	mv := &mountedView{
		id:       uuid.NewString(),
		table:    def.Info.Key,
		view:     view,
		created:  now,
		lastUsed: now,
	}

	s.mu.Lock()
	s.views[mv.id] = mv
	s.mu.Unlock()
	return mv.id, view, nil
}

// Get returns a mounted view and marks it used.
func (s *ViewStore) Get(id string) (*core.TableView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mv, ok := s.views[id]
	if !ok {
		return nil, fmt.Errorf("view %s: %w", id, core.ErrViewNotFound)
	}
	mv.lastUsed = s.now()
	return mv.view, nil
}

// Unmount discards a view. It reports whether the view existed.
func (s *ViewStore) Unmount(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.views[id]
	delete(s.views, id)
	return ok
}

// Len returns the number of mounted views.
func (s *ViewStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.views)
}

// Sweep drops views idle since before now minus the idle timeout and
// returns how many were dropped.
func (s *ViewStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-s.idle)
	n := 0
	for id, mv := range s.views {
		if mv.lastUsed.Before(cutoff) {
			delete(s.views, id)
			n++
		}
	}
	return n
}

// Run sweeps idle views every interval until ctx is cancelled.
func (s *ViewStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(s.now()); n > 0 {
				slog.Debug("idle views dropped", "count", n, "remaining", s.Len())
			}
		}
	}
}
