package source

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/JonMunkholm/datagrid/internal/core"
)

func taskDefinition() core.TableDefinition {
	return core.TableDefinition{
		Info: core.TableInfo{Key: "tasks", Group: "Project", Label: "Tasks"},
		Columns: []core.Column{
			{ID: "select", Kind: core.FieldText, Visible: true, Structural: true},
			{ID: "taskCode", Label: "Task", Kind: core.FieldText, Visible: true},
			{ID: "title", Label: "Title", Kind: core.FieldText, Visible: true},
			{ID: "status", Label: "Status", Kind: core.FieldEnum, Visible: true},
			{ID: "createdAt", Label: "Created", Kind: core.FieldDate, Visible: true},
			{ID: "estimate", Label: "Estimate", Kind: core.FieldNumeric, Visible: true},
		},
		KeyColumn: "taskCode",
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var errStoreDown = errors.New("store down")

// countingReloader records reloads and can be told to fail.
type countingReloader struct {
	mu    sync.Mutex
	calls int
	err   error
	ch    chan struct{}
}

func newCountingReloader() *countingReloader {
	return &countingReloader{ch: make(chan struct{}, 64)}
}

func (r *countingReloader) Reload(context.Context) error {
	r.mu.Lock()
	r.calls++
	err := r.err
	r.mu.Unlock()
	r.ch <- struct{}{}
	return err
}

func (r *countingReloader) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func waitFor(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}
