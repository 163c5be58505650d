package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JonMunkholm/datagrid/internal/core"
)

func TestMemory_ReplaceBumpsVersion(t *testing.T) {
	rows := []core.Row{core.NewRow("a", nil), core.NewRow("b", nil)}
	m := NewMemory(rows)

	if got := m.Version(); got != 1 {
		t.Errorf("initial Version() = %d, want 1", got)
	}

	rows[0].Key = "mutated"
	got, err := m.AllRows(context.Background())
	if err != nil {
		t.Fatalf("AllRows() error = %v", err)
	}
	if len(got) != 2 || got[0].Key != "a" {
		t.Errorf("AllRows() = %v, want rows a and b unaffected by caller mutation", got)
	}

	m.Replace(nil)
	if got := m.Version(); got != 2 {
		t.Errorf("Version() after Replace = %d, want 2", got)
	}
	got, _ = m.AllRows(context.Background())
	if len(got) != 0 {
		t.Errorf("AllRows() after Replace(nil) = %d rows, want 0", len(got))
	}
}

func TestMemory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMemory(nil).AllRows(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("AllRows() error = %v, want context.Canceled", err)
	}
}

func TestCached_LoadsLazilyAndReloads(t *testing.T) {
	loads := 0
	batch := []core.Row{core.NewRow("1", nil)}
	var fail error
	c := NewCached("tasks", LoaderFunc(func(context.Context) ([]core.Row, error) {
		if fail != nil {
			return nil, fail
		}
		loads++
		return batch, nil
	}))
	ctx := context.Background()

	if c.Version() != 0 || loads != 0 {
		t.Fatalf("before first read: Version() = %d, loads = %d, want 0, 0", c.Version(), loads)
	}

	rows, err := c.AllRows(ctx)
	if err != nil {
		t.Fatalf("AllRows() error = %v", err)
	}
	if len(rows) != 1 || c.Version() != 1 {
		t.Errorf("after first read: rows = %d, Version() = %d, want 1, 1", len(rows), c.Version())
	}

	c.AllRows(ctx)
	if loads != 1 {
		t.Errorf("second AllRows() reloaded: loads = %d, want 1", loads)
	}

	batch = []core.Row{core.NewRow("1", nil), core.NewRow("2", nil)}
	if err := c.Reload(ctx); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	rows, _ = c.AllRows(ctx)
	if len(rows) != 2 || c.Version() != 2 {
		t.Errorf("after Reload: rows = %d, Version() = %d, want 2, 2", len(rows), c.Version())
	}
	if c.LoadedAt().IsZero() {
		t.Error("LoadedAt() is zero after a load")
	}

	fail = errStoreDown
	if err := c.Reload(ctx); !errors.Is(err, errStoreDown) {
		t.Errorf("failing Reload() error = %v, want errStoreDown", err)
	}
	rows, _ = c.AllRows(ctx)
	if len(rows) != 2 || c.Version() != 2 {
		t.Errorf("after failed Reload: rows = %d, Version() = %d, want previous 2, 2", len(rows), c.Version())
	}
}

func TestCached_FirstLoadFailure(t *testing.T) {
	c := NewCached("tasks", LoaderFunc(func(context.Context) ([]core.Row, error) {
		return nil, errStoreDown
	}))

	_, err := c.AllRows(context.Background())
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("AllRows() error = %v, want errStoreDown", err)
	}
	if c.Version() != 0 {
		t.Errorf("Version() = %d after failed load, want 0", c.Version())
	}
}

func TestCached_ConcurrentFirstReadersShareOneLoad(t *testing.T) {
	var loads atomic.Int32
	c := NewCached("tasks", LoaderFunc(func(context.Context) ([]core.Row, error) {
		loads.Add(1)
		time.Sleep(20 * time.Millisecond)
		return []core.Row{core.NewRow("1", nil)}, nil
	}))

	const readers = 8
	start := make(chan struct{})
	errs := make(chan error, readers)
	var wg sync.WaitGroup
	for range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			rows, err := c.AllRows(context.Background())
			if err == nil && len(rows) != 1 {
				err = fmt.Errorf("AllRows() = %d rows, want 1", len(rows))
			}
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Error(err)
		}
	}
	if got := loads.Load(); got != 1 {
		t.Errorf("loads = %d, want 1", got)
	}
	if c.Version() != 1 {
		t.Errorf("Version() = %d, want 1", c.Version())
	}
}

func TestCached_FeedsTableView(t *testing.T) {
	def := taskDefinition()
	c := NewCached("tasks", LoaderFunc(func(context.Context) ([]core.Row, error) {
		return []core.Row{
			core.NewRow("TASK-1", map[string]any{"taskCode": "TASK-1", "status": "TODO"}),
			core.NewRow("TASK-2", map[string]any{"taskCode": "TASK-2", "status": "DONE"}),
		}, nil
	}))

	view, err := core.NewTableView(def, c)
	if err != nil {
		t.Fatalf("NewTableView() error = %v", err)
	}
	view.Toggle("status", "DONE")

	rows, err := view.VisibleRows(context.Background())
	if err != nil {
		t.Fatalf("VisibleRows() error = %v", err)
	}
	if len(rows) != 1 || rows[0].Key != "TASK-2" {
		t.Errorf("VisibleRows() = %v, want TASK-2 only", rows)
	}
}
