package export

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/JonMunkholm/datagrid/internal/core"
)

type delivery struct {
	filename string
	payload  []byte
	mimeType string
}

// recordingSink captures deliveries and can be told to fail or block.
type recordingSink struct {
	mu         sync.Mutex
	deliveries []delivery
	err        error
	block      chan struct{}
}

func (s *recordingSink) Deliver(ctx context.Context, filename string, payload []byte, mimeType string) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.deliveries = append(s.deliveries, delivery{filename, append([]byte(nil), payload...), mimeType})
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deliveries)
}

func (s *recordingSink) last() delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deliveries[len(s.deliveries)-1]
}

var errDiskFull = errors.New("disk full")

// slowEncoder blocks until released, then writes a fixed payload.
type slowEncoder struct {
	release chan struct{}
	started chan struct{}
}

func newSlowEncoder() *slowEncoder {
	return &slowEncoder{release: make(chan struct{}), started: make(chan struct{}, 16)}
}

func (e *slowEncoder) Encode(ctx context.Context, w io.Writer, s *Snapshot) error {
	e.started <- struct{}{}
	select {
	case <-e.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	_, err := w.Write([]byte("slow"))
	return err
}

type failingEncoder struct{}

func (failingEncoder) Encode(context.Context, io.Writer, *Snapshot) error {
	return errors.New("boom")
}

func taskColumns() []core.Column {
	return []core.Column{
		{ID: "title", Label: "Title", Kind: core.FieldText, Visible: true},
		{ID: "status", Label: "Status", Kind: core.FieldEnum, Visible: true,
			Options: []core.Option{{Value: "TODO"}, {Value: "DONE"}}},
	}
}

func taskRow(key, title, status string) core.Row {
	return core.NewRow(key, map[string]any{"title": title, "status": status})
}

func manyRows(n int) []core.Row {
	rows := make([]core.Row, n)
	for i := range rows {
		rows[i] = core.NewRow("", map[string]any{
			"title":     "A reasonably long task title that needs some room in the table " + time.Duration(i).String(),
			"status":    "TODO",
			"createdAt": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
		})
	}
	return rows
}
