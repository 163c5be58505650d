package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// staticSource is an in-memory RowSource whose version bumps on every replace.
type staticSource struct {
	mu      sync.Mutex
	rows    []Row
	version uint64
	reads   int
	err     error
}

func newStaticSource(rows ...Row) *staticSource {
	return &staticSource{rows: rows, version: 1}
}

func (s *staticSource) AllRows(context.Context) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.err != nil {
		return nil, s.err
	}
	return append([]Row(nil), s.rows...), nil
}

func (s *staticSource) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

func (s *staticSource) replace(rows ...Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = rows
	s.version++
}

func (s *staticSource) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

var errSourceDown = errors.New("source down")

func testColumns() []Column {
	return []Column{
		{ID: "select", Kind: FieldText, Visible: true, Structural: true},
		{ID: "taskCode", Label: "Task", Kind: FieldText, Visible: true},
		{ID: "title", Label: "Title", Kind: FieldText, Visible: true},
		{ID: "status", Label: "Status", Kind: FieldEnum, Visible: true, Options: []Option{
			{Value: "TODO", Label: "Todo"},
			{Value: "IN_PROGRESS", Label: "In Progress"},
			{Value: "DONE", Label: "Done"},
		}},
		{ID: "priority", Label: "Priority", Kind: FieldEnum, Visible: true, Options: []Option{
			{Value: "HIGH", Label: "High"},
			{Value: "LOW", Label: "Low"},
		}},
		{ID: "createdAt", Label: "Created", Kind: FieldDate, Visible: true},
		{ID: "estimate", Label: "Estimate", Kind: FieldNumeric, Visible: false},
		{ID: "actions", Kind: FieldText, Visible: true, Structural: true},
	}
}

func testRegistry() *ColumnRegistry {
	reg, err := NewColumnRegistry(testColumns()...)
	if err != nil {
		panic(err)
	}
	return reg
}

func testDefinition() TableDefinition {
	return TableDefinition{
		Info:       TableInfo{Key: "tasks", Group: "Project", Label: "Tasks"},
		Columns:    testColumns(),
		KeyColumn:  "taskCode",
		DateColumn: "createdAt",
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// taskRows returns five tasks with statuses TODO, DONE, TODO, DONE, DONE.
func taskRows() []Row {
	statuses := []string{"TODO", "DONE", "TODO", "DONE", "DONE"}
	priorities := []any{"HIGH", "LOW", nil, "HIGH", "URGENT"}
	titles := []string{"Fix bug", "Write docs", "Refactor, parser", "Ship release", "Triage inbox"}

	rows := make([]Row, len(statuses))
	for i := range statuses {
		key := fmt.Sprintf("TASK-%d", i+1)
		rows[i] = NewRow(key, map[string]any{
			"taskCode":  key,
			"title":     titles[i],
			"status":    statuses[i],
			"priority":  priorities[i],
			"createdAt": day(2024, time.January, 10*i+1),
			"estimate":  float64(i + 1),
		})
	}
	return rows
}

func rowKeys(rows []Row) []string {
	keys := make([]string, len(rows))
	for i, r := range rows {
		keys[i] = r.Key
	}
	return keys
}
