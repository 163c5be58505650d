package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestCSVFile_Load(t *testing.T) {
	content := "\xEF\xBB\xBFTask,title,STATUS,Created,Estimate,Ignored\n" +
		"TASK-1,\"Fix, bug\",TODO,2024-01-05,\"$1,250.50\",x\n" +
		"\n" +
		"TASK-2,Write docs,DONE,3/15/2024,,y\n" +
		",Untracked,DONE,soon,n/a,z\n"
	path := writeFile(t, "tasks.csv", content)

	rows, err := NewCSVFile(path, taskDefinition()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Load() returned %d rows, want 3 (blank line skipped)", len(rows))
	}

	first := rows[0]
	if first.Key != "TASK-1" {
		t.Errorf("rows[0].Key = %q, want TASK-1", first.Key)
	}
	if got := first.Value("title"); got != "Fix, bug" {
		t.Errorf("title = %v, want %q", got, "Fix, bug")
	}
	if got := first.Value("status"); got != "TODO" {
		t.Errorf("status = %v, want TODO", got)
	}
	if got, ok := first.Value("createdAt").(time.Time); !ok || !got.Equal(day(2024, 1, 5)) {
		t.Errorf("createdAt = %v, want 2024-01-05", first.Value("createdAt"))
	}
	if got := first.Value("estimate"); got != 1250.5 {
		t.Errorf("estimate = %v, want 1250.5", got)
	}
	if _, ok := first.Cells["Ignored"]; ok {
		t.Error("unknown header column was loaded")
	}

	if got := rows[1].Value("estimate"); got != nil {
		t.Errorf("empty estimate = %v, want nil", got)
	}
	if got, ok := rows[1].Value("createdAt").(time.Time); !ok || !got.Equal(day(2024, 3, 15)) {
		t.Errorf("US date = %v, want 2024-03-15", rows[1].Value("createdAt"))
	}

	last := rows[2]
	if last.Key != "row-3" {
		t.Errorf("row without key got Key = %q, want row-3", last.Key)
	}
	if got := last.Value("createdAt"); got != "soon" {
		t.Errorf("unparseable date = %v, want kept as text", got)
	}
}

func TestCSVFile_MissingColumnsAreNil(t *testing.T) {
	path := writeFile(t, "partial.csv", "taskCode;title\nTASK-9;Only two\n")
	l := NewCSVFile(path, taskDefinition())
	l.Comma = ';'

	rows, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Load() returned %d rows, want 1", len(rows))
	}
	if v, ok := rows[0].Cells["status"]; !ok || v != nil {
		t.Errorf("status = %v (present %v), want nil cell", v, ok)
	}
	if rows[0].Value("title") != "Only two" {
		t.Errorf("title = %v", rows[0].Value("title"))
	}
}

func TestCSVFile_Errors(t *testing.T) {
	_, err := NewCSVFile(filepath.Join(t.TempDir(), "missing.csv"), taskDefinition()).Load(context.Background())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v, want os.ErrNotExist", err)
	}

	empty := writeFile(t, "empty.csv", "")
	_, err = NewCSVFile(empty, taskDefinition()).Load(context.Background())
	if !errors.Is(err, ErrMissingHeader) {
		t.Errorf("empty file error = %v, want ErrMissingHeader", err)
	}
}

func TestCSVFile_CancelledContext(t *testing.T) {
	path := writeFile(t, "tasks.csv", "taskCode\nTASK-1\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewCSVFile(path, taskDefinition()).Load(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}
