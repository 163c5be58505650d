package source

import (
	"context"
	"strings"
	"testing"

	"github.com/JonMunkholm/datagrid/internal/core"
)

func TestOpen(t *testing.T) {
	def := taskDefinition()
	csvPath := writeFile(t, "tasks.csv", "taskCode,title\nT-1,One\n")

	tests := []struct {
		name       string
		spec       Spec
		wantCached bool
		wantWatch  bool
		wantErr    string
	}{
		{name: "default memory", spec: Spec{}},
		{name: "memory", spec: Spec{Kind: "Memory"}},
		{name: "csv", spec: Spec{Kind: KindCSV, Path: csvPath}, wantCached: true},
		{name: "watched csv", spec: Spec{Kind: KindCSV, Path: csvPath, Watch: true}, wantCached: true, wantWatch: true},
		{name: "csv without path", spec: Spec{Kind: KindCSV}, wantErr: "path is required"},
		{name: "parquet without path", spec: Spec{Kind: KindParquet}, wantErr: "path is required"},
		{name: "postgres without pool", spec: Spec{Kind: KindPostgres}, wantErr: "no postgres"},
		{name: "sqlite without db", spec: Spec{Kind: KindSQLite}, wantErr: "no sqlite"},
		{name: "unknown", spec: Spec{Kind: "excel"}, wantErr: "unknown source kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := Open(tt.spec, def, Deps{}, nil)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Open() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if (o.Cached != nil) != tt.wantCached {
				t.Errorf("Cached = %v, want cached %v", o.Cached, tt.wantCached)
			}
			if (o.Watcher != nil) != tt.wantWatch {
				t.Errorf("Watcher = %v, want watcher %v", o.Watcher, tt.wantWatch)
			}
			if o.Watcher != nil {
				o.Watcher.Close()
			}
		})
	}
}

func TestOpen_MemorySeed(t *testing.T) {
	seed := []core.Row{core.NewRow("a", map[string]any{"title": "x"})}
	o, err := Open(Spec{}, taskDefinition(), Deps{}, seed)
	if err != nil {
		t.Fatal(err)
	}
	rows, err := o.Source.AllRows(context.Background())
	if err != nil || len(rows) != 1 {
		t.Fatalf("AllRows() = %v, %v", rows, err)
	}
	if o.Age() != 0 {
		t.Errorf("Age() = %v, want 0 for memory sources", o.Age())
	}
}

func TestOpened_KeepSchedules(t *testing.T) {
	csvPath := writeFile(t, "tasks.csv", "taskCode,title\nT-1,One\n")

	o, err := Open(Spec{Kind: KindCSV, Path: csvPath, Refresh: "@hourly"}, taskDefinition(), Deps{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	r := NewRefresher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := o.Keep(ctx, "tasks", r); err != nil {
		t.Fatalf("Keep() error = %v", err)
	}
	if err := o.Keep(ctx, "tasks", r); err == nil {
		t.Error("second Keep() with the same name should fail")
	}
}
