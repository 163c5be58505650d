package templates

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/datagrid/internal/core"
)

func render(t *testing.T, c interface {
	Render(context.Context, io.Writer) error
}) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	return buf.String()
}

func TestGrid(t *testing.T) {
	d := GridData{
		ViewID: "v1",
		Table:  core.TableInfo{Key: "tasks", Label: "Tasks"},
		Columns: []core.Column{
			{ID: "select", Structural: true},
			{ID: "title", Label: "Title"},
			{ID: "createdAt", Label: "Created", Kind: core.FieldDate},
		},
		Rows: []core.Row{
			core.NewRow("T-1", map[string]any{"title": "<b>bold</b>", "createdAt": time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}),
			core.NewRow("T-2", map[string]any{"title": "plain"}),
		},
		Total: 5,
		Facets: []Facet{{
			Column:  core.Column{ID: "status", Label: "Status", Kind: core.FieldEnum},
			Options: []core.FacetOption{{Value: "DONE", Label: "Done", Count: 3, Selected: true}},
		}},
		Filtered:      true,
		Selected:      map[string]bool{"T-1": true},
		SelectedCount: 1,
		Formats:       []string{"csv", "xlsx", "pdf"},
	}

	out := render(t, Grid(d))
	for _, want := range []string{
		`id="grid"`,
		"2 of 5 rows, 1 selected",
		"&lt;b&gt;bold&lt;/b&gt;",
		"2024-01-02",
		`hx-post="/api/views/v1/facets/status/toggle"`,
		`<button class="on"`,
		`<span class="count">3</span>`,
		`hx-post="/api/views/v1/reset"`,
		`action="/api/views/v1/export"`,
		`<option value="xlsx">`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Grid() missing %q", want)
		}
	}
	if strings.Contains(out, "<b>bold</b>") {
		t.Error("cell text must be escaped")
	}
}

func TestGrid_Empty(t *testing.T) {
	out := render(t, Grid(GridData{ViewID: "v", Columns: []core.Column{{ID: "title"}}}))
	if !strings.Contains(out, "No results.") {
		t.Error("empty grid should say No results.")
	}
	if strings.Contains(out, "Reset") {
		t.Error("Reset should only show when filtered")
	}
}

func TestDashboard(t *testing.T) {
	out := render(t, Dashboard([]TableGroup{{
		Name:   "Project",
		Tables: []TableCard{{Key: "tasks", Label: "Tasks", Columns: 6}},
	}}))
	for _, want := range []string{"<!DOCTYPE html>", "<h2>Project</h2>", `href="/table/tasks"`, "6 columns"} {
		if !strings.Contains(out, want) {
			t.Errorf("Dashboard() missing %q", want)
		}
	}
}

func TestErrorAlert(t *testing.T) {
	out := render(t, ErrorAlert("View not found", "Reload the page", "VIEW001"))
	if !strings.Contains(out, "View not found") || !strings.Contains(out, "(VIEW001)") {
		t.Errorf("ErrorAlert() = %s", out)
	}
}
