// Package schema declares the tables that can be mounted as views: the
// builtin task board and any tables described in YAML schema files.
package schema

import (
	"fmt"
	"time"

	"github.com/JonMunkholm/datagrid/internal/core"
)

// TasksKey is the catalog key of the builtin task table.
const TasksKey = "tasks"

var (
	taskStatuses = []core.Option{
		{Value: "TODO", Label: "Todo"},
		{Value: "IN_PROGRESS", Label: "In Progress"},
		{Value: "DONE", Label: "Done"},
		{Value: "CANCELLED", Label: "Cancelled"},
	}
	taskPriorities = []core.Option{
		{Value: "HIGH", Label: "High"},
		{Value: "MEDIUM", Label: "Medium"},
		{Value: "LOW", Label: "Low"},
	}
	taskLabels = []core.Option{
		{Value: "BUG", Label: "Bug"},
		{Value: "FEATURE", Label: "Feature"},
		{Value: "ENHANCEMENT", Label: "Enhancement"},
		{Value: "DOCUMENTATION", Label: "Documentation"},
	}
)

func init() {
	core.Register(Tasks())
}

// Tasks returns the definition of the builtin task table.
func Tasks() core.TableDefinition {
	return core.TableDefinition{
		Info: core.TableInfo{
			Key:         TasksKey,
			Group:       "Project",
			Label:       "Tasks",
			Description: "Work items with status, priority and label facets",
		},
		Columns: []core.Column{
			{ID: "select", Structural: true, Visible: true},
			{ID: "taskCode", Label: "Task", Kind: core.FieldText, Visible: true},
			{ID: "title", Label: "Title", Kind: core.FieldText, Visible: true},
			{ID: "status", Label: "Status", Kind: core.FieldEnum, Visible: true, Options: taskStatuses},
			{ID: "priority", Label: "Priority", Kind: core.FieldEnum, Visible: true, Options: taskPriorities},
			{ID: "label", Label: "Label", Kind: core.FieldEnum, Visible: true, Options: taskLabels},
			{ID: "createdAt", Label: "Created", Kind: core.FieldDate, Visible: true},
			{ID: "actions", Structural: true, Visible: true},
		},
		KeyColumn:  "taskCode",
		DateColumn: "createdAt",
	}
}

var sampleTitles = []string{
	"Fix login redirect loop",
	"Add CSV export to reports",
	"Document the filter API",
	"Improve table load time",
	"Support dark mode",
	"Handle empty search results",
	"Refactor facet counting",
	"Write onboarding guide",
	"Validate export filenames",
	"Paginate audit history",
	"Retry failed webhooks",
	"Localize date picker",
}

// SampleTasks returns n deterministic task rows spread over the 90 days
// before base. It seeds the task table when no source is configured.
func SampleTasks(n int, base time.Time) []core.Row {
	day := time.Date(base.Year(), base.Month(), base.Day(), 0, 0, 0, 0, time.UTC)
	rows := make([]core.Row, 0, n)
	for i := 0; i < n; i++ {
		code := fmt.Sprintf("TASK-%04d", 1000+i)
		rows = append(rows, core.NewRow(code, map[string]any{
			"taskCode":  code,
			"title":     sampleTitles[i%len(sampleTitles)],
			"status":    taskStatuses[(i*7)%len(taskStatuses)].Value,
			"priority":  taskPriorities[(i*5)%len(taskPriorities)].Value,
			"label":     taskLabels[(i*3)%len(taskLabels)].Value,
			"createdAt": day.AddDate(0, 0, -((i * 13) % 90)),
		}))
	}
	return rows
}
