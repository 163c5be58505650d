package core

import (
	"context"
	"fmt"
	"strings"
)

// FieldType represents the declared value kind of a column.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldDate
	FieldNumeric
)

// String returns the lowercase name used in schemas and JSON.
func (ft FieldType) String() string {
	switch ft {
	case FieldText:
		return "text"
	case FieldEnum:
		return "enum"
	case FieldDate:
		return "date"
	case FieldNumeric:
		return "numeric"
	default:
		return fmt.Sprintf("unknown(%d)", int(ft))
	}
}

// ParseFieldType converts a schema kind name to a FieldType.
func ParseFieldType(s string) (FieldType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "string", "":
		return FieldText, nil
	case "enum":
		return FieldEnum, nil
	case "date", "timestamp":
		return FieldDate, nil
	case "numeric", "number":
		return FieldNumeric, nil
	default:
		return FieldText, fmt.Errorf("unknown column kind %q", s)
	}
}

// Option is one declared value of an enum column.
type Option struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// Column describes a single column of a table view.
type Column struct {
	ID         string    // Unique within the schema
	Label      string    // Display name, falls back to ID
	Kind       FieldType // Declared value kind
	Visible    bool      // Default visibility
	Structural bool      // UI-only column (row selection, actions) that never holds data
	Options    []Option  // Declared option order for FieldEnum columns
}

// Title returns the display label for the column.
func (c Column) Title() string {
	if c.Label != "" {
		return c.Label
	}
	return c.ID
}

// HasOption reports whether value is one of the declared enum options.
func (c Column) HasOption(value string) bool {
	for _, opt := range c.Options {
		if opt.Value == value {
			return true
		}
	}
	return false
}

func (c Column) clone() Column {
	if c.Options != nil {
		c.Options = append([]Option(nil), c.Options...)
	}
	return c
}

// Row is an immutable snapshot of one record taken from a RowSource.
// Cells hold string, float64, int64, bool, time.Time or nil values keyed by column id.
type Row struct {
	Key   string
	Cells map[string]any
}

// NewRow builds a Row that owns a private copy of cells.
func NewRow(key string, cells map[string]any) Row {
	own := make(map[string]any, len(cells))
	for k, v := range cells {
		own[k] = v
	}
	return Row{Key: key, Cells: own}
}

// Value returns the cell for columnID, or nil when the row has none.
func (r Row) Value(columnID string) any {
	if r.Cells == nil {
		return nil
	}
	return r.Cells[columnID]
}

// RowSource provides the full, unfiltered record collection.
// The engine treats it as read-only and re-reads it whenever it needs the whole dataset.
type RowSource interface {
	AllRows(ctx context.Context) ([]Row, error)

	// Version changes whenever the underlying rows change.
	Version() uint64
}

// DownloadSink accepts a named export payload and hands it to the operating
// environment. Delivery is all-or-nothing from the caller's perspective.
type DownloadSink interface {
	Deliver(ctx context.Context, filename string, payload []byte, mimeType string) error
}

// FacetCounts maps an enum option value to its occurrence count in the unfiltered rows.
type FacetCounts map[string]int

// Total returns the sum of all counts.
func (fc FacetCounts) Total() int {
	n := 0
	for _, c := range fc {
		n += c
	}
	return n
}

// FacetOption is an enum option prepared for display, in declared order.
type FacetOption struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Count    int    `json:"count"`
	Selected bool   `json:"selected"`
}

// TableInfo contains display information about a table.
type TableInfo struct {
	Key         string // Unique identifier: "tasks"
	Group       string // Catalog grouping: "Project"
	Label       string // Display name: "Tasks"
	Description string
}

// TableDefinition contains everything needed to mount a view over a table.
type TableDefinition struct {
	Info    TableInfo
	Columns []Column

	// KeyColumn names the column whose value identifies a row for selection.
	// Sources fall back to the row position when empty.
	KeyColumn string

	// DateColumn is the column bound to the toolbar date-range picker, if any.
	DateColumn string
}

// NewRegistry builds a fresh ColumnRegistry for one mounted view of the table.
func (t TableDefinition) NewRegistry() (*ColumnRegistry, error) {
	return NewColumnRegistry(t.Columns...)
}

// DataColumns returns the non-structural columns, in declaration order.
func (t TableDefinition) DataColumns() []Column {
	cols := make([]Column, 0, len(t.Columns))
	for _, c := range t.Columns {
		if !c.Structural {
			cols = append(cols, c.clone())
		}
	}
	return cols
}
