package core

import "strings"

// ColumnRegistry is the ordered column schema of one mounted table view.
// Column definitions are fixed at construction; only visibility changes afterwards,
// and visibility affects display and export, never filtering.
type ColumnRegistry struct {
	columns []Column
	index   map[string]int
}

// NewColumnRegistry validates ids and builds a registry.
// Returns a *SchemaError on an empty or duplicate column id.
func NewColumnRegistry(cols ...Column) (*ColumnRegistry, error) {
	r := &ColumnRegistry{
		columns: make([]Column, 0, len(cols)),
		index:   make(map[string]int, len(cols)),
	}

	for _, col := range cols {
		id := strings.TrimSpace(col.ID)
		if id == "" {
			return nil, &SchemaError{ColumnID: col.ID, Reason: "empty column id"}
		}
		if _, dup := r.index[id]; dup {
			return nil, &SchemaError{ColumnID: id, Reason: "duplicate column id"}
		}
		if col.Kind != FieldEnum && len(col.Options) > 0 {
			return nil, &SchemaError{ColumnID: id, Reason: "options declared on non-enum column"}
		}
		col = col.clone()
		col.ID = id
		r.index[id] = len(r.columns)
		r.columns = append(r.columns, col)
	}

	return r, nil
}

// Describe returns a copy of all columns in registry order.
func (r *ColumnRegistry) Describe() []Column {
	out := make([]Column, len(r.columns))
	for i, c := range r.columns {
		out[i] = c.clone()
	}
	return out
}

// Column returns the column with the given id.
func (r *ColumnRegistry) Column(id string) (Column, bool) {
	i, ok := r.index[id]
	if !ok {
		return Column{}, false
	}
	return r.columns[i].clone(), true
}

// Has reports whether id is a registered column.
func (r *ColumnRegistry) Has(id string) bool {
	_, ok := r.index[id]
	return ok
}

// IsVisible reports the current visibility of a column. Unknown ids are not visible.
func (r *ColumnRegistry) IsVisible(id string) bool {
	i, ok := r.index[id]
	return ok && r.columns[i].Visible
}

// SetVisible toggles a column's visibility. Unknown ids are ignored.
func (r *ColumnRegistry) SetVisible(id string, visible bool) {
	if i, ok := r.index[id]; ok {
		r.columns[i].Visible = visible
	}
}

// VisibleColumns returns the currently visible columns in registry order.
func (r *ColumnRegistry) VisibleColumns() []Column {
	out := make([]Column, 0, len(r.columns))
	for _, c := range r.columns {
		if c.Visible {
			out = append(out, c.clone())
		}
	}
	return out
}

// Len returns the number of registered columns.
func (r *ColumnRegistry) Len() int {
	return len(r.columns)
}

// ExportColumns returns the visible data columns in registry order, minus the
// excluded ids. Structural columns are never exported.
func (r *ColumnRegistry) ExportColumns(exclude ...string) []Column {
	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}

	out := make([]Column, 0, len(r.columns))
	for _, c := range r.columns {
		if !c.Visible || c.Structural || skip[c.ID] {
			continue
		}
		out = append(out, c.clone())
	}
	return out
}
