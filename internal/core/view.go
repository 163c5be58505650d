package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Observer receives notifications about view activity. Implementations must be
// safe for concurrent use and must not call back into the view.
type Observer interface {
	FilterChanged(table, op string)
	FacetsComputed(table, column string)
}

// ViewOption configures a TableView.
type ViewOption func(*TableView)

// WithObserver attaches an observer, typically a metrics collector.
func WithObserver(o Observer) ViewOption {
	return func(v *TableView) { v.observer = o }
}

// TableView is the state of one mounted table: column registry, filter state,
// facet controller, row selection and the row source. It is created on mount
// and discarded on unmount. All methods are safe for concurrent use.
type TableView struct {
	mu       sync.Mutex
	def      TableDefinition
	registry *ColumnRegistry
	state    *FilterState
	facets   *FacetController
	source   RowSource
	selected map[string]struct{}
	observer Observer

	// facet counts are valid for facetVersion of the source only
	facetCache   map[string]FacetCounts
	facetVersion uint64
	facetValid   bool
}

// NewTableView mounts a view of def over src.
func NewTableView(def TableDefinition, src RowSource, opts ...ViewOption) (*TableView, error) {
	if src == nil {
		return nil, ErrNoRowSource
	}
	reg, err := def.NewRegistry()
	if err != nil {
		return nil, err
	}

	state := NewFilterState(reg)
	v := &TableView{
		def:        def,
		registry:   reg,
		state:      state,
		facets:     NewFacetController(reg, state),
		source:     src,
		selected:   make(map[string]struct{}),
		facetCache: make(map[string]FacetCounts),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Table returns the definition the view was mounted from.
func (v *TableView) Table() TableDefinition { return v.def }

// Columns returns every column with its current visibility.
func (v *TableView) Columns() []Column {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.registry.Describe()
}

// VisibleColumns returns the columns currently shown.
func (v *TableView) VisibleColumns() []Column {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.registry.VisibleColumns()
}

// SetColumnVisible shows or hides a column. Filtering is unaffected.
func (v *TableView) SetColumnVisible(columnID string, visible bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.registry.Has(columnID) {
		return fmt.Errorf("column %q: %w", columnID, ErrUnknownColumn)
	}
	v.registry.SetVisible(columnID, visible)
	return nil
}

// SetFilter replaces the filter on a column. An empty value clears it.
// Text filters apply to text and numeric columns, enum selections to enum
// columns and date ranges to date columns.
func (v *TableView) SetFilter(columnID string, value FilterValue) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	col, ok := v.registry.Column(columnID)
	if !ok {
		return fmt.Errorf("column %q: %w", columnID, ErrUnknownColumn)
	}
	if !value.fits(col.Kind) {
		return &ValidationError{Field: columnID, Value: value.Kind().String(), Message: "filter kind does not match column"}
	}
	v.state.Set(columnID, value)
	v.notifyFilter("set")
	return nil
}

// ClearFilter removes the filter on a column.
func (v *TableView) ClearFilter(columnID string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.state.Delete(columnID)
	v.notifyFilter("clear")
}

// SetGlobalQuery sets the toolbar search query.
func (v *TableView) SetGlobalQuery(q string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.state.SetGlobalQuery(q)
	v.notifyFilter("search")
}

// Toggle flips one option of an enum column's selection.
// Reports whether the filter state changed.
func (v *TableView) Toggle(columnID, value string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	changed := v.facets.Toggle(columnID, value)
	if changed {
		v.notifyFilter("toggle")
	}
	return changed
}

// ClearFacet removes the selection of an enum column.
func (v *TableView) ClearFacet(columnID string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.facets.Clear(columnID)
	v.notifyFilter("clear")
}

// Reset clears every column filter and the global query. The selection and
// column visibility are kept.
func (v *TableView) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.state.ClearAll()
	v.notifyFilter("reset")
}

// IsFiltered reports whether any column filter is active.
func (v *TableView) IsFiltered() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.IsFiltered()
}

// Filters returns a detached copy of the filter state.
func (v *TableView) Filters() *FilterState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.Snapshot()
}

// VisibleRows reads the source and returns the rows admitted by the current filters.
func (v *TableView) VisibleRows(ctx context.Context) ([]Row, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visibleRowsLocked(ctx)
}

// Rows returns the visible rows together with the size of the unfiltered
// collection they were drawn from.
func (v *TableView) Rows(ctx context.Context) (visible []Row, total int, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	all, err := v.source.AllRows(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("load rows: %w", err)
	}
	return Apply(all, BuildPredicate(v.state, v.registry)), len(all), nil
}

func (v *TableView) visibleRowsLocked(ctx context.Context) ([]Row, error) {
	rows, err := v.source.AllRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rows: %w", err)
	}
	return Apply(rows, BuildPredicate(v.state, v.registry)), nil
}

// FacetCounts returns the option counts of an enum column over the unfiltered
// rows. Counts are cached until the source version changes.
func (v *TableView) FacetCounts(ctx context.Context, columnID string) (FacetCounts, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.facetCountsLocked(ctx, columnID)
}

func (v *TableView) facetCountsLocked(ctx context.Context, columnID string) (FacetCounts, error) {
	version := v.source.Version()
	if !v.facetValid || version != v.facetVersion {
		v.facetCache = make(map[string]FacetCounts)
		v.facetVersion = version
		v.facetValid = true
	}

	if counts, ok := v.facetCache[columnID]; ok {
		return counts, nil
	}

	counts, err := ComputeFacets(ctx, v.source, v.registry, columnID)
	if err != nil {
		return nil, err
	}
	v.facetCache[columnID] = counts
	if v.observer != nil {
		v.observer.FacetsComputed(v.def.Info.Key, columnID)
	}
	return counts, nil
}

// Facets returns the display options of an enum column with counts and selection flags.
func (v *TableView) Facets(ctx context.Context, columnID string) ([]FacetOption, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	counts, err := v.facetCountsLocked(ctx, columnID)
	if err != nil {
		return nil, err
	}
	return v.facets.Options(columnID, counts), nil
}

// FacetColumns returns the enum columns that offer faceted filtering, in registry order.
func (v *TableView) FacetColumns() []Column {
	v.mu.Lock()
	defer v.mu.Unlock()

	var out []Column
	for _, c := range v.registry.Describe() {
		if c.Kind == FieldEnum && !c.Structural {
			out = append(out, c)
		}
	}
	return out
}

// Select adds row keys to the selection.
func (v *TableView) Select(keys ...string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, k := range keys {
		v.selected[k] = struct{}{}
	}
}

// Deselect removes row keys from the selection.
func (v *TableView) Deselect(keys ...string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, k := range keys {
		delete(v.selected, k)
	}
}

// SelectVisible adds every currently visible row to the selection and returns
// how many rows are visible.
func (v *TableView) SelectVisible(ctx context.Context) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	rows, err := v.visibleRowsLocked(ctx)
	if err != nil {
		return 0, err
	}
	for _, r := range rows {
		v.selected[r.Key] = struct{}{}
	}
	return len(rows), nil
}

// ClearSelection empties the selection.
func (v *TableView) ClearSelection() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.selected = make(map[string]struct{})
}

// IsSelected reports whether the row key is selected.
func (v *TableView) IsSelected(key string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.selected[key]
	return ok
}

// SelectedKeys returns the selected row keys in sorted order.
func (v *TableView) SelectedKeys() []string {
	v.mu.Lock()
	defer v.mu.Unlock()

	keys := make([]string, 0, len(v.selected))
	for k := range v.selected {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SelectedCount returns the number of selected rows.
func (v *TableView) SelectedCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.selected)
}

// ViewSnapshot is an immutable copy of what an export needs: the columns and
// rows to write plus the filters that produced them.
type ViewSnapshot struct {
	Table   TableInfo
	Columns []Column
	Rows    []Row
	Filters map[string]string
	Query   string
	TakenAt time.Time
}

// Snapshot captures the visible, filtered rows and the visible columns minus
// exclude. With onlySelected the rows are the visible rows that are also
// selected, in visible order. Later changes to the view do not affect it.
func (v *TableView) Snapshot(ctx context.Context, exclude []string, onlySelected bool) (*ViewSnapshot, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	rows, err := v.visibleRowsLocked(ctx)
	if err != nil {
		return nil, err
	}

	if onlySelected {
		kept := rows[:0:0]
		for _, r := range rows {
			if _, ok := v.selected[r.Key]; ok {
				kept = append(kept, r)
			}
		}
		rows = kept
	}

	copied := make([]Row, len(rows))
	for i, r := range rows {
		copied[i] = NewRow(r.Key, r.Cells)
	}

	return &ViewSnapshot{
		Table:   v.def.Info,
		Columns: v.registry.ExportColumns(exclude...),
		Rows:    copied,
		Filters: v.state.ActiveFilters(),
		Query:   v.state.GlobalQuery(),
		TakenAt: time.Now(),
	}, nil
}

func (v *TableView) notifyFilter(op string) {
	if v.observer != nil {
		v.observer.FilterChanged(v.def.Info.Key, op)
	}
}
