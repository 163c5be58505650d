package core

import (
	"context"
	"fmt"
)

// CountFacets counts how many rows carry each option of an enum column in a
// single pass. Declared options start at zero so every one is reported; values
// outside the declared set and null cells contribute nothing. A column with no
// declared options counts every distinct non-null value.
func CountFacets(rows []Row, col Column) FacetCounts {
	counts := make(FacetCounts, len(col.Options))
	declared := len(col.Options) > 0
	for _, opt := range col.Options {
		counts[opt.Value] = 0
	}

	for _, row := range rows {
		v := row.Value(col.ID)
		if v == nil {
			continue
		}
		s := Stringify(v)
		if s == "" {
			continue
		}
		if _, ok := counts[s]; ok || !declared {
			counts[s]++
		}
	}
	return counts
}

// ComputeFacets reads the unfiltered rows from src and counts the options of columnID.
// Counts never depend on the current filter state.
func ComputeFacets(ctx context.Context, src RowSource, registry *ColumnRegistry, columnID string) (FacetCounts, error) {
	col, ok := registry.Column(columnID)
	if !ok {
		return nil, fmt.Errorf("facets for %q: %w", columnID, ErrUnknownColumn)
	}
	if col.Kind != FieldEnum {
		return nil, &ValidationError{Field: columnID, Message: "facets require an enum column"}
	}
	if src == nil {
		return nil, ErrNoRowSource
	}

	rows, err := src.AllRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rows for facets: %w", err)
	}
	return CountFacets(rows, col), nil
}

// FacetController maps option toggles onto the filter state of enum columns.
type FacetController struct {
	registry *ColumnRegistry
	state    *FilterState
}

// NewFacetController binds a controller to a registry and its filter state.
func NewFacetController(registry *ColumnRegistry, state *FilterState) *FacetController {
	return &FacetController{registry: registry, state: state}
}

// Toggle adds value to the column's selection if absent, removes it otherwise.
// An emptied selection is stored as no filter. Unknown columns, non-enum columns
// and undeclared values leave the state unchanged. Reports whether state changed.
func (fc *FacetController) Toggle(columnID, value string) bool {
	col, ok := fc.registry.Column(columnID)
	if !ok || col.Kind != FieldEnum || value == "" {
		return false
	}
	if len(col.Options) > 0 && !col.HasOption(value) {
		return false
	}

	current, _ := fc.state.Get(columnID)
	fc.state.Set(columnID, current.toggled(value))
	return true
}

// Clear removes the column's selection directly.
func (fc *FacetController) Clear(columnID string) {
	fc.state.Delete(columnID)
}

// Selected returns the column's selected values in sorted order.
func (fc *FacetController) Selected(columnID string) []string {
	v, ok := fc.state.Get(columnID)
	if !ok || v.Kind() != FilterEnum {
		return nil
	}
	return v.Values()
}

// Options prepares the column's options for display: declared order, zero
// counts kept, selection flags taken from the filter state. For a column
// without declared options the counted values are listed in sorted order.
func (fc *FacetController) Options(columnID string, counts FacetCounts) []FacetOption {
	col, ok := fc.registry.Column(columnID)
	if !ok || col.Kind != FieldEnum {
		return nil
	}
	sel, _ := fc.state.Get(columnID)

	opts := col.Options
	if len(opts) == 0 {
		values := make([]string, 0, len(counts))
		for v := range counts {
			values = append(values, v)
		}
		opts = make([]Option, 0, len(values))
		for _, v := range sortedStrings(values) {
			opts = append(opts, Option{Value: v})
		}
	}

	out := make([]FacetOption, 0, len(opts))
	for _, opt := range opts {
		label := opt.Label
		if label == "" {
			label = opt.Value
		}
		out = append(out, FacetOption{
			Value:    opt.Value,
			Label:    label,
			Count:    counts[opt.Value],
			Selected: sel.Kind() == FilterEnum && sel.Contains(opt.Value),
		})
	}
	return out
}
