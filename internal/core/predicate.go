package core

import (
	"sort"
	"strings"
	"time"
)

// Predicate reports whether a row is visible under a filter state.
type Predicate func(Row) bool

// admitAll is the predicate of an empty filter state.
func admitAll(Row) bool { return true }

// BuildPredicate composes the column filters and the global query of state into
// one predicate: the conjunction of every column predicate and the global one.
// The predicate captures a copy of the state; later mutations do not affect it.
func BuildPredicate(state *FilterState, registry *ColumnRegistry) Predicate {
	var parts []Predicate

	for _, id := range state.Columns() {
		v, _ := state.Get(id)
		if p := columnPredicate(id, v); p != nil {
			parts = append(parts, p)
		}
	}

	if p := globalPredicate(state.GlobalQuery(), registry); p != nil {
		parts = append(parts, p)
	}

	switch len(parts) {
	case 0:
		return admitAll
	case 1:
		return parts[0]
	}
	return func(r Row) bool {
		for _, p := range parts {
			if !p(r) {
				return false
			}
		}
		return true
	}
}

func columnPredicate(columnID string, v FilterValue) Predicate {
	if v.IsEmpty() {
		return nil
	}

	switch v.Kind() {
	case FilterText:
		q := strings.ToLower(v.Text())
		return func(r Row) bool {
			return strings.Contains(strings.ToLower(Stringify(r.Value(columnID))), q)
		}

	case FilterEnum:
		sel := v.clone()
		return func(r Row) bool {
			cell := r.Value(columnID)
			return cell != nil && sel.Contains(Stringify(cell))
		}

	case FilterDateRange:
		from, to := v.Bounds()
		var lo, hi time.Time
		if !from.IsZero() {
			lo = truncateDay(from)
		}
		if !to.IsZero() {
			hi = truncateDay(to)
		}
		if !lo.IsZero() && !hi.IsZero() && hi.Before(lo) {
			lo, hi = hi, lo
		}
		return func(r Row) bool {
			d, ok := AsDate(r.Value(columnID))
			if !ok {
				return false
			}
			day := truncateDay(d)
			if !lo.IsZero() && day.Before(lo) {
				return false
			}
			if !hi.IsZero() && day.After(hi) {
				return false
			}
			return true
		}
	}
	return nil
}

// globalPredicate admits a row when any searchable column contains q,
// case-insensitively. Text and enum data columns are searchable.
func globalPredicate(q string, registry *ColumnRegistry) Predicate {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return nil
	}

	var ids []string
	if registry != nil {
		for _, col := range registry.columns {
			if col.Structural {
				continue
			}
			if col.Kind == FieldText || col.Kind == FieldEnum {
				ids = append(ids, col.ID)
			}
		}
	}

	return func(r Row) bool {
		for _, id := range ids {
			if strings.Contains(strings.ToLower(Stringify(r.Value(id))), q) {
				return true
			}
		}
		return false
	}
}

// Apply returns, in a fresh slice, the rows admitted by p in their original order.
func Apply(rows []Row, p Predicate) []Row {
	if p == nil {
		p = admitAll
	}
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if p(r) {
			out = append(out, r)
		}
	}
	return out
}

func sortedStrings(s []string) []string {
	sort.Strings(s)
	return s
}
