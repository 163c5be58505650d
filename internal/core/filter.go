package core

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// FilterKind identifies which variant a FilterValue holds.
type FilterKind int

const (
	FilterNone FilterKind = iota
	FilterText
	FilterEnum
	FilterDateRange
)

// String returns the kind name used in logs and the API.
func (k FilterKind) String() string {
	switch k {
	case FilterNone:
		return "none"
	case FilterText:
		return "text"
	case FilterEnum:
		return "enum"
	case FilterDateRange:
		return "date_range"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// FilterValue is the filter attached to one column: a text query, an enum
// selection set, or a date range. The zero value is "no filter".
type FilterValue struct {
	kind FilterKind
	text string
	set  map[string]struct{}
	from time.Time
	to   time.Time
}

// TextQuery matches rows whose value contains q, case-insensitively.
func TextQuery(q string) FilterValue {
	return FilterValue{kind: FilterText, text: q}
}

// EnumSelection matches rows whose value is one of values. Duplicates collapse.
func EnumSelection(values ...string) FilterValue {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return FilterValue{kind: FilterEnum, set: set}
}

// DateRange matches rows whose date falls within [from, to], inclusive on both
// bounds. Bounds supplied in reverse order are swapped. A zero bound is open.
func DateRange(from, to time.Time) FilterValue {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		from, to = to, from
	}
	return FilterValue{kind: FilterDateRange, from: from, to: to}
}

// Kind returns the variant held by v.
func (v FilterValue) Kind() FilterKind { return v.kind }

// Text returns the query of a text filter.
func (v FilterValue) Text() string { return v.text }

// Bounds returns the normalised bounds of a date-range filter.
func (v FilterValue) Bounds() (from, to time.Time) { return v.from, v.to }

// Values returns the members of an enum selection in sorted order.
func (v FilterValue) Values() []string {
	out := make([]string, 0, len(v.set))
	for s := range v.set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Contains reports whether value is a member of an enum selection.
func (v FilterValue) Contains(value string) bool {
	_, ok := v.set[value]
	return ok
}

// Len returns the size of an enum selection.
func (v FilterValue) Len() int { return len(v.set) }

// IsEmpty reports whether v admits every row and is therefore equivalent to no filter.
func (v FilterValue) IsEmpty() bool {
	switch v.kind {
	case FilterText:
		return v.text == ""
	case FilterEnum:
		return len(v.set) == 0
	case FilterDateRange:
		return v.from.IsZero() && v.to.IsZero()
	default:
		return true
	}
}

// fits reports whether v may be attached to a column of the given kind.
func (v FilterValue) fits(kind FieldType) bool {
	if v.IsEmpty() {
		return true
	}
	switch v.kind {
	case FilterText:
		return kind == FieldText || kind == FieldNumeric
	case FilterEnum:
		return kind == FieldEnum
	case FilterDateRange:
		return kind == FieldDate
	default:
		return false
	}
}

// Equal reports whether two filter values are identical.
func (v FilterValue) Equal(o FilterValue) bool {
	if v.IsEmpty() && o.IsEmpty() {
		return true
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case FilterText:
		return v.text == o.text
	case FilterEnum:
		if len(v.set) != len(o.set) {
			return false
		}
		for s := range v.set {
			if _, ok := o.set[s]; !ok {
				return false
			}
		}
		return true
	case FilterDateRange:
		return v.from.Equal(o.from) && v.to.Equal(o.to)
	}
	return false
}

// String renders v in the "op:value" form used for display.
func (v FilterValue) String() string {
	switch v.kind {
	case FilterText:
		return "contains:" + v.text
	case FilterEnum:
		return "in:" + strings.Join(v.Values(), ",")
	case FilterDateRange:
		return "between:" + formatBound(v.from) + ".." + formatBound(v.to)
	default:
		return ""
	}
}

func formatBound(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

func (v FilterValue) clone() FilterValue {
	if v.set != nil {
		set := make(map[string]struct{}, len(v.set))
		for s := range v.set {
			set[s] = struct{}{}
		}
		v.set = set
	}
	return v
}

// toggled returns a copy of an enum selection with value added or removed.
func (v FilterValue) toggled(value string) FilterValue {
	next := v.clone()
	if next.kind != FilterEnum {
		next = FilterValue{kind: FilterEnum, set: make(map[string]struct{}, 1)}
	}
	if _, ok := next.set[value]; ok {
		delete(next.set, value)
	} else {
		next.set[value] = struct{}{}
	}
	return next
}

// ParseDateRange builds a date-range filter from user input. Either bound may be
// empty to leave it open; both empty yields the empty filter. Unparsable input
// returns a *ValidationError.
func ParseDateRange(column, from, to string) (FilterValue, error) {
	var bounds [2]time.Time
	for i, raw := range []string{from, to} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		t, ok := ParseDate(raw)
		if !ok {
			return FilterValue{}, &ValidationError{
				Field:   column,
				Value:   raw,
				Message: "invalid date in range",
			}
		}
		bounds[i] = t
	}
	return DateRange(bounds[0], bounds[1]), nil
}
