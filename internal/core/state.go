package core

// FilterState is the canonical filter state of one mounted table view: at most
// one FilterValue per column plus a global text query.
//
// All operations are synchronous and total. FilterState is not safe for
// concurrent use; the owning TableView serialises access.
type FilterState struct {
	registry *ColumnRegistry
	filters  map[string]FilterValue
	global   string
}

// NewFilterState creates an empty store bound to registry. Column ids unknown to
// the registry are ignored by Set.
func NewFilterState(registry *ColumnRegistry) *FilterState {
	return &FilterState{
		registry: registry,
		filters:  make(map[string]FilterValue),
	}
}

// Get returns the filter on columnID, if any.
func (s *FilterState) Get(columnID string) (FilterValue, bool) {
	v, ok := s.filters[columnID]
	if !ok {
		return FilterValue{}, false
	}
	return v.clone(), true
}

// Set attaches v to columnID. An empty value removes the filter.
func (s *FilterState) Set(columnID string, v FilterValue) {
	if s.registry != nil && !s.registry.Has(columnID) {
		return
	}
	if v.IsEmpty() {
		delete(s.filters, columnID)
		return
	}
	s.filters[columnID] = v.clone()
}

// Delete removes any filter on columnID.
func (s *FilterState) Delete(columnID string) {
	delete(s.filters, columnID)
}

// SetGlobalQuery sets the free-text query applied across searchable columns.
func (s *FilterState) SetGlobalQuery(q string) {
	s.global = q
}

// GlobalQuery returns the current free-text query.
func (s *FilterState) GlobalQuery() string {
	return s.global
}

// ClearAll resets the store to its construction-time empty state. Callers
// mirroring filter inputs must reset their own widgets.
func (s *FilterState) ClearAll() {
	s.filters = make(map[string]FilterValue)
	s.global = ""
}

// IsFiltered reports whether at least one column carries a filter.
func (s *FilterState) IsFiltered() bool {
	return len(s.filters) > 0
}

// Columns returns the ids of filtered columns in registry order.
func (s *FilterState) Columns() []string {
	ids := make([]string, 0, len(s.filters))
	if s.registry == nil {
		for id := range s.filters {
			ids = append(ids, id)
		}
		return ids
	}
	for _, col := range s.registry.columns {
		if _, ok := s.filters[col.ID]; ok {
			ids = append(ids, col.ID)
		}
	}
	return ids
}

// ActiveFilters returns column -> "op:value" for display.
func (s *FilterState) ActiveFilters() map[string]string {
	out := make(map[string]string, len(s.filters))
	for id, v := range s.filters {
		out[id] = v.String()
	}
	return out
}

// Snapshot returns a deep copy detached from further mutation.
func (s *FilterState) Snapshot() *FilterState {
	cp := &FilterState{
		registry: s.registry,
		filters:  make(map[string]FilterValue, len(s.filters)),
		global:   s.global,
	}
	for id, v := range s.filters {
		cp.filters[id] = v.clone()
	}
	return cp
}

// Equal reports whether two stores hold the same filters and global query.
func (s *FilterState) Equal(o *FilterState) bool {
	if s.global != o.global || len(s.filters) != len(o.filters) {
		return false
	}
	for id, v := range s.filters {
		ov, ok := o.filters[id]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}
