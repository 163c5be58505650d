package core

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

// The catalog holds every table the application can mount a view over,
// keyed by TableInfo.Key.
var (
	catalogMu sync.RWMutex
	catalog   = make(map[string]TableDefinition)
)

// Register adds def to the catalog. It panics on a duplicate key or on a
// column set NewRegistry rejects; registration happens at startup.
func Register(def TableDefinition) {
	if _, err := def.NewRegistry(); err != nil {
		panic(fmt.Sprintf("table %s: %v", def.Info.Key, err))
	}
	if def.Info.Label == "" {
		def.Info.Label = def.Info.Key
	}

	catalogMu.Lock()
	defer catalogMu.Unlock()
	if _, dup := catalog[def.Info.Key]; dup {
		panic(fmt.Sprintf("table already registered: %s", def.Info.Key))
	}
	catalog[def.Info.Key] = def
}

func Get(key string) (TableDefinition, bool) {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	def, ok := catalog[key]
	return def, ok
}

// All lists the registered tables ordered by group, then key.
func All() []TableDefinition {
	return collect(func(TableDefinition) bool { return true })
}

// ByGroup lists the tables of one group ordered by key.
func ByGroup(group string) []TableDefinition {
	return collect(func(def TableDefinition) bool { return def.Info.Group == group })
}

func collect(keep func(TableDefinition) bool) []TableDefinition {
	catalogMu.RLock()
	var out []TableDefinition
	for _, def := range catalog {
		if keep(def) {
			out = append(out, def)
		}
	}
	catalogMu.RUnlock()

	slices.SortFunc(out, func(a, b TableDefinition) int {
		return cmp.Or(cmp.Compare(a.Info.Group, b.Info.Group), cmp.Compare(a.Info.Key, b.Info.Key))
	})
	return out
}

// Groups returns the distinct group names in alphabetical order.
func Groups() []string {
	catalogMu.RLock()
	var groups []string
	for _, def := range catalog {
		if !slices.Contains(groups, def.Info.Group) {
			groups = append(groups, def.Info.Group)
		}
	}
	catalogMu.RUnlock()

	slices.Sort(groups)
	return groups
}

func TableCount() int {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	return len(catalog)
}

// Clear empties the catalog. Tests use it to start from a known state.
func Clear() {
	catalogMu.Lock()
	defer catalogMu.Unlock()
	clear(catalog)
}
