package schema

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/datagrid/internal/core"
	"github.com/JonMunkholm/datagrid/internal/source"
)

// ErrDuplicateTable is returned when a schema file declares a table key that
// is already defined.
var ErrDuplicateTable = errors.New("table already defined")

// File is the YAML layout of a schema file:
//
//	tables:
//	  - key: tickets
//	    group: Support
//	    key_column: id
//	    date_column: opened
//	    source: {kind: csv, path: data/tickets.csv, watch: true}
//	    columns:
//	      - {id: id, label: Ticket}
//	      - {id: state, kind: enum, options: [{value: OPEN}, {value: CLOSED}]}
//	      - {id: opened, kind: date}
type File struct {
	Tables []TableSpec `yaml:"tables"`
}

// TableSpec declares one table and where its rows come from.
type TableSpec struct {
	Key         string       `yaml:"key"`
	Group       string       `yaml:"group"`
	Label       string       `yaml:"label"`
	Description string       `yaml:"description"`
	KeyColumn   string       `yaml:"key_column"`
	DateColumn  string       `yaml:"date_column"`
	Columns     []ColumnSpec `yaml:"columns"`
	Source      source.Spec  `yaml:"source"`
}

// ColumnSpec declares one column. Columns are visible unless hidden.
type ColumnSpec struct {
	ID         string        `yaml:"id"`
	Label      string        `yaml:"label"`
	Kind       string        `yaml:"kind"`
	Hidden     bool          `yaml:"hidden"`
	Structural bool          `yaml:"structural"`
	Options    []core.Option `yaml:"options"`
}

// Definition converts a TableSpec into a validated table definition.
func (t TableSpec) Definition() (core.TableDefinition, error) {
	key := strings.TrimSpace(t.Key)
	if key == "" {
		return core.TableDefinition{}, errors.New("table key is required")
	}

	def := core.TableDefinition{
		Info: core.TableInfo{
			Key:         key,
			Group:       t.Group,
			Label:       t.Label,
			Description: t.Description,
		},
		KeyColumn:  t.KeyColumn,
		DateColumn: t.DateColumn,
	}
	if def.Info.Group == "" {
		def.Info.Group = "Custom"
	}

	for _, c := range t.Columns {
		kind, err := core.ParseFieldType(c.Kind)
		if err != nil {
			return core.TableDefinition{}, fmt.Errorf("table %s column %s: %w", key, c.ID, err)
		}
		def.Columns = append(def.Columns, core.Column{
			ID:         c.ID,
			Label:      c.Label,
			Kind:       kind,
			Visible:    !c.Hidden,
			Structural: c.Structural,
			Options:    c.Options,
		})
	}

	reg, err := def.NewRegistry()
	if err != nil {
		return core.TableDefinition{}, fmt.Errorf("table %s: %w", key, err)
	}
	for _, ref := range []struct{ name, id string }{{"key_column", t.KeyColumn}, {"date_column", t.DateColumn}} {
		if ref.id != "" && !reg.Has(ref.id) {
			return core.TableDefinition{}, fmt.Errorf("table %s: %s %q is not a column", key, ref.name, ref.id)
		}
	}
	if t.DateColumn != "" {
		if col, _ := reg.Column(t.DateColumn); col.Kind != core.FieldDate {
			return core.TableDefinition{}, fmt.Errorf("table %s: date_column %q is %s, not date", key, t.DateColumn, col.Kind)
		}
	}
	return def, nil
}

// Parse decodes a schema document. Unknown fields are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}

	seen := make(map[string]bool, len(f.Tables))
	for i, t := range f.Tables {
		if _, err := t.Definition(); err != nil {
			return nil, fmt.Errorf("tables[%d]: %w", i, err)
		}
		if seen[t.Key] {
			return nil, fmt.Errorf("tables[%d] %s: %w", i, t.Key, ErrDuplicateTable)
		}
		seen[t.Key] = true
	}
	return &f, nil
}

// LoadFile reads and parses one schema file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// LoadDir parses every .yaml and .yml file in dir, in name order, and
// merges their tables.
func LoadDir(dir string) (*File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read schema dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	merged := &File{}
	seen := make(map[string]string)
	for _, name := range names {
		path := filepath.Join(dir, name)
		f, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		for _, t := range f.Tables {
			if prev, ok := seen[t.Key]; ok {
				return nil, fmt.Errorf("%s: table %s also in %s: %w", path, t.Key, prev, ErrDuplicateTable)
			}
			seen[t.Key] = path
			merged.Tables = append(merged.Tables, t)
		}
	}
	return merged, nil
}

// Register adds every table of f to the catalog. Tables whose key is
// already registered are rejected before any table is added.
func (f *File) Register() error {
	defs := make([]core.TableDefinition, 0, len(f.Tables))
	for _, t := range f.Tables {
		if _, ok := core.Get(t.Key); ok {
			return fmt.Errorf("table %s: %w", t.Key, ErrDuplicateTable)
		}
		def, err := t.Definition()
		if err != nil {
			return err
		}
		defs = append(defs, def)
	}
	for _, def := range defs {
		core.Register(def)
	}
	return nil
}

// Sources returns the declared source of every table, keyed by table key.
func (f *File) Sources() map[string]source.Spec {
	out := make(map[string]source.Spec, len(f.Tables))
	for _, t := range f.Tables {
		out[t.Key] = t.Source
	}
	return out
}

// Table returns the TableSpec declared under key.
func (f *File) Table(key string) (TableSpec, bool) {
	for _, t := range f.Tables {
		if t.Key == key {
			return t, true
		}
	}
	return TableSpec{}, false
}
