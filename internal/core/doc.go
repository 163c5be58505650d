// Package core provides the filtering engine for tabular record views.
//
// This package contains the domain logic independent of any UI, storage or
// transport layer. It can be used by web handlers, CLI tools, or tests
// without modification.
//
// # Architecture
//
// The package is organized around several key concepts:
//
//   - Column Registry: the ordered column schema of one view, immutable apart
//     from visibility.
//   - Filter State: at most one [FilterValue] per column plus a global query.
//   - Facets: option counts over the unfiltered rows and toggling of enum
//     selections via [FacetController].
//   - Predicate: the conjunction of every active filter, applied in one pass.
//   - Table View: the per-mount state object tying the above to a [RowSource].
//
// # Table Catalog
//
// Tables are registered at init time using [Register]. Each [TableDefinition]
// contains everything needed to mount a view:
//
//	core.Register(TableDefinition{
//	    Info: TableInfo{Key: "tasks", Group: "Project", Label: "Tasks"},
//	    Columns: []Column{
//	        {ID: "title", Label: "Title", Kind: FieldText, Visible: true},
//	        {ID: "status", Label: "Status", Kind: FieldEnum, Visible: true,
//	            Options: []Option{{Value: "TODO"}, {Value: "DONE"}}},
//	    },
//	    KeyColumn: "taskCode",
//	})
//
// # Filtering
//
// Visible rows are recomputed from the source on every read:
//
//  1. Read the unfiltered rows from the [RowSource]
//  2. Build a [Predicate] from the current [FilterState]
//  3. [Apply] keeps admitted rows in source order
//
// Facet counts ignore the filter state and are cached per source version.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - SCH: Schema errors (malformed column definitions)
//   - VAL: Validation errors (dates, filenames, formats)
//   - EXP: Export errors (busy, cancelled, serialization, delivery)
//   - SRC: Row source errors (connections, missing files)
//   - VIEW: View errors (expired views, unknown columns or tables)
//   - REQ: Request errors (cancellation, timeouts, rate limits)
package core
