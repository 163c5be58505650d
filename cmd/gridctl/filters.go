package main

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/datagrid/internal/core"
)

// applyFilters sets column filters written as column=value on view. Enum
// columns take a comma-separated option list, date columns a from..to
// range with either end open, everything else a text query.
func applyFilters(view *core.TableView, exprs []string, query string) error {
	cols := make(map[string]core.Column)
	for _, c := range view.Columns() {
		cols[c.ID] = c
	}

	for _, expr := range exprs {
		id, raw, ok := strings.Cut(expr, "=")
		if !ok {
			return fmt.Errorf("filter %q: want column=value", expr)
		}
		id = strings.TrimSpace(id)
		col, ok := cols[id]
		if !ok {
			return fmt.Errorf("filter %q: %w", expr, core.ErrUnknownColumn)
		}

		value, err := parseFilter(col, raw)
		if err != nil {
			return err
		}
		if err := view.SetFilter(col.ID, value); err != nil {
			return err
		}
	}

	if query != "" {
		view.SetGlobalQuery(query)
	}
	return nil
}

func parseFilter(col core.Column, raw string) (core.FilterValue, error) {
	switch col.Kind {
	case core.FieldEnum:
		var values []string
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		return core.EnumSelection(values...), nil
	case core.FieldDate:
		from, to, _ := strings.Cut(raw, "..")
		return core.ParseDateRange(col.ID, from, to)
	default:
		return core.TextQuery(raw), nil
	}
}
