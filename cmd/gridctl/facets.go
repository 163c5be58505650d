package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/datagrid/internal/core"
)

var facetsFlags struct {
	filters []string
	query   string
}

var facetsCmd = &cobra.Command{
	Use:   "facets <table> [column]",
	Short: "Show option counts of enum columns",
	Long: `Show how often each option of an enum column occurs in the table.

Counts always cover every row of the table; filters only decide how many
rows would be visible and which options are marked as selected.

Examples:
  # All facets of the tasks table
  gridctl facets tasks

  # Status counts with a selection applied
  gridctl facets tasks status --filter status=TODO,DONE`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runFacets,
}

func init() {
	rootCmd.AddCommand(facetsCmd)
	facetsCmd.Flags().StringArrayVarP(&facetsFlags.filters, "filter", "f", nil, "column filter as column=value (repeatable)")
	facetsCmd.Flags().StringVarP(&facetsFlags.query, "query", "q", "", "global search query")
}

func runFacets(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	table := args[0]

	app, err := openApp(ctx, cmd, table)
	if err != nil {
		return err
	}
	defer app.Shutdown(ctx)

	view, err := mountView(app, table)
	if err != nil {
		return err
	}
	if err := applyFilters(view, facetsFlags.filters, facetsFlags.query); err != nil {
		return err
	}

	columns := view.FacetColumns()
	if len(args) == 2 {
		col, ok := findColumn(columns, args[1])
		if !ok {
			return fmt.Errorf("column %q is not a facet of %s", args[1], table)
		}
		columns = []core.Column{col}
	}

	out := cmd.OutOrStdout()
	bold := color.New(color.Bold)
	selected := color.New(color.FgGreen)
	zero := color.New(color.Faint)

	for _, col := range columns {
		opts, err := view.Facets(ctx, col.ID)
		if err != nil {
			return err
		}
		bold.Fprintln(out, col.Title())

		for _, o := range opts {
			line := fmt.Sprintf("  %-24s %6d", o.Label, o.Count)
			switch {
			case o.Selected:
				selected.Fprintln(out, line+"  *")
			case o.Count == 0:
				zero.Fprintln(out, line)
			default:
				fmt.Fprintln(out, line)
			}
		}
	}

	rows, total, err := view.Rows(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d of %d rows visible\n", len(rows), total)
	return nil
}

func findColumn(cols []core.Column, id string) (core.Column, bool) {
	for _, c := range cols {
		if c.ID == id {
			return c, true
		}
	}
	return core.Column{}, false
}
