package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/datagrid/internal/core"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List registered tables",
	Long: `List every registered table by group with its column count and the
kind of each column.`,
	Args: cobra.NoArgs,
	RunE: runTables,
}

var tablesColumns bool

func init() {
	rootCmd.AddCommand(tablesCmd)
	tablesCmd.Flags().BoolVar(&tablesColumns, "columns", false, "list the columns of each table")
}

func runTables(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := openApp(ctx, cmd, "")
	if err != nil {
		return err
	}
	defer app.Shutdown(ctx)

	bold := color.New(color.Bold)
	out := cmd.OutOrStdout()
	for _, group := range core.Groups() {
		bold.Fprintln(out, group)
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, def := range core.ByGroup(group) {
			fmt.Fprintf(tw, "  %s\t%s\t%d columns\n", def.Info.Key, def.Info.Label, len(def.DataColumns()))
			if !tablesColumns {
				continue
			}
			for _, col := range def.DataColumns() {
				fmt.Fprintf(tw, "    %s\t%s\t%s\n", col.ID, col.Title(), col.Kind)
			}
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	for _, st := range app.Sources() {
		if st.Cached {
			color.New(color.Faint).Fprintf(out, "%s: cached source\n", st.Table)
		}
	}
	return nil
}
