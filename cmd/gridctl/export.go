package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/datagrid/internal/application"
	"github.com/JonMunkholm/datagrid/internal/core"
	"github.com/JonMunkholm/datagrid/internal/export"
	"github.com/JonMunkholm/datagrid/internal/sink"
)

var exportFlags struct {
	format   string
	filename string
	out      string
	title    string
	filters  []string
	query    string
	only     []string
	exclude  []string
	hidden   []string
	lz4Level int
	dryRun   bool
}

var exportCmd = &cobra.Command{
	Use:   "export <table>",
	Short: "Export the filtered rows of a table",
	Long: `Export the rows of a table that pass the given filters as CSV, XLSX or
PDF. Structural columns are never exported.

Examples:
  # CSV of every task
  gridctl export tasks

  # XLSX of high priority bugs, compressed
  gridctl export tasks --format xlsx --filter priority=HIGH --filter label=BUG --lz4 4

  # PDF of two selected rows with a title
  gridctl export tasks --format pdf --only TASK-1000,TASK-1003 --title "Review"`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	f := exportCmd.Flags()
	f.StringVar(&exportFlags.format, "format", "csv", "output format: csv, xlsx, pdf")
	f.StringVarP(&exportFlags.filename, "filename", "o", "", "file name without extension (default: the table key)")
	f.StringVar(&exportFlags.out, "out", ".", "directory the file is written to")
	f.StringVar(&exportFlags.title, "title", "", "heading of PDF exports and XLSX document title")
	f.StringArrayVarP(&exportFlags.filters, "filter", "f", nil, "column filter as column=value (repeatable)")
	f.StringVarP(&exportFlags.query, "query", "q", "", "global search query")
	f.StringSliceVar(&exportFlags.only, "only", nil, "export only these row keys among the visible rows")
	f.StringSliceVar(&exportFlags.exclude, "exclude", nil, "column ids left out of the export")
	f.StringSliceVar(&exportFlags.hidden, "hide", nil, "column ids hidden before export")
	f.IntVar(&exportFlags.lz4Level, "lz4", -1, "compress the file with LZ4 at this level (0-9), -1 disables")
	f.BoolVar(&exportFlags.dryRun, "dry-run", false, "render the export without writing a file")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	table := args[0]

	format, err := export.ParseFormat(exportFlags.format)
	if err != nil {
		return err
	}
	filename := exportFlags.filename
	if filename == "" {
		filename = table
	}

	target, describe, err := exportSink()
	if err != nil {
		return err
	}

	app, err := openApp(ctx, cmd, table)
	if err != nil {
		return err
	}
	defer app.Shutdown(ctx)

	view, err := mountView(app, table)
	if err != nil {
		return err
	}
	if err := applyFilters(view, exportFlags.filters, exportFlags.query); err != nil {
		return err
	}
	for _, id := range exportFlags.hidden {
		if err := view.SetColumnVisible(id, false); err != nil {
			return err
		}
	}
	if len(exportFlags.only) > 0 {
		view.Select(exportFlags.only...)
	}

	req := export.Request{
		Format:         format,
		Filename:       filename,
		ExcludeColumns: exportFlags.exclude,
		OnlySelected:   len(exportFlags.only) > 0,
		Title:          exportFlags.title,
	}
	vs, err := view.Snapshot(ctx, req.ExcludeColumns, req.OnlySelected)
	if err != nil {
		return err
	}

	engine := export.NewEngine(target, export.WithObserver(app.Metrics()))
	res, err := engine.Export(ctx, export.FromView(req, vs))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	color.New(color.FgGreen).Fprintf(out, "exported %d rows x %d columns", res.Rows, res.Columns)
	fmt.Fprintf(out, " to %s (%d bytes)\n", describe(res.Filename), res.Bytes)
	return nil
}

// exportSink picks where the CLI delivers exports and how the written
// location is reported.
func exportSink() (core.DownloadSink, func(string) string, error) {
	if exportFlags.dryRun {
		return sink.NewMemory(), func(name string) string { return name + " (dry run)" }, nil
	}

	dir, err := sink.NewDir(exportFlags.out)
	if err != nil {
		return nil, nil, err
	}
	if exportFlags.lz4Level < 0 {
		return dir, func(name string) string { return cleanPath(dir.Path(name)) }, nil
	}

	level, err := sink.ParseLZ4Level(exportFlags.lz4Level)
	if err != nil {
		return nil, nil, err
	}
	describe := func(name string) string {
		return cleanPath(dir.Path(name + ".lz4"))
	}
	return sink.NewLZ4(dir, level), describe, nil
}

// mountView creates a view over a loaded table.
func mountView(app *application.App, table string) (*core.TableView, error) {
	def, ok := core.Get(table)
	if !ok {
		return nil, fmt.Errorf("table %q: %w", table, core.ErrUnknownTable)
	}
	src, err := app.Source(table)
	if err != nil {
		return nil, err
	}
	return core.NewTableView(def, src)
}

// cleanPath shortens absolute paths under the working directory.
func cleanPath(p string) string {
	if rel, err := filepath.Rel(".", p); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return p
}
