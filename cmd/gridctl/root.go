package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/datagrid/internal/application"
	"github.com/JonMunkholm/datagrid/internal/config"
	"github.com/JonMunkholm/datagrid/internal/core"
	"github.com/JonMunkholm/datagrid/internal/logging"
)

var (
	// Global flags
	envFile    string
	sourceKind string
	sourcePath string
	schemaDir  string
	sampleRows int
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "gridctl",
	Short: "Inspect and export datagrid tables",
	Long: `gridctl opens the same table sources as the datagrid server and runs
filters, facet counts and exports against them from the command line.

Configuration is read from the environment and an optional .env file;
the source flags override the builtin tasks table's source.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "error:", err)
		if core.IsUserFacing(err) {
			fmt.Fprintln(os.Stderr, core.FormatUserError(err))
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "env file read before the environment")
	rootCmd.PersistentFlags().StringVar(&sourceKind, "source-kind", "", "tasks source: memory, csv, parquet, sqlite, postgres")
	rootCmd.PersistentFlags().StringVar(&sourcePath, "path", "", "csv, parquet or sqlite file of the tasks table")
	rootCmd.PersistentFlags().StringVar(&schemaDir, "schema-dir", "", "directory of YAML table schemas")
	rootCmd.PersistentFlags().IntVar(&sampleRows, "sample-rows", 0, "generated task rows for the memory source")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig reads the environment and applies the global flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := config.LoadEnvFiles(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("source-kind") {
		cfg.Source.Kind = sourceKind
	}
	if flags.Changed("path") {
		cfg.Source.Path = sourcePath
	}
	if flags.Changed("schema-dir") {
		cfg.Source.SchemaDir = schemaDir
	}
	if flags.Changed("sample-rows") {
		cfg.Source.SampleRows = sampleRows
	}
	cfg.Source.Watch = false
	cfg.Source.Refresh = ""
	cfg.Metrics.Runtime = false

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	logging.Setup(level, "text")
	return cfg, nil
}

// openApp builds the application and loads the named table.
func openApp(ctx context.Context, cmd *cobra.Command, table string) (*application.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	app, err := application.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if table != "" {
		if err := app.Reload(ctx, table); err != nil {
			_ = app.Shutdown(ctx)
			return nil, fmt.Errorf("load %s: %w", table, err)
		}
	}
	return app, nil
}
