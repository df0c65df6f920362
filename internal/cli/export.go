package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/hivelog/internal/store"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	SQLite string
}

// ExportResult reports an export.
type ExportResult struct {
	Path     string `json:"path"`
	Exported int    `json:"exported"`
	Total    int    `json:"total"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy the full log into a SQLite database",
		Long: `Copy every event, from rotated archives and the active log, into a SQLite
database for ad-hoc SQL analysis. Sequence numbers are preserved. Events
already present in the database are skipped, so repeated exports are
incremental.

Example:
  hivelog export --sqlite ./events.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.SQLite, "sqlite", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("sqlite")

	return cmd
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	orch, err := opts.openOrchestrator(ctx, false)
	if err != nil {
		return err
	}
	defer orch.Close()

	fs, err := fileStore(ctx, orch)
	if err != nil {
		return err
	}
	events, err := fs.ReadAll(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read log", err)
	}

	db, err := store.OpenSQLite(opts.SQLite)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer db.Close()

	before := db.Offset()
	for _, e := range events {
		if _, err := db.Append(ctx, e); err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("failed to export event %s", e.ID), err)
		}
	}
	result := ExportResult{Path: opts.SQLite, Total: db.Offset()}
	result.Exported = result.Total - before

	return opts.formatter(cmd).Success(result,
		fmt.Sprintf("Exported %d event(s) to %s (%d total)", result.Exported, result.Path, result.Total))
}
