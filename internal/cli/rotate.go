package cli

import (
	"github.com/spf13/cobra"
)

// NewRotateCommand creates the rotate command.
func NewRotateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rotate",
		Short: "Archive the active log now",
		Long: `Rename the active log to a timestamped archive and start a fresh one.
An empty active log is left in place.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			orch, err := rootOpts.openOrchestrator(ctx, false)
			if err != nil {
				return err
			}
			defer orch.Close()

			fs, err := fileStore(ctx, orch)
			if err != nil {
				return err
			}
			archive, err := fs.Rotate(ctx)
			if err != nil {
				return WrapExitError(ExitFailure, "rotate failed", err)
			}
			text := "Active log is empty; nothing to rotate"
			if archive != "" {
				text = "Archived to " + archive
			}
			return rootOpts.formatter(cmd).Success(map[string]string{"archive": archive}, text)
		},
	}
}
