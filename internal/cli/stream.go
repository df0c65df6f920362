package cli

import (
	"github.com/spf13/cobra"
)

// StreamOptions holds flags for the stream command.
type StreamOptions struct {
	*RootOptions
	From int
}

// NewStreamCommand creates the stream command.
func NewStreamCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StreamOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stream <stream-id>",
		Short: "Print one stream's events",
		Long: `Print the events of one stream in append order.

--from is a position in the active log file, as reported by "hivelog resume"
in its offset field. Events before it are skipped.

Examples:
  hivelog stream sess-1
  hivelog stream sess-1 --from 120`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStream(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.From, "from", 0, "offset in the active log to read from")

	return cmd
}

func runStream(opts *StreamOptions, streamID string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	orch, err := opts.openOrchestrator(ctx, false)
	if err != nil {
		return err
	}
	defer orch.Close()

	events, err := orch.ReadStream(ctx, streamID, opts.From)
	if err != nil {
		return WrapExitError(ExitFailure, "read stream failed", err)
	}
	return opts.formatter(cmd).Events(events)
}
