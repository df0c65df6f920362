package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/hivelog/internal/event"
)

// TailOptions holds flags for the tail command.
type TailOptions struct {
	*RootOptions
	Stream    string
	Interval  time.Duration
	Count     int
	FromStart bool
}

// NewTailCommand creates the tail command.
func NewTailCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TailOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow the log and print new events",
		Long: `Poll the log and print each new event as a canonical JSON line.

Events appended by other processes are picked up on the next poll, including
across rotations. Stops on interrupt or after --count events.

Examples:
  hivelog tail
  hivelog tail --stream sess-1 --from-start
  hivelog tail --interval 100ms --count 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTail(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Stream, "stream", "", "only events of this stream")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 500*time.Millisecond, "poll interval")
	cmd.Flags().IntVar(&opts.Count, "count", 0, "exit after printing this many events (0 = follow forever)")
	cmd.Flags().BoolVar(&opts.FromStart, "from-start", false, "print events already in the active log first")

	return cmd
}

func runTail(opts *TailOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if opts.Interval <= 0 {
		return NewExitError(ExitCommandError, "--interval must be positive")
	}
	orch, err := opts.openOrchestrator(ctx, false)
	if err != nil {
		return err
	}
	defer orch.Close()

	fs, err := fileStore(ctx, orch)
	if err != nil {
		return err
	}
	out := opts.formatter(cmd)

	var cursor int64
	if !opts.FromStart {
		cursor = fs.LastSeq()
	}
	printed := 0
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		if err := fs.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return WrapExitError(ExitFailure, "refresh failed", err)
		}
		events, err := fs.Query(ctx, event.Filter{StreamID: opts.Stream})
		if err != nil {
			return WrapExitError(ExitFailure, "query failed", err)
		}
		for _, e := range events {
			if e.Seq <= cursor {
				continue
			}
			cursor = e.Seq
			if err := out.Event(e); err != nil {
				return err
			}
			printed++
			if opts.Count > 0 && printed >= opts.Count {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
