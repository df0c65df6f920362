package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/hivelog/internal/event"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Types       []string
	Categories  []string
	Stream      string
	Actor       string
	Correlation string
	From        int64
	To          int64
	Limit       int
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Print events matching a filter",
		Long: `Print the events that match every given criterion, in append order.

Repeated --type or --category flags match any of the values. Time bounds are
Unix milliseconds and inclusive. --limit keeps the most recent matches.

Examples:
  hivelog query --category checkpoint
  hivelog query --stream sess-1 --type workflow.spawned --type workflow.completed
  hivelog query --from 1700000000000 --limit 20 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Types, "type", nil, "event type (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Categories, "category", nil, "event category, e.g. workflow (repeatable)")
	cmd.Flags().StringVar(&opts.Stream, "stream", "", "stream id")
	cmd.Flags().StringVar(&opts.Actor, "actor", "", "actor")
	cmd.Flags().StringVar(&opts.Correlation, "correlation", "", "correlation id")
	cmd.Flags().Int64Var(&opts.From, "from", 0, "earliest timestamp (Unix ms)")
	cmd.Flags().Int64Var(&opts.To, "to", 0, "latest timestamp (Unix ms)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "keep only the last N matches")

	return cmd
}

func (opts *QueryOptions) filter() (event.Filter, error) {
	f := event.Filter{
		StreamID:      opts.Stream,
		Actor:         opts.Actor,
		CorrelationID: opts.Correlation,
		From:          opts.From,
		To:            opts.To,
		Limit:         opts.Limit,
	}
	for _, s := range opts.Types {
		typ, ok := event.ParseType(s)
		if !ok {
			return event.Filter{}, fmt.Errorf("unknown event type %q", s)
		}
		f.Types = append(f.Types, typ)
	}
	for _, s := range opts.Categories {
		f.Categories = append(f.Categories, event.Category(s))
	}
	if opts.Limit < 0 {
		return event.Filter{}, fmt.Errorf("--limit must not be negative, got %d", opts.Limit)
	}
	return f, nil
}

func runQuery(opts *QueryOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	f, err := opts.filter()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}

	orch, err := opts.openOrchestrator(ctx, false)
	if err != nil {
		return err
	}
	defer orch.Close()

	events, err := orch.Query(ctx, f)
	if err != nil {
		return WrapExitError(ExitFailure, "query failed", err)
	}
	formatter := opts.formatter(cmd)
	formatter.VerboseLog("%d event(s) matched", len(events))
	return formatter.Events(events)
}
