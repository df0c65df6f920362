package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/hivelog/internal/event"
	"github.com/roach88/hivelog/internal/payload"
)

// AppendOptions holds flags for the append command.
type AppendOptions struct {
	*RootOptions
	Type        string
	Stream      string
	Actor       string
	Causation   string
	Correlation string
	Payload     string
}

// NewAppendCommand creates the append command.
func NewAppendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AppendOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "append",
		Short: "Append one event to the log",
		Long: `Append one event and print it as stored, including its id, timestamp and seq.

The payload is a JSON object. Numbers must be integers.

Examples:
  hivelog append --type execution.retry --stream sess-1 --payload '{"attempt":2}'
  hivelog append --type learning.extracted --stream sess-1 --actor reviewer`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAppend(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Type, "type", "", "event type, e.g. workflow.spawned (required)")
	cmd.Flags().StringVar(&opts.Stream, "stream", "", "stream id (required)")
	cmd.Flags().StringVar(&opts.Actor, "actor", "", "actor")
	cmd.Flags().StringVar(&opts.Causation, "causation", "", "id of the causing event")
	cmd.Flags().StringVar(&opts.Correlation, "correlation", "", "correlation id")
	cmd.Flags().StringVar(&opts.Payload, "payload", "{}", "payload as a JSON object")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("stream")

	return cmd
}

func runAppend(opts *AppendOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	typ, ok := event.ParseType(opts.Type)
	if !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown event type %q", opts.Type))
	}
	pl, err := parsePayload(opts.Payload)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --payload", err)
	}

	orch, err := opts.openOrchestrator(ctx, false)
	if err != nil {
		return err
	}
	defer orch.Close()

	e, err := orch.Append(ctx, event.Input{
		Type:          typ,
		StreamID:      opts.Stream,
		Actor:         opts.Actor,
		CausationID:   opts.Causation,
		CorrelationID: opts.Correlation,
		Payload:       pl,
	})
	if err != nil {
		return WrapExitError(ExitFailure, "append failed", err)
	}

	f := opts.formatter(cmd)
	if opts.Format == "json" {
		return f.Success(e, "")
	}
	return f.Event(e)
}

func parsePayload(raw string) (payload.Object, error) {
	if raw == "" {
		return payload.Object{}, nil
	}
	v, err := payload.Unmarshal([]byte(raw))
	if err != nil {
		return nil, err
	}
	obj, ok := v.(payload.Object)
	if !ok {
		return nil, fmt.Errorf("payload must be a JSON object, got %T", v)
	}
	return obj, nil
}
