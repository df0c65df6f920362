package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/hivelog/internal/event"
	"github.com/roach88/hivelog/internal/orchestrator"
)

// NewCheckpointCommand creates the checkpoint command group.
func NewCheckpointCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Request, list and resolve human-in-the-loop checkpoints",
	}
	cmd.AddCommand(newCheckpointRequestCommand(rootOpts))
	cmd.AddCommand(newCheckpointListCommand(rootOpts))
	cmd.AddCommand(newCheckpointApproveCommand(rootOpts))
	cmd.AddCommand(newCheckpointRejectCommand(rootOpts))
	return cmd
}

// CheckpointRequestOptions holds flags for checkpoint request.
type CheckpointRequestOptions struct {
	*RootOptions
	Stream    string
	Decision  string
	Options   []string
	Requester string
	Timeout   time.Duration
}

func newCheckpointRequestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckpointRequestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "request",
		Short: "Request a checkpoint and print its id",
		Example: `  hivelog checkpoint request --stream sess-1 --decision "Deploy?" --option yes --option "no:Hold off"
  hivelog checkpoint request --stream sess-1 --decision "Merge?" --timeout 30m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			options, err := parseOptions(opts.Options)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --option", err)
			}
			orch, err := opts.openOrchestrator(ctx, true)
			if err != nil {
				return err
			}
			defer orch.Close()

			id, err := orch.RequestCheckpoint(ctx, orchestrator.CheckpointRequest{
				StreamID:  opts.Stream,
				Decision:  opts.Decision,
				Options:   options,
				Requester: opts.Requester,
				Timeout:   opts.Timeout,
			})
			if err != nil {
				return WrapExitError(ExitFailure, "request failed", err)
			}
			return opts.formatter(cmd).Success(map[string]string{"checkpoint_id": id}, id)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Stream, "stream", "", "stream id (required)")
	f.StringVar(&opts.Decision, "decision", "", "the question to decide (required)")
	f.StringArrayVar(&opts.Options, "option", nil, "option as id or id:label (repeatable)")
	f.StringVar(&opts.Requester, "requester", "", "who asks")
	f.DurationVar(&opts.Timeout, "timeout", 0, "expiry window (defaults to the configured checkpoint timeout)")
	_ = cmd.MarkFlagRequired("stream")
	_ = cmd.MarkFlagRequired("decision")

	return cmd
}

// parseOptions parses "id" or "id:label" values.
func parseOptions(raw []string) ([]event.Option, error) {
	out := make([]event.Option, 0, len(raw))
	for _, s := range raw {
		id, label, _ := strings.Cut(s, ":")
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("option %q has an empty id", s)
		}
		label = strings.TrimSpace(label)
		if label == "" {
			label = id
		}
		out = append(out, event.Option{ID: id, Label: label})
	}
	return out, nil
}

func newCheckpointListCommand(rootOpts *RootOptions) *cobra.Command {
	var expired bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending checkpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			orch, err := rootOpts.openOrchestrator(ctx, true)
			if err != nil {
				return err
			}
			defer orch.Close()

			cps := orch.PendingCheckpoints()
			label := "pending"
			if expired {
				now := time.Now
				if rootOpts.Clock != nil {
					now = rootOpts.Clock
				}
				cps = orch.ExpiredCheckpoints(now())
				label = "expired"
			}
			if cps == nil {
				cps = []event.Checkpoint{}
			}

			var b strings.Builder
			fmt.Fprintf(&b, "%d %s checkpoint(s)", len(cps), label)
			for _, cp := range cps {
				ids := make([]string, len(cp.Options))
				for i, o := range cp.Options {
					ids[i] = o.ID
				}
				fmt.Fprintf(&b, "\n%s\t%s\t%s\t[%s]", cp.ID, cp.StreamID, cp.Decision, strings.Join(ids, ", "))
			}
			return rootOpts.formatter(cmd).Success(cps, b.String())
		},
	}
	cmd.Flags().BoolVar(&expired, "expired", false, "only checkpoints past their expiry")
	return cmd
}

func newCheckpointApproveCommand(rootOpts *RootOptions) *cobra.Command {
	var approver, option string

	cmd := &cobra.Command{
		Use:   "approve <checkpoint-id>",
		Short: "Approve a pending checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			orch, err := rootOpts.openOrchestrator(ctx, true)
			if err != nil {
				return err
			}
			defer orch.Close()

			id := args[0]
			f := rootOpts.formatter(cmd)
			ok, err := orch.ApproveCheckpoint(ctx, id, approver, option)
			if err != nil {
				return WrapExitError(ExitFailure, "approve failed", err)
			}
			if !ok {
				return f.NotFound("pending checkpoint", id)
			}
			return f.Success(map[string]string{"checkpoint_id": id, "option": option}, "approved: "+id)
		},
	}
	cmd.Flags().StringVar(&approver, "approver", "", "who approves")
	cmd.Flags().StringVar(&option, "option", "", "selected option id")
	return cmd
}

func newCheckpointRejectCommand(rootOpts *RootOptions) *cobra.Command {
	var rejecter, reason string

	cmd := &cobra.Command{
		Use:   "reject <checkpoint-id>",
		Short: "Reject a pending checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			orch, err := rootOpts.openOrchestrator(ctx, true)
			if err != nil {
				return err
			}
			defer orch.Close()

			id := args[0]
			f := rootOpts.formatter(cmd)
			ok, err := orch.RejectCheckpoint(ctx, id, rejecter, reason)
			if err != nil {
				return WrapExitError(ExitFailure, "reject failed", err)
			}
			if !ok {
				return f.NotFound("pending checkpoint", id)
			}
			return f.Success(map[string]string{"checkpoint_id": id}, "rejected: "+id)
		},
	}
	cmd.Flags().StringVar(&rejecter, "rejecter", "", "who rejects")
	cmd.Flags().StringVar(&reason, "reason", "", "why")
	return cmd
}
