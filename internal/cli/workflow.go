package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/hivelog/internal/orchestrator"
)

// NewWorkflowCommand creates the workflow command group.
func NewWorkflowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Spawn, list and finish delegated workflows",
		Long: `Manage delegated workflows. State is rebuilt from the log on every invocation,
so a workflow spawned by one process can be completed by another.`,
	}
	cmd.AddCommand(newWorkflowSpawnCommand(rootOpts))
	cmd.AddCommand(newWorkflowListCommand(rootOpts))
	cmd.AddCommand(newWorkflowTransitionCommand(rootOpts, "complete", "Mark a workflow completed", "result",
		func(ctx context.Context, o *orchestrator.Orchestrator, id, text string) (bool, error) {
			return o.CompleteWorkflow(ctx, id, text)
		}))
	cmd.AddCommand(newWorkflowTransitionCommand(rootOpts, "fail", "Mark a workflow failed", "error",
		func(ctx context.Context, o *orchestrator.Orchestrator, id, text string) (bool, error) {
			return o.FailWorkflow(ctx, id, text)
		}))
	cmd.AddCommand(newWorkflowTransitionCommand(rootOpts, "abort", "Abort a workflow", "reason",
		func(ctx context.Context, o *orchestrator.Orchestrator, id, text string) (bool, error) {
			return o.AbortWorkflow(ctx, id, text)
		}))
	cmd.AddCommand(newWorkflowTransitionCommand(rootOpts, "resume", "Mark a workflow running again", "",
		func(ctx context.Context, o *orchestrator.Orchestrator, id, _ string) (bool, error) {
			return o.ResumeWorkflow(ctx, id)
		}))
	return cmd
}

// WorkflowSpawnOptions holds flags for workflow spawn.
type WorkflowSpawnOptions struct {
	*RootOptions
	Spec orchestrator.WorkflowSpec
}

func newWorkflowSpawnCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WorkflowSpawnOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "spawn",
		Short: "Spawn a workflow and print its id",
		Example: `  hivelog workflow spawn --description "index repository" --executor indexer --parent sess-1
  hivelog workflow spawn --description "summarize" --timeout 60000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			orch, err := opts.openOrchestrator(ctx, true)
			if err != nil {
				return err
			}
			defer orch.Close()

			id, err := orch.CreateWorkflow(ctx, opts.Spec)
			if err != nil {
				return WrapExitError(ExitFailure, "spawn failed", err)
			}
			return opts.formatter(cmd).Success(map[string]string{"workflow_id": id}, id)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Spec.ID, "id", "", "workflow id (generated when empty)")
	f.StringVar(&opts.Spec.Description, "description", "", "what the workflow does (required)")
	f.StringVar(&opts.Spec.Executor, "executor", "", "executor name")
	f.StringVar(&opts.Spec.Prompt, "prompt", "", "prompt handed to the executor")
	f.StringVar(&opts.Spec.ParentStream, "parent", "", "parent stream")
	f.StringVar(&opts.Spec.StreamID, "stream", "", "stream for workflow events (defaults to parent, then id)")
	f.Int64Var(&opts.Spec.TimeoutMs, "timeout", 0, "timeout in milliseconds")
	f.StringVar(&opts.Spec.Actor, "actor", "", "actor")
	_ = cmd.MarkFlagRequired("description")

	return cmd
}

func newWorkflowListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending and running workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			orch, err := rootOpts.openOrchestrator(ctx, true)
			if err != nil {
				return err
			}
			defer orch.Close()

			wfs := orch.ActiveWorkflows()
			var b strings.Builder
			fmt.Fprintf(&b, "%d active workflow(s)", len(wfs))
			for _, wf := range wfs {
				fmt.Fprintf(&b, "\n%s\t%s\t%s\t%s", wf.ID, wf.Status, wf.StreamID, wf.Description)
			}
			return rootOpts.formatter(cmd).Success(wfs, b.String())
		},
	}
}

type workflowTransition func(ctx context.Context, o *orchestrator.Orchestrator, id, text string) (bool, error)

func newWorkflowTransitionCommand(rootOpts *RootOptions, name, short, textFlag string, apply workflowTransition) *cobra.Command {
	var text string

	cmd := &cobra.Command{
		Use:   name + " <workflow-id>",
		Short: short,
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
			ok, err := apply(ctx, orch, id, text)
			if err != nil {
				return WrapExitError(ExitFailure, name+" failed", err)
			}
			if !ok {
				return f.NotFound("active workflow", id)
			}
			return f.Success(map[string]string{"workflow_id": id, "action": name}, fmt.Sprintf("%s: %s", name, id))
		},
	}
	if textFlag != "" {
		cmd.Flags().StringVar(&text, textFlag, "", textFlag+" text")
	}
	return cmd
}
