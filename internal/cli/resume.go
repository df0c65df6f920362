package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/hivelog/internal/orchestrator"
)

// ResumeReport is the output of the resume command.
type ResumeReport struct {
	orchestrator.ResumeResult
	Offset int `json:"offset"`
}

// NewResumeCommand creates the resume command.
func NewResumeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Rebuild state from the log and report it",
		Long: `Replay the full log, including rotated archives, and report what a restarted
orchestrator would see: pending checkpoints and active workflows.

Examples:
  hivelog resume
  hivelog resume --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResume(rootOpts, cmd)
		},
	}
}

func runResume(opts *RootOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	orch, err := opts.openOrchestrator(ctx, false)
	if err != nil {
		return err
	}
	defer orch.Close()

	res, err := orch.Resume(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "resume failed", err)
	}
	report := ResumeReport{ResumeResult: res, Offset: orch.Offset()}
	return opts.formatter(cmd).Success(report, formatResume(report))
}

func formatResume(r ResumeReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Events replayed: %d\n", r.EventsReplayed)
	if r.LastEventTime > 0 {
		fmt.Fprintf(&b, "Last event: %s\n", time.UnixMilli(r.LastEventTime).UTC().Format(time.RFC3339Nano))
	}
	fmt.Fprintf(&b, "Offset: %d\n", r.Offset)

	fmt.Fprintf(&b, "Pending checkpoints: %d\n", len(r.PendingCheckpoints))
	for _, cp := range r.PendingCheckpoints {
		fmt.Fprintf(&b, "  %s [%s] %s\n", cp.ID, cp.StreamID, cp.Decision)
	}
	fmt.Fprintf(&b, "Active workflows: %d", len(r.ActiveWorkflows))
	for _, wf := range r.ActiveWorkflows {
		fmt.Fprintf(&b, "\n  %s [%s] %s: %s", wf.ID, wf.StreamID, wf.Status, wf.Description)
	}
	return b.String()
}
