package cli

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/hivelog/internal/config"
	"github.com/roach88/hivelog/internal/event"
	"github.com/roach88/hivelog/internal/orchestrator"
	"github.com/roach88/hivelog/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	LogPath    string

	// Logger is set up by the root command from Verbose.
	Logger *slog.Logger

	// Clock and IDs override time and id generation (for testing).
	Clock event.Clock
	IDs   event.IDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the hivelog CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hivelog",
		Short: "hivelog - durable event stream for agent orchestration",
		Long: `A durable, append-only event log with checkpoints, workflows and crash recovery.

Every command opens the log, rebuilds state from it where needed, performs one
operation and exits. Concurrent invocations on the same log are serialized by
a lock file next to it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			level := slog.LevelWarn
			if opts.Verbose {
				level = slog.LevelDebug
			}
			opts.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: level,
			}))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.LogPath, "log", "", "path to the event log (overrides config and "+config.EnvPath+")")

	cmd.AddCommand(NewAppendCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewStreamCommand(opts))
	cmd.AddCommand(NewResumeCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewWorkflowCommand(opts))
	cmd.AddCommand(NewCheckpointCommand(opts))
	cmd.AddCommand(NewTailCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewRotateCommand(opts))

	return cmd
}

// loadConfig merges defaults, --config, the environment and --log.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.LogPath != "" {
		cfg.Path = o.LogPath
	}
	return cfg, nil
}

func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// openOrchestrator opens the configured log. With resume set, projections
// are rebuilt from the log before returning.
func (o *RootOptions) openOrchestrator(ctx context.Context, resume bool) (*orchestrator.Orchestrator, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	opts := []orchestrator.Option{orchestrator.WithLogger(o.logger())}
	if o.Clock != nil {
		opts = append(opts, orchestrator.WithClock(o.Clock))
	}
	if o.IDs != nil {
		opts = append(opts, orchestrator.WithIDGenerator(o.IDs))
	}
	orch := orchestrator.Open(cfg, opts...)
	if err := orch.Initialize(ctx); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open event log", err)
	}
	if resume {
		if _, err := orch.Resume(ctx); err != nil {
			orch.Close()
			return nil, WrapExitError(ExitCommandError, "failed to resume from event log", err)
		}
	}
	return orch, nil
}

// fileStore returns the orchestrator's FileStore.
func fileStore(ctx context.Context, orch *orchestrator.Orchestrator) (*store.FileStore, error) {
	s, err := orch.Store(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open event log", err)
	}
	fs, ok := s.(*store.FileStore)
	if !ok {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("unsupported store %T", s))
	}
	return fs, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
