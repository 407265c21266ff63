package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/gridsync/internal/config"
	"github.com/roach88/gridsync/internal/dataset"
)

// RootOptions holds global flags and the state shared by all commands.
type RootOptions struct {
	Verbose     bool
	Format      string // "json" | "text"
	ConfigPath  string
	JournalPath string

	// Registry resolves dataset names. Defaults to the builtin datasets.
	Registry *dataset.Registry

	// Logger is set up by the root command before any subcommand runs.
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the gridsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Registry: dataset.Builtin()}

	cmd := &cobra.Command{
		Use:   "gridsync",
		Short: "gridsync - reconcile table edits with a REST backend",
		Long: `Fetch a dataset into a table snapshot, diff an edit buffer against it,
and apply or discard the resulting created, updated and deleted rows.

Settings come from flags, GRIDSYNC_* environment variables, an optional
gridsync.yaml and an optional .env file, in that order of precedence.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, config.KeyVerbose, "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, config.KeyFormat, "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, config.KeyConfig, "c", "gridsync.cue", "CUE deployment config file or directory")
	cmd.PersistentFlags().StringVar(&opts.JournalPath, config.KeyJournal, "", "SQLite apply journal (empty disables journaling)")

	cmd.AddCommand(NewDatasetsCommand(opts))
	cmd.AddCommand(NewFetchCommand(opts))
	cmd.AddCommand(NewEditCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// resolve layers .env, environment, settings file and flags into opts and
// installs the logger.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	if err := config.LoadEnvFiles(); err != nil {
		return WrapExitError(ExitCommandError, "failed to load .env", err)
	}
	v, err := config.NewViper(".")
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read settings", err)
	}
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return WrapExitError(ExitCommandError, "failed to bind flags", err)
	}
	settings, err := config.Resolve(v)
	if err != nil {
		if !isValidFormat(v.GetString(config.KeyFormat)) {
			return NewExitError(ExitCommandError,
				fmt.Sprintf("invalid format %q: must be one of %v", v.GetString(config.KeyFormat), ValidFormats))
		}
		return WrapExitError(ExitCommandError, "invalid settings", err)
	}

	o.Verbose = settings.Verbose
	o.Format = settings.Format
	o.ConfigPath = settings.ConfigPath
	o.JournalPath = settings.JournalPath

	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
