package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewFetchCommand creates the fetch command.
func NewFetchCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <dataset>",
		Short: "Fetch a dataset snapshot",
		Long: `Fetch a dataset from its backend and print the snapshot, sorted by
identity. Row positions in the output are what an edit buffer addresses.

An empty dataset prints an empty table over the dataset's columns.

Examples:
  gridsync fetch movies
  gridsync fetch super_heroes --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runFetch(opts *RootOptions, name string, cmd *cobra.Command) error {
	ws, err := openWorkspace(opts, name)
	if err != nil {
		return err
	}
	defer ws.Close()

	snap, err := ws.orch.Load(context.Background())
	if err != nil {
		return WrapExitError(ExitCommandError, "fetch failed", err)
	}

	text := RenderTable(snap.Columns, snap.Rows) + fmt.Sprintf("(%d rows)\n", snap.Len())
	return newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(snap, text)
}
