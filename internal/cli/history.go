package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/gridsync/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Dataset string
	Limit   int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled apply and discard cycles",
		Long: `List the cycles recorded in the apply journal, oldest first, with the
status of each create, update and delete batch.

Requires --journal (or GRIDSYNC_JOURNAL).

Examples:
  gridsync history --journal ./gridsync.db
  gridsync history --journal ./gridsync.db --dataset movies --limit 10`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dataset, "dataset", "", "only cycles for this dataset")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "only the most recent N cycles")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	if opts.JournalPath == "" {
		return NewExitError(ExitCommandError, "no journal configured: set --journal or GRIDSYNC_JOURNAL")
	}

	st, err := store.Open(opts.JournalPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	cycles, err := st.ReadCycles(context.Background(), store.Filter{Dataset: opts.Dataset, Limit: opts.Limit})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	var text strings.Builder
	if len(cycles) == 0 {
		text.WriteString("No cycles recorded.\n")
	}
	for _, c := range cycles {
		fmt.Fprintf(&text, "#%d %s %s %s\n", c.Seq, c.Dataset, c.Outcome, c.EditorKey)
		for _, op := range c.Operations {
			fmt.Fprintf(&text, "  %-6s %-7s rows=%d", op.Operation, op.Status, op.Rows)
			if op.Message != "" {
				fmt.Fprintf(&text, " %s", op.Message)
			}
			text.WriteString("\n")
		}
	}

	return newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(cycles, text.String())
}
