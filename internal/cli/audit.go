package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/gridsync/internal/record"
)

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit <dataset> <id>",
		Short: "Show a row's version history",
		Long: `Fetch the audit history of one row: every stored version with its
version number and the operation that produced it.

Examples:
  gridsync audit movies 42
  gridsync audit super_heroes 7 --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(rootOpts, args[0], args[1], cmd)
		},
	}
	return cmd
}

func runAudit(opts *RootOptions, name, rawID string, cmd *cobra.Command) error {
	ws, err := openWorkspace(opts, name)
	if err != nil {
		return err
	}
	defer ws.Close()

	snap, err := ws.orch.Audit(context.Background(), parseIdentity(rawID))
	if err != nil {
		return WrapExitError(ExitCommandError, "audit failed", err)
	}

	text := RenderTable(snap.Columns, snap.Rows) + fmt.Sprintf("(%d versions)\n", snap.Len())
	return newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(snap, text)
}

// parseIdentity reads integral ids as numbers and anything else as text.
func parseIdentity(s string) record.Value {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return record.Int(n)
	}
	return record.String(s)
}
