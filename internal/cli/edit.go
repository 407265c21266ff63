package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/gridsync/internal/diff"
	"github.com/roach88/gridsync/internal/reconcile"
	"github.com/roach88/gridsync/internal/record"
)

// EditOptions holds flags for the edit command.
type EditOptions struct {
	*RootOptions
	Buffer  string // path to edit buffer JSON, "-" for stdin
	Apply   bool
	Discard bool
}

// EditResult is the edit command's JSON payload.
type EditResult struct {
	Dataset   string              `json:"dataset"`
	Preview   *reconcile.Preview  `json:"preview,omitempty"`
	Outcome   *reconcile.Outcome  `json:"outcome,omitempty"`
	Discarded bool                `json:"discarded,omitempty"`
	Failures  []reconcile.Failure `json:"failures,omitempty"`
}

// NewEditCommand creates the edit command.
func NewEditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "edit <dataset>",
		Short: "Diff an edit buffer and optionally apply it",
		Long: `Fetch the dataset, diff the edit buffer against the snapshot and print
the created, updated and deleted rows. With --apply the changes are sent
to the backend; with --discard they are dropped.

The buffer is the grid widget's JSON:

  {"added_rows": [{"title": "C"}],
   "edited_rows": {"0": {"title": "A2"}},
   "deleted_rows": [1]}

Exit codes:
  0 - Preview printed, changes applied or discarded
  1 - One or more batches failed; nothing is retried
  2 - Command error (bad buffer, config or backend unreachable)

Examples:
  gridsync edit movies --buffer edits.json
  gridsync edit movies --buffer edits.json --apply
  cat edits.json | gridsync edit movies --buffer - --discard`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Buffer, "buffer", "b", "", "edit buffer JSON file, - for stdin (required)")
	_ = cmd.MarkFlagRequired("buffer")
	cmd.Flags().BoolVar(&opts.Apply, "apply", false, "persist the changes")
	cmd.Flags().BoolVar(&opts.Discard, "discard", false, "drop the changes")
	cmd.MarkFlagsMutuallyExclusive("apply", "discard")

	return cmd
}

func runEdit(opts *EditOptions, name string, cmd *cobra.Command) error {
	buf, err := readBuffer(opts.Buffer, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read edit buffer", err)
	}

	ws, err := openWorkspace(opts.RootOptions, name)
	if err != nil {
		return err
	}
	defer ws.Close()

	ctx := context.Background()
	if _, err := ws.orch.Load(ctx); err != nil {
		return WrapExitError(ExitCommandError, "fetch failed", err)
	}
	if err := ws.session.WriteBuffer(ws.orch.EditorKey(), buf); err != nil {
		return WrapExitError(ExitCommandError, "failed to stage edit buffer", err)
	}

	out := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	result := EditResult{Dataset: name}

	preview, err := ws.orch.Cycle(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "edit buffer rejected", err)
	}
	if preview == nil {
		return out.Success(result, "No changes.\n")
	}
	result.Preview = preview

	var text strings.Builder
	text.WriteString(renderPreview(preview))

	switch {
	case opts.Apply:
		outcome, err := ws.orch.Apply(ctx)
		result.Outcome = outcome
		var ae *reconcile.ApplyError
		if errors.As(err, &ae) {
			result.Failures = ae.Failures
			if out.JSON() {
				if encErr := out.Error("APPLY_FAILED", ae.Error(), result); encErr != nil {
					return encErr
				}
			} else {
				text.WriteString("\nApply failed, edits discarded:\n")
				for _, f := range ae.Failures {
					fmt.Fprintf(&text, "  %s\n", f)
				}
				if _, werr := io.WriteString(out.Writer, text.String()); werr != nil {
					return werr
				}
			}
			return WrapExitError(ExitFailure, "apply failed", err)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "apply failed", err)
		}
		text.WriteString("\nApplied.\n")
	case opts.Discard:
		if err := ws.orch.Discard(ctx); err != nil {
			return WrapExitError(ExitCommandError, "discard failed", err)
		}
		result.Discarded = true
		text.WriteString("\nDiscarded.\n")
	}

	return out.Success(result, text.String())
}

func readBuffer(path string, stdin io.Reader) (record.EditBuffer, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return record.EditBuffer{}, err
	}

	var buf record.EditBuffer
	if err := json.Unmarshal(data, &buf); err != nil {
		return record.EditBuffer{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return buf, nil
}

func renderPreview(p *reconcile.Preview) string {
	var b strings.Builder
	d := p.Diff
	if len(d.Created) > 0 {
		fmt.Fprintf(&b, "Created (%d):\n", len(d.Created))
		b.WriteString(RenderTable(d.Columns, d.Created))
	}
	if len(d.Updated) > 0 {
		fmt.Fprintf(&b, "Updated (%d):\n", len(d.Updated))
		cols := append([]string{diff.StateField}, d.Columns...)
		b.WriteString(RenderTable(cols, d.UpdatedRows()))
	}
	if len(d.Deleted) > 0 {
		fmt.Fprintf(&b, "Deleted (%d):\n", len(d.Deleted))
		b.WriteString(RenderTable(d.Columns, d.Deleted))
	}
	return b.String()
}
