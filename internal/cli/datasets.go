package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/gridsync/internal/dataset"
)

// DatasetInfo describes one registered dataset.
type DatasetInfo struct {
	Name     string           `json:"name"`
	Title    string           `json:"title"`
	Identity string           `json:"identity"`
	Columns  []dataset.Column `json:"columns,omitempty"`
}

// NewDatasetsCommand creates the datasets command.
func NewDatasetsCommand(rootOpts *RootOptions) *cobra.Command {
	var columns bool

	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "List registered datasets",
		Long: `List the datasets gridsync knows how to edit.

Examples:
  gridsync datasets
  gridsync datasets --columns --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDatasets(rootOpts, columns, cmd)
		},
	}

	cmd.Flags().BoolVar(&columns, "columns", false, "include column configuration")

	return cmd
}

func runDatasets(opts *RootOptions, columns bool, cmd *cobra.Command) error {
	infos := make([]DatasetInfo, 0)
	var text strings.Builder
	for _, name := range opts.Registry.Names() {
		d, err := opts.Registry.Lookup(name)
		if err != nil {
			return WrapExitError(ExitCommandError, "registry", err)
		}
		info := DatasetInfo{Name: d.Name, Title: d.Title, Identity: d.Identity}
		if columns {
			info.Columns = d.Columns
		}
		infos = append(infos, info)

		fmt.Fprintf(&text, "%s\t%s (identity: %s)\n", d.Name, d.Title, d.Identity)
		if columns {
			for _, c := range d.Columns {
				fmt.Fprintf(&text, "  %-10s %-6s %s\n", c.Field, c.Type, c.Label)
			}
		}
	}

	return newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(infos, text.String())
}
