package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Export the target tables to CSV without loading",
		Long: `Write a full snapshot of dim_customer, dim_product and sales to
file.output_path. Tables that do not exist yet are skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}

			eng, err := cc.NewEngine(false)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			paths, err := eng.Export(cmd.Context())
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No tables to export.")
				return nil
			}
			for _, path := range paths {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Exported %s\n", path)
			}
			return nil
		},
	}
}
