package commands

import (
	"fmt"

	"github.com/leapstack-labs/salesload/internal/cli/config"
	"github.com/spf13/cobra"
)

// NewKeygenCommand creates the keygen command.
func NewKeygenCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an encryption key into the config file",
		Long: `Generate a random 32-byte key and write it to encryption.key in the
config file, keeping the rest of the document intact.

Replacing an existing key makes previously encrypted personal_id values
unmatchable, so --force is required to overwrite one.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			if _, err := config.ProvisionKey(cc.Cfg.Path, force); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Encryption key written to %s\n", cc.Cfg.Path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing key")

	return cmd
}
