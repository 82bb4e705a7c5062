// Package cli provides the command-line interface for salesload.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/leapstack-labs/salesload/internal/cli/commands"
	"github.com/leapstack-labs/salesload/internal/cli/config"
	"github.com/spf13/cobra"

	// Register the target stores selectable through database.type
	_ "github.com/leapstack-labs/salesload/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/salesload/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/salesload/pkg/adapters/sqlite"
	_ "github.com/leapstack-labs/salesload/pkg/adapters/sqlserver"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// skipConfig marks commands that run without a config file.
const skipConfig = "skip-config"

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "salesload",
		Short: "salesload - incremental star-schema loader",
		Long: `salesload loads a delimited sales export into a star schema
(dim_customer, dim_product, sales) in a relational store.

Rows are cleaned and validated, personal_id is optionally encrypted, and
only rows the target does not already hold are appended, so re-running on
the same file loads nothing new.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			if _, ok := cmd.Annotations[skipConfig]; ok {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			logger := NewLogger(cmd.ErrOrStderr(), cfg.LogLevel(), cfg.Log.Format)
			logger.Debug("using config file", "path", cfg.Path, "store", cfg.Database.Type)

			ctx := config.WithConfig(cmd.Context(), cfg)
			ctx = config.WithLogger(ctx, logger)
			cmd.SetContext(ctx)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./salesload.yaml)")
	rootCmd.PersistentFlags().String("state", "", "Path to the run-history database")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output (log level debug)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text|json)")

	_ = rootCmd.RegisterFlagCompletionFunc("log-format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	version := commands.NewVersionCommand(Version)
	version.Annotations = map[string]string{skipConfig: ""}

	// Add subcommands
	rootCmd.AddCommand(version)
	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewKeygenCommand())
	rootCmd.AddCommand(commands.NewExportCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())

	return rootCmd
}

// Execute runs the root command. An interrupt cancels the running load,
// which rolls back the batch in flight.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
