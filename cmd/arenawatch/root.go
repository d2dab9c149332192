package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for arenawatch.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "arenawatch",
		Short: "Weekly and monthly movement on the arena leaderboards",
		Long: `arenawatch scrapes the arena text and coding leaderboards, joins them with
OpenRouter pricing and usage, and reports fast risers and new stars against
week-old and month-old snapshots.

Configuration comes from defaults, the YAML file named by ARENAWATCH_CONFIG,
a .env file and ARENAWATCH_* environment variables, in that order.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("log-level", "", "Override log_level (debug, info, warn, error)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewAnalyzeCmd())
	cmd.AddCommand(NewBackfillCmd())
	cmd.AddCommand(NewAliasesCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
