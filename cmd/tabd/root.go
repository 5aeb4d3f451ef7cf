package main

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tabd",
	Short: "tabd - crontab-driven job dispatch daemon",
	Long: `tabd reads a classic five-field crontab with a per-job user column,
wakes at every minute boundary and hands the jobs due at that minute to an
executor (local processes or Docker containers) without waiting for them
to finish.`,
	Version: Version,
}

func init() {
	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(nextCmd)
}
