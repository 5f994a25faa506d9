// Package cmd implements the CLI commands for report-dispatch.
package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "report-dispatch",
	Short: "Deliver scheduled reports and evaluate threshold alerts",
	Long:  "An API-first service that delivers recurring reports on cron-derived schedules, records every delivery attempt, and evaluates metric readings against threshold rules to fan out alerts.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
