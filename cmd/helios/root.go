package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "helios",
	Short: "Helios - provider reliability and cost governance for AI generation",
	Long: `Helios watches the upstream AI providers a generation pipeline depends on
and keeps spending inside budget.

It provides:
  - Per-provider circuit breakers with exponential backoff
  - Health classification and composite failover ranking
  - Generation cost metering against daily and monthly budgets
  - Cost alerts with acknowledgement workflow
  - An HTTP admin surface for operations and Prometheus metrics`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
