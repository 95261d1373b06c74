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
	Use:   "meridian",
	Short: "Meridian - hot-updatable claims policy engine",
	Long: `Meridian is the policy core of an automated claims pipeline. Rules and
evidence requirements live in a versioned store and take effect without a
redeploy.

It provides:
  - Claim evaluation against hot-updatable rule sets
  - Evidence requirement lookup per claim type
  - A manual review queue with analyst correction feedback
  - Schema drift detection for upstream retailer APIs`,
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
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
