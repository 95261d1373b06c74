package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clearway/meridian/pkg/cli"
	"clearway/meridian/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load the configuration file, apply defaults and environment variable
overrides, and report whether the result is valid.

Examples:
  # Validate the default config
  meridian validate

  # Validate a specific file
  meridian validate --config /etc/meridian/config.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", err.Error())
	}

	fmt.Printf("✓ Configuration valid: %s\n", cfgFile)
	fmt.Println()
	fmt.Printf("  Listen address:  %s\n", cfg.Server.ListenAddress)
	fmt.Printf("  Storage backend: %s\n", cfg.Storage.Backend)
	if cfg.Storage.Backend == "sqlite" {
		fmt.Printf("  SQLite path:     %s (%s driver)\n", cfg.Storage.SQLite.Path, cfg.Storage.SQLite.Driver)
	}
	fmt.Printf("  Cache TTL:       %s\n", cfg.Cache.TTL)
	if cfg.Drift.Enabled {
		fmt.Printf("  Drift source:    %s (schedule %q, watch %t)\n",
			cfg.Drift.SourcePath, cfg.Drift.Schedule, cfg.Drift.Watch)
	} else {
		fmt.Println("  Drift detection: disabled")
	}
	fmt.Printf("  Metrics:         enabled=%t path=%s\n", cfg.Telemetry.Metrics.Enabled, cfg.Telemetry.Metrics.Path)
	return nil
}
