package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"clearway/meridian/pkg/claims"
	"clearway/meridian/pkg/cli"
	"clearway/meridian/pkg/config"
	"clearway/meridian/pkg/drift"
	"clearway/meridian/pkg/events"
	"clearway/meridian/pkg/rules"
	"clearway/meridian/pkg/telemetry/logging"
)

var checkFlags struct {
	source string
	api    string
	format string
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a one-shot schema drift check",
	Long: `Check the configured upstream API schemas against the stored snapshots
and report any drift. Detected changes are persisted exactly as they would be
by the scheduled check, including auto-registration of new claim types.

Examples:
  # Check every API in the configured source
  meridian check

  # Check a specific source file
  meridian check --source schemas.yaml

  # Check one API only
  meridian check --api amazon_orders

  # Machine-readable output
  meridian check --format json`,
	RunE: checkSchemas,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkFlags.source, "source", "", "schema source file (uses config if not specified)")
	checkCmd.Flags().StringVar(&checkFlags.api, "api", "", "check a single API by name")
	checkCmd.Flags().StringVar(&checkFlags.format, "format", "text", "output format: text, json")
}

// checkReport is the JSON shape of one detected change.
type checkReport struct {
	APIName    string `json:"api_name"`
	ChangeType string `json:"change_type"`
	Severity   string `json:"severity"`
	Endpoint   string `json:"endpoint,omitempty"`
	FieldName  string `json:"field_name,omitempty"`
}

func checkSchemas(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	// One-shot commands stay quiet unless asked otherwise.
	if !verbose {
		cfg.Telemetry.Logging.Level = "warn"
	}
	if _, err := logging.Setup(cfg.Telemetry.Logging); err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	sourcePath := checkFlags.source
	if sourcePath == "" {
		sourcePath = cfg.Drift.SourcePath
	}
	if sourcePath == "" {
		return cli.NewConfigError("drift.source_path", "no schema source configured")
	}

	source, err := drift.NewFileSource(sourcePath)
	if err != nil {
		return cli.NewCommandError("check", err)
	}
	schemas, err := source.Schemas()
	if err != nil {
		return cli.NewCommandError("check", err)
	}
	if checkFlags.api != "" {
		schema, ok := schemas[checkFlags.api]
		if !ok {
			return fmt.Errorf("api %q not found in %s", checkFlags.api, sourcePath)
		}
		schemas = map[string]*claims.APISchema{checkFlags.api: schema}
	}

	store, err := openStore(cfg)
	if err != nil {
		return cli.NewCommandError("check", err)
	}
	defer store.Close()

	eventLog := events.NewStoreLogger(store)
	ruleStore := rules.NewStore(store)
	differ := drift.NewDiffer(store, ruleStore, eventLog)

	ctx := context.Background()
	var reports []checkReport
	for apiName, schema := range schemas {
		changes, err := differ.CheckAPISchema(ctx, apiName, schema)
		if err != nil {
			return cli.NewCommandError("check", fmt.Errorf("schema check failed for %s: %w", apiName, err))
		}
		for _, c := range changes {
			reports = append(reports, checkReport{
				APIName:    c.APIName,
				ChangeType: string(c.ChangeType),
				Severity:   string(c.Severity),
				Endpoint:   c.Endpoint,
				FieldName:  c.FieldName,
			})
		}
	}

	if checkFlags.format == "json" {
		formatter := cli.NewFormatter(cli.FormatJSON)
		return formatter.FormatTo(os.Stdout, reports)
	}

	if len(reports) == 0 {
		fmt.Println("No schema drift detected.")
		return nil
	}
	fmt.Printf("Detected %d schema change(s):\n\n", len(reports))
	for _, r := range reports {
		detail := r.Endpoint
		if detail == "" {
			detail = r.FieldName
		}
		fmt.Printf("  [%s] %s: %s %s\n", r.Severity, r.APIName, r.ChangeType, detail)
	}
	return nil
}
