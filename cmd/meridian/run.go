package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"clearway/meridian/pkg/claims"
	"clearway/meridian/pkg/claims/storage"
	"clearway/meridian/pkg/cli"
	"clearway/meridian/pkg/config"
	"clearway/meridian/pkg/drift"
	"clearway/meridian/pkg/events"
	"clearway/meridian/pkg/review"
	"clearway/meridian/pkg/rules"
	"clearway/meridian/pkg/server"
	"clearway/meridian/pkg/telemetry/health"
	"clearway/meridian/pkg/telemetry/logging"
	"clearway/meridian/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Meridian API server",
	Long: `Start the Meridian API server with the specified configuration.

The server exposes claim evaluation, rule and evidence management, the
manual review queue, and schema drift inspection over HTTP.

Examples:
  # Start with default config
  meridian run

  # Start with custom config
  meridian run --config /etc/meridian/config.yaml

  # Override listen address
  meridian run --listen 0.0.0.0:8080

  # Validate config without starting server
  meridian run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	if _, err := logging.Setup(cfg.Telemetry.Logging); err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	printBanner(cfg)

	store, err := openStore(cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer store.Close()
	fmt.Printf("✓ Storage initialized (%s backend)\n", cfg.Storage.Backend)

	var m *metrics.Metrics
	if cfg.Telemetry.Metrics.Enabled {
		m = metrics.New("meridian", "", nil)
	}

	cache := rules.NewTTLCache(cfg.Cache.TTL, cfg.Cache.CleanupInterval)
	ruleStore := rules.NewStore(store, rules.WithCache(cache), rules.WithMetrics(m))
	evaluator := rules.NewEvaluator(ruleStore, m)
	eventLog := events.NewStoreLogger(store)
	queue := review.NewQueue(store, review.WithQueueMetrics(m))
	processor := review.NewProcessor(store, ruleStore, eventLog, review.WithProcessorMetrics(m))
	differ := drift.NewDiffer(store, ruleStore, eventLog, drift.WithDifferMetrics(m))

	// Cancelled on SIGINT/SIGTERM; stops the watcher and scheduler.
	ctx := cli.SetupSignalHandler()

	var scheduler *drift.Scheduler
	if cfg.Drift.Enabled && cfg.Drift.SourcePath != "" {
		source, err := drift.NewFileSource(cfg.Drift.SourcePath)
		if err != nil {
			slog.Warn("failed to load schema source, drift detection disabled",
				"path", cfg.Drift.SourcePath,
				"error", err,
			)
		} else {
			scheduler = drift.NewScheduler(differ, source, cfg.Drift.Schedule)
			if err := scheduler.Start(ctx); err != nil {
				slog.Warn("failed to start schema check scheduler", "error", err)
			} else {
				defer scheduler.Stop()
				if next := scheduler.NextRun(); next != nil {
					slog.Debug("schema check scheduler started", "next_check", next)
				}
			}

			if cfg.Drift.Watch {
				if err := watchSchemaSource(ctx, cfg.Drift.SourcePath, source, scheduler); err != nil {
					slog.Warn("failed to start schema source watcher", "error", err)
				}
			}
			fmt.Println("✓ Schema drift detector initialized")
		}
	}

	checker := health.New(0)
	checker.RegisterCheck("storage", func(ctx context.Context) error {
		_, err := store.ListSchemaChanges(ctx, claims.ChangeFilter{Limit: 1})
		return err
	})

	srv := server.NewServer(&cfg.Server, &cfg.Telemetry.Metrics, server.Deps{
		Store:     store,
		Rules:     ruleStore,
		Evaluator: evaluator,
		Queue:     queue,
		Processor: processor,
		Differ:    differ,
		Scheduler: scheduler,
		Metrics:   m,
		Health:    checker,
	})

	fmt.Println()
	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/healthz\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Blocks until signal, context cancellation, or server failure.
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Println("✓ Server stopped")
	return nil
}

// watchSchemaSource reruns the full schema check whenever the source file
// changes, so edited upstream shapes are diffed without waiting for the
// next scheduled sweep.
func watchSchemaSource(ctx context.Context, path string, source *drift.FileSource, scheduler *drift.Scheduler) error {
	watcher, err := drift.NewSourceWatcher()
	if err != nil {
		return err
	}

	go func() {
		err := watcher.Watch(ctx, path, func() error {
			if err := source.Reload(); err != nil {
				return err
			}
			return scheduler.CheckAllSchemas(context.Background())
		})
		if err != nil {
			slog.Error("schema source watcher exited", "error", err)
		}
	}()
	return nil
}

// openStore creates the configured storage backend.
func openStore(cfg *config.Config) (claims.Store, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return storage.NewSQLiteStore(&storage.SQLiteConfig{
			Path:         cfg.Storage.SQLite.Path,
			Driver:       cfg.Storage.SQLite.Driver,
			MaxOpenConns: cfg.Storage.SQLite.MaxOpenConns,
			MaxIdleConns: cfg.Storage.SQLite.MaxIdleConns,
			WALMode:      cfg.Storage.SQLite.WALMode,
			BusyTimeout:  cfg.Storage.SQLite.BusyTimeout,
		})
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}
}

func printBanner(cfg *config.Config) {
	fmt.Printf("Meridian v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	slog.Debug("storage configured", "backend", cfg.Storage.Backend)
	if cfg.Drift.Enabled {
		slog.Debug("drift detection configured",
			"source", cfg.Drift.SourcePath,
			"schedule", cfg.Drift.Schedule,
			"watch", cfg.Drift.Watch,
		)
	}
}
