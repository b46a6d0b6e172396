package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"hookly/helios/pkg/cli"
	"hookly/helios/pkg/config"
	"hookly/helios/pkg/costs"
	"hookly/helios/pkg/health"
	healthstorage "hookly/helios/pkg/health/storage"
	"hookly/helios/pkg/ledger"
	"hookly/helios/pkg/ledger/retention"
	ledgerstorage "hookly/helios/pkg/ledger/storage"
	"hookly/helios/pkg/server"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Helios service",
	Long: `Start the Helios service with the specified configuration.

The service tracks provider health, meters generation spend, and serves the
HTTP admin surface on the configured listen address.

Examples:
  # Start with default config
  helios run

  # Start with custom config
  helios run --config /etc/helios/config.yaml

  # Override listen address
  helios run --listen 0.0.0.0:8090

  # Validate config without starting the service
  helios run --dry-run`,
	RunE: runService,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the service")
}

func runService(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	setupLogging(&cfg.Telemetry.Logging)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Helios v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	// Health state backend
	healthStore, err := newHealthBackend(&cfg.Storage.Health)
	if err != nil {
		return fmt.Errorf("failed to create health storage: %w", err)
	}
	defer healthStore.Close()

	// Cost ledger backend
	ledgerStore, err := newLedgerBackend(&cfg.Storage.Ledger)
	if err != nil {
		return fmt.Errorf("failed to create ledger storage: %w", err)
	}
	defer ledgerStore.Close()

	// Core components. Prometheus collectors register with the default
	// registry, so they are created exactly once here.
	monitor := health.NewMonitor(cfg.Health, healthStore, health.NewPromMetrics())
	calculator := costs.NewCalculator(cfg.Pricing)
	tracker := ledger.NewTracker(cfg.Budget, ledgerStore, ledger.NewPromMetrics())

	fmt.Println("✓ Health monitor and cost ledger initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Retention pruning
	if cfg.Retention.PruneSchedule != "" {
		pruner := retention.NewPruner(ledgerStore, &retention.Config{
			RetentionDays: cfg.Retention.RetentionDays,
			PruneSchedule: cfg.Retention.PruneSchedule,
		})
		if err := pruner.Start(ctx); err != nil {
			slog.Warn("failed to start retention scheduler", "error", err)
		} else {
			defer pruner.Stop()
			if next := pruner.NextPruning(); next != nil {
				slog.Debug("retention scheduler started", "next_pruning", next)
			}
		}
	}

	// Hot reload of pricing and budget on config file changes
	watcher, err := config.NewWatcher(cfgFile, func(newCfg *config.Config) {
		calculator.UpdatePricing(newCfg.Pricing)
		if err := tracker.UpdateBudget(ctx, ledger.BudgetStatus{
			Daily:                 newCfg.Budget.Daily,
			Monthly:               newCfg.Budget.Monthly,
			PerGenerationMax:      newCfg.Budget.PerGenerationMax,
			DailyAlertThreshold:   newCfg.Budget.AlertThresholds.Daily,
			MonthlyAlertThreshold: newCfg.Budget.AlertThresholds.Monthly,
		}); err != nil {
			slog.Error("rejected budget from reloaded config", "error", err)
		}
		slog.Info("configuration reloaded", "path", cfgFile)
	})
	if err != nil {
		slog.Warn("config watcher unavailable", "error", err)
	} else if err := watcher.Start(ctx); err != nil {
		slog.Warn("failed to start config watcher", "error", err)
	} else {
		defer watcher.Stop()
	}

	// Admin server
	srv := server.NewServer(&cfg.Server, &cfg.Telemetry.Metrics, monitor, tracker)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(ctx); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	fmt.Println()
	fmt.Printf("✓ Admin server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/healthz\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	sigChan := cli.WaitForShutdown()

	select {
	case err := <-errChan:
		return cli.NewCommandError("run", err)
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal %s, shutting down gracefully...\n", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
			return cli.NewCommandError("run", err)
		}

		fmt.Println("✓ Service stopped")
		return nil
	}
}

// setupLogging installs the process-wide slog handler.
func setupLogging(cfg *config.LoggingConfig) {
	var logLevel slog.Level
	switch cfg.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	if verbose {
		logLevel = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func newHealthBackend(cfg *config.HealthStorageConfig) (healthstorage.Backend, error) {
	switch cfg.Backend {
	case "sqlite":
		return healthstorage.NewSQLiteBackend(cfg.DBPath)
	case "memory", "":
		return healthstorage.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported health storage backend: %s", cfg.Backend)
	}
}

func newLedgerBackend(cfg *config.LedgerStorageConfig) (ledgerstorage.Backend, error) {
	switch cfg.Backend {
	case "sqlite":
		sqliteCfg := ledgerstorage.DefaultSQLiteConfig()
		sqliteCfg.Path = cfg.DBPath
		if cfg.BusyTimeout > 0 {
			sqliteCfg.BusyTimeout = cfg.BusyTimeout
		}
		return ledgerstorage.NewSQLiteBackend(sqliteCfg)
	case "memory", "":
		return ledgerstorage.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported ledger storage backend: %s", cfg.Backend)
	}
}
