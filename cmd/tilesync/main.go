// Package main provides the entry point for tilesync.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jobrunner/tilesync/internal/app"
	"github.com/jobrunner/tilesync/internal/config"
	"github.com/jobrunner/tilesync/internal/domain"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var (
	cfgFile    string
	reportFile string
)

func main() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(exitCode(err))
}

// exitCode is non-zero only for failures that prevent a run from starting:
// an invalid configuration or an unreadable catalog. Failed transfers and
// interrupted runs are reported but exit zero.
func exitCode(err error) int {
	var (
		cfgErr     *domain.ConfigError
		loadErr    *domain.CatalogLoadError
		startupErr *startupError
	)
	switch {
	case err == nil:
		return 0
	case errors.As(err, &cfgErr), errors.As(err, &loadErr), errors.As(err, &startupErr):
		return 1
	default:
		return 0
	}
}

// startupError marks invalid flags, config files or store settings.
type startupError struct{ err error }

func (e *startupError) Error() string { return e.err.Error() }
func (e *startupError) Unwrap() error { return e.err }

var rootCmd = &cobra.Command{
	Use:   "tilesync",
	Short: "tilesync - NAIP tile selection and transfer",
	Long: `tilesync copies the aerial imagery tiles named in an identifier catalog
from the requester-pays NAIP archive into a project store.

Runs are idempotent: tiles already present in the target are skipped, and
filename collisions between products are resolved deterministically.

Features:
  - Catalogs from CSV or GeoPackage attribute tables
  - Sources: AWS S3 (requester pays), gocloud buckets, HTTP mirrors, local
  - Targets: AWS S3, Azure Blob Storage, gocloud buckets, local
  - Bounded worker pool with per-call timeouts
  - Service mode with scheduler, catalog watcher and HTTP trigger
  - Tile footprint extraction into a GeoPackage
  - Prometheus metrics`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one synchronization and exit",
	RunE:  runSync,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service with scheduled and triggered syncs",
	RunE:  runServer,
}

var footprintsCmd = &cobra.Command{
	Use:   "footprints",
	Short: "Write the outlines of all tiles in the target store to a GeoPackage",
	RunE:  runFootprints,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("tilesync %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Build Date: %s\n", buildDate)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, text)")
	rootCmd.PersistentFlags().String("catalog", "", "identifier catalog (.csv, .gpkg, .sqlite)")
	rootCmd.PersistentFlags().String("column", "APFONAME", "identifier column of the catalog")
	rootCmd.PersistentFlags().Int("workers", 10, "concurrent transfers")
	rootCmd.PersistentFlags().String("target-type", "local", "target store type (local, s3, azure, blob)")
	rootCmd.PersistentFlags().String("target-path", "./relevant_tiles", "local target directory")

	// Sync flags
	syncCmd.Flags().Bool("dry-run", false, "discover and check existence without copying")
	syncCmd.Flags().String("collisions", "rename", "filename collision mode (rename, first)")
	syncCmd.Flags().StringVar(&reportFile, "report", "", "write the run report as YAML to this file")

	// Server flags
	serveCmd.Flags().String("host", "0.0.0.0", "server host")
	serveCmd.Flags().Int("port", 8080, "server port")
	serveCmd.Flags().Duration("interval", 0, "periodic sync interval (0 disables)")
	serveCmd.Flags().Bool("watch", false, "run a sync when the catalog file changes")
	serveCmd.Flags().Bool("tls", false, "enable TLS")
	serveCmd.Flags().StringSlice("tls-domains", nil, "TLS domains")
	serveCmd.Flags().String("tls-email", "", "TLS email for Let's Encrypt")
	serveCmd.Flags().StringSlice("cors", nil, "allowed CORS origins (e.g., https://example.com,*.sub.domain.tld)")

	// Footprint flags
	footprintsCmd.Flags().String("output", "./tile_footprints.gpkg", "GeoPackage to write")

	// Bind flags to viper
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("catalog.path", rootCmd.PersistentFlags().Lookup("catalog"))
	_ = viper.BindPFlag("catalog.column", rootCmd.PersistentFlags().Lookup("column"))
	_ = viper.BindPFlag("transfer.workers", rootCmd.PersistentFlags().Lookup("workers"))
	_ = viper.BindPFlag("target.type", rootCmd.PersistentFlags().Lookup("target-type"))
	_ = viper.BindPFlag("target.local_path", rootCmd.PersistentFlags().Lookup("target-path"))
	_ = viper.BindPFlag("transfer.dry_run", syncCmd.Flags().Lookup("dry-run"))
	_ = viper.BindPFlag("transfer.collisions", syncCmd.Flags().Lookup("collisions"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("sync.interval", serveCmd.Flags().Lookup("interval"))
	_ = viper.BindPFlag("catalog.watch", serveCmd.Flags().Lookup("watch"))
	_ = viper.BindPFlag("tls.enabled", serveCmd.Flags().Lookup("tls"))
	_ = viper.BindPFlag("tls.domains", serveCmd.Flags().Lookup("tls-domains"))
	_ = viper.BindPFlag("tls.email", serveCmd.Flags().Lookup("tls-email"))
	_ = viper.BindPFlag("server.cors.allowed_origins", serveCmd.Flags().Lookup("cors"))
	_ = viper.BindPFlag("footprints.output", footprintsCmd.Flags().Lookup("output"))

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &startupError{err: err}
	})
	rootCmd.AddCommand(syncCmd, serveCmd, footprintsCmd, versionCmd)
}

// loadConfig loads configuration and installs the logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, &startupError{err: fmt.Errorf("loading config: %w", err)}
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func runSync(_ *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	logger.Info("starting tilesync sync",
		"version", version,
		"catalog", cfg.Catalog.Path,
		"source_type", cfg.Source.Type,
		"target_type", cfg.Target.Type,
		"dry_run", cfg.Transfer.DryRun,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return &startupError{err: fmt.Errorf("initializing application: %w", err)}
	}
	defer application.Close()

	report, err := application.RunSync(ctx, cfg.Transfer.DryRun)
	if report != nil && reportFile != "" {
		if werr := writeReport(reportFile, report); werr != nil {
			logger.Error("failed to write report", "path", reportFile, "error", werr)
		} else {
			logger.Info("report written", "path", reportFile)
		}
	}
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}

func runFootprints(_ *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return &startupError{err: fmt.Errorf("initializing application: %w", err)}
	}
	defer application.Close()

	report, err := application.ExtractFootprints(ctx)
	if err != nil {
		return fmt.Errorf("extracting footprints: %w", err)
	}

	logger.Info("footprints written",
		"output", cfg.Footprints.Output,
		"listed", report.Listed,
		"written", report.Written,
		"failed", report.Failed,
		"duration", report.Duration,
	)
	return nil
}

func runServer(_ *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	logger.Info("starting tilesync server",
		"version", version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"sync_interval", cfg.Sync.Interval,
		"target_type", cfg.Target.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Initialize application
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return &startupError{err: fmt.Errorf("initializing application: %w", err)}
	}

	// Start server in background
	serverErr := make(chan error, 1)
	go func() {
		if err := application.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		logger.Error("server error", "error", err)
	}
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := application.ShutdownContext()
	defer shutdownCancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
