// Package app provides application initialization and wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/jobrunner/tilesync/internal/adapters/catalog"
	"github.com/jobrunner/tilesync/internal/adapters/geopackage"
	"github.com/jobrunner/tilesync/internal/adapters/geotiff"
	httpAdapter "github.com/jobrunner/tilesync/internal/adapters/http"
	"github.com/jobrunner/tilesync/internal/adapters/metrics"
	"github.com/jobrunner/tilesync/internal/adapters/storage"
	tlsAdapter "github.com/jobrunner/tilesync/internal/adapters/tls"
	"github.com/jobrunner/tilesync/internal/adapters/watcher"
	"github.com/jobrunner/tilesync/internal/application"
	"github.com/jobrunner/tilesync/internal/config"
	"github.com/jobrunner/tilesync/internal/domain"
	"github.com/jobrunner/tilesync/internal/ports/output"
)

// App holds all application components.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Source        output.SourceStore
	Target        output.TargetStore
	Catalog       output.CatalogLoader
	Pipeline      *application.SyncPipeline
	SyncService   *application.SyncService
	HealthService *application.HealthService
	Footprints    *application.FootprintService
	HTTPServer    *httpAdapter.Server
	TLSServer     *tlsAdapter.Server
	Watcher       *watcher.Watcher
	Metrics       *metrics.Collector
	MetricsServer *metrics.Server

	closers []io.Closer
}

// New creates and initializes a new application.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Initialize metrics
	var metricsCollector output.MetricsCollector = &output.NoOpMetrics{}
	var httpMiddleware []mux.MiddlewareFunc
	if cfg.Metrics.Enabled {
		app.Metrics = metrics.NewCollector("tilesync")
		app.MetricsServer = metrics.NewServer(cfg.Metrics.Port, app.Metrics, logger)
		metricsCollector = app.Metrics
		httpMiddleware = append(httpMiddleware, app.Metrics.Middleware)
	}

	// Initialize catalog loader
	loader, err := catalog.New(catalog.Config{
		Path:   cfg.Catalog.Path,
		Column: cfg.Catalog.Column,
		Table:  cfg.Catalog.Table,
	})
	if err != nil {
		return nil, err
	}
	app.Catalog = loader

	// Initialize storage adapters
	source, err := initSource(ctx, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("initializing source: %w", err)
	}
	app.Source = source
	app.track(source)

	target, err := initTarget(ctx, cfg.Target)
	if err != nil {
		app.closeStores()
		return nil, fmt.Errorf("initializing target: %w", err)
	}
	app.Target = target
	app.track(target)

	// Initialize sync pipeline
	discoverer := application.NewDiscoverer(
		app.Source,
		application.DiscoveryConfig{
			Layouts:    cfg.Source.Layouts(),
			Workers:    cfg.Transfer.Workers,
			Collisions: application.CollisionMode(cfg.Transfer.Collisions),
			Timeout:    cfg.Transfer.Timeout,
		},
		metricsCollector,
		logger,
	)
	transferer := application.NewTransferer(
		app.Source,
		app.Target,
		application.TransferConfig{
			SkipExisting:              cfg.Transfer.SkipExisting,
			TreatCheckErrorsAsMissing: cfg.Transfer.TreatCheckErrorsAsMissing,
			Timeout:                   cfg.Transfer.Timeout,
		},
		metricsCollector,
		logger,
	)
	app.Pipeline = application.NewSyncPipeline(
		app.Catalog,
		discoverer,
		transferer,
		application.NewCoordinator(cfg.Transfer.Workers),
		metricsCollector,
		logger,
	)

	// Initialize footprint extraction
	app.Footprints = application.NewFootprintService(
		app.Target,
		geotiff.NewReader(),
		geopackage.NewWriter(cfg.Footprints.Output),
		application.FootprintConfig{
			Workers: cfg.Transfer.Workers,
			TempDir: cfg.Footprints.TempDir,
			Timeout: cfg.Transfer.Timeout,
		},
		logger,
	)

	// Initialize sync scheduler and health service
	app.SyncService = application.NewSyncService(app.Pipeline, cfg.Sync.Interval, logger)
	app.HealthService = application.NewHealthService(app.SyncService)

	// Initialize HTTP server
	app.HTTPServer = httpAdapter.NewServer(
		cfg.Server,
		app.SyncService,
		app.HealthService,
		logger,
		httpMiddleware...,
	)

	// Initialize TLS server if enabled
	if cfg.TLS.Enabled {
		tlsServer, err := tlsAdapter.NewServer(
			tlsAdapter.Config{
				Enabled:  cfg.TLS.Enabled,
				Domains:  cfg.TLS.Domains,
				Email:    cfg.TLS.Email,
				CacheDir: cfg.TLS.CacheDir,
				Staging:  cfg.TLS.Staging,
				DNS: tlsAdapter.DNSConfig{
					SubscriptionID:    cfg.TLS.DNS.SubscriptionID,
					ResourceGroupName: cfg.TLS.DNS.ResourceGroupName,
					ClientID:          cfg.TLS.DNS.ClientID,
				},
			},
			app.HTTPServer.Router(),
			logger,
		)
		if err != nil {
			app.closeStores()
			return nil, fmt.Errorf("initializing TLS: %w", err)
		}
		app.TLSServer = tlsServer
	}

	// Initialize catalog watcher
	if cfg.Catalog.Watch {
		w, err := watcher.New(
			watcher.Config{Files: []string{cfg.Catalog.Path}},
			app.handleCatalogEvent,
			logger,
		)
		if err != nil {
			logger.Warn("failed to initialize catalog watcher", "error", err)
		} else {
			app.Watcher = w
		}
	}

	return app, nil
}

// RunSync performs one sync run in the calling goroutine.
func (a *App) RunSync(ctx context.Context, dryRun bool) (*domain.Report, error) {
	return a.Pipeline.Run(ctx, application.RunOptions{DryRun: dryRun})
}

// ExtractFootprints writes the outlines of all tiles in the target store.
func (a *App) ExtractFootprints(ctx context.Context) (*application.FootprintReport, error) {
	return a.Footprints.Extract(ctx)
}

// Start starts the service mode components and blocks serving HTTP.
func (a *App) Start(ctx context.Context) error {
	a.SyncService.Start(ctx)

	// Start catalog watcher
	if a.Watcher != nil {
		if err := a.Watcher.Start(ctx); err != nil {
			a.Logger.Warn("failed to start catalog watcher", "error", err)
		}
	}

	// Start metrics server in background
	if a.MetricsServer != nil {
		go func() {
			if err := a.MetricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.Logger.Error("metrics server error", "error", err)
			}
		}()
	}

	// Start server
	if a.TLSServer != nil {
		if err := a.TLSServer.ManageCertificates(ctx); err != nil {
			return err
		}
		return a.TLSServer.ListenAndServe(a.Config.Server.Address())
	}
	return a.HTTPServer.Start()
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	// Stop watcher
	if a.Watcher != nil {
		_ = a.Watcher.Stop()
	}

	// Shutdown metrics server
	if a.MetricsServer != nil {
		if err := a.MetricsServer.Shutdown(ctx); err != nil {
			a.Logger.Error("metrics server shutdown error", "error", err)
		}
	}

	// Shutdown HTTP server
	if a.TLSServer != nil {
		if err := a.TLSServer.Shutdown(ctx); err != nil {
			a.Logger.Error("HTTPS server shutdown error", "error", err)
		}
	} else if err := a.HTTPServer.Shutdown(ctx); err != nil {
		a.Logger.Error("HTTP server shutdown error", "error", err)
	}

	// Wait for a running sync to observe cancellation
	a.SyncService.Stop()

	a.closeStores()
	return nil
}

// Close releases storage resources. It is used by one-shot commands that
// never call Start.
func (a *App) Close() {
	a.closeStores()
}

// handleCatalogEvent runs a sync after the catalog file changed.
func (a *App) handleCatalogEvent(ctx context.Context, event watcher.Event) error {
	a.Logger.Info("catalog changed", "path", event.Path, "operation", event.Operation.String())

	if event.Operation == watcher.OpDelete {
		a.Logger.Warn("catalog removed, keeping previous state", "path", event.Path)
		return nil
	}

	_, err := a.SyncService.RunOnce(ctx)
	if errors.Is(err, domain.ErrRunInProgress) {
		a.Logger.Info("sync already running, catalog change will be picked up next run")
		return nil
	}
	return err
}

func (a *App) track(store any) {
	if c, ok := store.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
}

func (a *App) closeStores() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.Logger.Warn("failed to close store", "error", err)
		}
	}
	a.closers = nil
}

// initSource initializes the archive the tiles are read from.
func initSource(ctx context.Context, cfg config.SourceConfig) (output.SourceStore, error) {
	switch output.StorageType(cfg.Type) {
	case output.StorageTypeS3:
		return storage.NewS3Storage(ctx, s3Config(cfg.S3))

	case output.StorageTypeBlob:
		return storage.OpenBlobStorage(ctx, cfg.URL, "")

	case output.StorageTypeHTTP:
		return storage.NewHTTPSource(storage.HTTPConfig{
			BaseURL:   cfg.HTTP.BaseURL,
			IndexFile: cfg.HTTP.IndexFile,
			Timeout:   cfg.HTTP.Timeout,
			Username:  cfg.HTTP.Username,
			Password:  cfg.HTTP.Password,
		}), nil

	case output.StorageTypeLocal:
		return storage.NewLocalStorage(cfg.LocalPath), nil

	default:
		return nil, &domain.ConfigError{Field: "source.type", Message: fmt.Sprintf("unknown source type: %s", cfg.Type)}
	}
}

// initTarget initializes the project store the tiles are copied into.
func initTarget(ctx context.Context, cfg config.TargetConfig) (output.TargetStore, error) {
	switch output.StorageType(cfg.Type) {
	case output.StorageTypeLocal:
		return storage.NewLocalStorage(cfg.LocalPath), nil

	case output.StorageTypeS3:
		return storage.NewS3Storage(ctx, s3Config(cfg.S3))

	case output.StorageTypeAzure:
		return storage.NewAzureStorage(storage.AzureConfig{
			Container:        cfg.Azure.Container,
			AccountName:      cfg.Azure.AccountName,
			AccountKey:       cfg.Azure.AccountKey,
			ConnectionString: cfg.Azure.ConnectionString,
			Prefix:           cfg.Azure.Prefix,
		})

	case output.StorageTypeBlob:
		return storage.OpenBlobStorage(ctx, cfg.URL, cfg.Prefix)

	default:
		return nil, &domain.ConfigError{Field: "target.type", Message: fmt.Sprintf("unknown target type: %s", cfg.Type)}
	}
}

func s3Config(cfg config.S3Config) storage.S3Config {
	return storage.S3Config{
		Bucket:          cfg.Bucket,
		Region:          cfg.Region,
		Prefix:          cfg.Prefix,
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		RequesterPays:   cfg.RequesterPays,
	}
}

// shutdownTimeout bounds Shutdown when the caller has no deadline.
const shutdownTimeout = 10 * time.Second

// ShutdownContext returns a context for Shutdown honoring the configured
// server shutdown timeout.
func (a *App) ShutdownContext() (context.Context, context.CancelFunc) {
	timeout := a.Config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = shutdownTimeout
	}
	return context.WithTimeout(context.Background(), timeout)
}
