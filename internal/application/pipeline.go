package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jobrunner/tilesync/internal/domain"
	"github.com/jobrunner/tilesync/internal/ports/output"
)

// RunOptions tunes a single sync run.
type RunOptions struct {
	DryRun bool // discover and check existence, never copy
}

// SyncPipeline runs catalog load, discovery and transfer end to end.
type SyncPipeline struct {
	loader      output.CatalogLoader
	discoverer  *Discoverer
	transferer  *Transferer
	coordinator *Coordinator
	metrics     output.MetricsCollector
	logger      *slog.Logger
}

// NewSyncPipeline creates a sync pipeline.
func NewSyncPipeline(
	loader output.CatalogLoader,
	discoverer *Discoverer,
	transferer *Transferer,
	coordinator *Coordinator,
	metrics output.MetricsCollector,
	logger *slog.Logger,
) *SyncPipeline {
	if metrics == nil {
		metrics = &output.NoOpMetrics{}
	}
	return &SyncPipeline{
		loader:      loader,
		discoverer:  discoverer,
		transferer:  transferer,
		coordinator: coordinator,
		metrics:     metrics,
		logger:      logger,
	}
}

// Run executes one sync. Only catalog load failures and cancellation
// before transfer are returned as errors; per-area and per-task failures
// are recorded in the report.
func (p *SyncPipeline) Run(ctx context.Context, opts RunOptions) (*domain.Report, error) {
	report := &domain.Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		DryRun:    opts.DryRun,
	}
	log := p.logger.With("run_id", report.RunID)
	log.Info("sync started", "dry_run", opts.DryRun)

	catalog, err := p.loader.Load(ctx)
	if err != nil {
		log.Error("failed to load catalog", "error", err)
		return nil, err
	}
	report.CatalogSize = catalog.Len()
	log.Info("catalog loaded", "identifiers", catalog.Len(), "areas", len(catalog.AreaKeys()))

	disc, err := p.discoverer.Discover(ctx, catalog)
	if err != nil {
		return nil, err
	}
	report.Listings = disc.Listings
	report.ObjectsSeen = disc.ObjectsSeen
	report.Duplicates = disc.Duplicates
	report.ListingFailures = disc.Failures

	report.Results, report.Tally = p.coordinator.Run(ctx, disc.Tasks,
		func(ctx context.Context, task domain.TransferTask) domain.TaskResult {
			return p.transferer.Execute(ctx, task, opts.DryRun)
		})

	report.FinishedAt = time.Now().UTC()
	p.metrics.SetLastRun(report.FinishedAt)

	log.Info("sync finished",
		"tasks", report.Tally.Total(),
		"copied", report.Tally.Copied,
		"skipped", report.Tally.Skipped,
		"planned", report.Tally.Planned,
		"failed", report.Tally.Failed,
		"listing_failures", len(report.ListingFailures),
		"duration", report.Duration(),
	)
	return report, nil
}
