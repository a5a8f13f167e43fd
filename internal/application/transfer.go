package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/jobrunner/tilesync/internal/domain"
	"github.com/jobrunner/tilesync/internal/ports/output"
)

// TransferConfig configures the existence gate and copy step.
type TransferConfig struct {
	SkipExisting              bool
	TreatCheckErrorsAsMissing bool
	Timeout                   time.Duration // per network call
}

// Transferer executes single transfer tasks.
type Transferer struct {
	source  output.SourceStore
	target  output.TargetStore
	cfg     TransferConfig
	metrics output.MetricsCollector
	logger  *slog.Logger
}

// NewTransferer creates a transferer.
func NewTransferer(source output.SourceStore, target output.TargetStore, cfg TransferConfig, metrics output.MetricsCollector, logger *slog.Logger) *Transferer {
	if metrics == nil {
		metrics = &output.NoOpMetrics{}
	}
	return &Transferer{source: source, target: target, cfg: cfg, metrics: metrics, logger: logger}
}

// Execute runs the existence gate and, unless dryRun, the copy for one task.
// A failed existence check never prevents the copy.
func (t *Transferer) Execute(ctx context.Context, task domain.TransferTask, dryRun bool) domain.TaskResult {
	start := time.Now()
	res := domain.TaskResult{Task: task}
	log := t.logger.With(
		"seq", task.Seq,
		"source_key", task.SourceKey,
		"target_key", task.PhysicalName,
	)

	if t.cfg.SkipExisting {
		exists, err := t.exists(ctx, task.PhysicalName)
		switch {
		case err != nil:
			checkErr := &domain.ExistenceCheckError{Key: task.PhysicalName, Err: err}
			if !t.cfg.TreatCheckErrorsAsMissing {
				log.Warn("existence check failed, transferring anyway", "error", checkErr)
				res.CheckError = checkErr.Error()
			}
		case exists:
			return t.finish(log, res, domain.OutcomeSkipped, start)
		}
	}

	if dryRun {
		return t.finish(log, res, domain.OutcomePlanned, start)
	}

	copyStart := time.Now()
	err := withTimeout(ctx, t.cfg.Timeout, func(ctx context.Context) error {
		return t.target.Copy(ctx, t.source, task.SourceKey, task.PhysicalName)
	})
	t.metrics.ObserveStorageDuration("copy", time.Since(copyStart))
	t.metrics.IncStorageOperations("copy", err == nil)
	if err != nil {
		terr := &domain.TransferError{SourceKey: task.SourceKey, TargetKey: task.PhysicalName, Err: err}
		res.Error = terr.Error()
		return t.finish(log, res, domain.OutcomeFailed, start)
	}

	t.metrics.ObserveTransferDuration(time.Since(copyStart))
	return t.finish(log, res, domain.OutcomeCopied, start)
}

func (t *Transferer) exists(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	var exists bool
	err := withTimeout(ctx, t.cfg.Timeout, func(ctx context.Context) error {
		var err error
		exists, err = t.target.Exists(ctx, key)
		return err
	})
	t.metrics.ObserveStorageDuration("head", time.Since(start))
	t.metrics.IncStorageOperations("head", err == nil)
	return exists, err
}

func (t *Transferer) finish(log *slog.Logger, res domain.TaskResult, outcome domain.Outcome, start time.Time) domain.TaskResult {
	res.Outcome = outcome
	res.Duration = time.Since(start)
	t.metrics.IncTasks(string(outcome))

	switch outcome {
	case domain.OutcomeFailed:
		log.Error("transfer failed", "error", res.Error, "duration", res.Duration)
	case domain.OutcomeSkipped:
		log.Info("already present, skipped")
	case domain.OutcomePlanned:
		log.Info("would copy")
	default:
		log.Info("copied", "duration", res.Duration)
	}
	return res
}
