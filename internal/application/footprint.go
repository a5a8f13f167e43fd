package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jobrunner/tilesync/internal/domain"
	"github.com/jobrunner/tilesync/internal/ports/output"
)

// FootprintConfig configures footprint extraction.
type FootprintConfig struct {
	Workers int
	TempDir string        // empty uses os.TempDir
	Timeout time.Duration // per download
}

// FootprintReport summarizes one extraction.
type FootprintReport struct {
	Listed   int           `json:"listed" yaml:"listed"`
	Written  int           `json:"written" yaml:"written"`
	Failed   int           `json:"failed" yaml:"failed"`
	Failures []string      `json:"failures,omitempty" yaml:"failures,omitempty"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// FootprintService derives tile outlines from the rasters in the target store.
type FootprintService struct {
	target output.TargetStore
	reader output.BoundsReader
	writer output.FootprintWriter
	cfg    FootprintConfig
	logger *slog.Logger
}

// NewFootprintService creates a footprint service.
func NewFootprintService(target output.TargetStore, reader output.BoundsReader, writer output.FootprintWriter, cfg FootprintConfig, logger *slog.Logger) *FootprintService {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &FootprintService{target: target, reader: reader, writer: writer, cfg: cfg, logger: logger}
}

type footprintResult struct {
	key       string
	footprint domain.Footprint
	err       error
}

// Extract reads the bounds of every .tif in the target store and writes
// them as one footprint layer. Unreadable tiles are logged and counted.
func (s *FootprintService) Extract(ctx context.Context) (*FootprintReport, error) {
	start := time.Now()

	objects, err := s.target.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing target: %w", err)
	}

	var keys []string
	for _, obj := range objects {
		if strings.EqualFold(path.Ext(obj.Key), ".tif") {
			keys = append(keys, obj.Key)
		}
	}
	sort.Strings(keys)
	s.logger.Info("extracting footprints", "tiles", len(keys), "workers", s.cfg.Workers)

	results := RunPool(ctx, keys, s.cfg.Workers,
		func(ctx context.Context, key string) footprintResult {
			fp, err := s.footprint(ctx, key)
			return footprintResult{key: key, footprint: fp, err: err}
		},
		func(key string, err error) footprintResult {
			return footprintResult{key: key, err: err}
		})

	report := &FootprintReport{Listed: len(keys)}
	footprints := make([]domain.Footprint, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			s.logger.Warn("footprint extraction failed", "target_key", r.key, "error", r.err)
			report.Failed++
			report.Failures = append(report.Failures, r.key+": "+r.err.Error())
			continue
		}
		footprints = append(footprints, r.footprint)
	}

	if err := s.writer.Write(ctx, footprints); err != nil {
		return nil, fmt.Errorf("writing footprints: %w", err)
	}
	report.Written = len(footprints)
	report.Duration = time.Since(start)

	s.logger.Info("footprints written",
		"written", report.Written,
		"failed", report.Failed,
		"duration", report.Duration,
	)
	return report, nil
}

// footprint downloads key to a temporary file and reads its bounds.
func (s *FootprintService) footprint(ctx context.Context, key string) (domain.Footprint, error) {
	tmp, err := os.CreateTemp(s.cfg.TempDir, "footprint-*.tif")
	if err != nil {
		return domain.Footprint{}, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	err = withTimeout(ctx, s.cfg.Timeout, func(ctx context.Context) error {
		r, err := s.target.Open(ctx, key)
		if err != nil {
			return err
		}
		defer func() { _ = r.Close() }()
		_, err = io.Copy(tmp, r)
		return err
	})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return domain.Footprint{}, fmt.Errorf("downloading: %w", err)
	}

	bounds, srid, err := s.reader.ReadBounds(tmp.Name())
	if err != nil {
		return domain.Footprint{}, err
	}
	if !bounds.Valid() {
		return domain.Footprint{}, fmt.Errorf("%w: empty bounds", domain.ErrNotGeoTIFF)
	}

	return domain.Footprint{
		Filename: path.Base(key),
		Key:      key,
		SRID:     srid,
		Bounds:   bounds,
	}, nil
}
