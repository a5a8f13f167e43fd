package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jobrunner/tilesync/internal/config"
	"github.com/jobrunner/tilesync/internal/domain"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"catalog missing", fmt.Errorf("sync: %w", &domain.CatalogLoadError{Source: "quads.csv", Err: domain.ErrCatalogMissing}), 1},
		{"invalid config", fmt.Errorf("validating config: %w", &domain.ConfigError{Field: "transfer.workers", Message: "must be at least 1"}), 1},
		{"startup", &startupError{err: errors.New("unknown flag: --bogus")}, 1},
		{"interrupted", fmt.Errorf("sync: %w", context.Canceled), 0},
		{"other", errors.New("listing failed"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestSetupLogger(t *testing.T) {
	for _, cfg := range []config.LoggingConfig{
		{Level: "debug", Format: "text"},
		{Level: "warn", Format: "json"},
		{Level: "bogus", Format: ""},
	} {
		if setupLogger(cfg) == nil {
			t.Errorf("setupLogger(%+v) returned nil", cfg)
		}
	}
}

func TestWriteReport(t *testing.T) {
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	report := &domain.Report{
		RunID:       "run-1",
		StartedAt:   started,
		FinishedAt:  started.Add(90 * time.Second),
		CatalogSize: 3,
		Tally:       domain.Tally{Copied: 1, Failed: 1},
		Results: []domain.TaskResult{
			{Task: domain.TransferTask{SourceKey: "co/a.tif", PhysicalName: "a.tif"}, Outcome: domain.OutcomeCopied},
			{Task: domain.TransferTask{SourceKey: "co/b.tif", PhysicalName: "b.tif"}, Outcome: domain.OutcomeFailed, Error: "access denied"},
		},
	}

	path := filepath.Join(t.TempDir(), "report.yaml")
	if err := writeReport(path, report); err != nil {
		t.Fatalf("writeReport() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	dec := yaml.NewDecoder(f)
	var summary runSummary
	if err := dec.Decode(&summary); err != nil {
		t.Fatalf("decoding summary: %v", err)
	}
	if summary.RunID != "run-1" || summary.Duration != "1m30s" {
		t.Errorf("summary = %+v", summary)
	}
	if len(summary.Failed) != 1 || summary.Failed[0].SourceKey != "co/b.tif" || summary.Failed[0].Error != "access denied" {
		t.Errorf("summary.Failed = %+v", summary.Failed)
	}

	var full map[string]interface{}
	if err := dec.Decode(&full); err != nil {
		t.Fatalf("decoding full report: %v", err)
	}
	if full["run_id"] != "run-1" {
		t.Errorf("run_id = %v", full["run_id"])
	}
	if err := dec.Decode(&full); !errors.Is(err, io.EOF) {
		t.Errorf("expected two documents, got extra: %v", err)
	}

	data, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(data), "run_id: run-1") {
		t.Errorf("report starts with %q", strings.SplitN(string(data), "\n", 2)[0])
	}
}
