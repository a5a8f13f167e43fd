package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jobrunner/tilesync/internal/domain"
)

// runSummary is the head of a written report.
type runSummary struct {
	RunID       string        `yaml:"run_id"`
	Duration    string        `yaml:"duration"`
	DryRun      bool          `yaml:"dry_run"`
	CatalogSize int           `yaml:"catalog_size"`
	Tally       domain.Tally  `yaml:"tally"`
	Failed      []failedEntry `yaml:"failed,omitempty"`
}

type failedEntry struct {
	SourceKey string `yaml:"source_key"`
	TargetKey string `yaml:"target_key"`
	Error     string `yaml:"error"`
}

// writeReport writes the summary followed by the full report as a YAML
// document stream.
func writeReport(path string, report *domain.Report) error {
	summary := runSummary{
		RunID:       report.RunID,
		Duration:    report.Duration().String(),
		DryRun:      report.DryRun,
		CatalogSize: report.CatalogSize,
		Tally:       report.Tally,
	}
	for _, r := range report.Failed() {
		summary.Failed = append(summary.Failed, failedEntry{
			SourceKey: r.Task.SourceKey,
			TargetKey: r.Task.PhysicalName,
			Error:     r.Error,
		})
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	for _, doc := range []any{summary, report} {
		if err := enc.Encode(doc); err != nil {
			_ = f.Close()
			return fmt.Errorf("encoding report: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
