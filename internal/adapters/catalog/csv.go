// Package catalog provides identifier catalog loaders.
package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jobrunner/tilesync/internal/domain"
	"github.com/jobrunner/tilesync/internal/ports/output"
)

// DefaultColumn is the identifier column of the NAIP quarter-quad index.
const DefaultColumn = "APFONAME"

// Config selects and configures a catalog source.
type Config struct {
	Path   string // .csv, .gpkg or .sqlite file
	Column string // identifier column
	Table  string // table for SQLite sources; empty picks the first feature table
}

// New returns the loader matching the file extension of cfg.Path.
func New(cfg Config) (output.CatalogLoader, error) {
	if cfg.Column == "" {
		cfg.Column = DefaultColumn
	}
	switch strings.ToLower(filepath.Ext(cfg.Path)) {
	case ".csv", ".txt":
		return NewCSVLoader(cfg.Path, cfg.Column), nil
	case ".gpkg", ".sqlite", ".db":
		return NewSQLiteLoader(cfg.Path, cfg.Table, cfg.Column), nil
	default:
		return nil, &domain.ConfigError{
			Field:   "catalog.path",
			Message: fmt.Sprintf("unsupported catalog format %q", filepath.Ext(cfg.Path)),
		}
	}
}

// CSVLoader reads identifiers from one column of a headed CSV file.
type CSVLoader struct {
	path   string
	column string
}

// NewCSVLoader creates a CSV catalog loader.
func NewCSVLoader(path, column string) *CSVLoader {
	return &CSVLoader{path: path, column: column}
}

// Load implements output.CatalogLoader.
func (l *CSVLoader) Load(_ context.Context) (*domain.Catalog, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &domain.CatalogLoadError{Source: l.path, Err: domain.ErrCatalogMissing}
		}
		return nil, &domain.CatalogLoadError{Source: l.path, Err: err}
	}
	defer func() { _ = f.Close() }()

	ids, err := readColumn(f, l.column)
	if err != nil {
		return nil, &domain.CatalogLoadError{Source: l.path, Err: err}
	}
	return domain.NewCatalog(ids), nil
}

// readColumn returns the trimmed values of column from a headed CSV stream.
func readColumn(r io.Reader, column string) ([]string, error) {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1
	csvr.LazyQuotes = true

	header, err := csvr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file, expected column %q", domain.ErrColumnMissing, column)
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	idx := -1
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if strings.EqualFold(name, column) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q not in header", domain.ErrColumnMissing, column)
	}

	var ids []string
	for {
		record, err := csvr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading record: %w", err)
		}
		if idx >= len(record) {
			continue
		}
		if v := strings.TrimSpace(record[idx]); v != "" {
			ids = append(ids, v)
		}
	}
	return ids, nil
}
