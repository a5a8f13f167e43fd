// Package geopackage writes tile footprints as a GeoPackage feature layer.
package geopackage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/jobrunner/tilesync/internal/domain"
)

// LayerPrefix starts the name of every footprint feature table.
const LayerPrefix = "tile_footprints"

// LayerName returns the feature table holding footprints in srid. Each
// coordinate system gets its own table so a geometry column never mixes
// SRIDs.
func LayerName(srid int) string {
	return fmt.Sprintf("%s_%d", LayerPrefix, srid)
}

// GeoPackage identification, see OGC 12-128r18 1.1.1.
const (
	applicationID = 0x47504B47 // "GPKG"
	userVersion   = 10300
)

var schema = []string{
	`CREATE TABLE gpkg_spatial_ref_sys (
		srs_name TEXT NOT NULL,
		srs_id INTEGER NOT NULL PRIMARY KEY,
		organization TEXT NOT NULL,
		organization_coordsys_id INTEGER NOT NULL,
		definition TEXT NOT NULL,
		description TEXT
	)`,
	`CREATE TABLE gpkg_contents (
		table_name TEXT NOT NULL PRIMARY KEY,
		data_type TEXT NOT NULL,
		identifier TEXT UNIQUE,
		description TEXT DEFAULT '',
		last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
		min_x DOUBLE, min_y DOUBLE, max_x DOUBLE, max_y DOUBLE,
		srs_id INTEGER,
		CONSTRAINT fk_gc_r_srs_id FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
	)`,
	`CREATE TABLE gpkg_geometry_columns (
		table_name TEXT NOT NULL,
		column_name TEXT NOT NULL,
		geometry_type_name TEXT NOT NULL,
		srs_id INTEGER NOT NULL,
		z TINYINT NOT NULL,
		m TINYINT NOT NULL,
		CONSTRAINT pk_geom_cols PRIMARY KEY (table_name, column_name)
	)`,
}

const layerSchema = `CREATE TABLE %s (
	fid INTEGER PRIMARY KEY AUTOINCREMENT,
	geom POLYGON,
	filename TEXT NOT NULL,
	object_key TEXT NOT NULL,
	min_x DOUBLE, min_y DOUBLE, max_x DOUBLE, max_y DOUBLE
)`

// Writer implements output.FootprintWriter.
type Writer struct {
	path string
}

// NewWriter creates a writer for the GeoPackage at path. Existing files are replaced.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Path returns the output file.
func (w *Writer) Path() string {
	return w.path
}

// Write creates a fresh GeoPackage with one polygon layer per SRID. The
// package is built in a temporary file next to the output and renamed
// over it on success, so a failed write keeps the previous file.
func (w *Writer) Write(ctx context.Context, footprints []domain.Footprint) error {
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return &domain.StorageError{Operation: "mkdir", Key: dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".footprints-*.gpkg")
	if err != nil {
		return &domain.StorageError{Operation: "create", Key: w.path, Err: err}
	}
	tmpName := tmp.Name()
	_ = tmp.Close()

	if err := build(ctx, tmpName, footprints); err != nil {
		_ = os.Remove(tmpName)
		return &domain.StorageError{Operation: "write", Key: w.path, Err: err}
	}
	if err := os.Rename(tmpName, w.path); err != nil {
		_ = os.Remove(tmpName)
		return &domain.StorageError{Operation: "rename", Key: w.path, Err: err}
	}
	return nil
}

// build writes the GeoPackage at path and closes it.
func build(ctx context.Context, path string, footprints []domain.Footprint) error {
	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := writeTx(ctx, tx, footprints); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	return db.Close()
}

func writeTx(ctx context.Context, tx *sql.Tx, footprints []domain.Footprint) error {
	for _, stmt := range []string{
		fmt.Sprintf("PRAGMA application_id = %d", applicationID),
		fmt.Sprintf("PRAGMA user_version = %d", userVersion),
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	bySRID := make(map[int][]domain.Footprint)
	for _, f := range footprints {
		bySRID[f.SRID] = append(bySRID[f.SRID], f)
	}

	srids := map[int]bool{-1: true, 0: true, domain.SRIDWGS84: true}
	for srid := range bySRID {
		srids[srid] = true
	}
	for srid := range srids {
		if err := insertSpatialRef(ctx, tx, srid); err != nil {
			return err
		}
	}

	layers := make([]int, 0, len(bySRID))
	for srid := range bySRID {
		layers = append(layers, srid)
	}
	sort.Ints(layers)
	for _, srid := range layers {
		if err := writeLayer(ctx, tx, srid, bySRID[srid]); err != nil {
			return err
		}
	}
	return nil
}

// writeLayer creates and registers the feature table for one SRID.
func writeLayer(ctx context.Context, tx *sql.Tx, srid int, footprints []domain.Footprint) error {
	table := LayerName(srid)
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(layerSchema, table)); err != nil {
		return fmt.Errorf("creating %s: %w", table, err)
	}

	insert, err := tx.PrepareContext(ctx, `INSERT INTO `+table+
		` (geom, filename, object_key, min_x, min_y, max_x, max_y) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = insert.Close() }()

	extent := footprints[0].Bounds
	for _, f := range footprints {
		b := f.Bounds
		blob, err := encodeGeometry(footprintPolygon(b, srid))
		if err != nil {
			return fmt.Errorf("encoding %s: %w", f.Filename, err)
		}
		if _, err := insert.ExecContext(ctx, blob, f.Filename, f.Key,
			b.MinX, b.MinY, b.MaxX, b.MaxY); err != nil {
			return fmt.Errorf("inserting %s: %w", f.Filename, err)
		}
		extent = extent.Union(b)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO gpkg_contents (table_name, data_type, identifier, description, min_x, min_y, max_x, max_y, srs_id)
		 VALUES (?, 'features', ?, ?, ?, ?, ?, ?, ?)`,
		table, table, "Footprints of stored imagery tiles in "+domain.ProjectionFor(srid).Name,
		extent.MinX, extent.MinY, extent.MaxX, extent.MaxY, srid,
	); err != nil {
		return fmt.Errorf("registering layer: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO gpkg_geometry_columns VALUES (?, 'geom', 'POLYGON', ?, 0, 0)`,
		table, srid,
	); err != nil {
		return fmt.Errorf("registering geometry column: %w", err)
	}
	return nil
}

func insertSpatialRef(ctx context.Context, tx *sql.Tx, srid int) error {
	name, org, orgID, def := "", "EPSG", srid, definitionFor(srid)
	switch srid {
	case -1:
		name, org, orgID = "Undefined cartesian SRS", "NONE", -1
	case 0:
		name, org, orgID = "Undefined geographic SRS", "NONE", 0
	default:
		name = domain.ProjectionFor(srid).Name
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO gpkg_spatial_ref_sys (srs_name, srs_id, organization, organization_coordsys_id, definition) VALUES (?, ?, ?, ?, ?)`,
		name, srid, org, orgID, def,
	)
	return err
}
