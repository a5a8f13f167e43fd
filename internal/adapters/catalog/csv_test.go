package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jobrunner/tilesync/internal/domain"
)

func writeCatalog(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}
	return path
}

func TestCSVLoaderLoad(t *testing.T) {
	path := writeCatalog(t, "quads.csv", "OBJECTID,APFONAME,STATE\n"+
		"1,12345678,CO\n"+
		"2, 12345679 ,CO\n"+
		"3,,CO\n"+
		"4,12345678,CO\n"+
		"5,54321000,CO\n")

	catalog, err := NewCSVLoader(path, DefaultColumn).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if catalog.Len() != 3 {
		t.Errorf("Len() = %d, want 3", catalog.Len())
	}
	for _, id := range []domain.TileID{"12345678", "12345679", "54321000"} {
		if !catalog.Contains(id) {
			t.Errorf("Contains(%q) = false, want true", id)
		}
	}
}

func TestCSVLoaderCustomColumn(t *testing.T) {
	path := writeCatalog(t, "ids.csv", "\ufeffquad_id\n11111111\n22222222\n")

	catalog, err := NewCSVLoader(path, "QUAD_ID").Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if catalog.Len() != 2 {
		t.Errorf("Len() = %d, want 2", catalog.Len())
	}
}

func TestCSVLoaderErrors(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantErr error
	}{
		{
			name:    "missing file",
			path:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent.csv") },
			wantErr: domain.ErrCatalogMissing,
		},
		{
			name:    "missing column",
			path:    func(t *testing.T) string { return writeCatalog(t, "c.csv", "ID,NAME\n1,a\n") },
			wantErr: domain.ErrColumnMissing,
		},
		{
			name:    "empty file",
			path:    func(t *testing.T) string { return writeCatalog(t, "c.csv", "") },
			wantErr: domain.ErrColumnMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCSVLoader(tt.path(t), DefaultColumn).Load(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Load() error = %v, want %v", err, tt.wantErr)
			}
			var loadErr *domain.CatalogLoadError
			if !errors.As(err, &loadErr) {
				t.Errorf("error should be a CatalogLoadError, got %T", err)
			}
		})
	}
}

func TestReadColumnShortRecords(t *testing.T) {
	ids, err := readColumn(strings.NewReader("A,APFONAME\n1\n2,99999999\n"), "APFONAME")
	if err != nil {
		t.Fatalf("readColumn() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != "99999999" {
		t.Errorf("ids = %v, want [99999999]", ids)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{"quads.csv", "*catalog.CSVLoader", false},
		{"quads.CSV", "*catalog.CSVLoader", false},
		{"quads.gpkg", "*catalog.SQLiteLoader", false},
		{"quads.sqlite", "*catalog.SQLiteLoader", false},
		{"quads.shp", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			loader, err := New(Config{Path: tt.path})
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidInput) {
					t.Errorf("New() error = %v, want ErrInvalidInput", err)
				}
				return
			}
			switch l := loader.(type) {
			case *CSVLoader:
				if tt.want != "*catalog.CSVLoader" || l.column != DefaultColumn {
					t.Errorf("New(%q) = %T column %q", tt.path, l, l.column)
				}
			case *SQLiteLoader:
				if tt.want != "*catalog.SQLiteLoader" || l.column != DefaultColumn {
					t.Errorf("New(%q) = %T column %q", tt.path, l, l.column)
				}
			default:
				t.Errorf("New(%q) = %T", tt.path, loader)
			}
		})
	}
}
