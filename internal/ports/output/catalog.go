package output

import (
	"context"

	"github.com/jobrunner/tilesync/internal/domain"
)

// CatalogLoader defines the secondary port for reading the identifier catalog.
type CatalogLoader interface {
	// Load reads and deduplicates the identifiers. Failures are
	// *domain.CatalogLoadError.
	Load(ctx context.Context) (*domain.Catalog, error)
}

// BoundsReader extracts the georeferenced bounds of a local raster file.
type BoundsReader interface {
	ReadBounds(path string) (domain.Bounds, int, error)
}

// FootprintWriter persists tile outlines.
type FootprintWriter interface {
	Write(ctx context.Context, footprints []domain.Footprint) error
}
