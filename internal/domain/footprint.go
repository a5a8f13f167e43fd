package domain

import "fmt"

// Bounds is an axis-aligned bounding box in the raster's native CRS.
type Bounds struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// Valid reports whether the box has a positive area.
func (b Bounds) Valid() bool {
	return b.MaxX > b.MinX && b.MaxY > b.MinY
}

// Union returns the smallest box containing both.
func (b Bounds) Union(o Bounds) Bounds {
	return Bounds{
		MinX: min(b.MinX, o.MinX),
		MinY: min(b.MinY, o.MinY),
		MaxX: max(b.MaxX, o.MaxX),
		MaxY: max(b.MaxY, o.MaxY),
	}
}

// Footprint is the outline of one stored tile.
type Footprint struct {
	Filename string
	Key      string
	SRID     int
	Bounds   Bounds
}

// Projection names a coordinate reference system by EPSG code.
type Projection struct {
	SRID int
	Name string
}

// Common SRID constants.
const (
	SRIDUndefined   = 0
	SRIDWGS84       = 4326  // WGS 84
	SRIDNAD83       = 4269  // NAD83
	SRIDWebMercator = 3857  // Web Mercator
	SRIDNAD83UTM10N = 26910 // NAD83 / UTM zone 10N
	SRIDNAD83UTM19N = 26919 // NAD83 / UTM zone 19N
)

// ProjectionFor returns the named projection for srid. NAD83 UTM zones 10N
// through 19N cover the conterminous US imagery; unknown codes get a
// generic name.
func ProjectionFor(srid int) Projection {
	switch {
	case srid == SRIDWGS84:
		return Projection{SRID: srid, Name: "WGS 84"}
	case srid == SRIDNAD83:
		return Projection{SRID: srid, Name: "NAD83"}
	case srid == SRIDWebMercator:
		return Projection{SRID: srid, Name: "WGS 84 / Pseudo-Mercator"}
	case srid >= SRIDNAD83UTM10N && srid <= SRIDNAD83UTM19N:
		return Projection{SRID: srid, Name: fmt.Sprintf("NAD83 / UTM zone %dN", srid-26900)}
	case srid == SRIDUndefined:
		return Projection{SRID: srid, Name: "Undefined cartesian SRS"}
	default:
		return Projection{SRID: srid, Name: fmt.Sprintf("EPSG:%d", srid)}
	}
}
