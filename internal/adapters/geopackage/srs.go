package geopackage

import (
	"fmt"

	"github.com/jobrunner/tilesync/internal/domain"
)

const (
	wktNAD83 = `GEOGCS["NAD83",DATUM["North_American_Datum_1983",` +
		`SPHEROID["GRS 1980",6378137,298.257222101,AUTHORITY["EPSG","7019"]],` +
		`TOWGS84[0,0,0,0,0,0,0],AUTHORITY["EPSG","6269"]],` +
		`PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],` +
		`UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],` +
		`AUTHORITY["EPSG","4269"]]`

	wktWGS84 = `GEOGCS["WGS 84",DATUM["WGS_1984",` +
		`SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],` +
		`AUTHORITY["EPSG","6326"]],` +
		`PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],` +
		`UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],` +
		`AUTHORITY["EPSG","4326"]]`

	wktWebMercator = `PROJCS["WGS 84 / Pseudo-Mercator",` + wktWGS84 + `,` +
		`PROJECTION["Mercator_1SP"],PARAMETER["central_meridian",0],` +
		`PARAMETER["scale_factor",1],PARAMETER["false_easting",0],PARAMETER["false_northing",0],` +
		`UNIT["metre",1,AUTHORITY["EPSG","9001"]],AXIS["Easting",EAST],AXIS["Northing",NORTH],` +
		`AUTHORITY["EPSG","3857"]]`
)

// definitionFor returns the WKT of srid, or "undefined" for codes without
// a known definition.
func definitionFor(srid int) string {
	switch {
	case srid == domain.SRIDWGS84:
		return wktWGS84
	case srid == domain.SRIDNAD83:
		return wktNAD83
	case srid == domain.SRIDWebMercator:
		return wktWebMercator
	case srid >= domain.SRIDNAD83UTM10N && srid <= domain.SRIDNAD83UTM19N:
		return nad83UTM(srid - 26900)
	default:
		return "undefined"
	}
}

// nad83UTM returns the WKT of NAD83 / UTM zone <zone>N.
func nad83UTM(zone int) string {
	return fmt.Sprintf(`PROJCS["NAD83 / UTM zone %dN",%s,`+
		`PROJECTION["Transverse_Mercator"],PARAMETER["latitude_of_origin",0],`+
		`PARAMETER["central_meridian",%d],PARAMETER["scale_factor",0.9996],`+
		`PARAMETER["false_easting",500000],PARAMETER["false_northing",0],`+
		`UNIT["metre",1,AUTHORITY["EPSG","9001"]],AXIS["Easting",EAST],AXIS["Northing",NORTH],`+
		`AUTHORITY["EPSG","%d"]]`, zone, wktNAD83, 6*zone-183, 26900+zone)
}
