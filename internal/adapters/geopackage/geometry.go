package geopackage

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"

	"github.com/jobrunner/tilesync/internal/domain"
)

// Little endian header, envelope [minx, maxx, miny, maxy].
const gpkgFlags = 0x01 | 0x01<<1

// footprintPolygon returns the closed rectangle of b.
func footprintPolygon(b domain.Bounds, srid int) *geom.Polygon {
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{b.MinX, b.MinY},
		{b.MaxX, b.MinY},
		{b.MaxX, b.MaxY},
		{b.MinX, b.MaxY},
		{b.MinX, b.MinY},
	}}).SetSRID(srid)
}

// encodeGeometry wraps the WKB of g in a GeoPackage binary header.
func encodeGeometry(g geom.T) ([]byte, error) {
	body, err := wkb.Marshal(g, wkb.NDR)
	if err != nil {
		return nil, fmt.Errorf("encoding wkb: %w", err)
	}

	env := g.Bounds()
	var buf bytes.Buffer
	buf.WriteString("GP")
	buf.WriteByte(0) // version 1
	buf.WriteByte(gpkgFlags)
	_ = binary.Write(&buf, binary.LittleEndian, int32(g.SRID()))
	_ = binary.Write(&buf, binary.LittleEndian, [4]float64{env.Min(0), env.Max(0), env.Min(1), env.Max(1)})
	buf.Write(body)
	return buf.Bytes(), nil
}
