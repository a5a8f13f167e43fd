// Package geotiff reads georeferencing from TIFF headers. Only the first
// image file directory is inspected; pixel data is never decoded.
package geotiff

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/google/tiff"
	"github.com/google/tiff/bigtiff"

	"github.com/jobrunner/tilesync/internal/domain"
)

// TIFF tags.
const (
	tagImageWidth          = 256
	tagImageLength         = 257
	tagModelPixelScale     = 33550
	tagModelTiepoint       = 33922
	tagModelTransformation = 34264
	tagGeoKeyDirectory     = 34735
)

// GeoKeys.
const (
	keyGeographicType  = 2048
	keyProjectedCSType = 3072
)

// Info is the georeferencing of a raster.
type Info struct {
	Width  int
	Height int
	Bounds domain.Bounds
	SRID   int
}

// Reader implements output.BoundsReader for local files.
type Reader struct{}

// NewReader creates a GeoTIFF bounds reader.
func NewReader() *Reader {
	return &Reader{}
}

// ReadBounds returns the bounds and EPSG code of the GeoTIFF at path.
func (Reader) ReadBounds(path string) (domain.Bounds, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Bounds{}, 0, err
	}
	defer func() { _ = f.Close() }()

	info, err := Read(f)
	if err != nil {
		return domain.Bounds{}, 0, fmt.Errorf("%s: %w", path, err)
	}
	return info.Bounds, info.SRID, nil
}

// field is the part of a classic or BigTIFF IFD entry the decoder needs.
type field interface {
	Type() tiff.FieldType
	Count() uint64
	Value() tiff.FieldValue
}

// directory looks up a tag in the first IFD.
type directory func(tag uint16) (field, bool)

// Read parses the first IFD of a classic or BigTIFF stream.
func Read(r tiff.ReadAtReadSeeker) (Info, error) {
	var hdr [4]byte
	if _, err := r.ReadAt(hdr[:], 0); err != nil {
		return Info{}, fmt.Errorf("%w: short header", domain.ErrNotGeoTIFF)
	}

	var order binary.ByteOrder
	switch string(hdr[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return Info{}, fmt.Errorf("%w: bad byte order mark", domain.ErrNotGeoTIFF)
	}

	if v := order.Uint16(hdr[2:4]); v != tiff.Version && v != bigtiff.Version {
		return Info{}, fmt.Errorf("%w: bad magic number", domain.ErrNotGeoTIFF)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return Info{}, err
	}

	// bigtiff registers its version parser with tiff on import.
	t, err := tiff.Parse(r, nil, nil)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", domain.ErrNotGeoTIFF, err)
	}
	ifds := t.IFDs()
	if len(ifds) == 0 {
		return Info{}, fmt.Errorf("%w: no image file directory", domain.ErrNotGeoTIFF)
	}
	ifd := ifds[0]
	dir := func(tag uint16) (field, bool) {
		if !ifd.HasField(tag) {
			return nil, false
		}
		return ifd.GetField(tag), true
	}

	return decode(dir)
}

func decode(dir directory) (Info, error) {
	width, err := firstInt(dir, tagImageWidth)
	if err != nil {
		return Info{}, err
	}
	height, err := firstInt(dir, tagImageLength)
	if err != nil {
		return Info{}, err
	}

	info := Info{Width: int(width), Height: int(height)}
	w, h := float64(width), float64(height)

	if t, ok := dir(tagModelTransformation); ok {
		m := floats(t)
		if len(m) < 16 {
			return Info{}, fmt.Errorf("%w: short model transformation", domain.ErrNotGeoTIFF)
		}
		// Affine raster to model: x = m0*i + m1*j + m3, y = m4*i + m5*j + m7.
		corners := [4][2]float64{{0, 0}, {w, 0}, {0, h}, {w, h}}
		info.Bounds = domain.Bounds{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
		for _, c := range corners {
			x := m[0]*c[0] + m[1]*c[1] + m[3]
			y := m[4]*c[0] + m[5]*c[1] + m[7]
			info.Bounds = info.Bounds.Union(domain.Bounds{MinX: x, MinY: y, MaxX: x, MaxY: y})
		}
	} else {
		scaleField, ok := dir(tagModelPixelScale)
		tieField, ok2 := dir(tagModelTiepoint)
		if !ok || !ok2 {
			return Info{}, fmt.Errorf("%w: no georeferencing tags", domain.ErrNotGeoTIFF)
		}
		scale, tie := floats(scaleField), floats(tieField)
		if len(scale) < 2 || len(tie) < 6 {
			return Info{}, fmt.Errorf("%w: malformed georeferencing tags", domain.ErrNotGeoTIFF)
		}
		minX := tie[3] - tie[0]*scale[0]
		maxY := tie[4] + tie[1]*scale[1]
		info.Bounds = domain.Bounds{
			MinX: minX,
			MinY: maxY - h*scale[1],
			MaxX: minX + w*scale[0],
			MaxY: maxY,
		}
	}

	if gk, ok := dir(tagGeoKeyDirectory); ok {
		info.SRID = srid(ints(gk))
	}
	return info, nil
}

// srid extracts the EPSG code from a GeoKeyDirectory, preferring the
// projected over the geographic system.
func srid(dir []uint64) int {
	if len(dir) < 4 {
		return 0
	}
	n := int(dir[3])
	var projected, geographic int
	for i := 0; i < n && 4+i*4+3 < len(dir); i++ {
		k := dir[4+i*4:]
		// Only inline SHORT values (location 0) carry codes.
		if k[1] != 0 {
			continue
		}
		switch k[0] {
		case keyProjectedCSType:
			projected = int(k[3])
		case keyGeographicType:
			geographic = int(k[3])
		}
	}
	// 32767 is user-defined.
	if projected != 0 && projected != 32767 {
		return projected
	}
	if geographic != 32767 {
		return geographic
	}
	return 0
}

func firstInt(dir directory, tag uint16) (uint64, error) {
	f, ok := dir(tag)
	if !ok {
		return 0, fmt.Errorf("%w: missing tag %d", domain.ErrNotGeoTIFF, tag)
	}
	v := ints(f)
	if len(v) == 0 {
		return 0, fmt.Errorf("%w: empty tag %d", domain.ErrNotGeoTIFF, tag)
	}
	return v[0], nil
}

// ints decodes BYTE, SHORT, LONG and LONG8 values.
func ints(f field) []uint64 {
	data, order, size := values(f)
	if size == 0 {
		return nil
	}

	out := make([]uint64, 0, len(data)/size)
	for i := 0; i+size <= len(data); i += size {
		b := data[i : i+size]
		switch f.Type().ID() {
		case 1, 7:
			out = append(out, uint64(b[0]))
		case 3:
			out = append(out, uint64(order.Uint16(b)))
		case 4:
			out = append(out, uint64(order.Uint32(b)))
		case 16:
			out = append(out, order.Uint64(b))
		default:
			return out
		}
	}
	return out
}

// floats decodes FLOAT and DOUBLE values.
func floats(f field) []float64 {
	data, order, size := values(f)
	if size == 0 {
		return nil
	}

	out := make([]float64, 0, len(data)/size)
	for i := 0; i+size <= len(data); i += size {
		b := data[i : i+size]
		switch f.Type().ID() {
		case 12:
			out = append(out, math.Float64frombits(order.Uint64(b)))
		case 11:
			out = append(out, float64(math.Float32frombits(order.Uint32(b))))
		default:
			return out
		}
	}
	return out
}

// values returns the field's bytes trimmed to Count entries. Values that fit
// in the entry come back padded to the full offset slot.
func values(f field) ([]byte, binary.ByteOrder, int) {
	v := f.Value()
	data := v.Bytes()
	size := int(f.Type().Size())
	if n := int(f.Count()) * size; n < len(data) {
		data = data[:n]
	}
	return data, v.Order(), size
}
