package geotiff

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/jobrunner/tilesync/internal/domain"
)

type tiffTag struct {
	tag   uint16
	typ   uint16
	value any // []uint16 or []float64
}

// buildTIFF writes a single-IFD classic TIFF with the given tags.
func buildTIFF(t *testing.T, order binary.ByteOrder, tags []tiffTag) []byte {
	t.Helper()

	encode := func(v any) []byte {
		var b bytes.Buffer
		if err := binary.Write(&b, order, v); err != nil {
			t.Fatalf("binary.Write: %v", err)
		}
		return b.Bytes()
	}

	ifdSize := 2 + len(tags)*12 + 4
	dataOff := 8 + ifdSize

	var ifd, data bytes.Buffer
	ifd.Write(encode(uint16(len(tags))))
	for _, tg := range tags {
		payload := encode(tg.value)
		var count int
		switch v := tg.value.(type) {
		case []uint16:
			count = len(v)
		case []float64:
			count = len(v)
		}
		ifd.Write(encode(tg.tag))
		ifd.Write(encode(tg.typ))
		ifd.Write(encode(uint32(count)))
		if len(payload) <= 4 {
			inline := make([]byte, 4)
			copy(inline, payload)
			ifd.Write(inline)
		} else {
			ifd.Write(encode(uint32(dataOff + data.Len())))
			data.Write(payload)
		}
	}
	ifd.Write(encode(uint32(0)))

	var out bytes.Buffer
	if order == binary.LittleEndian {
		out.WriteString("II")
	} else {
		out.WriteString("MM")
	}
	out.Write(encode(uint16(42)))
	out.Write(encode(uint32(8)))
	out.Write(ifd.Bytes())
	out.Write(data.Bytes())
	return out.Bytes()
}

func naipTags() []tiffTag {
	return []tiffTag{
		{tagImageWidth, 3, []uint16{100}},
		{tagImageLength, 3, []uint16{50}},
		{tagModelPixelScale, 12, []float64{0.6, 0.6, 0}},
		{tagModelTiepoint, 12, []float64{0, 0, 0, 500000, 4400000, 0}},
		{tagGeoKeyDirectory, 3, []uint16{1, 1, 0, 2, 1024, 0, 1, 1, 3072, 0, 1, 26913}},
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRead(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		t.Run(order.String(), func(t *testing.T) {
			info, err := Read(bytes.NewReader(buildTIFF(t, order, naipTags())))
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if info.Width != 100 || info.Height != 50 {
				t.Errorf("size = %dx%d, want 100x50", info.Width, info.Height)
			}
			if info.SRID != 26913 {
				t.Errorf("SRID = %d, want 26913", info.SRID)
			}
			want := domain.Bounds{MinX: 500000, MinY: 4399970, MaxX: 500060, MaxY: 4400000}
			b := info.Bounds
			if !almostEqual(b.MinX, want.MinX) || !almostEqual(b.MinY, want.MinY) ||
				!almostEqual(b.MaxX, want.MaxX) || !almostEqual(b.MaxY, want.MaxY) {
				t.Errorf("Bounds = %+v, want %+v", b, want)
			}
		})
	}
}

func TestReadModelTransformation(t *testing.T) {
	tags := []tiffTag{
		{tagImageWidth, 3, []uint16{10}},
		{tagImageLength, 3, []uint16{20}},
		{tagModelTransformation, 12, []float64{
			2, 0, 0, 100,
			0, -2, 0, 200,
			0, 0, 0, 0,
			0, 0, 0, 1,
		}},
		{tagGeoKeyDirectory, 3, []uint16{1, 1, 0, 1, 2048, 0, 1, 4326}},
	}

	info, err := Read(bytes.NewReader(buildTIFF(t, binary.LittleEndian, tags)))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	want := domain.Bounds{MinX: 100, MinY: 160, MaxX: 120, MaxY: 200}
	if info.Bounds != want {
		t.Errorf("Bounds = %+v, want %+v", info.Bounds, want)
	}
	if info.SRID != 4326 {
		t.Errorf("SRID = %d, want 4326", info.SRID)
	}
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name string
		data func(t *testing.T) []byte
	}{
		{"empty", func(*testing.T) []byte { return nil }},
		{"not a tiff", func(*testing.T) []byte { return []byte("PK\x03\x04 zip archive") }},
		{"bad magic", func(*testing.T) []byte { return []byte("II\x2b\x01\x08\x00\x00\x00") }},
		{"no georeferencing", func(t *testing.T) []byte {
			return buildTIFF(t, binary.LittleEndian, []tiffTag{
				{tagImageWidth, 3, []uint16{10}},
				{tagImageLength, 3, []uint16{10}},
			})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(bytes.NewReader(tt.data(t)))
			if !errors.Is(err, domain.ErrNotGeoTIFF) {
				t.Errorf("Read() error = %v, want ErrNotGeoTIFF", err)
			}
		})
	}
}

func TestReaderReadBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m_12345678_se_13_060_20210601.tif")
	if err := os.WriteFile(path, buildTIFF(t, binary.LittleEndian, naipTags()), 0644); err != nil {
		t.Fatalf("failed to write tiff: %v", err)
	}

	bounds, srid, err := NewReader().ReadBounds(path)
	if err != nil {
		t.Fatalf("ReadBounds() error = %v", err)
	}
	if srid != 26913 {
		t.Errorf("srid = %d, want 26913", srid)
	}
	if !bounds.Valid() {
		t.Errorf("bounds = %+v, want valid", bounds)
	}

	if _, _, err := NewReader().ReadBounds(filepath.Join(t.TempDir(), "missing.tif")); err == nil {
		t.Error("ReadBounds() should fail for a missing file")
	}
}
