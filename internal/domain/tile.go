// Package domain contains the core business entities and value objects.
package domain

import (
	"regexp"
	"strings"
)

// AreaKeyLength is the number of leading identifier characters that form an area key.
const AreaKeyLength = 5

// TileID uniquely names a logical imagery tile (e.g. an 8-digit quarter-quad code).
type TileID string

// AreaKey returns the coarse geographic partition of the tile. Identifiers
// shorter than AreaKeyLength are their own area key.
func (id TileID) AreaKey() AreaKey {
	s := string(id)
	if len(s) <= AreaKeyLength {
		return AreaKey(s)
	}
	return AreaKey(s[:AreaKeyLength])
}

// String implements fmt.Stringer.
func (id TileID) String() string {
	return string(id)
}

// AreaKey partitions listing requests against the source archive.
type AreaKey string

// objectKeyPattern matches the archive naming grammar at the end of a key.
var objectKeyPattern = regexp.MustCompile(`m_(\d+)_se_13_060_(\d{8})\.tif$`)

// TileRef is the structured form of a source object key.
type TileRef struct {
	ID          TileID `json:"id" yaml:"id"`
	CaptureDate string `json:"capture_date" yaml:"capture_date"` // yyyymmdd, naming and logs only
}

// LogicalFilename returns the name the tile receives absent collisions.
func (r TileRef) LogicalFilename() string {
	return "m_" + string(r.ID) + "_se_13_060_" + r.CaptureDate + ".tif"
}

// ParseObjectKey extracts the tile reference from a source object key.
// Keys that do not follow the naming grammar return false; they are not errors.
func ParseObjectKey(key string) (TileRef, bool) {
	m := objectKeyPattern.FindStringSubmatch(key)
	if m == nil {
		return TileRef{}, false
	}
	return TileRef{ID: TileID(m[1]), CaptureDate: m[2]}, true
}

// SplitExt splits a filename at its last dot. The extension is returned
// without the dot and is empty when the name has none.
func SplitExt(name string) (base, ext string) {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return name, ""
	}
	return name[:i], name[i+1:]
}

// TransferTask is one unit of copy work. It is immutable once enqueued.
type TransferTask struct {
	Seq          int     `json:"seq" yaml:"seq"`                     // Position in discovery order
	SourceKey    string  `json:"source_key" yaml:"source_key"`       // Source object key
	PhysicalName string  `json:"physical_name" yaml:"physical_name"` // Collision-resolved target key
	Tile         TileRef `json:"tile" yaml:"tile"`
}
