package domain

import "sort"

// Catalog is the deduplicated set of tile identifiers to keep.
// It is built once at startup and read-only afterwards.
type Catalog struct {
	ids   map[TileID]struct{}
	order []TileID
}

// NewCatalog builds a catalog from raw identifiers, dropping empties and
// duplicates while keeping first-seen order.
func NewCatalog(ids []string) *Catalog {
	c := &Catalog{ids: make(map[TileID]struct{}, len(ids))}
	for _, raw := range ids {
		if raw == "" {
			continue
		}
		id := TileID(raw)
		if _, ok := c.ids[id]; ok {
			continue
		}
		c.ids[id] = struct{}{}
		c.order = append(c.order, id)
	}
	return c
}

// Contains reports whether id is in the catalog.
func (c *Catalog) Contains(id TileID) bool {
	_, ok := c.ids[id]
	return ok
}

// Len returns the number of distinct identifiers.
func (c *Catalog) Len() int {
	return len(c.order)
}

// IDs returns identifiers in first-seen order.
func (c *Catalog) IDs() []TileID {
	out := make([]TileID, len(c.order))
	copy(out, c.order)
	return out
}

// AreaKeys returns the distinct area keys of all identifiers, sorted.
func (c *Catalog) AreaKeys() []AreaKey {
	seen := make(map[AreaKey]struct{})
	keys := make([]AreaKey, 0)
	for _, id := range c.order {
		k := id.AreaKey()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
