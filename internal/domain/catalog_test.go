package domain

import (
	"reflect"
	"testing"
)

func TestNewCatalog(t *testing.T) {
	c := NewCatalog([]string{"12345678", "", "12345679", "12345678", "54321000"})

	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3", c.Len())
	}
	want := []TileID{"12345678", "12345679", "54321000"}
	if got := c.IDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("IDs() = %v, want %v", got, want)
	}
	if !c.Contains("12345679") {
		t.Error("Contains(12345679) = false, want true")
	}
	if c.Contains("99999999") {
		t.Error("Contains(99999999) = true, want false")
	}
	if c.Contains("") {
		t.Error("Contains(\"\") = true, want false")
	}
}

func TestCatalogAreaKeys(t *testing.T) {
	c := NewCatalog([]string{"54321000", "12345678", "12345679", "123"})

	want := []AreaKey{"123", "12345", "54321"}
	if got := c.AreaKeys(); !reflect.DeepEqual(got, want) {
		t.Errorf("AreaKeys() = %v, want %v", got, want)
	}
}

func TestCatalogEmpty(t *testing.T) {
	c := NewCatalog(nil)
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
	if keys := c.AreaKeys(); len(keys) != 0 {
		t.Errorf("AreaKeys() = %v, want empty", keys)
	}
}

func TestCatalogIDsIsCopy(t *testing.T) {
	c := NewCatalog([]string{"1", "2"})
	ids := c.IDs()
	ids[0] = "changed"
	if c.IDs()[0] != "1" {
		t.Error("IDs() should return a copy")
	}
}
