package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"gocloud.dev/blob/memblob"

	"github.com/jobrunner/tilesync/internal/domain"
)

func newMemStorage(t *testing.T, prefix string, files map[string]string) *BlobStorage {
	t.Helper()
	bucket := memblob.OpenBucket(nil)
	ctx := context.Background()
	for key, content := range files {
		if err := bucket.WriteAll(ctx, key, []byte(content), nil); err != nil {
			t.Fatalf("WriteAll(%q) error = %v", key, err)
		}
	}
	s := NewBlobStorage(bucket, prefix)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBlobStorageList(t *testing.T) {
	s := newMemStorage(t, "", map[string]string{
		"co/2021/60cm/rgbir_cog/12345/m_12345678_se_13_060_20210601.tif": "a",
		"co/2021/60cm/rgbir_cog/12345/readme.txt":                        "bb",
		"co/2021/60cm/rgbir_cog/54321/m_54321000_se_13_060_20210601.tif": "ccc",
	})

	objects, err := s.List(context.Background(), "co/2021/60cm/rgbir_cog/12345/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(objects) != 2 {
		t.Fatalf("len(objects) = %d, want 2", len(objects))
	}
	if objects[0].Key != "co/2021/60cm/rgbir_cog/12345/m_12345678_se_13_060_20210601.tif" {
		t.Errorf("objects[0].Key = %q", objects[0].Key)
	}
	if objects[0].Size != 1 {
		t.Errorf("objects[0].Size = %d, want 1", objects[0].Size)
	}
}

func TestBlobStoragePrefixed(t *testing.T) {
	s := newMemStorage(t, "relevant_tiles", map[string]string{
		"relevant_tiles/m_1.tif": "a",
		"elsewhere/m_2.tif":      "b",
	})

	objects, err := s.List(context.Background(), "")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(objects) != 1 || objects[0].Key != "m_1.tif" {
		t.Errorf("objects = %+v, want only m_1.tif", objects)
	}

	ok, err := s.Exists(context.Background(), "m_1.tif")
	if err != nil || !ok {
		t.Errorf("Exists(m_1.tif) = %v, %v; want true, nil", ok, err)
	}
}

func TestBlobStorageExists(t *testing.T) {
	s := newMemStorage(t, "", map[string]string{"tiles/present.tif": "x"})

	tests := []struct {
		key  string
		want bool
	}{
		{"tiles/present.tif", true},
		{"tiles/absent.tif", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := s.Exists(context.Background(), tt.key)
			if err != nil {
				t.Fatalf("Exists() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Exists(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestBlobStorageCopy(t *testing.T) {
	ctx := context.Background()
	src := newMemStorage(t, "", map[string]string{"src/m_1.tif": "tile bytes"})
	dst := newMemStorage(t, "", nil)

	if err := dst.Copy(ctx, src, "src/m_1.tif", "dst/m_1 (1).tif"); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}

	r, err := dst.Open(ctx, "dst/m_1 (1).tif")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(data) != "tile bytes" {
		t.Errorf("content = %q, want %q", data, "tile bytes")
	}
}

func TestBlobStorageOpenMissing(t *testing.T) {
	s := newMemStorage(t, "", nil)
	_, err := s.Open(context.Background(), "missing.tif")
	if !errors.Is(err, domain.ErrObjectNotFound) {
		t.Errorf("Open() error = %v, want ErrObjectNotFound", err)
	}
}

func TestBlobStorageCopyMissingSource(t *testing.T) {
	ctx := context.Background()
	src := newMemStorage(t, "", nil)
	dst := newMemStorage(t, "", nil)

	if err := dst.Copy(ctx, src, "missing.tif", "out.tif"); err == nil {
		t.Fatal("Copy() should fail for a missing source")
	}
	if ok, _ := dst.Exists(ctx, "out.tif"); ok {
		t.Error("out.tif should not exist after a failed copy")
	}
}
