package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/jobrunner/tilesync/internal/domain"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to create file: %v", err)
		}
	}
}

func TestNewLocalStorage(t *testing.T) {
	storage := NewLocalStorage("/tmp/test")

	if storage == nil {
		t.Fatal("NewLocalStorage() returned nil")
	}

	if storage.basePath != "/tmp/test" {
		t.Errorf("basePath = %q, want %q", storage.basePath, "/tmp/test")
	}
}

func TestLocalStorageList(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"co/2021/12345/m_12345678_se_13_060_20210601.tif": "tile",
		"co/2021/12345/readme.txt":                        "text",
		"co/2021/54321/m_54321000_se_13_060_20210601.tif": "tile",
		"other/file.tif":                                  "tile",
	})

	storage := NewLocalStorage(tmpDir)

	tests := []struct {
		prefix string
		want   int
	}{
		{"co/2021/12345/", 2},
		{"co/2021/", 3},
		{"", 4},
		{"missing/", 0},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			objects, err := storage.List(context.Background(), tt.prefix)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(objects) != tt.want {
				t.Errorf("len(objects) = %d, want %d", len(objects), tt.want)
			}
			for _, obj := range objects {
				if obj.Size != 4 {
					t.Errorf("object %q size = %d, want 4", obj.Key, obj.Size)
				}
				if obj.LastModified == 0 {
					t.Errorf("object %q LastModified should not be 0", obj.Key)
				}
			}
		})
	}
}

func TestLocalStorageListNonExistent(t *testing.T) {
	storage := NewLocalStorage(filepath.Join(t.TempDir(), "missing"))
	objects, err := storage.List(context.Background(), "")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(objects) != 0 {
		t.Errorf("len(objects) = %d, want 0", len(objects))
	}
}

func TestLocalStorageExists(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{"tiles/exists.tif": "test"})

	storage := NewLocalStorage(tmpDir)

	tests := []struct {
		name string
		key  string
		want bool
	}{
		{"existing file", "tiles/exists.tif", true},
		{"non-existing file", "tiles/nonexistent.tif", false},
		{"non-existing dir", "nowhere/nonexistent.tif", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exists, err := storage.Exists(context.Background(), tt.key)
			if err != nil {
				t.Errorf("Exists() error = %v", err)
			}
			if exists != tt.want {
				t.Errorf("Exists() = %v, want %v", exists, tt.want)
			}
		})
	}
}

func TestLocalStorageOpenNonExistent(t *testing.T) {
	storage := NewLocalStorage(t.TempDir())
	_, err := storage.Open(context.Background(), "nonexistent.tif")
	if !errors.Is(err, domain.ErrObjectNotFound) {
		t.Errorf("Open() error = %v, want ErrObjectNotFound", err)
	}
}

func TestLocalStorageCopy(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()
	writeFiles(t, srcDir, map[string]string{"src/tile.tif": "tile content"})

	src := NewLocalStorage(srcDir)
	dst := NewLocalStorage(destDir)

	ctx := context.Background()
	if err := dst.Copy(ctx, src, "src/tile.tif", "nested/deep/tile (1).tif"); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}

	content, err := os.ReadFile(filepath.Join(destDir, "nested", "deep", "tile (1).tif"))
	if err != nil {
		t.Fatalf("failed to read dest file: %v", err)
	}
	if string(content) != "tile content" {
		t.Errorf("content = %q, want %q", string(content), "tile content")
	}

	// No temp files are left behind.
	entries, err := os.ReadDir(filepath.Join(destDir, "nested", "deep"))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("len(entries) = %d, want 1", len(entries))
	}
}

func TestLocalStorageCopyOverwrites(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()
	writeFiles(t, srcDir, map[string]string{"tile.tif": "new"})
	writeFiles(t, destDir, map[string]string{"tile.tif": "old"})

	dst := NewLocalStorage(destDir)
	if err := dst.Copy(context.Background(), NewLocalStorage(srcDir), "tile.tif", "tile.tif"); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}

	r, err := dst.Open(context.Background(), "tile.tif")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = r.Close() }()

	data, _ := io.ReadAll(r)
	if string(data) != "new" {
		t.Errorf("content = %q, want %q", string(data), "new")
	}
}

func TestLocalStorageCopyMissingSource(t *testing.T) {
	dst := NewLocalStorage(t.TempDir())
	err := dst.Copy(context.Background(), NewLocalStorage(t.TempDir()), "missing.tif", "out.tif")
	if err == nil {
		t.Fatal("Copy() should error for missing source")
	}
	if ok, _ := dst.Exists(context.Background(), "out.tif"); ok {
		t.Error("destination should not exist after failed copy")
	}
}

func TestLocalStorageFullPath(t *testing.T) {
	storage := NewLocalStorage("/data/tiles")

	tests := []struct {
		key  string
		want string
	}{
		{"m_1.tif", "/data/tiles/m_1.tif"},
		{"subdir/m_1 (1).tif", "/data/tiles/subdir/m_1 (1).tif"},
		{"", "/data/tiles"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := storage.FullPath(tt.key); got != tt.want {
				t.Errorf("FullPath(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}
