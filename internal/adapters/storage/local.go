// Package storage provides object storage adapters.
package storage

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jobrunner/tilesync/internal/domain"
	"github.com/jobrunner/tilesync/internal/ports/output"
)

// LocalStorage implements SourceStore and TargetStore for a local directory.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local storage adapter.
func NewLocalStorage(basePath string) *LocalStorage {
	return &LocalStorage{basePath: basePath}
}

// List returns all files whose slash-separated relative path starts with prefix.
func (s *LocalStorage) List(ctx context.Context, prefix string) ([]output.StorageObject, error) {
	var objects []output.StorageObject

	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tilesync-") {
			return nil
		}

		relPath, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(relPath)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		objects = append(objects, output.StorageObject{
			Key:          key,
			Size:         info.Size(),
			LastModified: info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &domain.StorageError{Operation: "list", Key: prefix, Err: err}
	}

	return objects, nil
}

// Open returns a reader for the given file.
func (s *LocalStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(s.FullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &domain.StorageError{Operation: "open", Key: key, Err: domain.ErrObjectNotFound}
		}
		return nil, &domain.StorageError{Operation: "open", Key: key, Err: err}
	}
	return f, nil
}

// Exists checks if a file exists.
func (s *LocalStorage) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(s.FullPath(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, &domain.StorageError{Operation: "stat", Key: key, Err: err}
}

// Copy streams srcKey into a temporary file next to the destination and
// renames it into place, so readers never observe a partial tile.
func (s *LocalStorage) Copy(ctx context.Context, src output.SourceStore, srcKey, key string) error {
	dest := s.FullPath(key)
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return &domain.StorageError{Operation: "copy", Key: key, Err: err}
	}

	body, err := src.Open(ctx, srcKey)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tilesync-*")
	if err != nil {
		return &domain.StorageError{Operation: "copy", Key: key, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &domain.StorageError{Operation: "copy", Key: key, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &domain.StorageError{Operation: "copy", Key: key, Err: err}
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return &domain.StorageError{Operation: "copy", Key: key, Err: err}
	}
	return nil
}

// FullPath returns the full path for a key.
func (s *LocalStorage) FullPath(key string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(key))
}
