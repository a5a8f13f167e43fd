// Package output defines the secondary/driven ports of the application.
package output

import (
	"context"
	"io"
)

// SourceStore is the read-only archive tiles are copied from.
type SourceStore interface {
	// List returns every object under prefix, draining all result pages.
	List(ctx context.Context, prefix string) ([]StorageObject, error)

	// Open returns a reader for the given object.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Refresher is implemented by sources that cache listings. Refresh drops
// the cache so the next List reflects the current archive.
type Refresher interface {
	Refresh()
}

// TargetStore is the project store tiles are copied into.
type TargetStore interface {
	// Exists reports whether key is present. Absence is (false, nil); any
	// other failure is returned as an error.
	Exists(ctx context.Context, key string) (bool, error)

	// Copy copies srcKey from src to key, overwriting any existing object.
	Copy(ctx context.Context, src SourceStore, srcKey, key string) error

	// List returns every object under prefix.
	List(ctx context.Context, prefix string) ([]StorageObject, error)

	// Open returns a reader for the given object.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// StorageObject represents a file in object storage.
type StorageObject struct {
	Key          string // Object key/path
	Size         int64  // Size in bytes
	LastModified int64  // Unix timestamp
	ETag         string // Content hash
}

// StorageType represents the type of storage backend.
type StorageType string

const (
	StorageTypeS3    StorageType = "s3"
	StorageTypeAzure StorageType = "azure"
	StorageTypeBlob  StorageType = "blob"
	StorageTypeLocal StorageType = "local"
	StorageTypeHTTP  StorageType = "http"
)
