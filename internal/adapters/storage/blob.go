package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// buckets
	_ "gocloud.dev/blob/gcsblob"  // gs:// buckets
	_ "gocloud.dev/blob/memblob"  // mem:// buckets
	_ "gocloud.dev/blob/s3blob"   // s3:// buckets
	"gocloud.dev/gcerrors"

	"github.com/jobrunner/tilesync/internal/domain"
	"github.com/jobrunner/tilesync/internal/ports/output"
)

// BlobStorage implements SourceStore and TargetStore on top of a portable
// gocloud bucket (s3://, gs://, file://, mem://).
type BlobStorage struct {
	bucket *blob.Bucket
}

// OpenBlobStorage opens the bucket addressed by url. A non-empty prefix
// scopes all keys below it.
func OpenBlobStorage(ctx context.Context, url, prefix string) (*BlobStorage, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("opening bucket %s: %w", url, err)
	}
	return NewBlobStorage(bucket, prefix), nil
}

// NewBlobStorage wraps an open bucket.
func NewBlobStorage(bucket *blob.Bucket, prefix string) *BlobStorage {
	if prefix != "" {
		if prefix[len(prefix)-1] != '/' {
			prefix += "/"
		}
		bucket = blob.PrefixedBucket(bucket, prefix)
	}
	return &BlobStorage{bucket: bucket}
}

// Close releases the bucket.
func (s *BlobStorage) Close() error {
	return s.bucket.Close()
}

// List returns all objects under prefix.
func (s *BlobStorage) List(ctx context.Context, prefix string) ([]output.StorageObject, error) {
	var objects []output.StorageObject

	iter := s.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &domain.StorageError{Operation: "list", Key: prefix, Err: err}
		}
		if obj.IsDir {
			continue
		}
		objects = append(objects, output.StorageObject{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.ModTime.Unix(),
			ETag:         fmt.Sprintf("%x", obj.MD5),
		})
	}

	return objects, nil
}

// Open returns a reader for the given object.
func (s *BlobStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, &domain.StorageError{Operation: "read", Key: key, Err: domain.ErrObjectNotFound}
		}
		return nil, &domain.StorageError{Operation: "read", Key: key, Err: err}
	}
	return r, nil
}

// Exists checks if an object exists.
func (s *BlobStorage) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.bucket.Exists(ctx, key)
	if err != nil {
		return false, &domain.StorageError{Operation: "exists", Key: key, Err: err}
	}
	return ok, nil
}

// Copy streams srcKey into key. A failed stream cancels the writer so no
// partial object is committed.
func (s *BlobStorage) Copy(ctx context.Context, src output.SourceStore, srcKey, key string) error {
	body, err := src.Open(ctx, srcKey)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := s.bucket.NewWriter(writeCtx, key, nil)
	if err != nil {
		return &domain.StorageError{Operation: "write", Key: key, Err: err}
	}
	if _, err := io.Copy(w, body); err != nil {
		cancel()
		_ = w.Close()
		return &domain.StorageError{Operation: "write", Key: key, Err: err}
	}
	if err := w.Close(); err != nil {
		return &domain.StorageError{Operation: "write", Key: key, Err: err}
	}
	return nil
}
