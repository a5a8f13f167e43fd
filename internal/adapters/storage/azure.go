package storage

import (
	"context"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/jobrunner/tilesync/internal/domain"
	"github.com/jobrunner/tilesync/internal/ports/output"
)

// AzureStorage implements TargetStore for Azure Blob Storage.
type AzureStorage struct {
	client    *azblob.Client
	container string
	prefix    string
}

// AzureConfig holds Azure Blob Storage configuration.
type AzureConfig struct {
	Container        string
	AccountName      string
	AccountKey       string
	ConnectionString string
	Prefix           string
}

// NewAzureStorage creates a new Azure Blob Storage adapter.
func NewAzureStorage(cfg AzureConfig) (*AzureStorage, error) {
	var (
		client *azblob.Client
		err    error
	)

	if cfg.ConnectionString != "" {
		client, err = azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	} else {
		var cred *azblob.SharedKeyCredential
		cred, err = azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
		if err == nil {
			url := "https://" + cfg.AccountName + ".blob.core.windows.net/"
			client, err = azblob.NewClientWithSharedKeyCredential(url, cred, nil)
		}
	}
	if err != nil {
		return nil, err
	}

	return NewAzureStorageFromClient(client, cfg.Container, cfg.Prefix), nil
}

// NewAzureStorageFromClient wraps an existing client.
func NewAzureStorageFromClient(client *azblob.Client, container, prefix string) *AzureStorage {
	return &AzureStorage{
		client:    client,
		container: container,
		prefix:    strings.Trim(prefix, "/"),
	}
}

// List returns all blobs under prefix.
func (s *AzureStorage) List(ctx context.Context, prefix string) ([]output.StorageObject, error) {
	var objects []output.StorageObject

	full := s.fullKey(prefix)
	pager := s.client.NewListBlobsFlatPager(s.container, &azblob.ListBlobsFlatOptions{
		Prefix: &full,
	})

	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, &domain.StorageError{Operation: "list", Key: prefix, Err: err}
		}

		for _, blob := range page.Segment.BlobItems {
			if blob.Name == nil {
				continue
			}
			objects = append(objects, s.blobToStorageObject(blob))
		}
	}

	return objects, nil
}

// blobToStorageObject converts an Azure blob to a StorageObject.
func (s *AzureStorage) blobToStorageObject(blob *container.BlobItem) output.StorageObject {
	obj := output.StorageObject{Key: s.relKey(*blob.Name)}
	if blob.Properties == nil {
		return obj
	}
	if blob.Properties.ContentLength != nil {
		obj.Size = *blob.Properties.ContentLength
	}
	if blob.Properties.LastModified != nil {
		obj.LastModified = blob.Properties.LastModified.Unix()
	}
	if blob.Properties.ETag != nil {
		obj.ETag = string(*blob.Properties.ETag)
	}
	return obj
}

// Open returns a reader for the given blob.
func (s *AzureStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, s.fullKey(key), nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, &domain.StorageError{Operation: "download", Key: key, Err: domain.ErrObjectNotFound}
		}
		return nil, &domain.StorageError{Operation: "download", Key: key, Err: err}
	}
	return resp.Body, nil
}

// Exists reads blob properties. BlobNotFound maps to false.
func (s *AzureStorage) Exists(ctx context.Context, key string) (bool, error) {
	blobClient := s.client.ServiceClient().
		NewContainerClient(s.container).
		NewBlobClient(s.fullKey(key))

	_, err := blobClient.GetProperties(ctx, nil)
	if err == nil {
		return true, nil
	}
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return false, nil
	}
	return false, &domain.StorageError{Operation: "properties", Key: key, Err: err}
}

// Copy streams srcKey from the source store into a block blob.
func (s *AzureStorage) Copy(ctx context.Context, src output.SourceStore, srcKey, key string) error {
	body, err := src.Open(ctx, srcKey)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	if _, err := s.client.UploadStream(ctx, s.container, s.fullKey(key), body, nil); err != nil {
		return &domain.StorageError{Operation: "upload", Key: key, Err: err}
	}
	return nil
}

// fullKey returns the full blob name including prefix.
func (s *AzureStorage) fullKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + strings.TrimPrefix(key, "/")
}

func (s *AzureStorage) relKey(name string) string {
	if s.prefix == "" {
		return name
	}
	return strings.TrimPrefix(strings.TrimPrefix(name, s.prefix), "/")
}
