package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/jobrunner/tilesync/internal/domain"
	"github.com/jobrunner/tilesync/internal/ports/output"
)

// S3Storage implements SourceStore and TargetStore for AWS S3.
type S3Storage struct {
	client        *s3.Client
	uploader      *manager.Uploader
	bucket        string
	prefix        string
	requesterPays bool
}

// S3Config holds S3 configuration.
type S3Config struct {
	Bucket          string
	Region          string
	Prefix          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	RequesterPays   bool // Send x-amz-request-payer: requester on every call
}

// s3Object locates an object for server-side copies.
type s3Object struct {
	bucket        string
	key           string
	requesterPays bool
}

// s3Locator is implemented by stores that can act as a CopyObject source.
type s3Locator interface {
	locate(key string) s3Object
}

// NewS3Storage creates a new S3 storage adapter.
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	var opts []func(*config.LoadOptions) error

	opts = append(opts, config.WithRegion(cfg.Region))

	// Use explicit credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"",
			),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return NewS3StorageFromClient(s3.NewFromConfig(awsCfg, clientOpts...), cfg), nil
}

// NewS3StorageFromClient wraps an existing client.
func NewS3StorageFromClient(client *s3.Client, cfg S3Config) *S3Storage {
	return &S3Storage{
		client:        client,
		uploader:      manager.NewUploader(client),
		bucket:        cfg.Bucket,
		prefix:        strings.Trim(cfg.Prefix, "/"),
		requesterPays: cfg.RequesterPays,
	}
}

// Bucket returns the bucket name.
func (s *S3Storage) Bucket() string {
	return s.bucket
}

// List returns all objects under prefix, following continuation tokens
// until the listing is exhausted.
func (s *S3Storage) List(ctx context.Context, prefix string) ([]output.StorageObject, error) {
	var objects []output.StorageObject

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:       aws.String(s.bucket),
		Prefix:       aws.String(s.fullKey(prefix)),
		RequestPayer: s.requestPayer(),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, &domain.StorageError{Operation: "list", Key: prefix, Err: err}
		}

		for _, obj := range page.Contents {
			var modified int64
			if obj.LastModified != nil {
				modified = obj.LastModified.Unix()
			}
			objects = append(objects, output.StorageObject{
				Key:          s.relKey(aws.ToString(obj.Key)),
				Size:         aws.ToInt64(obj.Size),
				LastModified: modified,
				ETag:         strings.Trim(aws.ToString(obj.ETag), "\""),
			})
		}
	}

	return objects, nil
}

// Open returns a reader for the given object.
func (s *S3Storage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(s.fullKey(key)),
		RequestPayer: s.requestPayer(),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, &domain.StorageError{Operation: "get", Key: key, Err: domain.ErrObjectNotFound}
		}
		return nil, &domain.StorageError{Operation: "get", Key: key, Err: err}
	}
	return resp.Body, nil
}

// Exists checks if an object exists in S3. Only a not-found response maps
// to false; permission and transport failures are returned.
func (s *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(s.fullKey(key)),
		RequestPayer: s.requestPayer(),
	})
	if err == nil {
		return true, nil
	}
	if isS3NotFound(err) {
		return false, nil
	}
	return false, &domain.StorageError{Operation: "head", Key: key, Err: err}
}

// Copy copies srcKey into this bucket. S3 sources are copied server-side
// with their metadata; anything else is streamed through the uploader.
func (s *S3Storage) Copy(ctx context.Context, src output.SourceStore, srcKey, key string) error {
	if loc, ok := src.(s3Locator); ok {
		return s.copyObject(ctx, loc.locate(srcKey), key)
	}

	body, err := src.Open(ctx, srcKey)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
		Body:   body,
	})
	if err != nil {
		return &domain.StorageError{Operation: "upload", Key: key, Err: err}
	}
	return nil
}

func (s *S3Storage) copyObject(ctx context.Context, src s3Object, key string) error {
	input := &s3.CopyObjectInput{
		Bucket:            aws.String(s.bucket),
		Key:               aws.String(s.fullKey(key)),
		CopySource:        aws.String(copySource(src.bucket, src.key)),
		MetadataDirective: types.MetadataDirectiveCopy,
	}
	if src.requesterPays || s.requesterPays {
		input.RequestPayer = types.RequestPayerRequester
	}

	if _, err := s.client.CopyObject(ctx, input); err != nil {
		return &domain.StorageError{Operation: "copy", Key: key, Err: err}
	}
	return nil
}

// locate implements s3Locator.
func (s *S3Storage) locate(key string) s3Object {
	return s3Object{
		bucket:        s.bucket,
		key:           s.fullKey(key),
		requesterPays: s.requesterPays,
	}
}

func (s *S3Storage) requestPayer() types.RequestPayer {
	if s.requesterPays {
		return types.RequestPayerRequester
	}
	return ""
}

// fullKey returns the full S3 key including prefix.
func (s *S3Storage) fullKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + strings.TrimPrefix(key, "/")
}

// relKey strips the storage prefix from a listed key.
func (s *S3Storage) relKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return strings.TrimPrefix(strings.TrimPrefix(key, s.prefix), "/")
}

// copySource builds the URL-encoded x-amz-copy-source value.
func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return bucket + "/" + strings.Join(segments, "/")
}

// isS3NotFound reports whether err is a missing-object response.
func isS3NotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() == http.StatusNotFound
	}
	return false
}
