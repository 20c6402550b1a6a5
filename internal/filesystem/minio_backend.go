package filesystem

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"

	"filetap/internal/config"
)

// MinIOBackend reads files from a MinIO deployment using its native client.
type MinIOBackend struct {
	client *minio.Client
	config *config.MinIOConfig
}

// NewMinIOBackend creates a new MinIO backend.
func NewMinIOBackend(cfg *config.MinIOConfig) (*MinIOBackend, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.AccessKey == "" {
		return nil, fmt.Errorf("access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("secret key is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  miniocreds.NewStaticV4(cfg.AccessKey, cfg.SecretKey, cfg.Token),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &MinIOBackend{client: client, config: cfg}, nil
}

// Protocol returns the backend kind.
func (b *MinIOBackend) Protocol() string {
	return "minio"
}

// List returns objects under the given path ("bucket" or "bucket/prefix").
func (b *MinIOBackend) List(ctx context.Context, path string) ([]FileEntry, error) {
	bucket, prefix := splitBucketPath(path)

	objectCh := b.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: false,
	})

	var entries []FileEntry
	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		entries = append(entries, FileEntry{
			Name:         bucket + "/" + object.Key,
			Size:         object.Size,
			LastModified: object.LastModified.UTC(),
			IsDirectory:  strings.HasSuffix(object.Key, "/"),
		})
	}

	return entries, nil
}

// Open returns a reader for an object. The name is "bucket/key".
func (b *MinIOBackend) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	bucket, key := splitBucketPath(name)

	obj, err := b.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", name, err)
	}

	return obj, nil
}
