package filesystem

import (
	"context"
	"io"
	"time"

	"filetap/internal/config"
	"filetap/internal/utils"
)

// FileEntry describes one file found during a discovery pass. Entries are
// immutable; their lifetime is a single listing.
type FileEntry struct {
	Name         string
	Size         int64
	LastModified time.Time
	IsDirectory  bool
}

// Backend is the narrow storage capability the connector consumes: listing
// with metadata and streaming opens. Backends do not retry; transient failures
// propagate to the caller.
type Backend interface {
	// List returns the entries directly under path. Each entry carries the
	// backend-native name and a UTC last-modified timestamp.
	List(ctx context.Context, path string) ([]FileEntry, error)

	// Open returns a readable stream for the named file. The caller owns the
	// stream and must close it.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Protocol returns the backend kind, e.g. "file" or "s3".
	Protocol() string
}

// NewBackend selects a backend implementation from configuration. The
// selection happens once at startup; an unknown protocol fails with
// UNSUPPORTED_BACKEND.
func NewBackend(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.Source.Protocol {
	case "file":
		return NewLocalBackend(), nil
	case "s3":
		return NewS3Backend(ctx, &cfg.S3)
	case "minio":
		return NewMinIOBackend(&cfg.MinIO)
	default:
		return nil, utils.NewUnsupportedBackendError(cfg.Source.Protocol)
	}
}
