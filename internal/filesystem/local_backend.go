package filesystem

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filetap/internal/utils"
)

// LocalBackend reads files from the local filesystem.
type LocalBackend struct{}

// NewLocalBackend creates a new local filesystem backend.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{}
}

// Protocol returns the backend kind.
func (b *LocalBackend) Protocol() string {
	return "file"
}

// List returns the entries directly under path. Last-modified timestamps come
// from file mtimes, converted to UTC.
func (b *LocalBackend) List(ctx context.Context, path string) ([]FileEntry, error) {
	dirEntries, err := os.ReadDir(path)
	if err != nil {
		return nil, utils.NewErrorBuilder(utils.ErrCodeFileAccessFailed).
			WithMessage(fmt.Sprintf("failed to list directory %s", path)).
			WithCause(err).
			Build()
	}

	entries := make([]FileEntry, 0, len(dirEntries))
	for _, de := range dirEntries {
		info, err := de.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", de.Name(), err)
		}
		entries = append(entries, FileEntry{
			Name:         filepath.Join(path, de.Name()),
			Size:         info.Size(),
			LastModified: info.ModTime().UTC(),
			IsDirectory:  de.IsDir(),
		})
	}

	return entries, nil
}

// Open opens a local file for reading.
func (b *LocalBackend) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, utils.NewErrorBuilder(utils.ErrCodeFileAccessFailed).
			WithMessage(fmt.Sprintf("failed to open %s", name)).
			WithCause(err).
			Build()
	}
	return f, nil
}
