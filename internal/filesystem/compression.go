package filesystem

import (
	"archive/zip"
	"bytes"
	"compress/bzip2"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// Compression encodings the connector can decode.
const (
	CompressionNone   = "none"
	CompressionZip    = "zip"
	CompressionBzip2  = "bz2"
	CompressionGzip   = "gzip"
	CompressionLZMA   = "lzma"
	CompressionXZ     = "xz"
	CompressionDetect = "detect"
)

// ResolveCompression maps the configured compression setting and a file name
// to the encoding to apply. With "detect", the encoding is chosen by file
// extension; unknown extensions mean no decompression.
func ResolveCompression(configured, fileName string) string {
	if configured == CompressionNone {
		return CompressionNone
	}
	if configured != CompressionDetect {
		return configured
	}

	switch {
	case strings.HasSuffix(fileName, ".zip"):
		return CompressionZip
	case strings.HasSuffix(fileName, ".bz2"):
		return CompressionBzip2
	case strings.HasSuffix(fileName, ".gz"), strings.HasSuffix(fileName, ".gzip"):
		return CompressionGzip
	case strings.HasSuffix(fileName, ".lzma"):
		return CompressionLZMA
	case strings.HasSuffix(fileName, ".xz"):
		return CompressionXZ
	default:
		return CompressionNone
	}
}

// decompressingReader wraps a decoded stream so that closing it also closes
// the underlying backend stream.
type decompressingReader struct {
	io.Reader
	underlying io.Closer
}

func (r *decompressingReader) Close() error {
	return r.underlying.Close()
}

// OpenDecoded opens a file through the backend and wraps the stream with the
// appropriate decompression, resolved from the configured setting. The
// returned stream owns the backend handle; closing it releases both.
func OpenDecoded(ctx context.Context, backend Backend, name, compression string) (io.ReadCloser, error) {
	raw, err := backend.Open(ctx, name)
	if err != nil {
		return nil, err
	}

	encoding := ResolveCompression(compression, name)
	decoded, err := wrapDecoder(raw, encoding)
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("failed to decompress %s as %s: %w", name, encoding, err)
	}
	if decoded == nil {
		return raw, nil
	}

	return &decompressingReader{Reader: decoded, underlying: raw}, nil
}

// wrapDecoder returns a decoding reader for the encoding, or nil when no
// decompression applies.
func wrapDecoder(raw io.Reader, encoding string) (io.Reader, error) {
	switch encoding {
	case CompressionNone:
		return nil, nil
	case CompressionGzip:
		return gzip.NewReader(raw)
	case CompressionBzip2:
		return bzip2.NewReader(raw), nil
	case CompressionXZ:
		return xz.NewReader(raw)
	case CompressionLZMA:
		return lzma.NewReader(raw)
	case CompressionZip:
		return unzipFirstEntry(raw)
	default:
		return nil, fmt.Errorf("unknown compression encoding %q", encoding)
	}
}

// unzipFirstEntry exposes the first file inside a zip archive. Zip needs
// random access, so the archive is buffered in memory.
func unzipFirstEntry(raw io.Reader) (io.Reader, error) {
	data, err := io.ReadAll(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to buffer zip archive: %w", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open zip archive: %w", err)
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open zip entry %s: %w", f.Name, err)
		}
		return rc, nil
	}

	return nil, fmt.Errorf("zip archive contains no files")
}
