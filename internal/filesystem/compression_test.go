package filesystem

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func TestResolveCompressionDetectByExtension(t *testing.T) {
	cases := map[string]string{
		"data/orders.csv.gz":   CompressionGzip,
		"data/orders.csv.gzip": CompressionGzip,
		"data/orders.csv.bz2":  CompressionBzip2,
		"data/orders.csv.zip":  CompressionZip,
		"data/orders.csv.xz":   CompressionXZ,
		"data/orders.csv.lzma": CompressionLZMA,
		"data/orders.csv":      CompressionNone,
	}
	for name, want := range cases {
		if got := ResolveCompression(CompressionDetect, name); got != want {
			t.Errorf("Expected %s for %s, got %s", want, name, got)
		}
	}
}

func TestResolveCompressionExplicitWins(t *testing.T) {
	if got := ResolveCompression(CompressionGzip, "data/orders.weird"); got != CompressionGzip {
		t.Errorf("Expected the explicit setting to win, got %s", got)
	}
	if got := ResolveCompression(CompressionNone, "data/orders.csv.gz"); got != CompressionNone {
		t.Errorf("Expected 'none' to disable detection, got %s", got)
	}
}

type singleFileBackend struct {
	name string
	data []byte
}

func (b *singleFileBackend) List(ctx context.Context, path string) ([]FileEntry, error) {
	return []FileEntry{{Name: b.name, Size: int64(len(b.data))}}, nil
}

func (b *singleFileBackend) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

func (b *singleFileBackend) Protocol() string {
	return "fake"
}

func TestOpenDecodedGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte("id,name\n1,alpha\n")); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	zw.Close()

	backend := &singleFileBackend{name: "data/orders.csv.gz", data: buf.Bytes()}
	stream, err := OpenDecoded(context.Background(), backend, "data/orders.csv.gz", CompressionDetect)
	if err != nil {
		t.Fatalf("OpenDecoded failed: %v", err)
	}
	defer stream.Close()

	content, err := io.ReadAll(stream)
	if err != nil {
		t.Fatalf("Failed to read decoded stream: %v", err)
	}
	if string(content) != "id,name\n1,alpha\n" {
		t.Errorf("Unexpected decompressed content: %q", content)
	}
}

func TestOpenDecodedZipFirstEntry(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("orders.csv")
	if err != nil {
		t.Fatalf("Failed to create zip entry: %v", err)
	}
	if _, err := f.Write([]byte("id\n1\n")); err != nil {
		t.Fatalf("Failed to write zip entry: %v", err)
	}
	zw.Close()

	backend := &singleFileBackend{name: "data/orders.zip", data: buf.Bytes()}
	stream, err := OpenDecoded(context.Background(), backend, "data/orders.zip", CompressionDetect)
	if err != nil {
		t.Fatalf("OpenDecoded failed: %v", err)
	}
	defer stream.Close()

	content, err := io.ReadAll(stream)
	if err != nil {
		t.Fatalf("Failed to read decoded stream: %v", err)
	}
	if string(content) != "id\n1\n" {
		t.Errorf("Unexpected zip entry content: %q", content)
	}
}

func TestOpenDecodedPassthrough(t *testing.T) {
	backend := &singleFileBackend{name: "data/orders.csv", data: []byte("id\n1\n")}
	stream, err := OpenDecoded(context.Background(), backend, "data/orders.csv", CompressionDetect)
	if err != nil {
		t.Fatalf("OpenDecoded failed: %v", err)
	}
	defer stream.Close()

	content, _ := io.ReadAll(stream)
	if string(content) != "id\n1\n" {
		t.Errorf("Unexpected passthrough content: %q", content)
	}
}
