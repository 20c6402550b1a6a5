package decoder

import (
	"bytes"
	"fmt"
	"io"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/source"

	"filetap/internal/config"
	"filetap/internal/filesystem"
	"filetap/internal/utils"
)

// ParquetDecoder extracts rows from Parquet files. Parquet needs random
// access to its footer, so each file is buffered in memory before decoding.
type ParquetDecoder struct {
	cfg *config.ParquetConfig
}

// NewParquetDecoder creates a Parquet decoder from validated configuration.
func NewParquetDecoder(cfg *config.ParquetConfig) *ParquetDecoder {
	return &ParquetDecoder{cfg: cfg}
}

// Decode reads every row of one file. Line numbers count rows per file,
// starting at 1.
func (d *ParquetDecoder) Decode(r io.Reader, entry filesystem.FileEntry, emit EmitFunc) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to buffer %s: %w", entry.Name, err)
	}

	pr, err := reader.NewParquetReader(newBufferFile(data), nil, 1)
	if err != nil {
		return fmt.Errorf("failed to open Parquet file %s: %w", entry.Name, err)
	}
	defer pr.ReadStop()

	rows, err := pr.ReadByNumber(int(pr.GetNumRows()))
	if err != nil {
		return fmt.Errorf("failed to read Parquet rows from %s: %w", entry.Name, err)
	}

	// ReadByNumber returns reflection-built structs whose field names are the
	// reader's internal Go-safe names. Re-encode to maps and translate back to
	// the names the file declares.
	names := externalNames(pr)

	for i, raw := range rows {
		encoded, err := json.Marshal(raw)
		if err != nil {
			return fmt.Errorf("failed to re-encode Parquet row: %w", err)
		}
		var record map[string]interface{}
		if err := json.Unmarshal(encoded, &record); err != nil {
			return fmt.Errorf("failed to re-encode Parquet row: %w", err)
		}

		renamed := make(map[string]interface{}, len(record))
		for inName, value := range record {
			if exName, ok := names[inName]; ok {
				renamed[exName] = value
			} else {
				renamed[inName] = value
			}
		}

		row, err := d.coerce(renamed)
		if err != nil {
			return err
		}
		if err := emit(Row{Values: row, LineNumber: i + 1}); err != nil {
			return err
		}
	}

	return nil
}

// SchemaElements returns the flat schema of one file, excluding the root
// element, for schema translation.
func (d *ParquetDecoder) SchemaElements(r io.Reader) ([]*parquet.SchemaElement, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to buffer Parquet file: %w", err)
	}

	pr, err := reader.NewParquetReader(newBufferFile(data), nil, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to open Parquet file: %w", err)
	}
	defer pr.ReadStop()

	if len(pr.Footer.Schema) == 0 {
		return nil, fmt.Errorf("parquet file has no schema")
	}
	return pr.Footer.Schema[1:], nil
}

// externalNames maps the reader's internal field names back to the names
// declared in the file.
func externalNames(pr *reader.ParquetReader) map[string]string {
	names := make(map[string]string)
	for i, info := range pr.SchemaHandler.Infos {
		if i == 0 {
			// Root element.
			continue
		}
		names[info.InName] = info.ExName
	}
	return names
}

// coerce applies the configured type coercion strategy to one record.
func (d *ParquetDecoder) coerce(record map[string]interface{}) (RawRow, error) {
	switch d.cfg.TypeCoercionStrategy {
	case config.CoercionConvert:
		return RawRow(record), nil
	case config.CoercionEnvelope:
		return RawRow{"record": record}, nil
	default:
		return nil, utils.NewConfigurationError(
			fmt.Sprintf("the coercion strategy '%s' is not valid", d.cfg.TypeCoercionStrategy))
	}
}

// bufferFile adapts an in-memory byte slice to the random-access file
// interface the Parquet reader needs.
type bufferFile struct {
	data   []byte
	reader *bytes.Reader
}

func newBufferFile(data []byte) *bufferFile {
	return &bufferFile{data: data, reader: bytes.NewReader(data)}
}

func (f *bufferFile) Read(p []byte) (int, error) {
	return f.reader.Read(p)
}

func (f *bufferFile) Seek(offset int64, whence int) (int64, error) {
	return f.reader.Seek(offset, whence)
}

func (f *bufferFile) Write(p []byte) (int, error) {
	return 0, fmt.Errorf("parquet buffer is read-only")
}

func (f *bufferFile) Close() error {
	return nil
}

func (f *bufferFile) Open(name string) (source.ParquetFile, error) {
	return newBufferFile(f.data), nil
}

func (f *bufferFile) Create(name string) (source.ParquetFile, error) {
	return nil, fmt.Errorf("parquet buffer is read-only")
}
