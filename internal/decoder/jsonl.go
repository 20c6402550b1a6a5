package decoder

import (
	"bufio"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"filetap/internal/config"
	"filetap/internal/filesystem"
	"filetap/internal/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONLinesDecoder extracts rows from newline-delimited JSON files: one JSON
// object per physical line.
type JSONLinesDecoder struct {
	cfg *config.JSONLConfig
}

// NewJSONLinesDecoder creates a JSONL decoder from validated configuration.
func NewJSONLinesDecoder(cfg *config.JSONLConfig) *JSONLinesDecoder {
	return &JSONLinesDecoder{cfg: cfg}
}

// Decode reads one file line by line. Line numbers are physical and 1-based.
// A line that fails to parse fails the decode with MALFORMED_ROW, or is
// skipped silently under the ignore policy. Each parsed row passes through the
// configured coercion strategy before being emitted.
func (d *JSONLinesDecoder) Decode(r io.Reader, entry filesystem.FileEntry, emit EmitFunc) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNumber := 0
	for scanner.Scan() {
		lineNumber++

		var row map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			if d.cfg.ErrorHandling == config.ErrorHandlingFail {
				return utils.NewMalformedRowError(entry.Name, lineNumber, fmt.Sprintf(
					"invalid JSON: %v; to suppress this error, change jsonl error_handling to 'ignore'", err))
			}
			continue
		}

		coerced, err := d.coerce(row)
		if err != nil {
			return err
		}
		if err := emit(Row{Values: coerced, LineNumber: lineNumber}); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", entry.Name, err)
	}

	return nil
}

// coerce applies the configured type coercion strategy to one parsed row.
func (d *JSONLinesDecoder) coerce(row map[string]interface{}) (RawRow, error) {
	switch d.cfg.TypeCoercionStrategy {
	case config.CoercionAny:
		return RawRow(row), nil
	case config.CoercionString:
		out := make(RawRow, len(row))
		for name, value := range row {
			str, err := stringifyValue(value)
			if err != nil {
				return nil, err
			}
			out[name] = str
		}
		return out, nil
	case config.CoercionEnvelope:
		return RawRow{"record": row}, nil
	default:
		return nil, utils.NewConfigurationError(
			fmt.Sprintf("the coercion strategy '%s' is not valid", d.cfg.TypeCoercionStrategy))
	}
}

// stringifyValue renders a JSON value as a string. Strings pass through,
// nulls stay null so the nullable schema holds, everything else is re-encoded
// as JSON text.
func stringifyValue(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return v, nil
	default:
		text, err := json.MarshalToString(v)
		if err != nil {
			return nil, fmt.Errorf("failed to stringify value: %w", err)
		}
		return text, nil
	}
}

// SampleFields returns the field names of the first decodable row, used by
// schema inference under the "first" sampling strategy. A file with no
// decodable rows yields no fields.
func (d *JSONLinesDecoder) SampleFields(r io.Reader, entry filesystem.FileEntry) ([]string, error) {
	first, found, err := FirstRow(d, r, entry)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	fields := make([]string, 0, len(first.Values))
	for name := range first.Values {
		fields = append(fields, name)
	}
	return fields, nil
}
