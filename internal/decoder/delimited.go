package decoder

import (
	"bufio"
	"fmt"
	"io"
	"path"
	"strings"

	"filetap/internal/config"
	"filetap/internal/filesystem"
	"filetap/internal/utils"
)

// RestKey is the catch-all field that collects surplus values when a row has
// more fields than the header and error handling is set to ignore.
const RestKey = "_sdc_extra"

// DelimitedDecoder extracts rows from CSV/TSV and similar files. Footer
// skipping requires knowing the total row count, so each file is buffered in
// memory before decoding.
type DelimitedDecoder struct {
	cfg *config.DelimitedConfig
}

// NewDelimitedDecoder creates a delimited decoder from validated configuration.
func NewDelimitedDecoder(cfg *config.DelimitedConfig) *DelimitedDecoder {
	return &DelimitedDecoder{cfg: cfg}
}

// ResolveDelimiter returns the delimiter for a file. Under "detect", .csv
// maps to comma and .tsv to tab; anything else fails and needs an explicit
// delimiter configured.
func (d *DelimitedDecoder) ResolveDelimiter(fileName string) (rune, error) {
	if d.cfg.Delimiter != "detect" {
		return d.cfg.DelimiterRune(), nil
	}

	base := path.Base(fileName)
	switch {
	case strings.Contains(base, ".csv"):
		return ',', nil
	case strings.Contains(base, ".tsv"):
		return '\t', nil
	default:
		return 0, utils.NewAmbiguousDelimiterError(fileName)
	}
}

// Decode reads every data row of one file, emitting (row, lineNumber) pairs.
// Line numbers count emitted rows per file, starting at 1. A column-count
// mismatch against the header fails with MALFORMED_ROW, or degrades under the
// ignore policy: missing trailing columns become nil, surplus values collect
// under RestKey.
func (d *DelimitedDecoder) Decode(r io.Reader, entry filesystem.FileEntry, emit EmitFunc) error {
	delimiter, err := d.ResolveDelimiter(entry.Name)
	if err != nil {
		return err
	}

	lines, err := d.trimmedLines(r)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", entry.Name, err)
	}

	headers, lines, err := d.headers(lines, entry.Name, delimiter)
	if err != nil {
		return err
	}

	quote := d.cfg.QuoteRune()
	rowNumber := 0
	for _, line := range lines {
		if line == "" {
			continue
		}
		fields := splitDelimited(line, delimiter, quote)
		rowNumber++

		if len(fields) != len(headers) && d.cfg.ErrorHandling == config.ErrorHandlingFail {
			return utils.NewMalformedRowError(entry.Name, rowNumber, fmt.Sprintf(
				"total number of column headers (%d) doesn't align with the number of fields in the data (%d); "+
					"to suppress this error, change delimited error_handling to 'ignore'",
				len(headers), len(fields)))
		}

		row := make(RawRow, len(headers))
		for i, name := range headers {
			if i < len(fields) {
				row[name] = fields[i]
			} else {
				row[name] = nil
			}
		}
		if len(fields) > len(headers) {
			row[RestKey] = fields[len(headers):]
		}

		if err := emit(Row{Values: row, LineNumber: rowNumber}); err != nil {
			return err
		}
	}

	return nil
}

// FieldNames returns the column names of one file after skips are applied:
// the configured override when present, otherwise the first remaining row.
func (d *DelimitedDecoder) FieldNames(r io.Reader, fileName string) ([]string, error) {
	delimiter, err := d.ResolveDelimiter(fileName)
	if err != nil {
		return nil, err
	}

	lines, err := d.trimmedLines(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fileName, err)
	}

	headers, _, err := d.headers(lines, fileName, delimiter)
	return headers, err
}

// headers resolves column names and returns the remaining data lines.
func (d *DelimitedDecoder) headers(lines []string, fileName string, delimiter rune) ([]string, []string, error) {
	if len(d.cfg.OverrideHeaders) > 0 {
		return d.cfg.OverrideHeaders, lines, nil
	}
	if len(lines) == 0 {
		return nil, nil, utils.NewErrorBuilder(utils.ErrCodeMissingHeaders).
			WithMessage("column names could not be read because they don't exist; try specifying them with delimited override_headers").
			WithDetails("file: " + fileName).
			Build()
	}
	return splitDelimited(lines[0], delimiter, d.cfg.QuoteRune()), lines[1:], nil
}

// trimmedLines buffers a file's physical lines with header and footer skips
// applied. Skips larger than the file yield no lines.
func (d *DelimitedDecoder) trimmedLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lines = append(lines, strings.TrimSuffix(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if d.cfg.HeaderSkip+d.cfg.FooterSkip >= len(lines) {
		return nil, nil
	}
	return lines[d.cfg.HeaderSkip : len(lines)-d.cfg.FooterSkip], nil
}

// splitDelimited splits one physical line into fields, honoring the quote
// character. A doubled quote inside a quoted field is an escaped quote.
func splitDelimited(line string, delimiter, quote rune) []string {
	var fields []string
	var field strings.Builder
	inQuotes := false

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == quote:
			if inQuotes && i+1 < len(runes) && runes[i+1] == quote {
				field.WriteRune(quote)
				i++
			} else {
				inQuotes = !inQuotes
			}
		case r == delimiter && !inQuotes:
			fields = append(fields, field.String())
			field.Reset()
		default:
			field.WriteRune(r)
		}
	}
	fields = append(fields, field.String())

	return fields
}
