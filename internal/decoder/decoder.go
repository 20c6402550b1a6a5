package decoder

import (
	"errors"
	"io"

	"filetap/internal/filesystem"
)

// RawRow is a decoded row before schema coercion: field name to raw value.
type RawRow map[string]interface{}

// Row pairs a decoded row with its positional metadata inside the file.
type Row struct {
	Values     RawRow
	LineNumber int
}

// EmitFunc receives rows one at a time as a decoder produces them. Returning
// an error stops the decode and propagates out of Decode.
type EmitFunc func(Row) error

// Decoder extracts rows from one open file. A decode is single-pass and not
// restartable; re-reading a file requires a fresh handle.
type Decoder interface {
	Decode(r io.Reader, entry filesystem.FileEntry, emit EmitFunc) error
}

// errStopDecode aborts a decode early without reporting failure, used when
// sampling only needs a prefix of the rows.
var errStopDecode = errors.New("stop decode")

// SampleRows runs a decode over at most limit rows, passing each to fn. The
// decode stops cleanly once the limit is reached.
func SampleRows(d Decoder, r io.Reader, entry filesystem.FileEntry, limit int, fn func(Row)) error {
	count := 0
	err := d.Decode(r, entry, func(row Row) error {
		fn(row)
		count++
		if count >= limit {
			return errStopDecode
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopDecode) {
		return err
	}
	return nil
}

// FirstRow runs a decode and returns the first emitted row, or false when the
// file yields no rows.
func FirstRow(d Decoder, r io.Reader, entry filesystem.FileEntry) (Row, bool, error) {
	var first Row
	found := false
	err := d.Decode(r, entry, func(row Row) error {
		first = row
		found = true
		return errStopDecode
	})
	if err != nil && !errors.Is(err, errStopDecode) {
		return Row{}, false, err
	}
	return first, found, nil
}
