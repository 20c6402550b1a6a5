package singer

import (
	"fmt"
	"io"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"filetap/internal/schema"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Message type tags on the wire.
const (
	MessageTypeSchema = "SCHEMA"
	MessageTypeRecord = "RECORD"
	MessageTypeState  = "STATE"
)

// Writer serializes stream output as newline-delimited messages: a SCHEMA
// message describing the stream, a RECORD message per row, and STATE messages
// carrying replication bookmarks. Writes are serialized so messages never
// interleave.
type Writer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewWriter creates a message writer over an output stream, typically stdout.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// WriteSchema emits the SCHEMA message for a stream. When the schema carries
// the last-modified provenance field it is advertised as the bookmark
// property, since it drives incremental replication.
func (w *Writer) WriteSchema(streamName string, s *schema.Schema) error {
	message := map[string]interface{}{
		"type":   MessageTypeSchema,
		"stream": streamName,
		"schema": map[string]interface{}{
			"type":       "object",
			"properties": s.Properties(),
		},
		"key_properties": []string{},
	}
	if s.Has(schema.ProvenanceLastModified) {
		message["bookmark_properties"] = []string{schema.ProvenanceLastModified}
	}
	return w.write(message)
}

// WriteRecord emits one RECORD message, stamped with the extraction time.
func (w *Writer) WriteRecord(streamName string, record map[string]interface{}) error {
	return w.write(map[string]interface{}{
		"type":           MessageTypeRecord,
		"stream":         streamName,
		"record":         record,
		"time_extracted": time.Now().UTC().Format(time.RFC3339),
	})
}

// WriteState emits a STATE message bookmarking the stream at a cursor value.
func (w *Writer) WriteState(streamName, cursor string) error {
	return w.write(map[string]interface{}{
		"type": MessageTypeState,
		"value": State{
			Bookmarks: map[string]Bookmark{
				streamName: {
					ReplicationKey:      schema.ProvenanceLastModified,
					ReplicationKeyValue: cursor,
				},
			},
		},
	})
}

func (w *Writer) write(message interface{}) error {
	encoded, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := fmt.Fprintf(w.out, "%s\n", encoded); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}
