package decoder

import (
	"bytes"
	"strings"
	"testing"

	"github.com/linkedin/goavro/v2"

	"filetap/internal/config"
	"filetap/internal/filesystem"
)

const avroTestSchema = `{
	"type": "record",
	"name": "order",
	"fields": [
		{"name": "id", "type": "long"},
		{"name": "name", "type": "string"},
		{"name": "payload", "type": "bytes"}
	]
}`

func avroFixture(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := goavro.NewOCFWriter(goavro.OCFConfig{W: &buf, Schema: avroTestSchema})
	if err != nil {
		t.Fatalf("Failed to create container writer: %v", err)
	}
	err = w.Append([]interface{}{
		map[string]interface{}{"id": int64(1), "name": "alpha", "payload": []byte("raw")},
		map[string]interface{}{"id": int64(2), "name": "beta", "payload": []byte{}},
	})
	if err != nil {
		t.Fatalf("Failed to append records: %v", err)
	}
	return buf.Bytes()
}

func TestAvroDecodeConvert(t *testing.T) {
	d := NewAvroDecoder(&config.AvroConfig{TypeCoercionStrategy: config.CoercionConvert})

	var rows []Row
	err := d.Decode(bytes.NewReader(avroFixture(t)), filesystem.FileEntry{Name: "data/orders.avro"},
		func(row Row) error {
			rows = append(rows, row)
			return nil
		})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(rows))
	}
	if rows[0].Values["id"] != int64(1) || rows[0].Values["name"] != "alpha" {
		t.Errorf("Unexpected first record: %v", rows[0].Values)
	}
	if rows[0].Values["payload"] != "raw" {
		t.Errorf("Expected bytes rendered as string, got %v (%T)", rows[0].Values["payload"], rows[0].Values["payload"])
	}
	if rows[1].LineNumber != 2 {
		t.Errorf("Expected record numbers starting at 1, got %d", rows[1].LineNumber)
	}
}

func TestAvroDecodeEnvelope(t *testing.T) {
	d := NewAvroDecoder(&config.AvroConfig{TypeCoercionStrategy: config.CoercionEnvelope})

	var rows []Row
	err := d.Decode(bytes.NewReader(avroFixture(t)), filesystem.FileEntry{Name: "data/orders.avro"},
		func(row Row) error {
			rows = append(rows, row)
			return nil
		})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	wrapped, ok := rows[0].Values["record"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected the record wrapped under 'record', got %v", rows[0].Values)
	}
	if wrapped["name"] != "alpha" {
		t.Errorf("Unexpected wrapped record: %v", wrapped)
	}
}

func TestAvroSchemaJSON(t *testing.T) {
	d := NewAvroDecoder(&config.AvroConfig{TypeCoercionStrategy: config.CoercionConvert})

	schemaJSON, err := d.SchemaJSON(bytes.NewReader(avroFixture(t)))
	if err != nil {
		t.Fatalf("SchemaJSON failed: %v", err)
	}
	if !strings.Contains(schemaJSON, `"name":"id"`) && !strings.Contains(schemaJSON, `"name": "id"`) {
		t.Errorf("Expected the writer schema with field id, got %s", schemaJSON)
	}
}

func TestAvroDecodeNotAContainerFails(t *testing.T) {
	d := NewAvroDecoder(&config.AvroConfig{TypeCoercionStrategy: config.CoercionConvert})

	err := d.Decode(strings.NewReader("id,name\n1,alpha\n"),
		filesystem.FileEntry{Name: "data/orders.avro"}, func(Row) error { return nil })
	if err == nil {
		t.Error("Expected an error for a non-Avro payload")
	}
}
