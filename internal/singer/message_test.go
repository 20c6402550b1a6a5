package singer

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filetap/internal/schema"
	"filetap/internal/utils"
)

func decodeLines(t *testing.T, out *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var messages []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		var message map[string]interface{}
		if err := json.Unmarshal([]byte(line), &message); err != nil {
			t.Fatalf("Failed to decode message line %q: %v", line, err)
		}
		messages = append(messages, message)
	}
	return messages
}

func TestWriteSchemaAdvertisesBookmarkProperty(t *testing.T) {
	s := schema.New()
	s.Add(schema.Field{Name: "id", Types: []string{"null", "string"}})
	s.AddProvenanceFields()

	var out bytes.Buffer
	if err := NewWriter(&out).WriteSchema("file", s); err != nil {
		t.Fatalf("WriteSchema failed: %v", err)
	}

	message := decodeLines(t, &out)[0]
	if message["type"] != MessageTypeSchema || message["stream"] != "file" {
		t.Errorf("Unexpected schema message: %v", message)
	}
	bookmarks, ok := message["bookmark_properties"].([]interface{})
	if !ok || len(bookmarks) != 1 || bookmarks[0] != schema.ProvenanceLastModified {
		t.Errorf("Expected %s as the bookmark property, got %v", schema.ProvenanceLastModified, message["bookmark_properties"])
	}

	properties := message["schema"].(map[string]interface{})["properties"].(map[string]interface{})
	if _, present := properties["id"]; !present {
		t.Errorf("Expected field id in properties, got %v", properties)
	}
}

func TestWriteSchemaWithoutProvenanceOmitsBookmark(t *testing.T) {
	s := schema.New()
	s.Add(schema.Field{Name: "id", Types: []string{"null", "string"}})

	var out bytes.Buffer
	if err := NewWriter(&out).WriteSchema("file", s); err != nil {
		t.Fatalf("WriteSchema failed: %v", err)
	}

	message := decodeLines(t, &out)[0]
	if _, present := message["bookmark_properties"]; present {
		t.Errorf("Expected no bookmark properties, got %v", message)
	}
}

func TestWriteRecordAndState(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out)

	if err := w.WriteRecord("file", map[string]interface{}{"id": "1"}); err != nil {
		t.Fatalf("WriteRecord failed: %v", err)
	}
	if err := w.WriteState("file", "2024-03-02T10:00:00Z"); err != nil {
		t.Fatalf("WriteState failed: %v", err)
	}

	messages := decodeLines(t, &out)
	if len(messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(messages))
	}

	record := messages[0]
	if record["type"] != MessageTypeRecord {
		t.Errorf("Expected a RECORD message, got %v", record)
	}
	if record["record"].(map[string]interface{})["id"] != "1" {
		t.Errorf("Unexpected record payload: %v", record["record"])
	}
	if record["time_extracted"] == nil {
		t.Error("Expected time_extracted on the record message")
	}

	state := messages[1]
	if state["type"] != MessageTypeState {
		t.Errorf("Expected a STATE message, got %v", state)
	}
	bookmark := state["value"].(map[string]interface{})["bookmarks"].(map[string]interface{})["file"].(map[string]interface{})
	if bookmark["replication_key"] != schema.ProvenanceLastModified {
		t.Errorf("Unexpected replication key: %v", bookmark)
	}
	if bookmark["replication_key_value"] != "2024-03-02T10:00:00Z" {
		t.Errorf("Unexpected replication value: %v", bookmark)
	}
}

func TestLoadStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	content := `{"bookmarks":{"file":{"replication_key":"_sdc_last_modified","replication_key_value":"2024-03-02T10:00:00Z"}}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write state fixture: %v", err)
	}

	state, err := LoadState(path)
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if err := state.Validate("file"); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	cursor, err := state.CursorFor("file")
	if err != nil {
		t.Fatalf("CursorFor failed: %v", err)
	}
	if cursor == nil || cursor.UTC().Format("2006-01-02T15:04:05Z07:00") != "2024-03-02T10:00:00Z" {
		t.Errorf("Unexpected cursor: %v", cursor)
	}
}

func TestLoadStateEmptyPathIsFirstRun(t *testing.T) {
	state, err := LoadState("")
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	cursor, err := state.CursorFor("file")
	if err != nil {
		t.Fatalf("CursorFor failed: %v", err)
	}
	if cursor != nil {
		t.Errorf("Expected no cursor on a first run, got %v", cursor)
	}
}

func TestValidateRejectsUnknownStream(t *testing.T) {
	state := &State{Bookmarks: map[string]Bookmark{
		"other": {ReplicationKey: schema.ProvenanceLastModified, ReplicationKeyValue: "2024-03-02T10:00:00Z"},
	}}

	err := state.Validate("file")
	if err == nil {
		t.Fatal("Expected an error for a bookmark on an unknown stream")
	}
	if !utils.IsErrorType(err, utils.ErrCodeInvalidConfiguration) {
		t.Errorf("Expected INVALID_CONFIGURATION, got %v", err)
	}
}

func TestCursorForRejectsForeignReplicationKey(t *testing.T) {
	state := &State{Bookmarks: map[string]Bookmark{
		"file": {ReplicationKey: "updated_at", ReplicationKeyValue: "2024-03-02T10:00:00Z"},
	}}

	if _, err := state.CursorFor("file"); err == nil {
		t.Error("Expected an error for a foreign replication key")
	}
}
