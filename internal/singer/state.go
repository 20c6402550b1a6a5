package singer

import (
	"fmt"
	"os"
	"time"

	"filetap/internal/discovery"
	"filetap/internal/schema"
	"filetap/internal/utils"
)

// Bookmark is the per-stream replication position inside a STATE message.
type Bookmark struct {
	ReplicationKey      string `json:"replication_key"`
	ReplicationKeyValue string `json:"replication_key_value"`
}

// State is the persisted replication position across runs, keyed by stream.
type State struct {
	Bookmarks map[string]Bookmark `json:"bookmarks"`
}

// LoadState reads a persisted state file. A missing path means a first run
// and returns an empty state.
func LoadState(path string) (*State, error) {
	if path == "" {
		return &State{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file %s: %w", path, err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}
	return &state, nil
}

// Validate rejects state that bookmarks a stream other than the configured
// one, which usually means the state file belongs to a different connector.
func (s *State) Validate(streamName string) error {
	for name := range s.Bookmarks {
		if name != streamName {
			return utils.NewConfigurationError(fmt.Sprintf(
				"state contains a bookmark for unknown stream '%s'; configured stream is '%s'",
				name, streamName))
		}
	}
	return nil
}

// CursorFor returns the parsed cursor for a stream, or nil when the state
// holds no bookmark for it. A bookmark keyed on anything other than the
// last-modified provenance field is rejected, since that is the only
// replication key the connector writes.
func (s *State) CursorFor(streamName string) (*time.Time, error) {
	bookmark, ok := s.Bookmarks[streamName]
	if !ok || bookmark.ReplicationKeyValue == "" {
		return nil, nil
	}

	if bookmark.ReplicationKey != "" && bookmark.ReplicationKey != schema.ProvenanceLastModified {
		return nil, utils.NewConfigurationError(fmt.Sprintf(
			"state for stream '%s' uses replication key '%s', expected '%s'",
			streamName, bookmark.ReplicationKey, schema.ProvenanceLastModified))
	}

	cursor, err := discovery.ParseCursor(bookmark.ReplicationKeyValue)
	if err != nil {
		return nil, err
	}
	return &cursor, nil
}
