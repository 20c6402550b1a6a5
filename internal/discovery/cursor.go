package discovery

import (
	"fmt"
	"time"

	"filetap/internal/filesystem"
)

// CursorFormat is the serialization used for persisted cursors: ISO-8601 with
// an explicit offset, so round-tripping is unambiguous.
const CursorFormat = time.RFC3339

// CursorTracker derives the next replication cursor from the files selected in
// a run: the maximum last-modified timestamp observed.
type CursorTracker struct {
	max  time.Time
	seen bool
}

// NewCursorTracker creates an empty tracker.
func NewCursorTracker() *CursorTracker {
	return &CursorTracker{}
}

// Observe records a selected entry's last-modified timestamp.
func (t *CursorTracker) Observe(entry filesystem.FileEntry) {
	if !t.seen || entry.LastModified.After(t.max) {
		t.max = entry.LastModified
		t.seen = true
	}
}

// ObserveAll records every entry in a selection.
func (t *CursorTracker) ObserveAll(entries []filesystem.FileEntry) {
	for _, entry := range entries {
		t.Observe(entry)
	}
}

// NextCursor returns the serialized cursor for the next run and whether any
// entry was observed. When nothing was observed the caller keeps its prior
// cursor unchanged.
func (t *CursorTracker) NextCursor() (string, bool) {
	if !t.seen {
		return "", false
	}
	return t.max.UTC().Format(CursorFormat), true
}

// ParseCursor parses a persisted cursor value.
func ParseCursor(value string) (time.Time, error) {
	ts, err := time.Parse(CursorFormat, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse cursor %q: %w", value, err)
	}
	return ts, nil
}
