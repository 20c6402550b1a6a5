package discovery

import (
	"testing"
	"time"

	"filetap/internal/filesystem"
)

func TestCursorTrackerTracksMaximum(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewCursorTracker()
	tracker.ObserveAll([]filesystem.FileEntry{
		{Name: "a.csv", LastModified: base},
		{Name: "b.csv", LastModified: base.Add(2 * time.Hour)},
		{Name: "c.csv", LastModified: base.Add(time.Hour)},
	})

	cursor, ok := tracker.NextCursor()
	if !ok {
		t.Fatal("Expected a cursor after observing entries")
	}
	if cursor != "2024-03-01T14:00:00Z" {
		t.Errorf("Expected 2024-03-01T14:00:00Z, got %s", cursor)
	}
}

func TestCursorTrackerEmptyKeepsPriorCursor(t *testing.T) {
	tracker := NewCursorTracker()
	if cursor, ok := tracker.NextCursor(); ok {
		t.Errorf("Expected no cursor from an empty tracker, got %s", cursor)
	}
}

func TestCursorTrackerSerializesInUTC(t *testing.T) {
	offset := time.FixedZone("CET", 3600)
	tracker := NewCursorTracker()
	tracker.Observe(filesystem.FileEntry{
		Name:         "a.csv",
		LastModified: time.Date(2024, 3, 1, 13, 0, 0, 0, offset),
	})

	cursor, ok := tracker.NextCursor()
	if !ok {
		t.Fatal("Expected a cursor")
	}
	if cursor != "2024-03-01T12:00:00Z" {
		t.Errorf("Expected UTC serialization, got %s", cursor)
	}
}

func TestParseCursorRoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)
	tracker := NewCursorTracker()
	tracker.Observe(filesystem.FileEntry{Name: "a.csv", LastModified: ts})

	serialized, _ := tracker.NextCursor()
	parsed, err := ParseCursor(serialized)
	if err != nil {
		t.Fatalf("Failed to parse cursor: %v", err)
	}
	if !parsed.Equal(ts) {
		t.Errorf("Expected %v after round trip, got %v", ts, parsed)
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	if _, err := ParseCursor("yesterday"); err == nil {
		t.Error("Expected an error for a malformed cursor")
	}
}
