package discovery

import (
	"context"
	"log"
	"path"
	"regexp"
	"sort"
	"time"

	"filetap/internal/filesystem"
	"filetap/internal/utils"
)

// Selector lists candidate files and narrows them down to the ones a run
// should sync, in a deterministic order.
type Selector struct {
	backend   filesystem.Backend
	nameRegex *regexp.Regexp
}

// NewSelector creates a selector over a backend. fileRegex may be empty, in
// which case every file name matches.
func NewSelector(backend filesystem.Backend, fileRegex string) (*Selector, error) {
	var nameRegex *regexp.Regexp
	if fileRegex != "" {
		var err error
		nameRegex, err = regexp.Compile(fileRegex)
		if err != nil {
			return nil, utils.NewConfigurationError("file_regex is not a valid regular expression: " + err.Error())
		}
	}

	return &Selector{backend: backend, nameRegex: nameRegex}, nil
}

// SelectFiles lists everything under root and returns the entries to sync:
// directories, empty files, and non-matching names are dropped; the rest is
// stable-sorted ascending by last-modified so an interrupted run can resume
// where it left off; entries older than the cursor are dropped, entries at the
// cursor boundary are kept (at-least-once delivery at the boundary).
//
// A listing that matches nothing is an error. A cursor that filters out every
// match is not: the run succeeds with zero records.
func (s *Selector) SelectFiles(ctx context.Context, root string, cursor *time.Time) ([]filesystem.FileEntry, error) {
	listed, err := s.backend.List(ctx, root)
	if err != nil {
		return nil, err
	}

	matched := make([]filesystem.FileEntry, 0, len(listed))
	for _, entry := range listed {
		if entry.IsDirectory || entry.Size == 0 {
			continue
		}
		if s.nameRegex != nil && !s.nameRegex.MatchString(path.Base(entry.Name)) {
			continue
		}
		matched = append(matched, entry)
	}

	if len(matched) == 0 {
		return nil, utils.NewNoFilesFoundError()
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].LastModified.Before(matched[j].LastModified)
	})

	if cursor == nil {
		return matched, nil
	}

	selected := make([]filesystem.FileEntry, 0, len(matched))
	for _, entry := range matched {
		if entry.LastModified.Before(*cursor) {
			continue
		}
		selected = append(selected, entry)
	}

	if len(selected) == 0 {
		log.Printf("Current state precludes files being synced as none have been modified since state was last updated.")
	}

	return selected, nil
}
