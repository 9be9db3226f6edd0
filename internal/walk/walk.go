// Package walk produces a lazy, pull-style event stream over a directory
// tree: a single-threaded DFS iterator, not a goroutine-fed channel, so the
// scanner controls exactly when the next filesystem read happens and there is
// no background worker to manage.
package walk

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// EventKind identifies what a traversal Event represents.
type EventKind int

const (
	// EventFile is emitted for each regular file.
	EventFile EventKind = iota
	// EventSymlink is emitted for any symbolic link encountered. The scanner
	// treats this as fatal; the walker itself does not follow it.
	EventSymlink
	// EventDirEnter is emitted upon entering a subdirectory.
	EventDirEnter
	// EventDirLeave is emitted upon leaving a subdirectory — a pop-marker
	// paired with the most recent unmatched EventDirEnter. Path is empty.
	EventDirLeave
)

// Event is one step of the traversal.
type Event struct {
	Kind EventKind
	Path string
}

type frame struct {
	path    string
	isRoot  bool
	entries []os.DirEntry
	idx     int
}

// Walker is a finite, non-restartable DFS iterator over a root directory.
// The root itself is not entered by the Walker — the caller is expected to
// have already recorded it — so no EventDirEnter/EventDirLeave pair is
// produced for root; only descendants get both.
type Walker struct {
	stack []*frame
	err   error
}

// New creates a Walker rooted at root. root must already exist and be a
// directory.
func New(root string) (*Walker, error) {
	entries, err := readSortedDir(root)
	if err != nil {
		return nil, err
	}
	return &Walker{
		stack: []*frame{{path: root, isRoot: true, entries: entries}},
	}, nil
}

// Next returns the next event in the traversal. ok is false once the
// traversal is exhausted or a filesystem error has occurred; err carries the
// latter.
func (w *Walker) Next() (Event, bool, error) {
	if w.err != nil {
		return Event{}, false, w.err
	}

	for len(w.stack) > 0 {
		top := w.stack[len(w.stack)-1]

		if top.idx >= len(top.entries) {
			w.stack = w.stack[:len(w.stack)-1]
			if top.isRoot {
				continue
			}
			return Event{Kind: EventDirLeave}, true, nil
		}

		entry := top.entries[top.idx]
		top.idx++
		childPath := filepath.Join(top.path, entry.Name())

		info, err := os.Lstat(childPath)
		if err != nil {
			w.err = fmt.Errorf("failed to stat %q: %w", childPath, err)
			return Event{}, false, w.err
		}

		if info.Mode()&os.ModeSymlink != 0 {
			return Event{Kind: EventSymlink, Path: childPath}, true, nil
		}

		if info.IsDir() {
			subEntries, err := readSortedDir(childPath)
			if err != nil {
				w.err = err
				return Event{}, false, err
			}
			w.stack = append(w.stack, &frame{path: childPath, entries: subEntries})
			return Event{Kind: EventDirEnter, Path: childPath}, true, nil
		}

		if info.Mode().IsRegular() {
			return Event{Kind: EventFile, Path: childPath}, true, nil
		}

		// Special files (pipes, sockets, devices) carry no event, matching
		// the upstream generator's behavior of silently skipping them.
	}

	return Event{}, false, nil
}

// readSortedDir lists a directory's entries in a deterministic order so that
// two traversals of an unchanged tree always produce the same event sequence.
func readSortedDir(path string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %q: %w", path, err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	return entries, nil
}
