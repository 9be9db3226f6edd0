// Package scan is the orchestrator (§4.E Scanner/Indexer): it drives the
// traversal, calls the hashers, inserts rows through the catalog store, and
// triggers the duplicate engine's two-pass protocol and directory-hash
// propagation. It is the only package that sees all four of the others.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/yyrliu/dedupler-go/internal/catalog"
	"github.com/yyrliu/dedupler-go/internal/duplicate"
	"github.com/yyrliu/dedupler-go/internal/hash"
	"github.com/yyrliu/dedupler-go/internal/ignore"
	"github.com/yyrliu/dedupler-go/internal/walk"
)

// stackFrame is one entry of the scanner's dir_stack: the current position
// in the traversal. skip frames correspond to directories excluded by the
// ignore matcher — they still balance enter/leave events, but never reach
// the catalog.
type stackFrame struct {
	id   int64
	path string
	skip bool
}

// Indexer holds the scanner's state for one scan invocation: the catalog
// store, the duplicate engine sitting in front of it, the exclusion matcher
// inherited from the teacher's ignore machinery, and the LIFO dir_stack.
type Indexer struct {
	store   *catalog.Store
	dup     *duplicate.Engine
	matcher ignore.Matcher
	log     *slog.Logger

	stack []stackFrame
}

// New returns an Indexer backed by store and dup. matcher may be nil, in
// which case nothing is excluded. log, if nil, defaults to slog.Default().
func New(store *catalog.Store, dup *duplicate.Engine, matcher ignore.Matcher, log *slog.Logger) *Indexer {
	if matcher == nil {
		matcher = noOpMatcher{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Indexer{store: store, dup: dup, matcher: matcher, log: log}
}

type noOpMatcher struct{}

func (noOpMatcher) Match(string, bool) bool { return false }

// Scan drives a full scan-and-hash pass (§2, Open Question #3's chosen
// default) over rootPath: it inserts the root Dir, consumes the traversal
// event stream, and dispatches each event per §4.E. Files are hashed inline
// as they are discovered; directory hashes are computed and propagated as
// each subdirectory is left.
func (ix *Indexer) Scan(ctx context.Context, rootPath string) error {
	ix.stack = nil

	root, err := ix.dirHandler(ctx, rootPath)
	if err != nil {
		return err
	}

	w, err := walk.New(rootPath)
	if err != nil {
		return fmt.Errorf("failed to start traversal at %q: %w", rootPath, err)
	}

	for {
		ev, ok, err := w.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		switch ev.Kind {
		case walk.EventSymlink:
			return &SymlinkError{Path: ev.Path}

		case walk.EventFile:
			if ix.topSkipped() || ix.matcher.Match(ev.Path, false) {
				continue
			}
			if err := ix.fileHandler(ctx, ev.Path); err != nil {
				return err
			}

		case walk.EventDirEnter:
			if ix.topSkipped() || ix.matcher.Match(ev.Path, true) {
				ix.stack = append(ix.stack, stackFrame{path: ev.Path, skip: true})
				continue
			}
			if _, err := ix.dirHandler(ctx, ev.Path); err != nil {
				return err
			}

		case walk.EventDirLeave:
			popped := ix.pop()
			if popped.skip {
				continue
			}
			if err := ix.dirHashUpdate(ctx, popped.id); err != nil {
				return err
			}
		}
	}

	// The root is entered by the caller, so it never sees a matching
	// EventDirLeave from the walker; hash it once the subtree is drained.
	if top := ix.pop(); top.id != root.ID {
		return fmt.Errorf("scan(%q): dir_stack imbalance at root, found %q", rootPath, top.path)
	}
	return ix.dirHashUpdate(ctx, root.ID)
}

func (ix *Indexer) topSkipped() bool {
	return len(ix.stack) > 0 && ix.stack[len(ix.stack)-1].skip
}

func (ix *Indexer) pop() stackFrame {
	top := ix.stack[len(ix.stack)-1]
	ix.stack = ix.stack[:len(ix.stack)-1]
	return top
}

// dirHandler inserts a new Dir row parented to the current top of stack (or
// a root, if the stack is empty) and pushes it.
func (ix *Indexer) dirHandler(ctx context.Context, path string) (catalog.Dir, error) {
	var parent *int64
	if len(ix.stack) > 0 {
		id := ix.stack[len(ix.stack)-1].id
		parent = &id
	}

	var d catalog.Dir
	err := ix.store.WithTx(ctx, func(tx *catalog.Tx) error {
		var err error
		d, err = tx.InsertDir(catalog.Dir{Path: path, ParentDir: parent})
		return err
	})
	if err != nil {
		return catalog.Dir{}, fmt.Errorf("dir_handler(%q): %w", path, err)
	}
	ix.store.CacheDir(d)
	ix.log.Debug("indexed dir", "path", path, "id", d.ID, "depth", d.Depth)

	ix.stack = append(ix.stack, stackFrame{id: d.ID, path: path})
	return d, nil
}

// fileHandler stats path, inserts the shell File row, and hashes it inline.
func (ix *Indexer) fileHandler(ctx context.Context, path string) error {
	if len(ix.stack) == 0 {
		return &NoRootDirError{}
	}
	parentID := ix.stack[len(ix.stack)-1].id

	info, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("file_handler(%q): %w", path, err)
	}

	var f catalog.File
	err = ix.store.WithTx(ctx, func(tx *catalog.Tx) error {
		var err error
		f, err = tx.InsertFile(catalog.File{Path: path, Size: info.Size(), ParentDir: parentID})
		return err
	})
	if err != nil {
		return fmt.Errorf("file_handler(%q): %w", path, err)
	}
	ix.store.CacheFile(f)
	ix.log.Debug("indexed file", "path", path, "id", f.ID, "size", f.Size)

	return ix.hashFile(ctx, f)
}

// hashFile classifies f by suffix and drives it through the hasher and
// duplicate engine per §4.E's hash_file operation.
func (ix *Indexer) hashFile(ctx context.Context, f catalog.File) error {
	if hash.IsImagePath(f.Path) {
		imgHash, err := hash.ImageHash(f.Path)
		if err != nil {
			return fmt.Errorf("hash_file(%q): %w", f.Path, err)
		}
		updated, err := ix.dup.AttachSecondPass(ctx, f, imgHash, imgHash)
		if err != nil {
			return fmt.Errorf("hash_file(%q): %w", f.Path, err)
		}
		return ix.store.WithTx(ctx, func(tx *catalog.Tx) error {
			_, err := tx.InsertPhoto(catalog.Photo{
				FileID:    updated.ID,
				ImageHash: &imgHash,
				DataJSON:  map[string]any{"algorithm": "average_hash"},
			})
			return err
		})
	}

	p, err := hash.PartialHash(f.Path, f.Size)
	if err != nil {
		return fmt.Errorf("hash_file(%q): %w", f.Path, err)
	}

	fullHashOfF := func() (string, error) { return hash.FullHash(f.Path) }
	_, collision, err := ix.dup.AttachFile(ctx, f, p, fullHashOfF)
	if err != nil {
		return fmt.Errorf("hash_file(%q): %w", f.Path, err)
	}
	if collision == nil {
		return nil
	}

	// PartialHashCollision: repair the other row first, invalidate its
	// parent's directory hash, then re-enter the protocol at step 3 with
	// both hashes of f now known.
	ix.log.Debug("partial hash collision", "path", f.Path, "other_path", collision.OtherPath)
	otherFull, err := hash.FullHash(collision.OtherPath)
	if err != nil {
		return fmt.Errorf("hash_file(%q): repairing %q: %w", f.Path, collision.OtherPath, err)
	}
	if _, err := ix.dup.RepairFile(ctx, collision.OtherID, otherFull); err != nil {
		return fmt.Errorf("hash_file(%q): repairing %q: %w", f.Path, collision.OtherPath, err)
	}
	if err := ix.dirHashUpdate(ctx, collision.OtherParentDir); err != nil {
		return fmt.Errorf("hash_file(%q): invalidating parent of %q: %w", f.Path, collision.OtherPath, err)
	}

	c, err := hash.FullHash(f.Path)
	if err != nil {
		return fmt.Errorf("hash_file(%q): %w", f.Path, err)
	}
	_, err = ix.dup.AttachSecondPass(ctx, f, p, c)
	if err != nil {
		return fmt.Errorf("hash_file(%q): %w", f.Path, err)
	}
	return nil
}

// dirHashUpdate recomputes dirID's canonical hash and maintains the
// duplicate-group invariant, then recurses into its parent. Propagation
// stops at a root (nil ParentDir), per §4.E's rationale: any change to a
// child's hash invalidates every ancestor's hash along the chain.
func (ix *Indexer) dirHashUpdate(ctx context.Context, dirID int64) error {
	h, err := ix.dup.ComputeDirHash(ctx, dirID)
	if err != nil {
		return fmt.Errorf("dir_hash_update(%d): %w", dirID, err)
	}
	d, err := ix.dup.UpdateDirHash(ctx, dirID, h)
	if err != nil {
		return fmt.Errorf("dir_hash_update(%d): %w", dirID, err)
	}
	ix.log.Debug("updated dir hash", "id", dirID, "hash", h)
	if d.ParentDir == nil {
		return nil
	}
	return ix.dirHashUpdate(ctx, *d.ParentDir)
}
