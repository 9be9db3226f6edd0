// Package duplicate implements the two-pass file fingerprinting protocol and
// the duplicate-group lifecycle for both files and directories. It depends on
// the catalog store, and on the hash package only to digest a directory's
// children in ComputeDirHash; it knows nothing about traversal and never
// reads a file — callers hand it already-computed file digests and get back
// updated rows plus, occasionally, a collision signal they are expected to
// resolve themselves.
package duplicate

import (
	"context"
	"fmt"

	"github.com/yyrliu/dedupler-go/internal/catalog"
)

// smallFileThreshold is the byte-count cutoff below which a file's partial
// hash doubles as its complete hash.
const smallFileThreshold = 1024

// PartialHashCollision signals that some other file shares size and partial
// hash with the file currently being attached, but that other file has never
// been fully hashed. It is not a Go error in the failure sense — it's a
// control-flow value the caller (the scanner) is expected to resolve by
// repairing the other row and re-entering the protocol. It satisfies the
// error interface purely so it composes with Go's error-return idiom.
type PartialHashCollision struct {
	OtherID        int64
	OtherPath      string
	OtherParentDir int64
}

func (c *PartialHashCollision) Error() string {
	return fmt.Sprintf("partial hash collision with file %d (%s)", c.OtherID, c.OtherPath)
}

// Engine drives the duplicate-resolution state machine against a catalog
// store.
type Engine struct {
	store *catalog.Store
}

// New returns an Engine backed by store.
func New(store *catalog.Store) *Engine {
	return &Engine{store: store}
}

// AttachFile runs the two-pass protocol (§4.D.1) for file f, whose partial
// hash p has just been computed. fullHash is invoked at most once, and only
// when the protocol determines a full read is actually required — never
// speculatively.
//
// Three outcomes are possible:
//   - (updated, nil, nil): f was attached (possibly newly duplicate-grouped).
//   - (zero, collision, nil): some other file needs repairing first. The
//     caller must compute that file's full hash, call RepairFile, propagate
//     directory-hash invalidation for collision.OtherParentDir, compute f's
//     own full hash, and call AttachSecondPass directly.
//   - (zero, nil, err): a store or IO failure; the surrounding transaction,
//     if any, has already been rolled back.
func (e *Engine) AttachFile(ctx context.Context, f catalog.File, p string, fullHash func() (string, error)) (catalog.File, *PartialHashCollision, error) {
	if f.Size < smallFileThreshold {
		updated, err := e.AttachSecondPass(ctx, f, p, p)
		return updated, nil, err
	}

	var match catalog.File
	var found bool
	err := e.store.WithTx(ctx, func(tx *catalog.Tx) error {
		var err error
		match, found, err = tx.FindFileBySizeAndPartialHash(f.Size, p)
		return err
	})
	if err != nil {
		return catalog.File{}, nil, err
	}

	if !found {
		updated, err := e.setPartialHashOnly(ctx, f.ID, p)
		return updated, nil, err
	}

	if match.CompleteHash != nil {
		c, err := fullHash()
		if err != nil {
			return catalog.File{}, nil, fmt.Errorf("failed to compute full hash of %q: %w", f.Path, err)
		}
		updated, err := e.AttachSecondPass(ctx, f, p, c)
		return updated, nil, err
	}

	return catalog.File{}, &PartialHashCollision{
		OtherID:        match.ID,
		OtherPath:      match.Path,
		OtherParentDir: match.ParentDir,
	}, nil
}

func (e *Engine) setPartialHashOnly(ctx context.Context, fileID int64, p string) (catalog.File, error) {
	var result catalog.File
	err := e.store.WithTx(ctx, func(tx *catalog.Tx) error {
		u := &catalog.FileUpdate{}
		if err := u.SetPartialHash(&p); err != nil {
			return err
		}
		var err error
		result, err = tx.UpdateFile(fileID, u)
		return err
	})
	if err != nil {
		return catalog.File{}, err
	}
	e.store.CacheFile(result)
	return result, nil
}

// RepairFile persists a full hash onto a file that a collision exposed as
// never having been fully hashed. It does not touch duplicate membership —
// R's own group status is only ever decided when something attaches against
// it.
func (e *Engine) RepairFile(ctx context.Context, fileID int64, fullHash string) (catalog.File, error) {
	var result catalog.File
	err := e.store.WithTx(ctx, func(tx *catalog.Tx) error {
		u := &catalog.FileUpdate{}
		if err := u.SetCompleteHash(&fullHash); err != nil {
			return err
		}
		var err error
		result, err = tx.UpdateFile(fileID, u)
		return err
	})
	if err != nil {
		return catalog.File{}, err
	}
	e.store.CacheFile(result)
	return result, nil
}

// AttachSecondPass implements step 3 of the protocol: with both the partial
// and complete hash now known for f, find or create its duplicate group.
func (e *Engine) AttachSecondPass(ctx context.Context, f catalog.File, p, c string) (catalog.File, error) {
	var result catalog.File
	err := e.store.WithTx(ctx, func(tx *catalog.Tx) error {
		match, found, err := tx.FindFileBySizeAndCompleteHash(f.Size, c)
		if err != nil {
			return err
		}

		u := &catalog.FileUpdate{}
		if err := u.SetPartialHash(&p); err != nil {
			return err
		}
		if err := u.SetCompleteHash(&c); err != nil {
			return err
		}

		switch {
		case !found:
			// No existing match: stop here, no duplicate group yet.
		case match.DuplicateID == nil:
			dup, err := tx.InsertDuplicate(catalog.DuplicateTypeFile)
			if err != nil {
				return err
			}
			matchUpdate := &catalog.FileUpdate{}
			if err := matchUpdate.SetDuplicateID(&dup.ID); err != nil {
				return err
			}
			if _, err := tx.UpdateFile(match.ID, matchUpdate); err != nil {
				return err
			}
			if err := u.SetDuplicateID(&dup.ID); err != nil {
				return err
			}
		default:
			if err := u.SetDuplicateID(match.DuplicateID); err != nil {
				return err
			}
		}

		result, err = tx.UpdateFile(f.ID, u)
		return err
	})
	if err != nil {
		return catalog.File{}, err
	}
	e.store.CacheFile(result)
	return result, nil
}
