package duplicate

import (
	"context"
	"fmt"

	"github.com/yyrliu/dedupler-go/internal/catalog"
	"github.com/yyrliu/dedupler-go/internal/hash"
)

// lifecycleOps binds the few store operations that differ between the Dir
// and File duplicate-group lifecycles, so the shape of the state machine
// (§4.D.2 / design note "centralize in one helper parameterized by entity
// kind") is written once.
type lifecycleOps[T any] struct {
	getCurrent     func(tx *catalog.Tx, id int64) (hash *string, dupID *int64, found bool, err error)
	membersOf      func(tx *catalog.Tx, dupID int64) ([]int64, error)
	findByHash     func(tx *catalog.Tx, newHash string) (other T, found bool, err error)
	otherID        func(other T) int64
	otherDupID     func(other T) *int64
	clearDuplicate func(tx *catalog.Tx, id int64) error
	setDuplicate   func(tx *catalog.Tx, id int64, dupID int64) error
	setHashAndDup  func(tx *catalog.Tx, id int64, hash string, dupID *int64) error
	duplicateType  string
}

// runLifecycle implements update_dir_hash (§4.D.2), generalized over entity
// kind. It reassigns id's canonical hash to newHash and maintains the
// reference-counting invariant on whatever duplicate group id belonged to
// and whichever group it joins.
func runLifecycle[T any](ctx context.Context, store *catalog.Store, id int64, newHash string, ops lifecycleOps[T]) error {
	return store.WithTx(ctx, func(tx *catalog.Tx) error {
		oldHash, oldDupID, found, err := ops.getCurrent(tx, id)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("lifecycle update: entity %d not found", id)
		}
		if oldHash != nil && *oldHash == newHash {
			return nil // idempotent: no-op re-hash.
		}

		if oldDupID != nil {
			members, err := ops.membersOf(tx, *oldDupID)
			if err != nil {
				return err
			}
			if len(members) == 2 {
				for _, m := range members {
					if err := ops.clearDuplicate(tx, m); err != nil {
						return err
					}
				}
				if err := tx.DeleteDuplicate(*oldDupID); err != nil {
					return err
				}
			} else {
				if err := ops.clearDuplicate(tx, id); err != nil {
					return err
				}
			}
		}

		other, found, err := ops.findByHash(tx, newHash)
		if err != nil {
			return err
		}
		switch {
		case !found:
			return ops.setHashAndDup(tx, id, newHash, nil)
		case ops.otherDupID(other) == nil:
			dup, err := tx.InsertDuplicate(ops.duplicateType)
			if err != nil {
				return err
			}
			if err := ops.setDuplicate(tx, ops.otherID(other), dup.ID); err != nil {
				return err
			}
			return ops.setHashAndDup(tx, id, newHash, &dup.ID)
		default:
			return ops.setHashAndDup(tx, id, newHash, ops.otherDupID(other))
		}
	})
}

func dirLifecycleOps() lifecycleOps[catalog.Dir] {
	return lifecycleOps[catalog.Dir]{
		getCurrent: func(tx *catalog.Tx, id int64) (*string, *int64, bool, error) {
			d, found, err := tx.GetDirByID(id)
			if err != nil || !found {
				return nil, nil, found, err
			}
			return d.Hash, d.DuplicateID, true, nil
		},
		membersOf: func(tx *catalog.Tx, dupID int64) ([]int64, error) {
			dirs, err := tx.DirsByDuplicateID(dupID)
			if err != nil {
				return nil, err
			}
			ids := make([]int64, len(dirs))
			for i, d := range dirs {
				ids[i] = d.ID
			}
			return ids, nil
		},
		findByHash: func(tx *catalog.Tx, newHash string) (catalog.Dir, bool, error) {
			return tx.FindDirByHash(newHash)
		},
		otherID:    func(d catalog.Dir) int64 { return d.ID },
		otherDupID: func(d catalog.Dir) *int64 { return d.DuplicateID },
		clearDuplicate: func(tx *catalog.Tx, id int64) error {
			u := &catalog.DirUpdate{}
			if err := u.SetDuplicateID(nil); err != nil {
				return err
			}
			_, err := tx.UpdateDir(id, u)
			return err
		},
		setDuplicate: func(tx *catalog.Tx, id int64, dupID int64) error {
			u := &catalog.DirUpdate{}
			if err := u.SetDuplicateID(&dupID); err != nil {
				return err
			}
			_, err := tx.UpdateDir(id, u)
			return err
		},
		setHashAndDup: func(tx *catalog.Tx, id int64, h string, dupID *int64) error {
			u := &catalog.DirUpdate{}
			if err := u.SetHash(&h); err != nil {
				return err
			}
			if err := u.SetDuplicateID(dupID); err != nil {
				return err
			}
			_, err := tx.UpdateDir(id, u)
			return err
		},
		duplicateType: catalog.DuplicateTypeDir,
	}
}

// UpdateDirHash reassigns dir id's canonical hash, maintaining the
// duplicate-group invariant, and returns the fresh row.
func (e *Engine) UpdateDirHash(ctx context.Context, id int64, newHash string) (catalog.Dir, error) {
	if err := runLifecycle(ctx, e.store, id, newHash, dirLifecycleOps()); err != nil {
		return catalog.Dir{}, err
	}
	e.store.InvalidateDir(id) // the read-through cache may hold the pre-update row; force a refetch.
	d, found, err := e.store.GetDir(ctx, id)
	if err != nil {
		return catalog.Dir{}, err
	}
	if !found {
		return catalog.Dir{}, fmt.Errorf("dir %d vanished after lifecycle update", id)
	}
	e.store.CacheDir(d)
	return d, nil
}

// fileLifecycleOps builds the File lifecycle closures bound to a fixed size,
// since complete_hash matches are only meaningful among files of the same
// size.
func fileLifecycleOps(size int64) lifecycleOps[catalog.File] {
	return lifecycleOps[catalog.File]{
		getCurrent: func(tx *catalog.Tx, id int64) (*string, *int64, bool, error) {
			f, found, err := tx.GetFileByID(id)
			if err != nil || !found {
				return nil, nil, found, err
			}
			return f.CompleteHash, f.DuplicateID, true, nil
		},
		membersOf: func(tx *catalog.Tx, dupID int64) ([]int64, error) {
			files, err := tx.FilesByDuplicateID(dupID)
			if err != nil {
				return nil, err
			}
			ids := make([]int64, len(files))
			for i, f := range files {
				ids[i] = f.ID
			}
			return ids, nil
		},
		findByHash: func(tx *catalog.Tx, newHash string) (catalog.File, bool, error) {
			return tx.FindFileBySizeAndCompleteHash(size, newHash)
		},
		otherID:    func(f catalog.File) int64 { return f.ID },
		otherDupID: func(f catalog.File) *int64 { return f.DuplicateID },
		clearDuplicate: func(tx *catalog.Tx, id int64) error {
			u := &catalog.FileUpdate{}
			if err := u.SetDuplicateID(nil); err != nil {
				return err
			}
			_, err := tx.UpdateFile(id, u)
			return err
		},
		setDuplicate: func(tx *catalog.Tx, id int64, dupID int64) error {
			u := &catalog.FileUpdate{}
			if err := u.SetDuplicateID(&dupID); err != nil {
				return err
			}
			_, err := tx.UpdateFile(id, u)
			return err
		},
		setHashAndDup: func(tx *catalog.Tx, id int64, h string, dupID *int64) error {
			u := &catalog.FileUpdate{}
			if err := u.SetCompleteHash(&h); err != nil {
				return err
			}
			if err := u.SetDuplicateID(dupID); err != nil {
				return err
			}
			_, err := tx.UpdateFile(id, u)
			return err
		},
		duplicateType: catalog.DuplicateTypeFile,
	}
}

// UpdateFileHash reassigns a file's complete_hash outside the initial
// two-pass attach path, maintaining the same duplicate-group invariant. No
// code path in this module calls it: the forced re-index in scan.HashDir
// re-runs the two-pass attach instead.
func (e *Engine) UpdateFileHash(ctx context.Context, id int64, newHash string) (catalog.File, error) {
	f, found, err := e.store.GetFile(ctx, id)
	if err != nil {
		return catalog.File{}, err
	}
	if !found {
		return catalog.File{}, fmt.Errorf("file %d not found", id)
	}
	if err := runLifecycle(ctx, e.store, id, newHash, fileLifecycleOps(f.Size)); err != nil {
		return catalog.File{}, err
	}
	e.store.InvalidateFile(id)
	updated, found, err := e.store.GetFile(ctx, id)
	if err != nil {
		return catalog.File{}, err
	}
	if !found {
		return catalog.File{}, fmt.Errorf("file %d vanished after lifecycle update", id)
	}
	return updated, nil
}

// ComputeDirHash implements §4.D.3: a deterministic fold of a dir's
// immediate children's canonical hashes, ordered by child id.
func (e *Engine) ComputeDirHash(ctx context.Context, dirID int64) (string, error) {
	var children []catalog.ChildHash
	err := e.store.WithTx(ctx, func(tx *catalog.Tx) error {
		rows, err := tx.GetChildrenHashes(dirID)
		if err != nil {
			return err
		}
		children = rows
		return nil
	})
	if err != nil {
		return "", err
	}

	joined := ""
	for i, c := range children {
		if i > 0 {
			joined += "\n"
		}
		joined += c.Hash
	}
	return hash.HashBytes([]byte(joined)), nil
}
