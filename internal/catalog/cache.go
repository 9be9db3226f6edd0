package catalog

import "context"

// GetDir is a cache-through read: it answers from the in-process LRU when
// possible, falling through to a single-row transaction otherwise.
func (s *Store) GetDir(ctx context.Context, id int64) (Dir, bool, error) {
	if d, ok := s.dirCache.Get(id); ok {
		return d, true, nil
	}
	var result Dir
	var found bool
	err := s.WithTx(ctx, func(tx *Tx) error {
		d, ok, err := tx.GetDirByID(id)
		if err != nil {
			return err
		}
		result, found = d, ok
		return nil
	})
	if err != nil {
		return Dir{}, false, err
	}
	if found {
		s.dirCache.Add(id, result)
	}
	return result, found, nil
}

// GetFile is the File equivalent of GetDir.
func (s *Store) GetFile(ctx context.Context, id int64) (File, bool, error) {
	if f, ok := s.fileCache.Get(id); ok {
		return f, true, nil
	}
	var result File
	var found bool
	err := s.WithTx(ctx, func(tx *Tx) error {
		f, ok, err := tx.GetFileByID(id)
		if err != nil {
			return err
		}
		result, found = f, ok
		return nil
	})
	if err != nil {
		return File{}, false, err
	}
	if found {
		s.fileCache.Add(id, result)
	}
	return result, found, nil
}

// CacheDir refreshes (or seeds) the in-process cache entry for d. Tx.UpdateDir
// drops the updated row's entry as it writes; callers may re-seed it with this
// once their WithTx has committed successfully — the cache is never filled
// mid-transaction, so a rolled-back write never leaks into it.
func (s *Store) CacheDir(d Dir) { s.dirCache.Add(d.ID, d) }

// CacheFile is the File equivalent of CacheDir.
func (s *Store) CacheFile(f File) { s.fileCache.Add(f.ID, f) }

// InvalidateDir drops id from the dir cache, for paths where recomputing the
// correct post-commit value is more trouble than refetching it.
func (s *Store) InvalidateDir(id int64) { s.dirCache.Remove(id) }

// InvalidateFile is the File equivalent of InvalidateDir.
func (s *Store) InvalidateFile(id int64) { s.fileCache.Remove(id) }
