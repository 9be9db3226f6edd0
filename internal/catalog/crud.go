package catalog

import (
	"fmt"
	"strings"
)

// DuplicateAddError is returned when a field is staged for update twice
// before the update is applied — the "DuplicateAdd" bug indicator from the
// error table: the dirty-field tracker refuses to silently let a second
// write shadow the first.
type DuplicateAddError struct {
	Field string
}

func (e *DuplicateAddError) Error() string {
	return fmt.Sprintf("field %q already staged for update", e.Field)
}

// DirUpdate stages a set of Dir columns to write, each at most once, mirroring
// the dirty-field tracker the original implementation built per-instance.
type DirUpdate struct {
	cols []string
	vals []any
}

func (u *DirUpdate) stage(col string, val any) error {
	for _, c := range u.cols {
		if c == col {
			return &DuplicateAddError{Field: col}
		}
	}
	u.cols = append(u.cols, col)
	u.vals = append(u.vals, val)
	return nil
}

// SetHash stages dirs.hash for the next UpdateDir call.
func (u *DirUpdate) SetHash(h *string) error { return u.stage("hash", h) }

// SetDuplicateID stages dirs.duplicate_id for the next UpdateDir call.
func (u *DirUpdate) SetDuplicateID(id *int64) error { return u.stage("duplicate_id", id) }

func (u *DirUpdate) isEmpty() bool { return len(u.cols) == 0 }

// FileUpdate stages a set of File columns to write, each at most once.
type FileUpdate struct {
	cols []string
	vals []any
}

func (u *FileUpdate) stage(col string, val any) error {
	for _, c := range u.cols {
		if c == col {
			return &DuplicateAddError{Field: col}
		}
	}
	u.cols = append(u.cols, col)
	u.vals = append(u.vals, val)
	return nil
}

// SetPartialHash stages files.partial_hash.
func (u *FileUpdate) SetPartialHash(h *string) error { return u.stage("partial_hash", h) }

// SetCompleteHash stages files.complete_hash.
func (u *FileUpdate) SetCompleteHash(h *string) error { return u.stage("complete_hash", h) }

// SetDuplicateID stages files.duplicate_id.
func (u *FileUpdate) SetDuplicateID(id *int64) error { return u.stage("duplicate_id", id) }

func (u *FileUpdate) isEmpty() bool { return len(u.cols) == 0 }

// InsertDir inserts a new Dir row. d.ParentDir may be nil to create a root.
// Depth is computed server-side as COALESCE(parent.depth, -1) + 1.
func (tx *Tx) InsertDir(d Dir) (Dir, error) {
	query := `
		INSERT INTO dirs (path, parent_dir, depth)
		VALUES (?, ?, COALESCE((SELECT depth FROM dirs WHERE id = ?), -1) + 1)
		RETURNING *
	`
	rows, err := tx.tx.Query(query, d.Path, d.ParentDir, d.ParentDir)
	if err != nil {
		return Dir{}, fmt.Errorf("failed to insert dir %q: %w", d.Path, err)
	}
	result, ok, err := scanOne[Dir](rows)
	if err != nil {
		return Dir{}, err
	}
	if !ok {
		return Dir{}, fmt.Errorf("insert dir %q: no row returned", d.Path)
	}
	return result, nil
}

// InsertFile inserts a new File row. Only non-nil optional hash fields are
// written; the rest stay NULL.
func (tx *Tx) InsertFile(f File) (File, error) {
	cols := []string{"path", "size", "parent_dir"}
	vals := []any{f.Path, f.Size, f.ParentDir}
	if f.PartialHash != nil {
		cols = append(cols, "partial_hash")
		vals = append(vals, *f.PartialHash)
	}
	if f.CompleteHash != nil {
		cols = append(cols, "complete_hash")
		vals = append(vals, *f.CompleteHash)
	}
	if f.DuplicateID != nil {
		cols = append(cols, "duplicate_id")
		vals = append(vals, *f.DuplicateID)
	}

	placeholders := make([]string, len(cols))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	query := fmt.Sprintf(
		"INSERT INTO files (%s) VALUES (%s) RETURNING *",
		strings.Join(cols, ", "), strings.Join(placeholders, ", "),
	)

	rows, err := tx.tx.Query(query, vals...)
	if err != nil {
		return File{}, fmt.Errorf("failed to insert file %q: %w", f.Path, err)
	}
	result, ok, err := scanOne[File](rows)
	if err != nil {
		return File{}, err
	}
	if !ok {
		return File{}, fmt.Errorf("insert file %q: no row returned", f.Path)
	}
	return result, nil
}

// InsertDuplicate creates a new equivalence-class row of the given type.
func (tx *Tx) InsertDuplicate(dupType string) (Duplicate, error) {
	rows, err := tx.tx.Query(`INSERT INTO duplicates (type) VALUES (?) RETURNING *`, dupType)
	if err != nil {
		return Duplicate{}, fmt.Errorf("failed to insert duplicate of type %q: %w", dupType, err)
	}
	result, ok, err := scanOne[Duplicate](rows)
	if err != nil {
		return Duplicate{}, err
	}
	if !ok {
		return Duplicate{}, fmt.Errorf("insert duplicate of type %q: no row returned", dupType)
	}
	return result, nil
}

// DeleteDuplicate physically removes a Duplicate row — the one case where
// the catalog deletes a row outright, when a group collapses below 2
// members.
func (tx *Tx) DeleteDuplicate(id int64) error {
	if _, err := tx.tx.Exec(`DELETE FROM duplicates WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete duplicate %d: %w", id, err)
	}
	return nil
}

// InsertPhoto inserts a perceptual-hash sidecar row for an image file.
func (tx *Tx) InsertPhoto(p Photo) (Photo, error) {
	dataJSON, err := encodeJSONColumn(p.DataJSON)
	if err != nil {
		return Photo{}, err
	}
	rows, err := tx.tx.Query(
		`INSERT INTO photos (file_id, image_hash, data_json) VALUES (?, ?, ?) RETURNING *`,
		p.FileID, p.ImageHash, dataJSON,
	)
	if err != nil {
		return Photo{}, fmt.Errorf("failed to insert photo for file %d: %w", p.FileID, err)
	}
	result, ok, err := scanOne[Photo](rows)
	if err != nil {
		return Photo{}, err
	}
	if !ok {
		return Photo{}, fmt.Errorf("insert photo for file %d: no row returned", p.FileID)
	}
	return result, nil
}

// UpdateDir applies a staged DirUpdate to the dir with the given id and
// returns the updated row. It drops that row's entry from the store's
// read-through cache, so a later GetDir refetches it.
func (tx *Tx) UpdateDir(id int64, u *DirUpdate) (Dir, error) {
	if u.isEmpty() {
		return Dir{}, fmt.Errorf("UpdateDir(%d): no fields staged", id)
	}
	assignments := make([]string, len(u.cols))
	for i, c := range u.cols {
		assignments[i] = c + " = ?"
	}
	query := fmt.Sprintf("UPDATE dirs SET %s WHERE id = ? RETURNING *", strings.Join(assignments, ", "))
	args := append(append([]any{}, u.vals...), id)

	rows, err := tx.tx.Query(query, args...)
	if err != nil {
		return Dir{}, fmt.Errorf("failed to update dir %d: %w", id, err)
	}
	result, ok, err := scanOne[Dir](rows)
	if err != nil {
		return Dir{}, err
	}
	if !ok {
		return Dir{}, fmt.Errorf("update dir %d: no such row", id)
	}
	tx.store.InvalidateDir(id)
	return result, nil
}

// UpdateFile applies a staged FileUpdate to the file with the given id and
// returns the updated row. It drops that row's entry from the store's
// read-through cache, so a later GetFile refetches it.
func (tx *Tx) UpdateFile(id int64, u *FileUpdate) (File, error) {
	if u.isEmpty() {
		return File{}, fmt.Errorf("UpdateFile(%d): no fields staged", id)
	}
	assignments := make([]string, len(u.cols))
	for i, c := range u.cols {
		assignments[i] = c + " = ?"
	}
	query := fmt.Sprintf("UPDATE files SET %s WHERE id = ? RETURNING *", strings.Join(assignments, ", "))
	args := append(append([]any{}, u.vals...), id)

	rows, err := tx.tx.Query(query, args...)
	if err != nil {
		return File{}, fmt.Errorf("failed to update file %d: %w", id, err)
	}
	result, ok, err := scanOne[File](rows)
	if err != nil {
		return File{}, err
	}
	if !ok {
		return File{}, fmt.Errorf("update file %d: no such row", id)
	}
	tx.store.InvalidateFile(id)
	return result, nil
}

// GetDirByID fetches a single Dir by id.
func (tx *Tx) GetDirByID(id int64) (Dir, bool, error) {
	rows, err := tx.tx.Query(`SELECT * FROM dirs WHERE id = ?`, id)
	if err != nil {
		return Dir{}, false, fmt.Errorf("failed to get dir %d: %w", id, err)
	}
	return scanOne[Dir](rows)
}

// GetFileByID fetches a single File by id.
func (tx *Tx) GetFileByID(id int64) (File, bool, error) {
	rows, err := tx.tx.Query(`SELECT * FROM files WHERE id = ?`, id)
	if err != nil {
		return File{}, false, fmt.Errorf("failed to get file %d: %w", id, err)
	}
	return scanOne[File](rows)
}

// FindFileBySizeAndPartialHash implements the first-pass probe of the
// two-pass dedup protocol: any existing file with the same size and partial
// hash, LIMIT 1.
func (tx *Tx) FindFileBySizeAndPartialHash(size int64, partialHash string) (File, bool, error) {
	rows, err := tx.tx.Query(
		`SELECT * FROM files WHERE size = ? AND partial_hash = ? LIMIT 1`,
		size, partialHash,
	)
	if err != nil {
		return File{}, false, fmt.Errorf("failed to probe partial hash: %w", err)
	}
	return scanOne[File](rows)
}

// FindFileBySizeAndCompleteHash implements the second-pass attach lookup of
// the two-pass dedup protocol.
func (tx *Tx) FindFileBySizeAndCompleteHash(size int64, completeHash string) (File, bool, error) {
	rows, err := tx.tx.Query(
		`SELECT * FROM files WHERE size = ? AND complete_hash = ? LIMIT 1`,
		size, completeHash,
	)
	if err != nil {
		return File{}, false, fmt.Errorf("failed to probe complete hash: %w", err)
	}
	return scanOne[File](rows)
}

// FindDirByHash implements the probe in the directory duplicate lifecycle.
func (tx *Tx) FindDirByHash(hash string) (Dir, bool, error) {
	rows, err := tx.tx.Query(`SELECT * FROM dirs WHERE hash = ? LIMIT 1`, hash)
	if err != nil {
		return Dir{}, false, fmt.Errorf("failed to probe dir hash: %w", err)
	}
	return scanOne[Dir](rows)
}

// DirsByDuplicateID returns every dir referencing the given duplicate group.
func (tx *Tx) DirsByDuplicateID(dupID int64) ([]Dir, error) {
	rows, err := tx.tx.Query(`SELECT * FROM dirs WHERE duplicate_id = ?`, dupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dirs for duplicate %d: %w", dupID, err)
	}
	return scanAll[Dir](rows)
}

// FilesByDuplicateID returns every file referencing the given duplicate
// group.
func (tx *Tx) FilesByDuplicateID(dupID int64) ([]File, error) {
	rows, err := tx.tx.Query(`SELECT * FROM files WHERE duplicate_id = ?`, dupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files for duplicate %d: %w", dupID, err)
	}
	return scanAll[File](rows)
}
