package catalog

import "fmt"

// GetAllRootDirs returns every Dir with no parent — the entry points of the
// forest the catalog tracks.
func (tx *Tx) GetAllRootDirs() ([]Dir, error) {
	rows, err := tx.tx.Query(`SELECT * FROM dirs WHERE parent_dir IS NULL ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("failed to list root dirs: %w", err)
	}
	return scanAll[Dir](rows)
}

// GetChildrenByDFS returns every Dir in root's subtree, root itself included,
// in depth-first pre-order. It uses a recursive common table expression
// rather than walking the tree in Go, mirroring the single recursive query
// the original store ran for the same traversal.
func (tx *Tx) GetChildrenByDFS(rootID int64) ([]Dir, error) {
	const query = `
		WITH RECURSIVE subtree(id, path, parent_dir, depth, hash, duplicate_id, ord) AS (
			SELECT id, path, parent_dir, depth, hash, duplicate_id, path
			FROM dirs
			WHERE id = ?

			UNION ALL

			SELECT d.id, d.path, d.parent_dir, d.depth, d.hash, d.duplicate_id, s.ord || char(1) || d.path
			FROM dirs d
			JOIN subtree s ON d.parent_dir = s.id
		)
		SELECT id, path, parent_dir, depth, hash, duplicate_id
		FROM subtree
		ORDER BY ord
	`
	rows, err := tx.tx.Query(query, rootID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subtree of dir %d: %w", rootID, err)
	}
	return scanAll[Dir](rows)
}

// GetFiles returns every File directly inside dirID, in path order.
func (tx *Tx) GetFiles(dirID int64) ([]File, error) {
	rows, err := tx.tx.Query(`SELECT * FROM files WHERE parent_dir = ? ORDER BY path`, dirID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files of dir %d: %w", dirID, err)
	}
	return scanAll[File](rows)
}

// GetAllFilesByDFS returns every File transitively inside root's subtree,
// root included, by joining the subtree CTE against files.
func (tx *Tx) GetAllFilesByDFS(rootID int64) ([]File, error) {
	const query = `
		WITH RECURSIVE subtree(id, ord) AS (
			SELECT id, path FROM dirs WHERE id = ?

			UNION ALL

			SELECT d.id, s.ord || '/' || d.path
			FROM dirs d
			JOIN subtree s ON d.parent_dir = s.id
		)
		SELECT f.*
		FROM files f
		JOIN subtree s ON f.parent_dir = s.id
		ORDER BY f.path
	`
	rows, err := tx.tx.Query(query, rootID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files under dir %d: %w", rootID, err)
	}
	return scanAll[File](rows)
}

// ChildHash pairs an immediate child's id with the digest string that
// represents it in its parent's directory hash.
type ChildHash struct {
	ID   int64
	Hash string
}

// GetChildrenHashes returns, ordered by child id, the digest that represents
// each of dirID's immediate children: a file contributes complete_hash OR
// partial_hash OR "", a subdirectory contributes its own hash OR "". The
// empty-string fallback is deliberate — §4.D.3 tolerates hashing a
// directory before every descendant is complete; the result is simply not
// yet meaningful.
func (tx *Tx) GetChildrenHashes(dirID int64) ([]ChildHash, error) {
	rows, err := tx.tx.Query(`
		SELECT id, COALESCE(hash, '') FROM dirs WHERE parent_dir = ?
		UNION ALL
		SELECT id, COALESCE(complete_hash, partial_hash, '') FROM files WHERE parent_dir = ?
		ORDER BY id ASC
	`, dirID, dirID)
	if err != nil {
		return nil, fmt.Errorf("failed to list child hashes of dir %d: %w", dirID, err)
	}
	defer rows.Close()

	var out []ChildHash
	for rows.Next() {
		var c ChildHash
		if err := rows.Scan(&c.ID, &c.Hash); err != nil {
			return nil, fmt.Errorf("failed to scan child hash row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating child hash rows: %w", err)
	}
	return out, nil
}
