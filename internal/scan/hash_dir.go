package scan

import (
	"context"
	"fmt"
	"sort"

	"github.com/yyrliu/dedupler-go/internal/catalog"
)

// HashDir is the second entry point into hashing that original_source's
// indexer.py exposes independently of the scan-time dir stack: it iterates
// an already-scanned Dir's files (optionally recursively over its whole
// subtree) and hashes any that haven't been hashed yet, skipping files whose
// partial hash is already set unless forceReindex is set. It backs the
// standalone "hash" CLI command, the second of the two permitted scan/hash
// orderings (§2, §9).
func (ix *Indexer) HashDir(ctx context.Context, dir catalog.Dir, recursive, forceReindex bool) error {
	dirs := []catalog.Dir{dir}
	if recursive {
		var err error
		err = ix.store.WithTx(ctx, func(tx *catalog.Tx) error {
			subtree, err := tx.GetChildrenByDFS(dir.ID)
			dirs = subtree
			return err
		})
		if err != nil {
			return fmt.Errorf("HashDir(%q): %w", dir.Path, err)
		}
	}

	// Deepest dirs first, so that every file in a subtree is hashed (and
	// every descendant dir's hash is final) before its ancestors' hashes are
	// computed — cheaper than relying solely on dir_hash_update's upward
	// recursion to eventually settle on the right value.
	sort.SliceStable(dirs, func(i, j int) bool { return dirs[i].Depth > dirs[j].Depth })

	for _, d := range dirs {
		var files []catalog.File
		err := ix.store.WithTx(ctx, func(tx *catalog.Tx) error {
			var err error
			files, err = tx.GetFiles(d.ID)
			return err
		})
		if err != nil {
			return fmt.Errorf("HashDir(%q): %w", d.Path, err)
		}

		for _, f := range files {
			if !forceReindex && f.PartialHash != nil {
				continue
			}
			if err := ix.hashFile(ctx, f); err != nil {
				return fmt.Errorf("HashDir(%q): %w", d.Path, err)
			}
		}

		if err := ix.dirHashUpdate(ctx, d.ID); err != nil {
			return fmt.Errorf("HashDir(%q): %w", d.Path, err)
		}
	}

	return nil
}
