package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yyrliu/dedupler-go/internal/catalog"
	"github.com/yyrliu/dedupler-go/internal/duplicate"
	"github.com/yyrliu/dedupler-go/internal/hash"
)

func newTestIndexer(t *testing.T) (*Indexer, *catalog.Store) {
	t.Helper()
	store, err := catalog.Open(":memory:", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store, duplicate.New(store), nil, nil), store
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func allDirs(t *testing.T, store *catalog.Store) []catalog.Dir {
	t.Helper()
	var dirs []catalog.Dir
	err := store.WithTx(context.Background(), func(tx *catalog.Tx) error {
		roots, err := tx.GetAllRootDirs()
		if err != nil {
			return err
		}
		for _, r := range roots {
			sub, err := tx.GetChildrenByDFS(r.ID)
			if err != nil {
				return err
			}
			dirs = append(dirs, sub...)
		}
		return nil
	})
	require.NoError(t, err)
	return dirs
}

func findDir(dirs []catalog.Dir, path string) (catalog.Dir, bool) {
	for _, d := range dirs {
		if d.Path == path {
			return d, true
		}
	}
	return catalog.Dir{}, false
}

func TestScan_InsertsDirsAndFilesWithDepth(t *testing.T) {
	ix, store := newTestIndexer(t)
	ctx := context.Background()

	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "a"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "a", "b"), 0o755))
	writeFile(t, filepath.Join(root, "a", "b", "file1"), "hello")
	writeFile(t, filepath.Join(root, "a", "b", "file2"), "hello")

	require.NoError(t, ix.Scan(ctx, root))

	dirs := allDirs(t, store)
	rootDir, ok := findDir(dirs, root)
	require.True(t, ok)
	assert.Equal(t, 0, rootDir.Depth)
	assert.Nil(t, rootDir.ParentDir)

	aDir, ok := findDir(dirs, filepath.Join(root, "a"))
	require.True(t, ok)
	assert.Equal(t, 1, aDir.Depth)
	require.NotNil(t, aDir.ParentDir)
	assert.Equal(t, rootDir.ID, *aDir.ParentDir)

	bDir, ok := findDir(dirs, filepath.Join(root, "a", "b"))
	require.True(t, ok)
	assert.Equal(t, 2, bDir.Depth)
	require.NotNil(t, bDir.ParentDir)
	assert.Equal(t, aDir.ID, *bDir.ParentDir)

	// Scenario 3: directory hash recomputation cascade.
	require.NotNil(t, bDir.Hash)
	require.NotNil(t, aDir.Hash)
	require.NotNil(t, rootDir.Hash)
	assert.Equal(t, hash.HashBytes([]byte(*bDir.Hash)), *aDir.Hash, "a has a single child b, so a's hash is the digest of b's hash line")
}

func TestScan_DuplicateFilesFormGroup(t *testing.T) {
	ix, store := newTestIndexer(t)
	ctx := context.Background()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a"), "same content")
	writeFile(t, filepath.Join(root, "b"), "same content")

	require.NoError(t, ix.Scan(ctx, root))

	var files []catalog.File
	err := store.WithTx(ctx, func(tx *catalog.Tx) error {
		var err error
		files, err = tx.GetAllFilesByDFS(mustRootID(t, store))
		return err
	})
	require.NoError(t, err)
	require.Len(t, files, 2)

	require.NotNil(t, files[0].DuplicateID)
	require.NotNil(t, files[1].DuplicateID)
	assert.Equal(t, *files[0].DuplicateID, *files[1].DuplicateID)
	assert.Equal(t, *files[0].CompleteHash, *files[1].CompleteHash)
}

func TestScan_SymlinkIsFatal(t *testing.T) {
	ix, _ := newTestIndexer(t)
	ctx := context.Background()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "real"), "content")
	require.NoError(t, os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "link")))

	err := ix.Scan(ctx, root)
	require.Error(t, err)
	var symErr *SymlinkError
	require.ErrorAs(t, err, &symErr)
}

func TestHashDir_SkipsAlreadyHashedUnlessForced(t *testing.T) {
	ix, store := newTestIndexer(t)
	ctx := context.Background()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a"), "content one")

	// Scan without hashing inline would require a scan-only mode; instead
	// exercise HashDir directly against a Dir inserted with a shell File row.
	var rootDir catalog.Dir
	var f catalog.File
	err := store.WithTx(ctx, func(tx *catalog.Tx) error {
		var err error
		rootDir, err = tx.InsertDir(catalog.Dir{Path: root})
		if err != nil {
			return err
		}
		f, err = tx.InsertFile(catalog.File{Path: filepath.Join(root, "a"), Size: 11, ParentDir: rootDir.ID})
		return err
	})
	require.NoError(t, err)
	assert.Nil(t, f.PartialHash)

	require.NoError(t, ix.HashDir(ctx, rootDir, false, false))

	hashed, found, err := store.GetFile(ctx, f.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.NotNil(t, hashed.PartialHash)

	// Re-running without forceReindex must not touch the already-hashed file.
	require.NoError(t, ix.HashDir(ctx, rootDir, false, false))
	again, _, err := store.GetFile(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, *hashed.PartialHash, *again.PartialHash)
}

func mustRootID(t *testing.T, store *catalog.Store) int64 {
	t.Helper()
	var id int64
	err := store.WithTx(context.Background(), func(tx *catalog.Tx) error {
		roots, err := tx.GetAllRootDirs()
		if err != nil {
			return err
		}
		require.Len(t, roots, 1)
		id = roots[0].ID
		return nil
	})
	require.NoError(t, err)
	return id
}
