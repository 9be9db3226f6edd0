package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_InsertAndGetDir(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var root Dir
	err := s.WithTx(ctx, func(tx *Tx) error {
		var err error
		root, err = tx.InsertDir(Dir{Path: "/data"})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 0, root.Depth)
	assert.Nil(t, root.ParentDir)

	var child Dir
	err = s.WithTx(ctx, func(tx *Tx) error {
		var err error
		child, err = tx.InsertDir(Dir{Path: "/data/sub", ParentDir: &root.ID})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, child.Depth)
	require.NotNil(t, child.ParentDir)
	assert.Equal(t, root.ID, *child.ParentDir)

	got, ok, err := s.GetDir(ctx, root.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, root.Path, got.Path)

	// Second fetch should be served from cache, but must still agree.
	got2, ok, err := s.GetDir(ctx, root.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, got, got2)
}

func TestStore_InsertFileOmitsNilHashColumns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var root Dir
	err := s.WithTx(ctx, func(tx *Tx) error {
		var err error
		root, err = tx.InsertDir(Dir{Path: "/data"})
		return err
	})
	require.NoError(t, err)

	var f File
	err = s.WithTx(ctx, func(tx *Tx) error {
		var err error
		f, err = tx.InsertFile(File{Path: "/data/a.txt", Size: 10, ParentDir: root.ID})
		return err
	})
	require.NoError(t, err)
	assert.Nil(t, f.PartialHash)
	assert.Nil(t, f.CompleteHash)
	assert.Nil(t, f.DuplicateID)

	partial := "abc123"
	err = s.WithTx(ctx, func(tx *Tx) error {
		u := &FileUpdate{}
		require.NoError(t, u.SetPartialHash(&partial))
		updated, err := tx.UpdateFile(f.ID, u)
		if err != nil {
			return err
		}
		f = updated
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, f.PartialHash)
	assert.Equal(t, partial, *f.PartialHash)
}

func TestDirUpdate_StagingSameFieldTwiceIsAnError(t *testing.T) {
	hashA := "aaa"
	hashB := "bbb"
	u := &DirUpdate{}
	require.NoError(t, u.SetHash(&hashA))
	err := u.SetHash(&hashB)
	require.Error(t, err)
	var dupErr *DuplicateAddError
	assert.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "hash", dupErr.Field)
}

func TestStore_GetChildrenByDFSOrdersDepthFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var root, a, aa, b Dir
	err := s.WithTx(ctx, func(tx *Tx) error {
		var err error
		if root, err = tx.InsertDir(Dir{Path: "/r"}); err != nil {
			return err
		}
		if a, err = tx.InsertDir(Dir{Path: "/r/a", ParentDir: &root.ID}); err != nil {
			return err
		}
		if aa, err = tx.InsertDir(Dir{Path: "/r/a/aa", ParentDir: &a.ID}); err != nil {
			return err
		}
		if b, err = tx.InsertDir(Dir{Path: "/r/b", ParentDir: &root.ID}); err != nil {
			return err
		}
		return nil
	})
	require.NoError(t, err)

	var subtree []Dir
	err = s.WithTx(ctx, func(tx *Tx) error {
		var err error
		subtree, err = tx.GetChildrenByDFS(root.ID)
		return err
	})
	require.NoError(t, err)

	var ids []int64
	for _, d := range subtree {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []int64{root.ID, a.ID, aa.ID, b.ID}, ids)
}

func TestStore_DuplicateLifecycleInsertAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var dup Duplicate
	err := s.WithTx(ctx, func(tx *Tx) error {
		var err error
		dup, err = tx.InsertDuplicate(DuplicateTypeFile)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, DuplicateTypeFile, dup.Type)

	err = s.WithTx(ctx, func(tx *Tx) error {
		return tx.DeleteDuplicate(dup.ID)
	})
	require.NoError(t, err)
}
