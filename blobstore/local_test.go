package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	data := []byte("hello world, this is a point snapshot")

	w, err := store.Create(ctx, "points/a.rknn")
	require.NoError(t, err)
	n, err := w.Write(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("late"))
	assert.ErrorIs(t, err, ErrClosed)

	blob, err := store.Open(ctx, "points/a.rknn")
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 5)
	n, err = blob.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	assert.Equal(t, "world", string(buf))

	n, err = blob.ReadAt(ctx, buf, int64(len(data))-2)
	assert.Equal(t, 2, n)
	assert.Equal(t, io.EOF, err)

	rc, err := blob.ReadRange(ctx, 13, 4)
	require.NoError(t, err)
	part, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "this", string(part))
	require.NoError(t, blob.Close())

	require.NoError(t, store.Put(ctx, "points/b.rknn", []byte("b")))
	require.NoError(t, store.Put(ctx, "CURRENT", []byte("points/b.rknn")))

	names, err := store.List(ctx, "points/")
	require.NoError(t, err)
	assert.Equal(t, []string{"points/a.rknn", "points/b.rknn"}, names)

	all, err := ReadAll(ctx, store, "CURRENT")
	require.NoError(t, err)
	assert.Equal(t, "points/b.rknn", string(all))

	aborted, err := store.Create(ctx, "points/c.rknn")
	require.NoError(t, err)
	_, err = aborted.Write([]byte("discarded"))
	require.NoError(t, err)
	require.NoError(t, aborted.Abort())
	_, err = store.Open(ctx, "points/c.rknn")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Delete(ctx, "points/a.rknn"))
	require.NoError(t, store.Delete(ctx, "points/a.rknn"))
	_, err = store.Open(ctx, "points/a.rknn")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, "empty", nil))
	empty, err := ReadAll(ctx, store, "empty")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestLocalStore(t *testing.T) {
	dir := t.TempDir()
	exerciseStore(t, NewLocalStore(dir))

	entries, err := os.ReadDir(filepath.Join(dir, "points"))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-")
	}
}

func TestLocalStore_InvalidName(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	_, err := store.Open(ctx, "../escape")
	assert.Error(t, err)
	assert.Error(t, store.Put(ctx, "../escape", []byte("x")))
}

func TestLocalStore_ListMissingRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "missing"))
	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLocalStore_Canceled(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Create(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStore_PutCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	data := []byte("abc")
	require.NoError(t, store.Put(ctx, "x", data))
	data[0] = 'z'

	got, err := ReadAll(ctx, store, "x")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}
