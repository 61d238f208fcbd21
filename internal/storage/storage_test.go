package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStoreBasicOperations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	root := t.TempDir()
	store, err := NewFileStore(root)
	require.NoError(t, err)

	_, err = store.Load(ctx, "deleted:head")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, "deleted:head", []byte(`"c-1"`)))
	data, err := store.Load(ctx, "deleted:head")
	require.NoError(t, err)
	require.Equal(t, `"c-1"`, string(data))

	require.NoError(t, store.Save(ctx, "deleted:head", []byte(`"c-2"`)))
	data, err = store.Load(ctx, "deleted:head")
	require.NoError(t, err)
	require.Equal(t, `"c-2"`, string(data))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")

	require.NoError(t, store.Delete(ctx, "deleted:head"))
	require.NoError(t, store.Delete(ctx, "deleted:head"))
	_, err = store.Load(ctx, "deleted:head")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()

	value := []byte("abc")
	require.NoError(t, store.Save(ctx, "k", value))
	value[0] = 'x'

	got, err := store.Load(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "abc", string(got))

	got[1] = 'y'
	again, err := store.Load(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "abc", string(again))
}

func TestFileStorePing(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store, err := NewFileStore(root)
	require.NoError(t, err)
	require.NoError(t, store.Ping(context.Background()))

	require.NoError(t, os.RemoveAll(root))
	require.Error(t, store.Ping(context.Background()))
}
