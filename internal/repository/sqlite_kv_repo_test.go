package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"contract-ledger/internal/database"
	"contract-ledger/internal/storage"
)

func TestSQLiteKVRepository(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "state", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewSQLiteKVRepository(db)
	var _ storage.Store = repo

	_, err = repo.Load(ctx, "deleted:nodes")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, repo.Save(ctx, "deleted:nodes", []byte(`{}`)))
	require.NoError(t, repo.Save(ctx, "deleted:nodes", []byte(`{"a":{}}`)))

	value, err := repo.Load(ctx, "deleted:nodes")
	require.NoError(t, err)
	require.JSONEq(t, `{"a":{}}`, string(value))

	require.NoError(t, repo.Delete(ctx, "deleted:nodes"))
	_, err = repo.Load(ctx, "deleted:nodes")
	require.ErrorIs(t, err, storage.ErrNotFound)
}
