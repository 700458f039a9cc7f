package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voltschool/internal/remote/core"
)

func TestSQLiteUpsertSelectDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(filepath.Join(t.TempDir(), "remote.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	assert.Equal(t, core.DriverSQLite, store.Driver())

	_, err = store.Select(ctx, "students", core.LatestRecordID)
	require.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, store.Upsert(ctx, "students", core.LatestRecordID, []byte(`[{"id":"S1001"}]`)))
	require.NoError(t, store.Upsert(ctx, "students", core.LatestRecordID, []byte(`[]`)))
	data, err := store.Select(ctx, "students", core.LatestRecordID)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))

	var rows int
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(*) FROM students`).Scan(&rows))
	assert.Equal(t, 1, rows, "upsert must keep a single row per collection")

	require.NoError(t, store.Delete(ctx, "students", core.LatestRecordID))
	_, err = store.Select(ctx, "students", core.LatestRecordID)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "remote.db")
	store, err := NewStore(path)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	require.NoError(t, store.Upsert(ctx, "buses", core.LatestRecordID, []byte(`[{"id":"B-101"}]`)))
	require.NoError(t, store.Close())

	reopened, err := NewStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	assert.Equal(t, path, reopened.Path())
	data, err := reopened.Select(ctx, "buses", core.LatestRecordID)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"B-101"}]`, string(data))
}

func TestSQLiteRejectsUnsafeCollection(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "remote.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	err = store.Upsert(context.Background(), "students; DROP TABLE buses", core.LatestRecordID, []byte(`[]`))
	require.Error(t, err)
}
