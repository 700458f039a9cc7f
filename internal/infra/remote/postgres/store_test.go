package postgres

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voltschool/internal/infra/remote/postgres/testutil"
	"voltschool/internal/remote/core"
)

func openStubStore(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)
	store, err := NewStore(context.Background(), "postgres://anon@db.example.test:5432/voltschool?sslmode=disable", "public-anon-key")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, conn
}

func TestPostgresUpsertSelectDelete(t *testing.T) {
	ctx := context.Background()
	store, conn := openStubStore(t)
	assert.Equal(t, core.DriverPostgres, store.Driver())

	_, err := store.Select(ctx, "students", core.LatestRecordID)
	require.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, store.Upsert(ctx, "students", core.LatestRecordID, []byte(`[{"id":"S1001"}]`)))
	require.NoError(t, store.Upsert(ctx, "students", core.LatestRecordID, []byte(`[{"id":"S1002"}]`)))
	assert.Len(t, conn.Docs("students"), 1, "conflicting upserts must overwrite the latest row")

	data, err := store.Select(ctx, "students", core.LatestRecordID)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"S1002"}]`, string(data))

	require.NoError(t, store.Delete(ctx, "students", core.LatestRecordID))
	assert.Empty(t, conn.Docs("students"))
}

func TestPostgresEnsuresTableOnce(t *testing.T) {
	ctx := context.Background()
	store, conn := openStubStore(t)
	require.NoError(t, store.Upsert(ctx, "buses", core.LatestRecordID, []byte(`[]`)))
	require.NoError(t, store.Upsert(ctx, "buses", core.LatestRecordID, []byte(`[]`)))
	var creates int
	for _, stmt := range conn.Execs {
		if strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS buses") {
			creates++
		}
	}
	assert.Equal(t, 1, creates)
	assert.True(t, conn.HasTable("buses"))
	assert.False(t, conn.HasTable("students"))
}

func TestPostgresExecFailure(t *testing.T) {
	store, conn := openStubStore(t)
	conn.FailTables = map[string]bool{"incidents": true}
	err := store.Upsert(context.Background(), "incidents", core.LatestRecordID, []byte(`[]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert incidents")

	_, err = store.Select(context.Background(), "incidents", core.LatestRecordID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrNotFound)
}

func TestPostgresPingFailure(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	_, err := NewStore(context.Background(), "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping postgres")
}

func TestPostgresRejectsMalformedDSN(t *testing.T) {
	_, err := NewStore(context.Background(), "postgres://%zz", "")
	require.Error(t, err)
}
