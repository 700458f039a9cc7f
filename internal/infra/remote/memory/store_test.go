package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voltschool/internal/remote/core"
)

func TestMemoryStoreCopiesData(t *testing.T) {
	ctx := context.Background()
	s := New()
	payload := []byte(`[1]`)
	require.NoError(t, s.Upsert(ctx, "students", core.LatestRecordID, payload))
	payload[1] = '2'
	got, err := s.Select(ctx, "students", core.LatestRecordID)
	require.NoError(t, err)
	assert.Equal(t, `[1]`, string(got))

	got[1] = '3'
	again, _ := s.Select(ctx, "students", core.LatestRecordID)
	assert.Equal(t, `[1]`, string(again))

	require.NoError(t, s.Delete(ctx, "students", core.LatestRecordID))
	_, err = s.Select(ctx, "students", core.LatestRecordID)
	require.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, []string{"upsert students", "select students", "select students", "delete students", "select students"}, s.Ops())
}

func TestMemoryStoreBoundsOpLog(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Upsert(ctx, "buses", core.LatestRecordID, []byte(`[]`)))
	for i := 0; i < maxOps+10; i++ {
		_, err := s.Select(ctx, "buses", core.LatestRecordID)
		require.NoError(t, err)
	}
	require.NoError(t, s.Delete(ctx, "buses", core.LatestRecordID))

	ops := s.Ops()
	require.Len(t, ops, maxOps)
	assert.Equal(t, "select buses", ops[0], "oldest entries are dropped first")
	assert.Equal(t, "delete buses", ops[maxOps-1])
}
