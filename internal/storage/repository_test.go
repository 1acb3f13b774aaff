package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"potrosnja/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "potrosnja.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository_SaveLoadKeepsOrder(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	empty, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	records := []core.Record{
		{ID: "mar", Year: 2024, Month: 3, HouseholdState: 210, HouseholdConsumption: 60, TotalConsumption: 60},
		{ID: "jan", Year: 2024, Month: 1, HouseholdState: 100, CarState: 10, BojlerConsumption: 1.5},
	}
	require.NoError(t, repo.Save(ctx, records))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, records, got)

	// replace, not append
	require.NoError(t, repo.Save(ctx, records[1:]))
	got, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, records[1:], got)
}

func TestSQLiteRepository_SaveRejectsDuplicatePeriod(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	require.NoError(t, repo.Save(ctx, []core.Record{{ID: "a", Year: 2024, Month: 1}}))

	err := repo.Save(ctx, []core.Record{
		{ID: "b", Year: 2024, Month: 2},
		{ID: "c", Year: 2024, Month: 2},
	})
	require.Error(t, err)

	// failed snapshot leaves the previous one in place
	got, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	state, err := repo.SyncState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), state.Version)
}

func TestSQLiteRepository_SyncState(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	state, err := repo.SyncState(ctx)
	require.NoError(t, err)
	assert.False(t, state.Pending())
	assert.True(t, state.LastSyncedAt.IsZero())

	v1, err := repo.SaveSnapshot(ctx, nil)
	require.NoError(t, err)
	v2, err := repo.SaveSnapshot(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, v1+1, v2)

	state, err = repo.SyncState(ctx)
	require.NoError(t, err)
	assert.True(t, state.Pending())
	assert.False(t, state.UpdatedAt.IsZero())

	require.NoError(t, repo.MarkSyncError(ctx, v2, errors.New("quota exceeded")))
	state, err = repo.SyncState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "quota exceeded", state.LastError)
	assert.Equal(t, int64(1), state.ErrorCount)

	require.NoError(t, repo.MarkSynced(ctx, v2))
	require.NoError(t, repo.MarkSynced(ctx, v1))
	state, err = repo.SyncState(ctx)
	require.NoError(t, err)
	assert.Equal(t, v2, state.SyncedVersion, "older version must not move the marker back")
	assert.False(t, state.Pending())
	assert.Empty(t, state.LastError)
	assert.Zero(t, state.ErrorCount)
	assert.False(t, state.LastSyncedAt.IsZero())
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	first, err := RunMigrations(path)
	require.NoError(t, err)
	second, err := RunMigrations(path)
	require.NoError(t, err)
	assert.Equal(t, uint(2), first)
	assert.Equal(t, first, second)
}
