package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"potrosnja/internal/config"
	"potrosnja/internal/core"
)

func TestCreateBackend_Memory(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(seed, []byte(`[
		{"id":"a","year":2024,"month":1,"householdState":100,"householdConsumption":0,
		 "carState":0,"carConsumption":0,"bojlerConsumption":0,"totalConsumption":0}
	]`), 0644))

	f := NewFactory(nil, core.DefaultYearRange)
	res, err := f.CreateBackend(context.Background(), Config{Type: MemoryBackend, SeedFile: seed})
	require.NoError(t, err)
	assert.Nil(t, res.Cache)
	assert.NoError(t, res.Close())

	records, err := res.Primary.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a", records[0].ID)
}

func TestCreateBackend_MemoryBadSeed(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(seed, []byte(`{not json`), 0644))

	_, err := NewFactory(nil, core.DefaultYearRange).CreateBackend(context.Background(), Config{Type: MemoryBackend, SeedFile: seed})
	assert.Error(t, err)
}

func TestCreateBackend_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "potrosnja.db")

	res, err := NewFactory(nil, core.DefaultYearRange).CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	require.NoError(t, err)
	defer res.Close()

	records := []core.Record{{ID: "x", Year: 2024, Month: 5, HouseholdState: 10}}
	require.NoError(t, res.Primary.Save(context.Background(), records))

	got, err := res.Primary.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestCreateBackend_InvalidConfig(t *testing.T) {
	f := NewFactory(nil, core.DefaultYearRange)

	_, err := f.CreateBackend(context.Background(), Config{Type: "postgres"})
	assert.Error(t, err)

	_, err = f.CreateBackend(context.Background(), Config{Type: SheetsBackend})
	assert.ErrorContains(t, err, "Spreadsheet ID")

	_, err = f.CreateBackend(context.Background(), Config{Type: SQLiteBackend})
	assert.ErrorContains(t, err, "database path")
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "nope"})
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:         "sheets",
		GoogleSpreadsheetID: "sheet-id",
		CacheDBPath:         "/tmp/cache.db",
	})
	require.NoError(t, err)
	assert.Equal(t, SheetsBackend, cfg.Type)
	assert.Equal(t, "sheet-id", cfg.GoogleSpreadsheetID)
	assert.Equal(t, "/tmp/cache.db", cfg.CacheDBPath)
}

func TestGetBackendTypeStrings(t *testing.T) {
	assert.Equal(t, []string{"memory", "sheets", "sqlite"}, GetBackendTypeStrings())
}
