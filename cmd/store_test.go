package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/benchmark-cli/internal/config"
)

func TestInitStore_SQLite(t *testing.T) {
	tmpDir := t.TempDir()
	dsn := filepath.Join(tmpDir, "test.db")

	cfg = &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: dsn,
		},
	}

	st, err := initStore(context.Background())
	require.NoError(t, err)
	require.NotNil(t, st)
	defer st.Close() //nolint:errcheck
}

func TestInitStore_SQLiteDefaultDSN(t *testing.T) {
	// When DatabaseURL is empty, initStore should default to "benchmark.db".
	tmpDir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer os.Chdir(origDir) //nolint:errcheck

	cfg = &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: "",
		},
	}

	st, err := initStore(context.Background())
	require.NoError(t, err)
	require.NotNil(t, st)
	defer st.Close() //nolint:errcheck

	_, statErr := os.Stat(filepath.Join(tmpDir, "benchmark.db"))
	assert.NoError(t, statErr)
}

func TestInitStore_UnsupportedDriver(t *testing.T) {
	cfg = &config.Config{
		Store: config.StoreConfig{Driver: "oracle"},
	}

	st, err := initStore(context.Background())
	require.Error(t, err)
	assert.Nil(t, st)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestRunSeed(t *testing.T) {
	ctx := context.Background()

	cfg = &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(t.TempDir(), "seed.db"),
		},
	}

	st, err := openStore(ctx)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	require.NoError(t, runSeed(ctx, st))
	// Seeding again updates in place.
	require.NoError(t, runSeed(ctx, st))

	counts, err := st.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(seedBanks)), counts.Banks)
	assert.Equal(t, int64(len(seedProducts)), counts.Products)
	assert.Equal(t, int64(len(seedCriteria)), counts.Criteria)
	assert.Equal(t, int64(len(seedSources)), counts.Sources)

	banks, err := st.ListBanks(ctx)
	require.NoError(t, err)
	names := make(map[string]string)
	for _, b := range banks {
		names[b.ID] = b.Name
	}
	assert.Equal(t, "Sberbank", names["sber"])
	assert.Equal(t, "Alfa-Bank", names["alfa"])
}
