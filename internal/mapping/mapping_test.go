package mapping

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMapping(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileIsFatal(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoad_InvalidJSON(t *testing.T) {
	_, err := Load(writeMapping(t, "{not json"))
	assert.Error(t, err)
}

func TestLoad_MissingSectionsDefaultEmpty(t *testing.T) {
	cfg, err := Load(writeMapping(t, `{"bank_mapping": {"sber": ["http://sber/1"]}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"http://sber/1"}, cfg.BankLinks("sber"))
	assert.Empty(t, cfg.ProductLinks("credits"))
	assert.Empty(t, cfg.CriterionLinks("rate"))
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
bank_mapping:
  sber:
    - http://sber/1
criteria_mapping:
  rate:
    - http://agg/rates
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://sber/1"}, cfg.BankLinks("sber"))
	assert.Equal(t, []string{"http://agg/rates"}, cfg.CriterionLinks("rate"))
}

func TestGenerateTasks(t *testing.T) {
	cfg, err := Load(writeMapping(t, `{
		"bank_mapping": {"sber": ["http://sber/rates"], "alfa": ["http://alfa/rates"]},
		"product_mapping": {"credits": ["http://agg/credits"]},
		"criteria_mapping": {"rate": ["http://agg/rates", "http://sber/rates"]}
	}`))
	require.NoError(t, err)

	tasks := cfg.GenerateTasks([]string{"sber", "alfa"}, "credits", []string{"rate"})
	require.Len(t, tasks, 2)

	sber := tasks[0]
	assert.Equal(t, "sber", sber.Competitor)
	assert.Equal(t, "credits", sber.Product)
	assert.Equal(t, "rate", sber.Criterion)
	// Union without duplicates, sorted.
	assert.Equal(t, []string{"http://agg/credits", "http://agg/rates", "http://sber/rates"}, sber.URLs)
	assert.False(t, sber.GeneratedAt.IsZero())

	alfa := tasks[1]
	assert.Equal(t, "alfa", alfa.Competitor)
	assert.Len(t, alfa.URLs, 4)
}

func TestGenerateTasks_SkipsPairsWithoutURLs(t *testing.T) {
	cfg := &Config{
		BankMapping:     map[string][]string{"sber": {"http://sber/1"}},
		ProductMapping:  map[string][]string{},
		CriteriaMapping: map[string][]string{},
	}

	tasks := cfg.GenerateTasks([]string{"sber", "unknown"}, "credits", []string{"rate"})
	require.Len(t, tasks, 1)
	assert.Equal(t, "sber", tasks[0].Competitor)
}
