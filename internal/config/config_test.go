package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "mock", cfg.Analyzer.Provider)
	assert.Equal(t, "v1", cfg.Analyzer.PromptVersion)
	assert.Equal(t, 2000, cfg.Analyzer.MaxInputRunes)
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.Equal(t, 15*time.Second, cfg.Fetch.Timeout())
	assert.Equal(t, 30*24*time.Hour, cfg.Retention.MaxAge())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "config.json", cfg.Mapping.Path)
	assert.NotEmpty(t, cfg.Fetch.UserAgent)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("BENCHMARK_ANALYZER_PROVIDER", "anthropic")
	t.Setenv("BENCHMARK_FETCH_MAX_RETRIES", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.Analyzer.Provider)
	assert.Equal(t, 5, cfg.Fetch.MaxRetries)
}

func TestInitLogger_RejectsBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	require.Error(t, err)
}
