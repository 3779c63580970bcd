package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"seed", "ingest", "analyze", "recommend", "export", "cleanup", "status", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "benchmark-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestIngestCommand_RequiredFlags(t *testing.T) {
	flag := ingestCmd.Flags().Lookup("product")
	require.NotNil(t, flag, "ingest command should have --product flag")

	noteFlag := ingestCmd.Flags().Lookup("note")
	require.NotNil(t, noteFlag, "ingest command should have --note flag")
}

func TestAnalyzeCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"bank", "product", "criterion", "url"} {
		flag := analyzeCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "analyze should have --%s flag", flagName)
	}
}

func TestRecommendCommand_Flags(t *testing.T) {
	flag := recommendCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "recommend command should have --limit flag")
	assert.Equal(t, "5", flag.DefValue)

	listFlag := recommendCmd.Flags().Lookup("list")
	require.NotNil(t, listFlag, "recommend command should have --list flag")
}

func TestExportCommand_Flags(t *testing.T) {
	flag := exportCmd.Flags().Lookup("output")
	require.NotNil(t, flag, "export command should have --output flag")
	assert.Equal(t, "comparison.xlsx", flag.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestCleanupCommand_Flags(t *testing.T) {
	flag := cleanupCmd.Flags().Lookup("days")
	require.NotNil(t, flag, "cleanup command should have --days flag")
}
