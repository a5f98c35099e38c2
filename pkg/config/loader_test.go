package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeOnEmptyDirUsesDefaults(t *testing.T) {
	configDir := t.TempDir()

	cfg, err := Initialize(context.Background(), configDir)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "engram.db", cfg.Storage.SQLite.Path)
	assert.Equal(t, "8085", cfg.Server.HTTPPort)
	assert.NotNil(t, cfg.PolicyRegistry().GetDefault())
}

func TestInitializeMergesUserYAMLOverDefaults(t *testing.T) {
	configDir := t.TempDir()
	const yamlBody = `
server:
  http_port: "9999"
storage:
  backend: sqlite
  sqlite:
    path: ":memory:"
policies:
  lean:
    max_facts: 5
    max_tokens: 1000
`
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "engram.yaml"), []byte(yamlBody), 0o644))

	cfg, err := Initialize(context.Background(), configDir)
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.HTTPPort)
	assert.Equal(t, ":memory:", cfg.Storage.SQLite.Path)

	lean, err := cfg.PolicyRegistry().Get("lean")
	require.NoError(t, err)
	assert.Equal(t, 5, lean.MaxFacts)
	assert.EqualValues(t, 1000, lean.MaxTokens)
}

func TestInitializeRejectsUnknownBackend(t *testing.T) {
	configDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "engram.yaml"),
		[]byte("storage:\n  backend: mongodb\n"), 0o644))

	_, err := Initialize(context.Background(), configDir)
	require.Error(t, err)
}

func TestExpandEnvExpandsKnownVars(t *testing.T) {
	t.Setenv("ENGRAM_TEST_HOST", "db.internal")
	out := ExpandEnv([]byte("host: ${ENGRAM_TEST_HOST}"))
	assert.Equal(t, "host: db.internal", string(out))
}
