package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/goretrieve/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "goretrieve.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	retrieval, err := cfg.RetrievalDefaults()
	require.NoError(t, err)
	assert.Equal(t, types.DefaultConfig(), retrieval)
	assert.Equal(t, "local", cfg.Embedder.Provider)
}

func TestLoad_ParsesFile(t *testing.T) {
	path := writeConfig(t, `
retrieval:
  vector_weight: 0.7
  bm25_weight: 0.3
  top_k: 20
  normalization: z_score
  mode: hybrid
  allow_degraded: true
cache:
  enabled: true
  capacity: 500
  ttl: 30m
embedder:
  provider: openai
  model: text-embedding-3-small
  api_key_env: TEST_EMBED_KEY
storage:
  sqlite_path: /var/lib/goretrieve/index.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.7, cfg.Retrieval.VectorWeight)
	assert.Equal(t, 20, cfg.Retrieval.TopK)
	assert.True(t, cfg.Retrieval.AllowDegraded)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL.Std())
	assert.Equal(t, "openai", cfg.Embedder.Provider)
	assert.Equal(t, "/var/lib/goretrieve/index.db", cfg.Storage.SQLitePath)

	retrieval, err := cfg.RetrievalDefaults()
	require.NoError(t, err)
	assert.Equal(t, types.NormZScore, retrieval.Normalization)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
retrieval:
  top_k: 25
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Retrieval.TopK)
	assert.Equal(t, 0.6, cfg.Retrieval.VectorWeight, "unset fields keep defaults")
	assert.Equal(t, "local", cfg.Embedder.Provider)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "retrieval: [not a map")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"negative weight", "retrieval:\n  vector_weight: -0.5\n"},
		{"zero top_k", "retrieval:\n  top_k: -3\n"},
		{"unknown normalization", "retrieval:\n  normalization: sigmoid\n"},
		{"unknown mode", "retrieval:\n  mode: psychic\n"},
		{"enabled cache without capacity", "cache:\n  enabled: true\n  capacity: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.ErrorIs(t, err, types.ErrInvalidConfig)
		})
	}
}

func TestDuration(t *testing.T) {
	cfg, err := Load(writeConfig(t, "cache:\n  enabled: true\n  capacity: 10\n  ttl: 90\n"))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL.Std(), "bare numbers are seconds")

	cfg, err = Load(writeConfig(t, "cache:\n  ttl: 1h30m\n"))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, cfg.Cache.TTL.Std())

	_, err = Load(writeConfig(t, "cache:\n  ttl: soon\n"))
	assert.Error(t, err)
}

func TestEmbedderAPIKey(t *testing.T) {
	cfg := Default()
	assert.Empty(t, cfg.EmbedderAPIKey())

	cfg.Embedder.APIKeyEnv = "TEST_EMBED_KEY"
	t.Setenv("TEST_EMBED_KEY", "secret")
	assert.Equal(t, "secret", cfg.EmbedderAPIKey())
}
