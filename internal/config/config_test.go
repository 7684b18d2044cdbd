package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, filepath.Join("data", "requirements"), cfg.Paths.DataDir)
	assert.Equal(t, ".knowledgehub", cfg.Paths.CacheDir)
	assert.Equal(t, 500, cfg.Retrieval.ChunkSize)
	assert.Equal(t, 100, cfg.Retrieval.ChunkOverlap)
	assert.Equal(t, 20, cfg.Retrieval.TopK)
	assert.Equal(t, 5, cfg.Retrieval.QueryVariants)
	assert.Equal(t, 5, cfg.Retrieval.VariantResults)
	assert.Equal(t, 15000, cfg.Retrieval.SummaryMaxChars)
	assert.False(t, cfg.Retrieval.DisableSummaries)
	assert.Equal(t, "openai", cfg.Embeddings.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)

	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Retrieval.ChunkSize)
	assert.Equal(t, "openai", cfg.LLM.Provider)
}

func TestLoadMergesProjectConfig(t *testing.T) {
	dir := t.TempDir()
	content := `version: 1
paths:
  data_dir: docs/specs
retrieval:
  chunk_size: 800
  top_k: 10
llm:
  provider: ollama
  model: llama3.2
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "docs/specs", cfg.Paths.DataDir)
	assert.Equal(t, 800, cfg.Retrieval.ChunkSize)
	assert.Equal(t, 10, cfg.Retrieval.TopK)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "llama3.2", cfg.LLM.Model)
	// Untouched keys keep defaults
	assert.Equal(t, 100, cfg.Retrieval.ChunkOverlap)
	assert.Equal(t, ".knowledgehub", cfg.Paths.CacheDir)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("{{not yaml"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestEnvOverridesTakePrecedence(t *testing.T) {
	dir := t.TempDir()
	content := `retrieval:
  top_k: 10
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o644))

	t.Setenv("KNOWLEDGEHUB_TOP_K", "7")
	t.Setenv("KNOWLEDGEHUB_DATA_DIR", "/tmp/elsewhere")
	t.Setenv("KNOWLEDGEHUB_LLM_PROVIDER", "ollama")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Retrieval.TopK)
	assert.Equal(t, "/tmp/elsewhere", cfg.Paths.DataDir)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chunk size", func(c *Config) { c.Retrieval.ChunkSize = 0 }},
		{"negative overlap", func(c *Config) { c.Retrieval.ChunkOverlap = -1 }},
		{"overlap >= chunk size", func(c *Config) { c.Retrieval.ChunkOverlap = 500 }},
		{"zero top_k", func(c *Config) { c.Retrieval.TopK = 0 }},
		{"zero variant results", func(c *Config) { c.Retrieval.VariantResults = 0 }},
		{"unknown embedder", func(c *Config) { c.Embeddings.Provider = "cohere" }},
		{"unknown llm", func(c *Config) { c.LLM.Provider = "anthropic" }},
		{"bad timeout", func(c *Config) { c.LLM.Timeout = "soon" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLLMTimeout(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, 60*time.Second, cfg.LLMTimeout())

	cfg.LLM.Timeout = "90s"
	assert.Equal(t, 90*time.Second, cfg.LLMTimeout())
}

func TestAPIKeysResolveFromEnv(t *testing.T) {
	cfg := NewConfig()
	cfg.Embeddings.APIKeyEnv = "TEST_EMBED_KEY"
	cfg.LLM.APIKeyEnv = "TEST_LLM_KEY"

	t.Setenv("TEST_EMBED_KEY", "ek-123")
	t.Setenv("TEST_LLM_KEY", "lk-456")

	assert.Equal(t, "ek-123", cfg.EmbeddingAPIKey())
	assert.Equal(t, "lk-456", cfg.LLMAPIKey())
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.Retrieval.TopK = 12

	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 12, loaded.Retrieval.TopK)
}
