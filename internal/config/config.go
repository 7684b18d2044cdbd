// Package config loads and validates knowledge hub configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the per-project configuration file.
const ConfigFileName = ".knowledgehub.yaml"

// Config represents the complete knowledge hub configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" json:"retrieval"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	LLM        LLMConfig        `yaml:"llm" json:"llm"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// PathsConfig configures where documents live and where cache state goes.
type PathsConfig struct {
	// DataDir is the directory of requirement documents.
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// CacheDir holds the cache record file and the vector index directories.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
}

// RetrievalConfig configures chunking and retrieval parameters.
type RetrievalConfig struct {
	// ChunkSize is the maximum chunk length in characters.
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`
	// ChunkOverlap is the overlap between consecutive chunks in characters.
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`
	// TopK bounds the merged, deduplicated result set.
	TopK int `yaml:"top_k" json:"top_k"`
	// QueryVariants is how many query rephrasings the expander asks for.
	QueryVariants int `yaml:"query_variants" json:"query_variants"`
	// VariantResults is the per-variant similarity search result count.
	VariantResults int `yaml:"variant_results" json:"variant_results"`
	// SummaryMaxChars bounds the document prefix sent to summarization.
	SummaryMaxChars int `yaml:"summary_max_chars" json:"summary_max_chars"`
	// DisableSummaries turns off the per-document summary layer.
	DisableSummaries bool `yaml:"disable_summaries" json:"disable_summaries"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "openai", "ollama", or "static".
	Provider string `yaml:"provider" json:"provider"`
	Model    string `yaml:"model" json:"model"`
	// Dimensions is 0 for auto-detection from the provider.
	Dimensions int `yaml:"dimensions" json:"dimensions"`
	BatchSize  int `yaml:"batch_size" json:"batch_size"`
	// APIKeyEnv names the environment variable holding the API key.
	// The key itself is never stored in configuration files.
	APIKeyEnv string `yaml:"api_key_env" json:"api_key_env"`
	// OllamaHost is the Ollama API endpoint (default: http://localhost:11434).
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	// CacheSize is the LRU embedding cache capacity (entries).
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// LLMConfig configures the completion provider used for query expansion,
// document summarization, and synthesis.
type LLMConfig struct {
	// Provider is "openai" or "ollama".
	Provider  string `yaml:"provider" json:"provider"`
	Model     string `yaml:"model" json:"model"`
	APIKeyEnv string `yaml:"api_key_env" json:"api_key_env"`
	// OllamaHost is the Ollama API endpoint (default: http://localhost:11434).
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	// Timeout is the per-call timeout (e.g. "60s").
	Timeout string `yaml:"timeout" json:"timeout"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir:  filepath.Join("data", "requirements"),
			CacheDir: ".knowledgehub",
		},
		Retrieval: RetrievalConfig{
			ChunkSize:       500,
			ChunkOverlap:    100,
			TopK:            20,
			QueryVariants:   5,
			VariantResults:  5,
			SummaryMaxChars: 15000,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "openai",
			Model:      "text-embedding-3-large",
			Dimensions: 0, // Auto-detect from embedder
			BatchSize:  32,
			APIKeyEnv:  "OPENAI_API_KEY",
			OllamaHost: "",
			CacheSize:  1000,
		},
		LLM: LLMConfig{
			Provider:   "openai",
			Model:      "gpt-4o-mini",
			APIKeyEnv:  "OPENAI_API_KEY",
			OllamaHost: "",
			Timeout:    "60s",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the specified directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. Project config (.knowledgehub.yaml in dir)
//  3. Environment variables (KNOWLEDGEHUB_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .knowledgehub.yaml.
func (c *Config) loadFromFile(dir string) error {
	path := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(path); err != nil {
		// No config file is fine - use defaults
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Paths.DataDir != "" {
		c.Paths.DataDir = other.Paths.DataDir
	}
	if other.Paths.CacheDir != "" {
		c.Paths.CacheDir = other.Paths.CacheDir
	}

	if other.Retrieval.ChunkSize != 0 {
		c.Retrieval.ChunkSize = other.Retrieval.ChunkSize
	}
	if other.Retrieval.ChunkOverlap != 0 {
		c.Retrieval.ChunkOverlap = other.Retrieval.ChunkOverlap
	}
	if other.Retrieval.TopK != 0 {
		c.Retrieval.TopK = other.Retrieval.TopK
	}
	if other.Retrieval.QueryVariants != 0 {
		c.Retrieval.QueryVariants = other.Retrieval.QueryVariants
	}
	if other.Retrieval.VariantResults != 0 {
		c.Retrieval.VariantResults = other.Retrieval.VariantResults
	}
	if other.Retrieval.SummaryMaxChars != 0 {
		c.Retrieval.SummaryMaxChars = other.Retrieval.SummaryMaxChars
	}
	if other.Retrieval.DisableSummaries {
		c.Retrieval.DisableSummaries = true
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.APIKeyEnv != "" {
		c.Embeddings.APIKeyEnv = other.Embeddings.APIKeyEnv
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	if other.LLM.Provider != "" {
		c.LLM.Provider = other.LLM.Provider
	}
	if other.LLM.Model != "" {
		c.LLM.Model = other.LLM.Model
	}
	if other.LLM.APIKeyEnv != "" {
		c.LLM.APIKeyEnv = other.LLM.APIKeyEnv
	}
	if other.LLM.OllamaHost != "" {
		c.LLM.OllamaHost = other.LLM.OllamaHost
	}
	if other.LLM.Timeout != "" {
		c.LLM.Timeout = other.LLM.Timeout
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
}

// applyEnvOverrides applies KNOWLEDGEHUB_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("KNOWLEDGEHUB_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("KNOWLEDGEHUB_CACHE_DIR"); v != "" {
		c.Paths.CacheDir = v
	}
	if v := os.Getenv("KNOWLEDGEHUB_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Retrieval.TopK = k
		}
	}
	if v := os.Getenv("KNOWLEDGEHUB_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("KNOWLEDGEHUB_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("KNOWLEDGEHUB_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("KNOWLEDGEHUB_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("KNOWLEDGEHUB_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
		c.LLM.OllamaHost = v
	}
	if v := os.Getenv("KNOWLEDGEHUB_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Retrieval.ChunkSize <= 0 {
		return fmt.Errorf("retrieval.chunk_size must be positive, got %d", c.Retrieval.ChunkSize)
	}
	if c.Retrieval.ChunkOverlap < 0 {
		return fmt.Errorf("retrieval.chunk_overlap must be non-negative, got %d", c.Retrieval.ChunkOverlap)
	}
	if c.Retrieval.ChunkOverlap >= c.Retrieval.ChunkSize {
		return fmt.Errorf("retrieval.chunk_overlap (%d) must be smaller than chunk_size (%d)",
			c.Retrieval.ChunkOverlap, c.Retrieval.ChunkSize)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.VariantResults <= 0 {
		return fmt.Errorf("retrieval.variant_results must be positive, got %d", c.Retrieval.VariantResults)
	}

	validEmbedders := map[string]bool{"openai": true, "ollama": true, "static": true}
	if !validEmbedders[strings.ToLower(c.Embeddings.Provider)] {
		return fmt.Errorf("embeddings.provider must be 'openai', 'ollama', or 'static', got %s",
			c.Embeddings.Provider)
	}

	validLLMs := map[string]bool{"openai": true, "ollama": true}
	if !validLLMs[strings.ToLower(c.LLM.Provider)] {
		return fmt.Errorf("llm.provider must be 'openai' or 'ollama', got %s", c.LLM.Provider)
	}

	if _, err := time.ParseDuration(c.LLM.Timeout); err != nil {
		return fmt.Errorf("llm.timeout is not a valid duration: %q", c.LLM.Timeout)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s",
			c.Logging.Level)
	}

	return nil
}

// LLMTimeout returns the parsed completion timeout.
func (c *Config) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// EmbeddingAPIKey resolves the embedding API key from the environment.
func (c *Config) EmbeddingAPIKey() string {
	return os.Getenv(c.Embeddings.APIKeyEnv)
}

// LLMAPIKey resolves the completion API key from the environment.
func (c *Config) LLMAPIKey() string {
	return os.Getenv(c.LLM.APIKeyEnv)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
