package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/qeforge/knowledgehub/internal/config"
)

// NewFromConfig constructs the configured embedder wrapped in an LRU cache.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Embedder, error) {
	var (
		inner Embedder
		err   error
	)

	switch strings.ToLower(cfg.Embeddings.Provider) {
	case "static":
		inner = NewStaticEmbedder()
	case "ollama":
		inner, err = NewOllamaEmbedder(ctx, OllamaConfig{
			Host:       cfg.Embeddings.OllamaHost,
			Model:      cfg.Embeddings.Model,
			Dimensions: cfg.Embeddings.Dimensions,
			BatchSize:  cfg.Embeddings.BatchSize,
		}, logger)
	case "openai":
		inner, err = NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     cfg.EmbeddingAPIKey(),
			Model:      cfg.Embeddings.Model,
			Dimensions: cfg.Embeddings.Dimensions,
			BatchSize:  cfg.Embeddings.BatchSize,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embeddings.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewCachedEmbedder(inner, cfg.Embeddings.CacheSize), nil
}
