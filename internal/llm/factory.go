package llm

import (
	"fmt"
	"strings"

	"github.com/qeforge/knowledgehub/internal/config"
)

// NewFromConfig constructs the configured completer.
func NewFromConfig(cfg *config.Config) (Completer, error) {
	switch strings.ToLower(cfg.LLM.Provider) {
	case "ollama":
		return NewOllamaCompleter(OllamaConfig{
			Host:    cfg.LLM.OllamaHost,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLMTimeout(),
		})
	case "openai":
		return NewOpenAICompleter(OpenAIConfig{
			APIKey:  cfg.LLMAPIKey(),
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLMTimeout(),
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}
