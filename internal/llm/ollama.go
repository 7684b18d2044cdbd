package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	hugerr "github.com/qeforge/knowledgehub/internal/errors"
)

// DefaultOllamaHost is the default Ollama API endpoint.
const DefaultOllamaHost = "http://localhost:11434"

// OllamaConfig configures the Ollama completer.
type OllamaConfig struct {
	Host    string
	Model   string
	Timeout time.Duration
}

// generateRequest is the Ollama /api/generate request body.
type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

// generateResponse is the Ollama /api/generate response body.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// OllamaCompleter generates completions via Ollama's HTTP API.
type OllamaCompleter struct {
	client    *http.Client
	transport *http.Transport
	config    OllamaConfig

	mu     sync.Mutex
	closed bool
}

var _ Completer = (*OllamaCompleter)(nil)

// NewOllamaCompleter creates an Ollama-backed completer.
func NewOllamaCompleter(cfg OllamaConfig) (*OllamaCompleter, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Model == "" {
		return nil, hugerr.ConfigError("ollama completion model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:    4,
		IdleConnTimeout: 10 * time.Second,
	}

	return &OllamaCompleter{
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
	}, nil
}

// Complete generates a single non-streaming completion.
func (c *OllamaCompleter) Complete(ctx context.Context, prompt, system string) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", fmt.Errorf("completer is closed")
	}
	c.mu.Unlock()

	body, err := json.Marshal(generateRequest{
		Model:  c.config.Model,
		Prompt: prompt,
		System: system,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost,
		c.config.Host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", hugerr.CompletionError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", hugerr.CompletionError(
			fmt.Errorf("completion failed with status %d: %s", resp.StatusCode, string(respBody)))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", hugerr.CompletionError(fmt.Errorf("decoding response: %w", err))
	}

	return strings.TrimSpace(result.Response), nil
}

// ModelName returns the model identifier.
func (c *OllamaCompleter) ModelName() string {
	return c.config.Model
}

// Available probes the Ollama server.
func (c *OllamaCompleter) Available(ctx context.Context) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.mu.Unlock()

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.config.Host+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}

// Close releases HTTP resources.
func (c *OllamaCompleter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.transport.CloseIdleConnections()
	return nil
}
