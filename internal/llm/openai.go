package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	hugerr "github.com/qeforge/knowledgehub/internal/errors"
)

// OpenAIConfig configures the OpenAI completer.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// OpenAICompleter generates completions via the OpenAI chat API.
type OpenAICompleter struct {
	client    *http.Client
	transport *http.Transport
	config    OpenAIConfig

	mu     sync.Mutex
	closed bool
}

var _ Completer = (*OpenAICompleter)(nil)

// NewOpenAICompleter creates an OpenAI-backed completer.
func NewOpenAICompleter(cfg OpenAIConfig) (*OpenAICompleter, error) {
	if cfg.APIKey == "" {
		return nil, hugerr.New(hugerr.ErrCodeMissingAPIKey, "OpenAI API key is not set", "")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:    4,
		IdleConnTimeout: 30 * time.Second,
	}

	return &OpenAICompleter{
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
	}, nil
}

// Complete generates a single chat completion.
func (c *OpenAICompleter) Complete(ctx context.Context, prompt, system string) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", fmt.Errorf("completer is closed")
	}
	c.mu.Unlock()

	var messages []chatMessage
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(chatRequest{Model: c.config.Model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost,
		c.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", hugerr.CompletionError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", hugerr.CompletionError(
			fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err))
	}

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("completion failed with status %d", resp.StatusCode)
		if result.Error != nil {
			msg += ": " + result.Error.Message
		}
		return "", hugerr.CompletionError(fmt.Errorf("%s", msg))
	}

	if len(result.Choices) == 0 {
		return "", hugerr.CompletionError(fmt.Errorf("no choices returned"))
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

// ModelName returns the model identifier.
func (c *OpenAICompleter) ModelName() string {
	return c.config.Model
}

// Available reports readiness. The key was validated at construction;
// no probe request is made.
func (c *OpenAICompleter) Available(_ context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Close releases HTTP resources.
func (c *OpenAICompleter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.transport.CloseIdleConnections()
	return nil
}
