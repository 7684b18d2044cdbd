// Package llm provides text completion for query expansion, document
// summarization, and answer synthesis.
package llm

import "context"

// Completer produces a single text completion for a prompt.
type Completer interface {
	// Complete generates a completion. The system prompt may be empty.
	Complete(ctx context.Context, prompt, system string) (string, error)

	// ModelName returns the model identifier.
	ModelName() string

	// Available checks if the backend is reachable.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}
