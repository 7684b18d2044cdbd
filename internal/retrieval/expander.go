// Package retrieval implements multi-query retrieval over the segment
// index and requirement synthesis from the retrieved context.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/qeforge/knowledgehub/internal/llm"
)

const multiQueryPromptTemplate = `You are an AI language model assistant. Your task is to generate %d
different versions of the given user query to retrieve relevant documents from a vector
database. By generating multiple perspectives on the user query, your goal is to help
the user overcome some of the limitations of the distance-based similarity search.

Provide these alternative queries separated by newlines.
Original query: %s`

// Expander rephrases a query into multiple search variants.
type Expander struct {
	completer llm.Completer
	variants  int
	logger    *slog.Logger
}

// NewExpander creates an expander producing up to variants rephrasings.
func NewExpander(completer llm.Completer, variants int, logger *slog.Logger) *Expander {
	if variants <= 0 {
		variants = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Expander{completer: completer, variants: variants, logger: logger}
}

// Expand returns query variants with the original query always included.
// Expansion failure degrades to single-query retrieval rather than failing
// the request.
func (e *Expander) Expand(ctx context.Context, query string) []string {
	prompt := fmt.Sprintf(multiQueryPromptTemplate, e.variants, query)

	response, err := e.completer.Complete(ctx, prompt, "")
	if err != nil {
		e.logger.Warn("query expansion failed, using original query only", "error", err)
		return []string{query}
	}

	variants := parseVariants(response)
	if !contains(variants, query) {
		variants = append(variants, query)
	}

	e.logger.Debug("expanded query", "query", query, "variants", len(variants))
	return variants
}

// parseVariants splits the model output into clean, deduplicated queries.
// Leading list markers and numbering are stripped.
func parseVariants(response string) []string {
	seen := make(map[string]bool)
	var variants []string

	for _, line := range strings.Split(response, "\n") {
		v := stripListMarker(strings.TrimSpace(line))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		variants = append(variants, v)
	}

	return variants
}

// stripListMarker removes leading bullets and "1." / "1)" numbering.
func stripListMarker(s string) string {
	s = strings.TrimLeft(s, "-*• \t")

	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > 0 && i < len(s) && (s[i] == '.' || s[i] == ')') {
		s = s[i+1:]
	}

	return strings.TrimSpace(s)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
