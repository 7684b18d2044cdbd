// Package summarize produces classified per-document summaries for the
// summary index layer.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/qeforge/knowledgehub/internal/docs"
	"github.com/qeforge/knowledgehub/internal/llm"
	"github.com/qeforge/knowledgehub/internal/store"
)

// DefaultMaxChars bounds the document prefix sent to the model.
const DefaultMaxChars = 15000

const summaryPromptTemplate = `Analyze the following requirement document and:
1. Classify it as either 'Authoritative Spec' (if it contains technical details, API endpoints, error codes, or exact business rules) or 'Narrative' (if it is a high-level overview, user story description, or general context).
2. Generate a concise but comprehensive summary.

Document Content Start:
%s
Document Content End

Provide the output in the following format:
TYPE: [Authoritative Spec / Narrative]
SUMMARY: [Your summary here]`

// Summarizer generates summary-layer segments from documents.
type Summarizer struct {
	completer llm.Completer
	maxChars  int
}

// New creates a summarizer. maxChars <= 0 selects the default truncation.
func New(completer llm.Completer, maxChars int) *Summarizer {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Summarizer{completer: completer, maxChars: maxChars}
}

// Summarize classifies and summarizes one document. The document text is
// truncated to the configured limit before prompting.
func (s *Summarizer) Summarize(ctx context.Context, doc docs.Document) (store.Segment, error) {
	content := doc.Text
	if runes := []rune(content); len(runes) > s.maxChars {
		content = string(runes[:s.maxChars])
	}

	response, err := s.completer.Complete(ctx, fmt.Sprintf(summaryPromptTemplate, content), "")
	if err != nil {
		return store.Segment{}, fmt.Errorf("summarizing %s: %w", doc.Source, err)
	}

	summary, class := parseSummaryResponse(response)
	if strings.TrimSpace(summary) == "" {
		return store.Segment{}, fmt.Errorf("summarizing %s: empty summary returned", doc.Source)
	}

	text := fmt.Sprintf("Summary of %s: %s", doc.Source, summary)
	return store.Segment{
		ID:       store.SegmentID(text),
		Source:   doc.Source,
		FileType: doc.FileType,
		Layer:    store.LayerSummary,
		DocClass: class,
		Text:     text,
	}, nil
}

// parseSummaryResponse extracts the summary and classification from the
// structured model output. Unparseable responses fall back to narrative
// with the raw text as the summary.
func parseSummaryResponse(response string) (string, store.DocClass) {
	class := store.ClassNarrative
	if strings.Contains(response, "TYPE: Authoritative Spec") {
		class = store.ClassSpec
	}

	summary := response
	if idx := strings.LastIndex(response, "SUMMARY:"); idx >= 0 {
		summary = response[idx+len("SUMMARY:"):]
	}

	return strings.TrimSpace(summary), class
}
