package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qeforge/knowledgehub/internal/docs"
	"github.com/qeforge/knowledgehub/internal/store"
)

// stubCompleter returns a fixed response and records the last prompt.
type stubCompleter struct {
	response   string
	err        error
	lastPrompt string
}

func (s *stubCompleter) Complete(_ context.Context, prompt, _ string) (string, error) {
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubCompleter) ModelName() string { return "stub" }

func (s *stubCompleter) Available(_ context.Context) bool { return true }

func (s *stubCompleter) Close() error { return nil }

func testDoc(text string) docs.Document {
	return docs.Document{Source: "api_spec.md", FileType: "md", Text: text}
}

func TestSummarizeSpecClassification(t *testing.T) {
	stub := &stubCompleter{response: "TYPE: Authoritative Spec\nSUMMARY: Defines the payment API error codes."}
	s := New(stub, 0)

	seg, err := s.Summarize(context.Background(), testDoc("POST /payments returns 402 on insufficient funds"))
	require.NoError(t, err)

	assert.Equal(t, store.ClassSpec, seg.DocClass)
	assert.Equal(t, store.LayerSummary, seg.Layer)
	assert.Equal(t, "api_spec.md", seg.Source)
	assert.Contains(t, seg.Text, "Summary of api_spec.md:")
	assert.Contains(t, seg.Text, "Defines the payment API error codes.")
	assert.Equal(t, store.SegmentID(seg.Text), seg.ID)
}

func TestSummarizeNarrativeClassification(t *testing.T) {
	stub := &stubCompleter{response: "TYPE: Narrative\nSUMMARY: High-level overview of the checkout flow."}
	s := New(stub, 0)

	seg, err := s.Summarize(context.Background(), testDoc("As a user I want to check out quickly"))
	require.NoError(t, err)
	assert.Equal(t, store.ClassNarrative, seg.DocClass)
}

func TestSummarizeMalformedResponseFallsBack(t *testing.T) {
	stub := &stubCompleter{response: "Just some unstructured text about the document."}
	s := New(stub, 0)

	seg, err := s.Summarize(context.Background(), testDoc("content"))
	require.NoError(t, err)
	assert.Equal(t, store.ClassNarrative, seg.DocClass)
	assert.Contains(t, seg.Text, "Just some unstructured text")
}

func TestSummarizeTruncatesLongDocuments(t *testing.T) {
	stub := &stubCompleter{response: "TYPE: Narrative\nSUMMARY: long doc"}
	s := New(stub, 100)

	long := strings.Repeat("requirement ", 50)
	_, err := s.Summarize(context.Background(), testDoc(long))
	require.NoError(t, err)

	// The prompt carries at most maxChars of document content
	assert.Less(t, len(stub.lastPrompt), len(summaryPromptTemplate)+120)
}

func TestSummarizePropagatesCompleterError(t *testing.T) {
	stub := &stubCompleter{err: errors.New("backend down")}
	s := New(stub, 0)

	_, err := s.Summarize(context.Background(), testDoc("content"))
	assert.Error(t, err)
}

func TestSummarizeEmptySummaryIsError(t *testing.T) {
	stub := &stubCompleter{response: "TYPE: Narrative\nSUMMARY:   "}
	s := New(stub, 0)

	_, err := s.Summarize(context.Background(), testDoc("content"))
	assert.Error(t, err)
}
