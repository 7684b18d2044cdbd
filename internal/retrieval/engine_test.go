package retrieval

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qeforge/knowledgehub/internal/cache"
	"github.com/qeforge/knowledgehub/internal/chunk"
	"github.com/qeforge/knowledgehub/internal/docs"
	"github.com/qeforge/knowledgehub/internal/embed"
)

type engineFixture struct {
	engine  *Engine
	dataDir string
}

func newEngineFixture(t *testing.T, completer *scriptedCompleter) *engineFixture {
	t.Helper()

	dataDir := t.TempDir()
	cacheDir := t.TempDir()

	embedder := embed.NewStaticEmbedder()
	t.Cleanup(func() { embedder.Close() })

	splitter, err := chunk.NewSplitter(120, 20)
	require.NoError(t, err)

	engine := NewEngine(
		docs.NewLoader(dataDir, nil),
		splitter,
		cache.NewManager(cacheDir, embedder, nil),
		embedder,
		completer,
		EngineConfig{TopK: 20, QueryVariants: 3, VariantResults: 5},
		nil,
	)

	return &engineFixture{engine: engine, dataDir: dataDir}
}

func defaultCompleter() *scriptedCompleter {
	return &scriptedCompleter{
		expansion: "login failure behavior\nauthentication error handling",
		summary:   "TYPE: Authoritative Spec\nSUMMARY: Login API error semantics.",
		synthesis: "SYNTHESIZED REQUIREMENTS",
	}
}

func (f *engineFixture) writeDoc(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.dataDir, name), []byte(content), 0o644))
}

func TestRetrieveContextFullPipeline(t *testing.T) {
	f := newEngineFixture(t, defaultCompleter())
	f.writeDoc(t, "auth.md", "The login endpoint returns 401 with error code AUTH_BAD_CREDENTIALS when the password is wrong.")
	f.writeDoc(t, "orders.md", "Orders older than thirty days are archived nightly by the retention job.")

	ctx := context.Background()
	text, diag, err := f.engine.RetrieveContext(ctx, nil, "login error handling")
	require.NoError(t, err)

	assert.Equal(t, cache.StateMissRebuilt, diag.CacheState)
	assert.Equal(t, 2, diag.Documents)
	assert.Greater(t, diag.Indexed, 0)
	assert.Greater(t, diag.Stats.Returned, 0)
	assert.Contains(t, text, "login endpoint")

	// Second call reuses the cached index
	_, diag2, err := f.engine.RetrieveContext(ctx, nil, "login error handling")
	require.NoError(t, err)
	assert.Equal(t, cache.StateHit, diag2.CacheState)
	assert.Equal(t, diag.Fingerprint, diag2.Fingerprint)
}

func TestRetrieveContextRebuildsOnModification(t *testing.T) {
	f := newEngineFixture(t, defaultCompleter())
	f.writeDoc(t, "auth.md", "The login endpoint rejects expired tokens.")

	ctx := context.Background()
	_, diag1, err := f.engine.RetrieveContext(ctx, nil, "token expiry")
	require.NoError(t, err)
	assert.Equal(t, cache.StateMissRebuilt, diag1.CacheState)

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(f.dataDir, "auth.md"), later, later))

	_, diag2, err := f.engine.RetrieveContext(ctx, nil, "token expiry")
	require.NoError(t, err)
	assert.Equal(t, cache.StateMissRebuilt, diag2.CacheState)
	assert.NotEqual(t, diag1.Fingerprint, diag2.Fingerprint)
}

func TestRetrieveContextSelectionScoping(t *testing.T) {
	f := newEngineFixture(t, defaultCompleter())
	f.writeDoc(t, "auth.md", "Authentication uses signed session cookies.")
	f.writeDoc(t, "billing.md", "Invoices are generated on the first of the month.")

	ctx := context.Background()
	text, diag, err := f.engine.RetrieveContext(ctx, []string{"auth.md"}, "session cookies")
	require.NoError(t, err)
	assert.Equal(t, 1, diag.Documents)
	assert.NotContains(t, text, "Invoices")

	// A different selection has a different fingerprint
	_, diagBoth, err := f.engine.RetrieveContext(ctx, nil, "session cookies")
	require.NoError(t, err)
	assert.NotEqual(t, diag.Fingerprint, diagBoth.Fingerprint)
}

func TestRetrieveContextEmptySelection(t *testing.T) {
	f := newEngineFixture(t, defaultCompleter())
	f.writeDoc(t, "auth.md", "content")

	text, _, err := f.engine.RetrieveContext(context.Background(), []string{}, "anything")
	require.NoError(t, err)
	assert.Equal(t, MsgNoDocumentsSelected, text)
}

func TestRetrieveContextEmptyDataDir(t *testing.T) {
	f := newEngineFixture(t, defaultCompleter())

	text, _, err := f.engine.RetrieveContext(context.Background(), nil, "anything")
	require.NoError(t, err)
	assert.Equal(t, MsgNoDocumentation, text)
}

func TestRetrieveContextWhitespaceOnlyCorpus(t *testing.T) {
	f := newEngineFixture(t, defaultCompleter())
	f.writeDoc(t, "blank.md", "   \n\t\n   ")

	ctx := context.Background()
	text, diag, err := f.engine.RetrieveContext(ctx, nil, "anything")
	require.NoError(t, err)
	assert.Equal(t, MsgNoDocumentation, text)
	assert.Equal(t, 1, diag.Documents)
	assert.Equal(t, 0, diag.Indexed)

	// The degenerate empty index is cached like any other build.
	_, diag2, err := f.engine.RetrieveContext(ctx, nil, "anything")
	require.NoError(t, err)
	assert.Equal(t, cache.StateHit, diag2.CacheState)
}

func TestRetrieveContextEmptyQuery(t *testing.T) {
	f := newEngineFixture(t, defaultCompleter())

	_, _, err := f.engine.RetrieveContext(context.Background(), nil, "   ")
	assert.Error(t, err)
}

func TestRetrieveContextSummaryLayerIndexed(t *testing.T) {
	f := newEngineFixture(t, &scriptedCompleter{
		expansion: "summary of login api",
		summary:   "TYPE: Authoritative Spec\nSUMMARY: UniqueSummaryMarker login semantics.",
		synthesis: "x",
	})
	f.writeDoc(t, "auth.md", "The login endpoint returns 401 for bad credentials.")

	text, _, err := f.engine.RetrieveContext(context.Background(), nil, "UniqueSummaryMarker login semantics")
	require.NoError(t, err)
	assert.Contains(t, text, "UniqueSummaryMarker")
}

func TestRetrieveContextSummaryFailureDegrades(t *testing.T) {
	f := newEngineFixture(t, &scriptedCompleter{
		expansion: "login",
		summary:   "", // empty summary is rejected, document degrades to chunks only
		synthesis: "x",
	})
	f.writeDoc(t, "auth.md", "The login endpoint returns 401 for bad credentials.")

	text, diag, err := f.engine.RetrieveContext(context.Background(), nil, "login endpoint")
	require.NoError(t, err)
	assert.Greater(t, diag.Indexed, 0)
	assert.Contains(t, text, "login endpoint")
}

func TestSynthesizeQueryUsesCompleter(t *testing.T) {
	f := newEngineFixture(t, defaultCompleter())
	f.writeDoc(t, "auth.md", "The login endpoint returns 401 for bad credentials.")

	answer, diag, err := f.engine.SynthesizeQuery(context.Background(), nil, "login errors")
	require.NoError(t, err)
	assert.Equal(t, "SYNTHESIZED REQUIREMENTS", answer)
	assert.Greater(t, diag.Stats.Returned, 0)
}

func TestSynthesizeQueryPassesThroughSentinels(t *testing.T) {
	f := newEngineFixture(t, defaultCompleter())

	answer, _, err := f.engine.SynthesizeQuery(context.Background(), []string{}, "anything")
	require.NoError(t, err)
	assert.Equal(t, MsgNoDocumentsSelected, answer)
}

func TestSynthesizeAll(t *testing.T) {
	f := newEngineFixture(t, defaultCompleter())
	f.writeDoc(t, "auth.md", "The login endpoint returns 401 for bad credentials.")

	answer, diag, err := f.engine.SynthesizeAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "SYNTHESIZED REQUIREMENTS", answer)
	assert.Greater(t, diag.Indexed, 0)
}

func TestSynthesizeAllEmptyHub(t *testing.T) {
	f := newEngineFixture(t, defaultCompleter())

	answer, _, err := f.engine.SynthesizeAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, MsgNoDocumentation, answer)
}
