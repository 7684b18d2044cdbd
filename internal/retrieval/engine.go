package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/qeforge/knowledgehub/internal/cache"
	"github.com/qeforge/knowledgehub/internal/chunk"
	"github.com/qeforge/knowledgehub/internal/docs"
	"github.com/qeforge/knowledgehub/internal/embed"
	"github.com/qeforge/knowledgehub/internal/fingerprint"
	"github.com/qeforge/knowledgehub/internal/llm"
	"github.com/qeforge/knowledgehub/internal/store"
	"github.com/qeforge/knowledgehub/internal/summarize"
)

// Messages returned in place of retrieved context when there is nothing
// to search.
const (
	MsgNoDocumentsSelected = "No documents selected."
	MsgNoDocumentation     = "No documentation available in the Knowledge Hub."
)

// EngineConfig configures an Engine.
type EngineConfig struct {
	// TopK bounds the merged result set.
	TopK int
	// QueryVariants is the number of rephrasings requested per query.
	QueryVariants int
	// VariantResults is the per-variant search depth.
	VariantResults int
	// SummaryMaxChars bounds document text sent to summarization.
	SummaryMaxChars int
	// DisableSummaries turns off the summary index layer.
	DisableSummaries bool
}

// Diagnostics reports how a retrieval was satisfied.
type Diagnostics struct {
	Fingerprint string
	CacheState  cache.State
	Documents   int
	Indexed     int
	Stats       Stats
	// CleanupFailures carries orphan sweep failures from a rebuild.
	CleanupFailures []string
}

// Engine is the full ingest-cache-retrieve pipeline.
type Engine struct {
	loader     *docs.Loader
	splitter   *chunk.Splitter
	summarizer *summarize.Summarizer
	manager    *cache.Manager
	expander   *Expander
	aggregator *Aggregator
	completer  llm.Completer
	config     EngineConfig
	logger     *slog.Logger
}

// NewEngine wires the pipeline together.
func NewEngine(
	loader *docs.Loader,
	splitter *chunk.Splitter,
	manager *cache.Manager,
	embedder embed.Embedder,
	completer llm.Completer,
	cfg EngineConfig,
	logger *slog.Logger,
) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = 20
	}
	if logger == nil {
		logger = slog.Default()
	}

	var summarizer *summarize.Summarizer
	if !cfg.DisableSummaries {
		summarizer = summarize.New(completer, cfg.SummaryMaxChars)
	}

	return &Engine{
		loader:     loader,
		splitter:   splitter,
		summarizer: summarizer,
		manager:    manager,
		expander:   NewExpander(completer, cfg.QueryVariants, logger),
		aggregator: NewAggregator(embedder, cfg.VariantResults, logger),
		completer:  completer,
		config:     cfg,
		logger:     logger,
	}
}

// OpenIndex resolves the index for the selection, ingesting documents only
// when the cache cannot satisfy the fingerprint.
//
// A nil selection means every document in the data directory; a non-nil
// empty selection means none.
func (e *Engine) OpenIndex(ctx context.Context, selection []string) (*cache.Resolution, *Diagnostics, error) {
	names, err := fingerprint.Resolve(e.loader.Dir(), selection)
	if err != nil {
		return nil, nil, err
	}

	fp, err := fingerprint.Compute(e.loader.Dir(), names)
	if err != nil {
		return nil, nil, err
	}

	diag := &Diagnostics{Fingerprint: fp, Documents: len(names)}

	res, err := e.manager.Resolve(ctx, fp, nil)
	if errors.Is(err, cache.ErrMustReingest) {
		segments, ingestErr := e.ingest(ctx, names)
		if ingestErr != nil {
			return nil, diag, ingestErr
		}
		res, err = e.manager.Resolve(ctx, fp, segments)
	}
	if err != nil {
		return nil, diag, err
	}

	diag.CacheState = res.State
	diag.Indexed = res.Index.Count()
	diag.CleanupFailures = res.CleanupFailures
	return res, diag, nil
}

// ingest loads and chunks the named documents, adding a summary segment
// per document when summaries are enabled. Summary failures degrade to
// chunks-only indexing for that document.
func (e *Engine) ingest(ctx context.Context, names []string) ([]store.Segment, error) {
	documents, err := e.loader.Load(ctx, names)
	if err != nil {
		return nil, err
	}

	// Non-nil even when empty: the cache reads a nil slice as reuse-only,
	// while an empty corpus must still build its degenerate index.
	segments := make([]store.Segment, 0)
	for _, doc := range documents {
		segments = append(segments, e.splitter.Split(doc)...)

		if e.summarizer == nil {
			continue
		}
		summary, err := e.summarizer.Summarize(ctx, doc)
		if err != nil {
			e.logger.Warn("summary layer skipped for document", "file", doc.Source, "error", err)
			continue
		}
		segments = append(segments, summary)
	}

	e.logger.Info("ingested documents", "documents", len(documents), "segments", len(segments))
	return segments, nil
}

// RetrieveContext performs multi-query retrieval for the query over the
// selected documents and returns the merged context text.
func (e *Engine) RetrieveContext(ctx context.Context, selection []string, query string) (string, *Diagnostics, error) {
	if strings.TrimSpace(query) == "" {
		return "", nil, fmt.Errorf("query must not be empty")
	}
	if selection != nil && len(selection) == 0 {
		return MsgNoDocumentsSelected, &Diagnostics{}, nil
	}

	res, diag, err := e.OpenIndex(ctx, selection)
	if err != nil {
		return "", diag, err
	}
	defer res.Index.Close()

	if res.EmptyIndex {
		return MsgNoDocumentation, diag, nil
	}

	variants := e.expander.Expand(ctx, query)

	results, stats, err := e.aggregator.Retrieve(ctx, res.Index, variants, e.config.TopK)
	if err != nil {
		return "", diag, err
	}
	diag.Stats = stats

	if len(results) == 0 {
		return fmt.Sprintf(
			"No relevant documentation found for your query. (Retrieved 0 matches from %d indexed segments in the Knowledge Hub)",
			diag.Indexed), diag, nil
	}

	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Segment.Text
	}
	return strings.Join(texts, "\n\n"), diag, nil
}

// Manager exposes the cache manager for status and clear operations.
func (e *Engine) Manager() *cache.Manager {
	return e.manager
}
