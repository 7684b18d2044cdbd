package retrieval

import (
	"context"
	"log/slog"

	"github.com/qeforge/knowledgehub/internal/embed"
	hugerr "github.com/qeforge/knowledgehub/internal/errors"
	"github.com/qeforge/knowledgehub/internal/store"
)

// Stats summarizes one aggregated retrieval pass.
type Stats struct {
	// Variants is how many query variants were searched.
	Variants int
	// FailedVariants is how many variant searches were skipped on error.
	FailedVariants int
	// Retrieved counts hits across all variants before deduplication.
	Retrieved int
	// Unique counts distinct segments after deduplication.
	Unique int
	// Returned is the final result count after the top-k bound.
	Returned int
}

// Aggregator runs per-variant similarity searches and merges the results.
type Aggregator struct {
	embedder   embed.Embedder
	perVariant int
	logger     *slog.Logger
}

// NewAggregator creates an aggregator fetching perVariant hits per query
// variant.
func NewAggregator(embedder embed.Embedder, perVariant int, logger *slog.Logger) *Aggregator {
	if perVariant <= 0 {
		perVariant = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{embedder: embedder, perVariant: perVariant, logger: logger}
}

// Retrieve searches the index once per variant, deduplicates by segment
// identity in first-seen order, and bounds the merged set to topK.
//
// A failing variant is skipped with a warning; the call errors only when
// every variant fails.
func (a *Aggregator) Retrieve(ctx context.Context, index *store.Index, variants []string, topK int) ([]store.SegmentResult, Stats, error) {
	stats := Stats{Variants: len(variants)}
	seen := make(map[string]bool)
	var merged []store.SegmentResult
	var lastErr error

	for _, variant := range variants {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		vec, err := a.embedder.Embed(ctx, variant)
		if err != nil {
			a.logger.Warn("skipping variant, embedding failed", "variant", variant, "error", err)
			stats.FailedVariants++
			lastErr = err
			continue
		}

		hits, err := index.Search(ctx, vec, a.perVariant)
		if err != nil {
			a.logger.Warn("skipping variant, search failed", "variant", variant, "error", err)
			stats.FailedVariants++
			lastErr = err
			continue
		}

		stats.Retrieved += len(hits)
		for _, hit := range hits {
			if seen[hit.Segment.ID] {
				continue
			}
			seen[hit.Segment.ID] = true
			merged = append(merged, hit)
		}
	}

	if len(variants) > 0 && stats.FailedVariants == len(variants) {
		return nil, stats, hugerr.Wrap(lastErr, hugerr.ErrCodeSearchFailed,
			"all query variants failed", hugerr.StageSearch)
	}

	stats.Unique = len(merged)
	if topK > 0 && len(merged) > topK {
		merged = merged[:topK]
	}
	stats.Returned = len(merged)

	a.logger.Info("aggregated retrieval",
		"variants", stats.Variants,
		"retrieved", stats.Retrieved,
		"unique", stats.Unique,
		"returned", stats.Returned)

	return merged, stats, nil
}
