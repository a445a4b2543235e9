package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"pdfrag/internal/domain"
)

// Retriever queries indexes in priority order, local first.
type Retriever struct {
	embedder domain.Embedder
	indexes  []domain.Index
	logger   *slog.Logger
}

func NewRetriever(embedder domain.Embedder, indexes []domain.Index, logger *slog.Logger) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: retriever needs an embedder", domain.ErrInvalidConfiguration)
	}
	if len(indexes) == 0 {
		return nil, fmt.Errorf("%w: retriever needs at least one index", domain.ErrInvalidConfiguration)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Retriever{embedder: embedder, indexes: indexes, logger: logger}, nil
}

func (r *Retriever) Indexes() []domain.Index { return r.indexes }

// Retrieve embeds query exactly once and returns the top k merged results.
// A failing index is logged and skipped; only when every index fails is an
// error returned.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected 1 query vector, got %d", domain.ErrEmbeddingService, len(vectors))
	}
	vector := vectors[0]

	lists := make([][]domain.SearchResult, len(r.indexes))
	errs := make([]error, len(r.indexes))

	var g errgroup.Group
	for i, idx := range r.indexes {
		g.Go(func() error {
			start := time.Now()
			res, err := idx.Query(ctx, vector, k)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", idx.Name(), err)
				r.logger.Warn("retrieval source failed", "source", idx.Name(), "error", err)
				return nil
			}
			r.logger.Debug("retrieval source answered", "source", idx.Name(), "results", len(res), "took", time.Since(start))
			lists[i] = res
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(r.indexes) {
		return nil, errors.Join(append([]error{domain.ErrAllSourcesFailed}, errs...)...)
	}
	return MergeTop(k, lists...), nil
}
