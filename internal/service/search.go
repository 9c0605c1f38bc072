package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/voyagen/folio/internal/embedding"
	"github.com/voyagen/folio/internal/store"
)

const maxSearchLimit = 100

// Searcher answers free-text queries against indexed snapshots.
type Searcher struct {
	embedder Embedder
	vectors  store.VectorStore
}

// NewSearcher returns a Searcher over vs using e for query vectors.
func NewSearcher(e Embedder, vs store.VectorStore) *Searcher {
	return &Searcher{embedder: e, vectors: vs}
}

// Search embeds query and returns the nearest stored blocks.
func (s *Searcher) Search(ctx context.Context, query string, opts store.SearchOptions) ([]store.BlockMatch, error) {
	if query == "" {
		return nil, errors.New("query is required")
	}
	opts.Limit = min(opts.Limit, maxSearchLimit)

	vecs, err := s.embedder.Embed(ctx, []string{query}, embedding.InputQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, errors.New("empty embedding returned")
	}
	return s.vectors.SearchBlocks(ctx, vecs[0], opts)
}
