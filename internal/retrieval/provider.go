// Package retrieval finds text passages relevant to a user question. The
// index is built offline (cmd/indexer) and read at serve time.
package retrieval

import (
	"context"
	"fmt"
)

// Provider returns passages relevant to a query, most relevant first. An
// empty result is valid; callers treat it as "no context".
type Provider interface {
	Search(ctx context.Context, query string) ([]string, error)
}

// VectorProvider embeds the query and runs a similarity search over the
// pgvector passage index.
type VectorProvider struct {
	embedder    Embedder
	store       *PassageStore
	maxPassages int
}

func NewVectorProvider(embedder Embedder, store *PassageStore, maxPassages int) *VectorProvider {
	return &VectorProvider{embedder: embedder, store: store, maxPassages: maxPassages}
}

func (p *VectorProvider) Search(ctx context.Context, query string) ([]string, error) {
	vec, err := p.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	passages, err := p.store.SearchSimilar(ctx, vec, p.maxPassages)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}
	return passages, nil
}
