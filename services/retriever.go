package services

import (
	"context"
	"fmt"
	"strings"

	"site-assistant/internal/ai"
	"site-assistant/internal/index"
	"site-assistant/models"
)

// Retriever answers "given this query text, return the k most relevant
// passages". It owns one loaded, immutable index/table pair for the process
// lifetime and is safe for concurrent callers: nothing is mutated after
// construction. Tests construct independent instances freely; there is no
// package-level state.
type Retriever struct {
	embedder ai.Embedder
	flat     *index.Flat
	table    *index.Table
	manifest index.Manifest
	cache    *EmbeddingCache // optional
}

// NewRetriever binds an embedder to a loaded index version. The caller is
// expected to have validated the manifest against the embedder via
// index.Open.
func NewRetriever(embedder ai.Embedder, flat *index.Flat, table *index.Table, manifest index.Manifest, cache *EmbeddingCache) *Retriever {
	return &Retriever{embedder: embedder, flat: flat, table: table, manifest: manifest, cache: cache}
}

// OpenRetriever loads the index version at dir and returns a retriever bound
// to embedder. Fails fast on ErrConfigMismatch or ErrIndexCorrupt.
func OpenRetriever(dir string, embedder ai.Embedder, metric index.Metric, cache *EmbeddingCache) (*Retriever, error) {
	flat, table, manifest, err := index.Open(dir, embedder.ModelID(), metric)
	if err != nil {
		return nil, err
	}
	return NewRetriever(embedder, flat, table, manifest, cache), nil
}

// Manifest exposes the build metadata of the loaded index version.
func (r *Retriever) Manifest() index.Manifest { return r.manifest }

// Size returns the number of indexed passages.
func (r *Retriever) Size() int { return r.flat.Len() }

// Retrieve embeds the query, searches the index and maps hits back to
// chunks. Results come best match first with 1-based ranks; scores are
// similarity values where higher means more similar. An empty index yields an
// empty slice, not an error — "no data" is the caller's distinction to make.
func (r *Retriever) Retrieve(ctx context.Context, queryText string, k int) ([]models.RetrievalResult, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, fmt.Errorf("query text is empty: %w", models.ErrInvalidInput)
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d: %w", k, models.ErrInvalidInput)
	}
	if r.flat.Len() == 0 {
		return []models.RetrievalResult{}, nil
	}

	queryVec, err := r.embedQuery(ctx, queryText)
	if err != nil {
		return nil, err
	}

	hits, err := r.flat.Search(queryVec, k)
	if err != nil {
		return nil, err
	}

	results := make([]models.RetrievalResult, 0, len(hits))
	for i, hit := range hits {
		chunk, err := r.table.Get(hit.Position)
		if err != nil {
			return nil, err
		}
		results = append(results, models.RetrievalResult{
			Chunk: chunk,
			Score: hit.Score,
			Rank:  i + 1,
		})
	}
	return results, nil
}

func (r *Retriever) embedQuery(ctx context.Context, queryText string) ([]float32, error) {
	if r.cache != nil {
		if vec, ok := r.cache.Get(ctx, r.embedder.ModelID(), queryText); ok {
			return vec, nil
		}
	}
	vec, err := r.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Put(ctx, r.embedder.ModelID(), queryText, vec)
	}
	return vec, nil
}
