package ai

import "context"

// Embedder maps text to a fixed-length dense vector. Implementations are
// deterministic for a fixed model version: the same text yields the same
// vector (up to model numerics). One Embedder instance must serve both
// build-time chunk embedding and query-time query embedding — the index
// manifest pins ModelID so a mismatch is caught at load time.
type Embedder interface {
	// Embed returns the vector for one text. Empty or blank text is
	// rejected with models.ErrInvalidInput: a silent zero vector would rank
	// arbitrarily instead of failing visibly.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds many texts in one or few provider calls, preserving
	// input order. The builder always goes through this path.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// ModelID identifies provider and model version, e.g.
	// "google/text-embedding-004".
	ModelID() string
}

// provider is the raw transport to one embedding API, without resilience
// concerns. Client wraps it with rate limiting, circuit breaking and retries.
type provider interface {
	embed(ctx context.Context, texts []string) ([][]float32, error)
	modelID() string
}
