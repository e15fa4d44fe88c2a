package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"site-assistant/internal/ai"
	"site-assistant/internal/index"
	"site-assistant/internal/logger"
	"site-assistant/models"
)

// Builder runs the one-shot batch pipeline: documents -> chunks -> embeddings
// -> vector index + metadata table. One document failing to chunk or embed
// never aborts the run; it is logged, counted and skipped.
type Builder struct {
	chunker  *Chunker
	embedder ai.Embedder
	metric   index.Metric
}

func NewBuilder(chunker *Chunker, embedder ai.Embedder, metric index.Metric) *Builder {
	return &Builder{chunker: chunker, embedder: embedder, metric: metric}
}

// Build processes the full document snapshot and returns an in-memory index,
// its metadata table and a summary. Documents are processed independently and
// in input order; vectors and table entries are appended in lockstep, so
// position i in the table always describes vector i.
//
// Embedding happens in one batched call per document, which keeps throughput
// up and makes a transient embedding failure skip exactly that document. The
// context is checked between documents, so a cancelled build stops at a
// document boundary.
func (b *Builder) Build(ctx context.Context, docs []models.Document) (*index.Flat, *index.Table, models.BuildSummary, error) {
	start := time.Now()
	buildID := uuid.NewString()
	logger.Info("Index build started", "build_id", buildID, "documents", len(docs))

	var summary models.BuildSummary
	table := index.NewTable()
	var vectors [][]float32

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, nil, summary, err
		}

		chunks, err := b.chunker.Chunk(doc)
		if err != nil {
			if errors.Is(err, models.ErrDocumentSkipped) {
				logger.Warn("Skipping document", "build_id", buildID, "url", doc.URL, "reason", err.Error())
				summary.DocumentsSkipped++
				continue
			}
			return nil, nil, summary, fmt.Errorf("chunk %s: %w", doc.URL, err)
		}
		if len(chunks) == 0 {
			logger.Debug("Skipping empty document", "build_id", buildID, "url", doc.URL)
			summary.DocumentsSkipped++
			continue
		}

		texts := make([]string, len(chunks))
		for i, ch := range chunks {
			texts[i] = ch.Text
		}
		embedded, err := b.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, nil, summary, err
			}
			// Retries are exhausted inside the embedder; one bad document
			// must not sink the run
			logger.Warn("Skipping document after embedding failure",
				"build_id", buildID, "url", doc.URL, "error", err.Error())
			summary.DocumentsSkipped++
			continue
		}

		for i, ch := range chunks {
			table.Append(ch)
			vectors = append(vectors, embedded[i])
		}
		summary.DocumentsProcessed++
		summary.ChunksProduced += len(chunks)
	}

	flat, err := index.NewFlat(b.metric)
	if err != nil {
		return nil, nil, summary, err
	}
	if err := flat.Build(vectors); err != nil {
		return nil, nil, summary, err
	}

	summary.Duration = time.Since(start)
	logger.Info("Index build finished", "build_id", buildID, "summary", summary.String())
	return flat, table, summary, nil
}

// BuildAndSave runs Build and persists the result as one index version under
// dir. The swap is atomic from a reader's perspective: either the previous
// version stays intact or the complete new version replaces it.
func (b *Builder) BuildAndSave(ctx context.Context, docs []models.Document, dir string, maxChars, overlapChars int) (models.BuildSummary, error) {
	flat, table, summary, err := b.Build(ctx, docs)
	if err != nil {
		return summary, err
	}

	manifest := index.Manifest{
		EmbeddingModelID: b.embedder.ModelID(),
		Dimension:        flat.Dimension(),
		Metric:           b.metric,
		MaxChunkChars:    maxChars,
		OverlapChars:     overlapChars,
		BuiltAt:          time.Now().UTC(),
		DocumentCount:    summary.DocumentsProcessed,
		ChunkCount:       summary.ChunksProduced,
	}
	if err := index.Write(dir, flat, table, manifest); err != nil {
		return summary, fmt.Errorf("persist index: %w", err)
	}
	return summary, nil
}
