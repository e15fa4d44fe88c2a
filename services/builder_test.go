package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"strings"
	"testing"

	"site-assistant/internal/index"
	"site-assistant/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder is a deterministic in-process embedder: a bag-of-words hash
// into a small fixed dimension. Identical texts get identical vectors and
// shared vocabulary produces similarity, which is all the pipeline tests
// need. Texts containing failMarker make EmbedBatch fail, simulating an
// embedding provider outage for one document.
type fakeEmbedder struct {
	dim        int
	batchCalls int
}

const failMarker = "__unembeddable__"

func newFakeEmbedder() *fakeEmbedder { return &fakeEmbedder{dim: 16} }

func (f *fakeEmbedder) vectorFor(text string) []float32 {
	vec := make([]float32, f.dim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[int(h.Sum32())%f.dim]++
	}
	return vec
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty text: %w", models.ErrInvalidInput)
	}
	return f.vectorFor(text), nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.batchCalls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if strings.Contains(t, failMarker) {
			return nil, fmt.Errorf("provider rejected batch: %w", models.ErrEmbeddingService)
		}
		out[i] = f.vectorFor(t)
	}
	return out, nil
}

func (f *fakeEmbedder) ModelID() string { return "fake/bag-of-words-16" }

func testDocs() []models.Document {
	return []models.Document{
		{URL: "https://example.org/loans", Title: "Loans", Text: "We offer personal loans with flexible repayment schedules for our customers."},
		{URL: "https://example.org/savings", Title: "Savings", Text: "A savings account earns interest every month and has no maintenance fee."},
		{URL: "https://example.org/contact", Title: "Contact", Text: "Visit any branch or reach support through the mobile app around the clock."},
	}
}

func TestBuildSummaryCounts(t *testing.T) {
	docs := append(testDocs(),
		models.Document{URL: "https://example.org/blank", Text: "   "},
		models.Document{URL: "https://example.org/bin", Text: "bad\x00bytes"},
	)

	b := NewBuilder(NewChunker(800, 100), newFakeEmbedder(), index.MetricCosine)
	flat, table, summary, err := b.Build(context.Background(), docs)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.DocumentsProcessed)
	assert.Equal(t, 2, summary.DocumentsSkipped)
	assert.Equal(t, 3, summary.ChunksProduced)
	assert.Equal(t, 3, flat.Len())
	assert.Equal(t, 3, table.Len())
}

func TestBuildSkipsDocumentOnEmbeddingFailure(t *testing.T) {
	docs := testDocs()
	docs[1].Text = "this document cannot be embedded " + failMarker

	b := NewBuilder(NewChunker(800, 100), newFakeEmbedder(), index.MetricCosine)
	flat, table, summary, err := b.Build(context.Background(), docs)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.DocumentsProcessed)
	assert.Equal(t, 1, summary.DocumentsSkipped)
	assert.Equal(t, 2, flat.Len())

	// The surviving entries keep their lockstep positions.
	for i := 0; i < table.Len(); i++ {
		chunk, err := table.Get(i)
		require.NoError(t, err)
		assert.NotContains(t, chunk.Text, failMarker)
	}
}

func TestBuildTableMatchesVectorPositions(t *testing.T) {
	b := NewBuilder(NewChunker(800, 100), newFakeEmbedder(), index.MetricCosine)
	flat, table, _, err := b.Build(context.Background(), testDocs())
	require.NoError(t, err)

	// Searching with a chunk's own text must return that chunk at rank 1.
	emb := newFakeEmbedder()
	for pos := 0; pos < table.Len(); pos++ {
		chunk, err := table.Get(pos)
		require.NoError(t, err)

		vec, err := emb.Embed(context.Background(), chunk.Text)
		require.NoError(t, err)
		hits, err := flat.Search(vec, 1)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, pos, hits[0].Position, "chunk %q not its own best match", chunk.ChunkID)
	}
}

func TestBuildRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewBuilder(NewChunker(800, 100), newFakeEmbedder(), index.MetricCosine)
	_, _, _, err := b.Build(ctx, testDocs())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildEmptySnapshot(t *testing.T) {
	b := NewBuilder(NewChunker(800, 100), newFakeEmbedder(), index.MetricCosine)
	flat, table, summary, err := b.Build(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 0, flat.Len())
	assert.Equal(t, 0, table.Len())
	assert.Equal(t, 0, summary.ChunksProduced)
}

func TestBuildDeterministicAcrossRuns(t *testing.T) {
	b := NewBuilder(NewChunker(800, 100), newFakeEmbedder(), index.MetricCosine)

	_, t1, s1, err := b.Build(context.Background(), testDocs())
	require.NoError(t, err)
	_, t2, s2, err := b.Build(context.Background(), testDocs())
	require.NoError(t, err)

	assert.Equal(t, s1.ChunksProduced, s2.ChunksProduced)
	require.Equal(t, t1.Len(), t2.Len())
	for i := 0; i < t1.Len(); i++ {
		c1, err := t1.Get(i)
		require.NoError(t, err)
		c2, err := t2.Get(i)
		require.NoError(t, err)
		assert.Equal(t, c1, c2)
	}
}

func TestBuildAndSaveThenOpenRetriever(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	emb := newFakeEmbedder()

	b := NewBuilder(NewChunker(800, 100), emb, index.MetricCosine)
	summary, err := b.BuildAndSave(context.Background(), testDocs(), dir, 800, 100)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.DocumentsProcessed)

	r, err := OpenRetriever(dir, emb, index.MetricCosine, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Size())
	assert.Equal(t, emb.ModelID(), r.Manifest().EmbeddingModelID)

	results, err := r.Retrieve(context.Background(), "personal loans with flexible repayment", 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "https://example.org/loans", results[0].Chunk.SourceURL)
}

func TestBuildAndSaveEmptySnapshotServesEmptyResults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	emb := newFakeEmbedder()

	b := NewBuilder(NewChunker(800, 100), emb, index.MetricCosine)
	_, err := b.BuildAndSave(context.Background(), nil, dir, 800, 100)
	require.NoError(t, err)

	r, err := OpenRetriever(dir, emb, index.MetricCosine, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Size())

	results, err := r.Retrieve(context.Background(), "anything at all", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}
