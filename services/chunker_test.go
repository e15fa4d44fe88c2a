package services

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"site-assistant/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(url, text string) models.Document {
	return models.Document{URL: url, Title: "Test Page", Text: text}
}

func TestChunkShortDocumentSingleChunk(t *testing.T) {
	c := NewChunker(800, 100)

	chunks, err := c.Chunk(doc("https://example.org/about", "A short page about the team."))
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Equal(t, "https://example.org/about#chunk-0", chunks[0].ChunkID)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, "A short page about the team.", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].CharStart)
	assert.Equal(t, len(chunks[0].Text), chunks[0].CharEnd)
}

func TestChunkEmptyTextYieldsNoChunks(t *testing.T) {
	c := NewChunker(800, 100)

	chunks, err := c.Chunk(doc("https://example.org/empty", "   \n\t  "))
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkRejectsBinaryContent(t *testing.T) {
	c := NewChunker(800, 100)

	_, err := c.Chunk(doc("https://example.org/bin", "PK\x00\x03binary payload"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrDocumentSkipped))
}

func TestChunkRejectsMissingURL(t *testing.T) {
	c := NewChunker(800, 100)

	_, err := c.Chunk(models.Document{Text: "some text"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrDocumentSkipped))
}

func TestChunkSizeBoundAndOverlap(t *testing.T) {
	// 500 characters with no sentence boundaries forces fixed-width cuts.
	text := strings.Repeat("a", 500)
	c := NewChunker(200, 20)

	chunks, err := c.Chunk(doc("https://example.org/long", text))
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, 0, chunks[0].CharStart)
	assert.Equal(t, 200, chunks[0].CharEnd)
	assert.Equal(t, 180, chunks[1].CharStart)
	assert.Equal(t, 380, chunks[1].CharEnd)
	assert.Equal(t, 360, chunks[2].CharStart)
	assert.Equal(t, 500, chunks[2].CharEnd)

	for i, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Text), 200, "chunk %d too large", i)
		assert.Equal(t, text[ch.CharStart:ch.CharEnd], ch.Text)
	}
}

func TestChunkCoversWholeDocument(t *testing.T) {
	// Mixed prose with sentence and paragraph boundaries.
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("The quick brown fox jumps over the lazy dog. ")
		if i%7 == 6 {
			b.WriteString("\n\n")
		}
	}
	text := b.String()
	c := NewChunker(300, 50)

	chunks, err := c.Chunk(doc("https://example.org/prose", text))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	// Every character of the source is covered by some chunk, and
	// consecutive chunks overlap rather than leave gaps.
	assert.Equal(t, 0, chunks[0].CharStart)
	assert.Equal(t, len(text), chunks[len(chunks)-1].CharEnd)
	for i := 1; i < len(chunks); i++ {
		assert.LessOrEqual(t, chunks[i].CharStart, chunks[i-1].CharEnd,
			"gap between chunk %d and %d", i-1, i)
		assert.Greater(t, chunks[i].CharEnd, chunks[i-1].CharEnd, "no forward progress at chunk %d", i)
	}

	for i, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Text), 300, "chunk %d exceeds max size", i)
		assert.Equal(t, i, ch.ChunkIndex)
		assert.Equal(t, "https://example.org/prose", ch.SourceURL)
	}
}

func TestChunkPrefersSentenceBoundary(t *testing.T) {
	text := "First sentence here. Second one follows. " + strings.Repeat("x", 200)
	c := NewChunker(100, 10)

	chunks, err := c.Chunk(doc("https://example.org/sent", text))
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	// The first cut should land right after a sentence terminator, not at
	// the hard 100-char limit.
	assert.True(t, strings.HasSuffix(chunks[0].Text, ". "),
		"expected sentence-aligned cut, got %q", chunks[0].Text)
}

func TestChunkOffsetsAreByteOffsets(t *testing.T) {
	// Multi-byte runes with no sentence boundaries force fixed-width cuts.
	// CharStart/CharEnd index bytes of the source text, so slicing the
	// document by them must reproduce each chunk exactly, and every cut must
	// stay on a rune boundary.
	text := strings.Repeat("日本語のテキスト", 40) // 3 bytes per rune
	c := NewChunker(200, 20)

	chunks, err := c.Chunk(doc("https://example.org/utf8", text))
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.Equal(t, text[ch.CharStart:ch.CharEnd], ch.Text, "chunk %d", i)
		assert.True(t, utf8.ValidString(ch.Text), "chunk %d cut mid-rune", i)
	}

	// Byte offsets, not rune counts: a chunk of 3-byte runes spans three
	// times as many bytes as runes.
	first := chunks[0]
	width := first.CharEnd - first.CharStart
	assert.Equal(t, len(first.Text), width)
	assert.Equal(t, 3*utf8.RuneCountInString(first.Text), width)
}

func TestChunkDeterministic(t *testing.T) {
	text := strings.Repeat("Stable output matters. ", 60)
	c := NewChunker(250, 40)
	d := doc("https://example.org/det", text)

	first, err := c.Chunk(d)
	require.NoError(t, err)
	second, err := c.Chunk(d)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestNewChunkerClampsBadOverlap(t *testing.T) {
	c := NewChunker(100, 100)
	text := strings.Repeat("b", 400)

	chunks, err := c.Chunk(doc("https://example.org/clamp", text))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	// Overlap must be smaller than the chunk size or the walk stalls.
	for i := 1; i < len(chunks); i++ {
		assert.Greater(t, chunks[i].CharEnd, chunks[i-1].CharEnd)
	}
}
