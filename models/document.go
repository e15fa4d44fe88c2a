package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Document is one crawled page, normalized by the crawler before a build run.
// Immutable once stored; URL is the unique key.
type Document struct {
	URL       string    `json:"url" bson:"url"`
	Title     string    `json:"title" bson:"title"`
	Text      string    `json:"text" bson:"text"`
	FetchedAt time.Time `json:"fetched_at" bson:"fetched_at"`
}

// Validate checks that a record coming from the crawler (or a hand-edited
// snapshot file) is usable as build input. Binary payloads and missing URLs
// are caught here rather than deep inside the index.
func (d Document) Validate() error {
	if strings.TrimSpace(d.URL) == "" {
		return fmt.Errorf("document has no url: %w", ErrDocumentSkipped)
	}
	if !utf8.ValidString(d.Text) || strings.ContainsRune(d.Text, '\x00') {
		return fmt.Errorf("document %s has non-text content: %w", d.URL, ErrDocumentSkipped)
	}
	return nil
}

// Chunk is a bounded contiguous span of one document's text, the unit stored
// in the index and returned from retrieval. Derived deterministically from a
// Document and never mutated after creation.
type Chunk struct {
	ChunkID    string `json:"chunk_id" bson:"chunk_id"`
	SourceURL  string `json:"source_url" bson:"source_url"`
	Title      string `json:"title,omitempty" bson:"title,omitempty"`
	ChunkIndex int    `json:"chunk_index" bson:"chunk_index"`
	Text       string `json:"text" bson:"text"`
	// CharStart and CharEnd are byte offsets into the source Document.Text,
	// so Text == doc.Text[CharStart:CharEnd]. The chunker only cuts on rune
	// boundaries, so both offsets are always rune-aligned.
	CharStart int `json:"char_start" bson:"char_start"`
	CharEnd   int `json:"char_end" bson:"char_end"`
}

// RetrievalResult is one ranked passage for a query. Ephemeral, never persisted.
// Score semantics: higher is more similar, for every supported metric.
type RetrievalResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float32 `json:"score"`
	Rank  int     `json:"rank"`
}

// BuildSummary reports the outcome of one index build run.
type BuildSummary struct {
	DocumentsProcessed int           `json:"documents_processed"`
	DocumentsSkipped   int           `json:"documents_skipped"`
	ChunksProduced     int           `json:"chunks_produced"`
	Duration           time.Duration `json:"duration"`
}

func (s BuildSummary) String() string {
	return fmt.Sprintf("processed=%d skipped=%d chunks=%d in %s",
		s.DocumentsProcessed, s.DocumentsSkipped, s.ChunksProduced, s.Duration.Truncate(time.Millisecond))
}
