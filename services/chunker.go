package services

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"site-assistant/models"
)

// Chunker splits document text into overlapping passages of bounded size.
// Cuts land on sentence or paragraph boundaries when one falls inside the
// size limit, and fall back to fixed-width cuts otherwise. Chunking is
// deterministic and side-effect-free: the same document always yields the
// same chunks.
type Chunker struct {
	maxChars       int
	overlapChars   int
	sentenceRegex  *regexp.Regexp
	paragraphRegex *regexp.Regexp
}

// NewChunker creates a chunker. overlapChars is the number of characters
// repeated between consecutive chunks so context is not truncated at a cut.
func NewChunker(maxChars, overlapChars int) *Chunker {
	if maxChars <= 0 {
		maxChars = 800
	}
	if overlapChars < 0 {
		overlapChars = 0
	}
	if overlapChars >= maxChars {
		overlapChars = maxChars / 4
	}
	return &Chunker{
		maxChars:       maxChars,
		overlapChars:   overlapChars,
		sentenceRegex:  regexp.MustCompile(`[.!?]+[\s]+`),
		paragraphRegex: regexp.MustCompile(`\n\n+`),
	}
}

// Chunk splits one document. Empty text yields zero chunks and no error; the
// caller counts the document as skipped. Non-text content is rejected with
// ErrDocumentSkipped.
//
// Each chunk is a contiguous slice of the document text. Consecutive chunks
// overlap by exactly overlapChars (clamped at document start), so
// concatenating them in chunk_index order reconstructs the text with no gaps.
func (c *Chunker) Chunk(doc models.Document) ([]models.Chunk, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	text := doc.Text
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	cuts := c.boundaryCuts(text)

	var chunks []models.Chunk
	pos := 0
	for pos < len(text) {
		end := pos + c.maxChars
		if end >= len(text) {
			end = len(text)
		} else {
			if b, ok := bestCut(cuts, pos+c.overlapChars+1, end); ok {
				end = b
			} else {
				// No structural boundary inside the window; cut at a rune edge
				for end > pos && !utf8.RuneStart(text[end]) {
					end--
				}
				if end == pos {
					end = pos + c.maxChars
					if end > len(text) {
						end = len(text)
					}
				}
			}
		}

		idx := len(chunks)
		chunks = append(chunks, models.Chunk{
			ChunkID:    fmt.Sprintf("%s#chunk-%d", doc.URL, idx),
			SourceURL:  doc.URL,
			Title:      doc.Title,
			ChunkIndex: idx,
			Text:       text[pos:end],
			CharStart:  pos,
			CharEnd:    end,
		})

		if end == len(text) {
			break
		}
		next := end - c.overlapChars
		for next > 0 && !utf8.RuneStart(text[next]) {
			next--
		}
		if next <= pos {
			next = pos + 1
		}
		pos = next
	}
	return chunks, nil
}

// boundaryCuts returns all candidate cut positions, ascending: the end of
// every sentence terminator run and every paragraph break.
func (c *Chunker) boundaryCuts(text string) []int {
	var cuts []int
	for _, m := range c.sentenceRegex.FindAllStringIndex(text, -1) {
		cuts = append(cuts, m[1])
	}
	for _, m := range c.paragraphRegex.FindAllStringIndex(text, -1) {
		cuts = append(cuts, m[1])
	}
	sort.Ints(cuts)
	return cuts
}

// bestCut finds the largest cut position in (lo, hi], if any.
func bestCut(cuts []int, lo, hi int) (int, bool) {
	best, found := 0, false
	for _, b := range cuts {
		if b > hi {
			break
		}
		if b >= lo {
			best, found = b, true
		}
	}
	return best, found
}
