package index

import (
	"encoding/json"
	"fmt"
	"os"

	"site-assistant/models"
	"site-assistant/utils"
)

// Table maps index positions back to chunk provenance and text. Entry i
// describes the i-th vector inserted into the Flat index, so Append must be
// called in exactly the same order as vectors are added.
type Table struct {
	chunks []models.Chunk
}

func NewTable() *Table { return &Table{} }

// Append records the chunk for the next index position.
func (t *Table) Append(c models.Chunk) {
	t.chunks = append(t.chunks, c)
}

// Get returns the chunk stored at an index position.
func (t *Table) Get(position int) (models.Chunk, error) {
	if position < 0 || position >= len(t.chunks) {
		return models.Chunk{}, fmt.Errorf("position %d out of range [0,%d): %w",
			position, len(t.chunks), models.ErrIndexCorrupt)
	}
	return t.chunks[position], nil
}

func (t *Table) Len() int { return len(t.chunks) }

// Save persists the table as gzip-compressed JSON. Chunk text dominates the
// payload and compresses well.
func (t *Table) Save(path string) error {
	data, err := json.Marshal(t.chunks)
	if err != nil {
		return fmt.Errorf("marshal chunk table: %w", err)
	}
	compressed, err := utils.CompressData(data, utils.CompressionGzip)
	if err != nil {
		return fmt.Errorf("compress chunk table: %w", err)
	}
	if err := os.WriteFile(path, compressed, 0o644); err != nil {
		return fmt.Errorf("write chunk table: %w", err)
	}
	return nil
}

// LoadTable reads a table written by Save.
func LoadTable(path string) (*Table, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chunk table: %w", err)
	}
	data, err := utils.DecompressData(compressed, utils.CompressionGzip)
	if err != nil {
		return nil, fmt.Errorf("decompress chunk table: %w", models.ErrIndexCorrupt)
	}
	var chunks []models.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("parse chunk table: %w", models.ErrIndexCorrupt)
	}
	return &Table{chunks: chunks}, nil
}
