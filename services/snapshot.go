package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"site-assistant/models"
)

// The document snapshot is the handoff point between the crawler and the
// index builder: one JSON file holding every page of the last crawl. A build
// run consumes a whole snapshot; there is no partial update.

// SaveSnapshot writes documents to path, creating parent directories. The
// write goes through a temp file and rename so a crash never leaves a
// half-written snapshot at the canonical path.
func SaveSnapshot(path string, docs []models.Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("activate snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads a snapshot file and returns its documents ordered by
// URL, so consecutive builds from the same snapshot see the same input order.
// Per-record validation is left to the builder, which skips bad documents
// instead of failing the run.
func LoadSnapshot(path string) ([]models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var docs []models.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].URL < docs[j].URL })
	return docs, nil
}
