package index

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"site-assistant/models"
)

// Manifest records the configuration an index was built under. It is loaded
// before anything else and checked against the running configuration, so a
// server never serves similarity scores computed against the wrong model.
type Manifest struct {
	EmbeddingModelID string    `json:"embedding_model_id"`
	Dimension        int       `json:"dimension"`
	Metric           Metric    `json:"metric"`
	MaxChunkChars    int       `json:"max_chunk_chars"`
	OverlapChars     int       `json:"overlap_chars"`
	BuiltAt          time.Time `json:"built_at"`
	DocumentCount    int       `json:"document_count"`
	ChunkCount       int       `json:"chunk_count"`
}

// Validate compares the manifest against the running embedder configuration.
func (m Manifest) Validate(modelID string, metric Metric) error {
	if m.EmbeddingModelID != modelID {
		return fmt.Errorf("index built with model %q but embedder is %q: %w",
			m.EmbeddingModelID, modelID, models.ErrConfigMismatch)
	}
	if m.Metric != metric {
		return fmt.Errorf("index built with metric %q but config says %q: %w",
			m.Metric, metric, models.ErrConfigMismatch)
	}
	return nil
}

func (m Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", models.ErrIndexCorrupt)
	}
	return m, nil
}
