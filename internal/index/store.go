package index

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"site-assistant/models"
)

// One logical index version is a directory of three co-located artifacts.
const (
	vectorsFile  = "vectors.bin"
	chunksFile   = "chunks.json.gz"
	manifestFile = "manifest.json"
)

// writeMu serializes writers within the process. Two concurrent rebuilds
// must never interleave the rename dance, or the canonical path can end up
// holding files from different versions.
var writeMu sync.Mutex

// Write persists a complete index version, atomically from the reader's
// perspective: everything is written into a private staging directory next
// to dir, then swapped in with renames. Staging directories get unique
// names, so even two racing writers never touch each other's files; the swap
// itself is serialized by writeMu. A crash mid-write leaves the previous
// version at dir untouched; leftover ".old" or staging directories are
// debris, never picked up by Open.
func Write(dir string, f *Flat, t *Table, m Manifest) error {
	if t.Len() != f.Len() {
		return fmt.Errorf("table has %d entries but index has %d vectors: %w",
			t.Len(), f.Len(), models.ErrIndexCorrupt)
	}

	writeMu.Lock()
	defer writeMu.Unlock()

	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create index parent dir: %w", err)
	}
	tmp, err := os.MkdirTemp(parent, filepath.Base(dir)+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp index dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := f.Save(filepath.Join(tmp, vectorsFile)); err != nil {
		return err
	}
	if err := t.Save(filepath.Join(tmp, chunksFile)); err != nil {
		return err
	}
	if err := m.Save(filepath.Join(tmp, manifestFile)); err != nil {
		return err
	}

	old := dir + ".old"
	if _, err := os.Stat(dir); err == nil {
		if err := os.RemoveAll(old); err != nil {
			return fmt.Errorf("clear previous index backup: %w", err)
		}
		if err := os.Rename(dir, old); err != nil {
			return fmt.Errorf("stash previous index: %w", err)
		}
	}
	if err := os.Rename(tmp, dir); err != nil {
		// Put the previous version back so queries keep working
		if _, statErr := os.Stat(old); statErr == nil {
			_ = os.Rename(old, dir)
		}
		return fmt.Errorf("activate new index: %w", err)
	}
	_ = os.RemoveAll(old)
	return nil
}

// Open loads an index version and validates it against the running embedder
// configuration. It fails fast with ErrConfigMismatch on model or metric
// divergence, and ErrIndexCorrupt when table and vector counts disagree —
// refusing to start beats silently serving degraded results.
func Open(dir string, modelID string, metric Metric) (*Flat, *Table, Manifest, error) {
	m, err := LoadManifest(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, nil, Manifest{}, err
	}
	if err := m.Validate(modelID, metric); err != nil {
		return nil, nil, Manifest{}, err
	}

	f, err := LoadFlat(filepath.Join(dir, vectorsFile))
	if err != nil {
		return nil, nil, Manifest{}, err
	}
	if f.Metric() != m.Metric {
		return nil, nil, Manifest{}, fmt.Errorf("vector file metric %q disagrees with manifest %q: %w",
			f.Metric(), m.Metric, models.ErrIndexCorrupt)
	}
	if f.Len() > 0 && f.Dimension() != m.Dimension {
		return nil, nil, Manifest{}, fmt.Errorf("vector dimension %d disagrees with manifest %d: %w",
			f.Dimension(), m.Dimension, models.ErrIndexCorrupt)
	}

	t, err := LoadTable(filepath.Join(dir, chunksFile))
	if err != nil {
		return nil, nil, Manifest{}, err
	}
	if t.Len() != f.Len() {
		return nil, nil, Manifest{}, fmt.Errorf("table has %d entries but index has %d vectors: %w",
			t.Len(), f.Len(), models.ErrIndexCorrupt)
	}

	return f, t, m, nil
}
