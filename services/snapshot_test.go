package services

import (
	"path/filepath"
	"testing"
	"time"

	"site-assistant/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "snapshot.json")
	fetched := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	docs := []models.Document{
		{URL: "https://example.org/z-page", Title: "Z", Text: "last page", FetchedAt: fetched},
		{URL: "https://example.org/a-page", Title: "A", Text: "first page", FetchedAt: fetched},
	}
	require.NoError(t, SaveSnapshot(path, docs))

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	// Load orders by URL so builds are deterministic regardless of crawl order.
	assert.Equal(t, "https://example.org/a-page", loaded[0].URL)
	assert.Equal(t, "https://example.org/z-page", loaded[1].URL)
	assert.Equal(t, "first page", loaded[0].Text)
	assert.True(t, loaded[0].FetchedAt.Equal(fetched))
}

func TestSaveSnapshotOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")

	require.NoError(t, SaveSnapshot(path, []models.Document{{URL: "https://example.org/old", Text: "old"}}))
	require.NoError(t, SaveSnapshot(path, []models.Document{{URL: "https://example.org/new", Text: "new"}}))

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "https://example.org/new", loaded[0].URL)
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	_, err := LoadSnapshot(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestSaveSnapshotEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, SaveSnapshot(path, nil))

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
