package index

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"site-assistant/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFlatRejectsUnknownMetric(t *testing.T) {
	_, err := NewFlat(Metric("euclidean"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
}

func TestBuildRejectsMixedDimensions(t *testing.T) {
	f, err := NewFlat(MetricCosine)
	require.NoError(t, err)

	err = f.Build([][]float32{{1, 0, 0}, {0, 1}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
}

func TestSearchCosineOrdering(t *testing.T) {
	f, err := NewFlat(MetricCosine)
	require.NoError(t, err)

	// Vectors at decreasing angle to the query; magnitudes vary to prove
	// cosine ignores them.
	require.NoError(t, f.Build([][]float32{
		{0, 1, 0},   // orthogonal
		{10, 0, 0},  // exact direction, large magnitude
		{1, 1, 0},   // 45 degrees
		{-1, 0, 0},  // opposite
	}))

	hits, err := f.Search([]float32{1, 0, 0}, 4)
	require.NoError(t, err)
	require.Len(t, hits, 4)

	assert.Equal(t, 1, hits[0].Position)
	assert.InDelta(t, 1.0, float64(hits[0].Score), 1e-6)
	assert.Equal(t, 2, hits[1].Position)
	assert.InDelta(t, 0.7071, float64(hits[1].Score), 1e-3)
	assert.Equal(t, 0, hits[2].Position)
	assert.Equal(t, 3, hits[3].Position)

	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
}

func TestSearchDotOrdering(t *testing.T) {
	f, err := NewFlat(MetricDot)
	require.NoError(t, err)

	require.NoError(t, f.Build([][]float32{
		{1, 0},
		{3, 0},
		{2, 0},
	}))

	hits, err := f.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	// Dot product keeps magnitude, so the largest vector wins.
	assert.Equal(t, []int{1, 2, 0}, []int{hits[0].Position, hits[1].Position, hits[2].Position})
}

func TestSearchTiesBreakByPosition(t *testing.T) {
	f, err := NewFlat(MetricDot)
	require.NoError(t, err)

	require.NoError(t, f.Build([][]float32{
		{1, 0},
		{1, 0},
		{1, 0},
	}))

	hits, err := f.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, 0, hits[0].Position)
	assert.Equal(t, 1, hits[1].Position)
	assert.Equal(t, 2, hits[2].Position)
}

func TestSearchClampsK(t *testing.T) {
	f, err := NewFlat(MetricCosine)
	require.NoError(t, err)
	require.NoError(t, f.Build([][]float32{{1, 0}, {0, 1}}))

	hits, err := f.Search([]float32{1, 0}, 50)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestSearchInvalidK(t *testing.T) {
	f, err := NewFlat(MetricCosine)
	require.NoError(t, err)
	require.NoError(t, f.Build([][]float32{{1, 0}}))

	_, err = f.Search([]float32{1, 0}, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
}

func TestSearchEmptyIndex(t *testing.T) {
	f, err := NewFlat(MetricCosine)
	require.NoError(t, err)
	require.NoError(t, f.Build(nil))

	hits, err := f.Search([]float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchDimensionMismatch(t *testing.T) {
	f, err := NewFlat(MetricCosine)
	require.NoError(t, err)
	require.NoError(t, f.Build([][]float32{{1, 0, 0}}))

	_, err = f.Search([]float32{1, 0}, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrConfigMismatch))
}

func TestSaveLoadRoundTripIdenticalResults(t *testing.T) {
	f, err := NewFlat(MetricCosine)
	require.NoError(t, err)
	require.NoError(t, f.Build([][]float32{
		{0.3, 0.7, 0.1},
		{0.9, 0.05, 0.2},
		{0.1, 0.1, 0.95},
	}))

	path := filepath.Join(t.TempDir(), "vectors.bin")
	require.NoError(t, f.Save(path))

	loaded, err := LoadFlat(path)
	require.NoError(t, err)
	assert.Equal(t, f.Len(), loaded.Len())
	assert.Equal(t, f.Dimension(), loaded.Dimension())
	assert.Equal(t, f.Metric(), loaded.Metric())

	query := []float32{0.25, 0.65, 0.15}
	want, err := f.Search(query, 3)
	require.NoError(t, err)
	got, err := loaded.Search(query, 3)
	require.NoError(t, err)

	// Bit-identical scores, not just the same ordering.
	assert.Equal(t, want, got)
}

func TestLoadFlatRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.bin")
	require.NoError(t, os.WriteFile(path, []byte("this is not a vector file"), 0o644))

	_, err := LoadFlat(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrIndexCorrupt))
}

func TestLoadFlatRejectsTruncated(t *testing.T) {
	f, err := NewFlat(MetricCosine)
	require.NoError(t, err)
	require.NoError(t, f.Build([][]float32{{1, 2, 3}, {4, 5, 6}}))

	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.bin")
	require.NoError(t, f.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	truncated := filepath.Join(dir, "truncated.bin")
	require.NoError(t, os.WriteFile(truncated, data[:len(data)-5], 0o644))

	_, err = LoadFlat(truncated)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrIndexCorrupt))
}

func TestSaveLoadEmptyIndex(t *testing.T) {
	f, err := NewFlat(MetricDot)
	require.NoError(t, err)
	require.NoError(t, f.Build(nil))

	path := filepath.Join(t.TempDir(), "vectors.bin")
	require.NoError(t, f.Save(path))

	loaded, err := LoadFlat(path)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Len())

	hits, err := loaded.Search([]float32{1}, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
