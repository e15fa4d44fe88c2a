package index

import (
	"fmt"
	"math"
	"sort"

	"site-assistant/models"
)

// Metric selects how similarity between vectors is computed. For both
// supported metrics a higher score means a closer match.
type Metric string

const (
	// MetricCosine normalizes vectors at build time and queries at search
	// time, so scoring reduces to a dot product in [-1, 1].
	MetricCosine Metric = "cosine"
	// MetricDot scores by raw inner product. Only meaningful when the
	// embedding model emits pre-normalized vectors.
	MetricDot Metric = "dot"
)

// Hit is one nearest-neighbor candidate: the insertion position of the vector
// and its similarity score.
type Hit struct {
	Position int
	Score    float32
}

// Flat is an exact nearest-neighbor index: a dense array of vectors scanned
// linearly per query. Positions are assigned in Build input order, 0-based,
// and immutable thereafter. Safe for concurrent Search calls once built.
//
// Linear scan is O(n·d) per query, which is well within budget for a single
// organization's site (thousands of passages, not millions). An approximate
// structure would trade exactness for sub-linear queries; at this corpus size
// that trade buys nothing.
type Flat struct {
	metric  Metric
	dim     int
	vectors [][]float32
}

// NewFlat creates an empty index with the given metric.
func NewFlat(metric Metric) (*Flat, error) {
	if metric != MetricCosine && metric != MetricDot {
		return nil, fmt.Errorf("unsupported similarity metric %q: %w", metric, models.ErrInvalidInput)
	}
	return &Flat{metric: metric}, nil
}

// Build bulk-loads the index. All vectors must share one dimensionality.
// For the cosine metric the stored copies are L2-normalized, so the persisted
// form is exactly what Search compares against.
func (f *Flat) Build(vectors [][]float32) error {
	if len(vectors) == 0 {
		f.vectors = nil
		f.dim = 0
		return nil
	}
	dim := len(vectors[0])
	stored := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("vector %d has dimension %d, want %d: %w", i, len(v), dim, models.ErrInvalidInput)
		}
		cp := make([]float32, dim)
		copy(cp, v)
		if f.metric == MetricCosine {
			normalize(cp)
		}
		stored[i] = cp
	}
	f.vectors = stored
	f.dim = dim
	return nil
}

// Len returns the number of indexed vectors.
func (f *Flat) Len() int { return len(f.vectors) }

// Dimension returns the shared vector dimensionality, 0 when empty.
func (f *Flat) Dimension() int { return f.dim }

// Metric returns the configured similarity metric.
func (f *Flat) Metric() Metric { return f.metric }

// Search returns up to k nearest neighbors, best match first. Ties are broken
// by ascending position so results are deterministic. k larger than the index
// is clamped, not an error. An empty index yields no hits.
func (f *Flat) Search(query []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d: %w", k, models.ErrInvalidInput)
	}
	if len(f.vectors) == 0 {
		return nil, nil
	}
	if len(query) != f.dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d: %w",
			len(query), f.dim, models.ErrConfigMismatch)
	}

	q := query
	if f.metric == MetricCosine {
		q = make([]float32, f.dim)
		copy(q, query)
		normalize(q)
	}

	hits := make([]Hit, len(f.vectors))
	for i, v := range f.vectors {
		hits[i] = Hit{Position: i, Score: dot(q, v)}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Position < hits[j].Position
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
