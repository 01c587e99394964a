// Package index implements the nearest-neighbor index over law embeddings:
// a flat (exhaustive) squared-L2 index with whole-file persistence and a
// manager that serializes rebuilds behind an advisory lease.
package index

import (
	"fmt"
	"sort"

	"github.com/normtext/lawdex/internal/domain"
)

// Entry is one (law id, vector) pair fed into a build.
type Entry struct {
	ID     int64
	Vector []float32
}

// Neighbor is a search hit: a law id and its squared L2 distance to the query.
type Neighbor struct {
	ID       int64
	Distance float64
}

// Flat is an exhaustive nearest-neighbor index. Immutable after Build; a
// rebuild produces a fresh instance and the Manager swaps it in.
type Flat struct {
	dim     int
	ids     []int64
	vectors []float32 // packed row-major, len = dim * len(ids)
}

// Build constructs a flat index of the given dimensionality from entries.
// Every vector must have exactly dim components.
func Build(dim int, entries []Entry) (*Flat, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("build index: dimension must be positive, got %d", dim)
	}
	f := &Flat{
		dim:     dim,
		ids:     make([]int64, 0, len(entries)),
		vectors: make([]float32, 0, len(entries)*dim),
	}
	for _, e := range entries {
		if len(e.Vector) != dim {
			return nil, fmt.Errorf("build index: law %d has %d components, want %d: %w",
				e.ID, len(e.Vector), dim, domain.ErrDimensionMismatch)
		}
		f.ids = append(f.ids, e.ID)
		f.vectors = append(f.vectors, e.Vector...)
	}
	return f, nil
}

// Len returns the number of indexed vectors.
func (f *Flat) Len() int { return len(f.ids) }

// Dim returns the vector dimensionality.
func (f *Flat) Dim() int { return f.dim }

// Search returns up to k neighbors of query ordered by ascending squared L2
// distance. The query must have exactly Dim components.
func (f *Flat) Search(query []float32, k int) ([]Neighbor, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("search: query has %d components, want %d: %w",
			len(query), f.dim, domain.ErrDimensionMismatch)
	}
	if k <= 0 || f.Len() == 0 {
		return nil, nil
	}

	neighbors := make([]Neighbor, len(f.ids))
	for i, id := range f.ids {
		row := f.vectors[i*f.dim : (i+1)*f.dim]
		neighbors[i] = Neighbor{ID: id, Distance: domain.SquaredL2(query, row)}
	}

	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Distance != neighbors[j].Distance {
			return neighbors[i].Distance < neighbors[j].Distance
		}
		return neighbors[i].ID < neighbors[j].ID
	})

	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}
