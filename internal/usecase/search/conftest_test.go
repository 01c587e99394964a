package search

import (
	"context"

	"github.com/normtext/lawdex/internal/domain"
	"github.com/normtext/lawdex/internal/index"
)

type mockLawReader struct {
	laws   []domain.Law
	allErr error
}

func (m *mockLawReader) All(_ context.Context) ([]domain.Law, error) {
	if m.allErr != nil {
		return nil, m.allErr
	}
	return m.laws, nil
}

func (m *mockLawReader) GetMulti(_ context.Context, ids []int64) ([]domain.Law, error) {
	byID := make(map[int64]domain.Law, len(m.laws))
	for _, l := range m.laws {
		byID[l.ID] = l
	}
	out := make([]domain.Law, 0, len(ids))
	for _, id := range ids {
		if l, ok := byID[id]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

type mockEmbeddingReader struct {
	base map[int64][]float32
}

func (m *mockEmbeddingReader) GetBaseMulti(_ context.Context, ids []int64) (map[int64][]float32, error) {
	out := make(map[int64][]float32)
	for _, id := range ids {
		if v, ok := m.base[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

type mockQueries struct {
	id    int64
	vec   []float32
	calls int
}

func (m *mockQueries) GetOrCreate(_ context.Context, _ string) (int64, []float32, error) {
	m.calls++
	return m.id, m.vec, nil
}

type mockKeywords struct {
	keywords []string
}

func (m *mockKeywords) Extract(_ context.Context, _ string) []string {
	return m.keywords
}

// mockIndex returns canned neighbors per query vector's first component.
type mockIndex struct {
	neighbors map[float32][]index.Neighbor
	err       error
}

func (m *mockIndex) Search(query []float32, k int) ([]index.Neighbor, error) {
	if m.err != nil {
		return nil, m.err
	}
	ns := m.neighbors[query[0]]
	if len(ns) > k {
		ns = ns[:k]
	}
	return ns, nil
}

type mockParaphraser struct {
	phrasings []string
	err       error
}

func (m *mockParaphraser) Paraphrase(_ context.Context, _ string, n int) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(m.phrasings) > n {
		return m.phrasings[:n], nil
	}
	return m.phrasings, nil
}

// mockVecEmbedder maps each text to a fixed vector.
type mockVecEmbedder struct {
	vecs map[string][]float32
}

func (m *mockVecEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: m.vecs[text]}, nil
}

func defaultParams() Params {
	return Params{
		MinQueryLength:        3,
		MaxResults:            5,
		VectorAggressiveness:  0.2,
		LexicalAggressiveness: 0.8,
	}
}
