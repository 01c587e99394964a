package embedding

import (
	"context"

	"github.com/normtext/lawdex/internal/domain"
)

type mockQueryRepo struct {
	byText map[string]struct {
		id  int64
		vec []float32
	}
	nextID    int64
	createErr error
	created   int
}

func newMockQueryRepo() *mockQueryRepo {
	return &mockQueryRepo{byText: make(map[string]struct {
		id  int64
		vec []float32
	})}
}

func (m *mockQueryRepo) FindByText(_ context.Context, text string) (int64, []float32, error) {
	e, ok := m.byText[text]
	if !ok {
		return 0, nil, domain.ErrNotFound
	}
	return e.id, e.vec, nil
}

func (m *mockQueryRepo) Create(_ context.Context, text, _ string, vec []float32) (int64, []float32, error) {
	if m.createErr != nil {
		return 0, nil, m.createErr
	}
	if e, ok := m.byText[text]; ok {
		return e.id, e.vec, nil
	}
	m.nextID++
	m.created++
	m.byText[text] = struct {
		id  int64
		vec []float32
	}{id: m.nextID, vec: vec}
	return m.nextID, vec, nil
}

type mockEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec, TotalTokens: 7}, nil
}
