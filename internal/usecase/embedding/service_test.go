package embedding

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/normtext/lawdex/internal/domain"
)

func TestGetOrCreate_MissThenHit(t *testing.T) {
	ctx := context.Background()
	repo := newMockQueryRepo()
	emb := &mockEmbedder{vec: []float32{0.1, 0.2}}
	svc := New(repo, emb, zap.NewNop())

	id1, vec1, err := svc.GetOrCreate(ctx, "Kündigung Mietvertrag")
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if emb.calls != 1 {
		t.Fatalf("expected one provider call, got %d", emb.calls)
	}
	if len(vec1) != 2 {
		t.Fatalf("unexpected vector: %v", vec1)
	}

	id2, vec2, err := svc.GetOrCreate(ctx, "Kündigung Mietvertrag")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if emb.calls != 1 {
		t.Errorf("repeat query must not call the provider, got %d calls", emb.calls)
	}
	if id1 != id2 {
		t.Errorf("expected same query id, got %d and %d", id1, id2)
	}
	if vec2[0] != vec1[0] || vec2[1] != vec1[1] {
		t.Errorf("expected cached vector, got %v", vec2)
	}
}

func TestGetOrCreate_NormalizedVariantsShareRecord(t *testing.T) {
	ctx := context.Background()
	repo := newMockQueryRepo()
	emb := &mockEmbedder{vec: []float32{0.5}}
	svc := New(repo, emb, zap.NewNop())

	id1, _, err := svc.GetOrCreate(ctx, "  Diebstahl   im Supermarkt ")
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	id2, _, err := svc.GetOrCreate(ctx, "Diebstahl im Supermarkt")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if id1 != id2 {
		t.Errorf("whitespace variants should share a record, got ids %d and %d", id1, id2)
	}
	if repo.created != 1 {
		t.Errorf("expected one stored record, got %d", repo.created)
	}
}

func TestGetOrCreate_EmptyText(t *testing.T) {
	svc := New(newMockQueryRepo(), &mockEmbedder{}, zap.NewNop())

	_, _, err := svc.GetOrCreate(context.Background(), "   ")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGetOrCreate_ProviderError(t *testing.T) {
	emb := &mockEmbedder{err: domain.ErrEmbeddingProviderError}
	svc := New(newMockQueryRepo(), emb, zap.NewNop())

	_, _, err := svc.GetOrCreate(context.Background(), "Diebstahl")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestGetOrCreate_PersistError(t *testing.T) {
	repo := newMockQueryRepo()
	repo.createErr = errors.New("store down")
	svc := New(repo, &mockEmbedder{vec: []float32{1}}, zap.NewNop())

	_, _, err := svc.GetOrCreate(context.Background(), "Diebstahl")
	if err == nil {
		t.Fatal("expected error when persisting fails")
	}
}
