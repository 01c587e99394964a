package rating

import "context"

// QueryEmbeddingReader looks up the stored embedding of a past query.
type QueryEmbeddingReader interface {
	GetEmbedding(ctx context.Context, id int64) ([]float32, error)
}

// OptimizedEmbeddings reads and writes the feedback-mutated law embeddings.
type OptimizedEmbeddings interface {
	GetOptimized(ctx context.Context, lawID int64) ([]float32, error)
	SetOptimized(ctx context.Context, lawID int64, vec []float32) error
}

// Rebuilder refreshes the vector index from the embedding store.
type Rebuilder interface {
	Rebuild(ctx context.Context) error
}
