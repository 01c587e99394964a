package domain

import "context"

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token usage.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// EmbeddingPair holds the two vectors stored per law: base is computed once
// from the enriched law text and never mutated; optimized starts equal to
// base and is moved only by relevance feedback.
type EmbeddingPair struct {
	Base      []float32
	Optimized []float32
}
