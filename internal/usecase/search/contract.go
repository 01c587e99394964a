package search

import (
	"context"

	"github.com/normtext/lawdex/internal/domain"
	"github.com/normtext/lawdex/internal/index"
)

// LawReader reads law records for scoring and result assembly.
type LawReader interface {
	All(ctx context.Context) ([]domain.Law, error)
	GetMulti(ctx context.Context, ids []int64) ([]domain.Law, error)
}

// EmbeddingReader reads base embeddings for lexical re-scoring.
type EmbeddingReader interface {
	GetBaseMulti(ctx context.Context, lawIDs []int64) (map[int64][]float32, error)
}

// QueryEmbeddings resolves query text to a stored (id, vector) pair.
type QueryEmbeddings interface {
	GetOrCreate(ctx context.Context, rawText string) (int64, []float32, error)
}

// KeywordExtractor turns a query into lexical search terms.
type KeywordExtractor interface {
	Extract(ctx context.Context, query string) []string
}

// IndexSearcher runs k-NN over the optimized-embedding index.
type IndexSearcher interface {
	Search(query []float32, k int) ([]index.Neighbor, error)
}

// Paraphraser produces alternative phrasings for query expansion.
type Paraphraser interface {
	Paraphrase(ctx context.Context, query string, n int) ([]string, error)
}

// Embedder vectorizes paraphrased queries.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
