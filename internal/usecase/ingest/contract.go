package ingest

import (
	"context"
	"time"

	"github.com/normtext/lawdex/internal/domain"
)

// LawWriter persists law records.
type LawWriter interface {
	Put(ctx context.Context, law domain.Law) error
}

// EmbeddingWriter persists a law's base embedding (optimized starts equal).
type EmbeddingWriter interface {
	Put(ctx context.Context, lawID int64, base []float32) error
}

// Rewriter produces retrieval-oriented rewrites of a provision for
// embedding enrichment.
type Rewriter interface {
	RewriteProvision(ctx context.Context, bookCode, title, text string) (string, error)
}

// Embedder vectorizes enriched law text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// TokenCounter measures text against the embedding model's token budget.
type TokenCounter interface {
	Count(text string) int
}

// Leaser guards the ingest run against concurrent invocations.
type Leaser interface {
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (string, error)
	Release(ctx context.Context, name, token string) error
}

// Rebuilder refreshes the vector index once ingestion finishes.
type Rebuilder interface {
	Rebuild(ctx context.Context) error
}
