package embedding

import (
	"context"

	"github.com/normtext/lawdex/internal/domain"
)

// QueryRepository persists query embeddings keyed by normalized text.
type QueryRepository interface {
	FindByText(ctx context.Context, normalizedText string) (int64, []float32, error)
	Create(ctx context.Context, normalizedText, reducedText string, vec []float32) (int64, []float32, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
