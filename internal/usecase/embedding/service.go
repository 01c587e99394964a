// Package embedding deduplicates query embeddings: the same question asked
// twice hits the stored vector instead of the provider.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/normtext/lawdex/internal/domain"
	"github.com/normtext/lawdex/internal/metrics"
	"github.com/normtext/lawdex/internal/textproc"
)

// Service resolves query text to a stored embedding, calling the provider
// only on cache miss.
type Service struct {
	queries  QueryRepository
	embedder Embedder
	logger   *zap.Logger
}

// New creates a query embedding service.
func New(queries QueryRepository, embedder Embedder, logger *zap.Logger) *Service {
	return &Service{queries: queries, embedder: embedder, logger: logger}
}

// GetOrCreate returns the query id and embedding for rawText. Lookup is by
// normalized text, so whitespace variants of the same question share one
// record. On miss the text is embedded and persisted before returning.
func (s *Service) GetOrCreate(ctx context.Context, rawText string) (int64, []float32, error) {
	normalized := textproc.Normalize(rawText)
	if normalized == "" {
		return 0, nil, fmt.Errorf("empty query text: %w", domain.ErrInvalidInput)
	}

	id, vec, err := s.queries.FindByText(ctx, normalized)
	if err == nil {
		metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
		return id, vec, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return 0, nil, fmt.Errorf("find query by text: %w", err)
	}

	metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()

	result, err := s.embedder.Embed(ctx, normalized)
	if err != nil {
		return 0, nil, fmt.Errorf("embed query: %w", err)
	}

	id, vec, err = s.queries.Create(ctx, normalized, domain.ReduceText(normalized), result.Embedding)
	if err != nil {
		return 0, nil, fmt.Errorf("store query embedding: %w", err)
	}

	s.logger.Debug("query embedding created",
		zap.Int64("query_id", id),
		zap.Int("dimensions", len(vec)),
		zap.Int("tokens", result.TotalTokens))

	return id, vec, nil
}
