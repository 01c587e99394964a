// Package rating applies relevance feedback: each rating nudges a law's
// optimized embedding a small step toward (positive) or away from (negative)
// the rated query's embedding, then rebuilds the vector index.
package rating

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/normtext/lawdex/internal/domain"
)

// adjustmentStep scales a rating's score into the lerp factor. One rating
// moves the embedding 10% of the way; repeated ratings compound.
const adjustmentStep = 10.0

// Service processes rating submissions.
type Service struct {
	queries    QueryEmbeddingReader
	embeddings OptimizedEmbeddings
	rebuilder  Rebuilder
	logger     *zap.Logger
}

// New creates a rating service.
func New(queries QueryEmbeddingReader, embeddings OptimizedEmbeddings, rebuilder Rebuilder, logger *zap.Logger) *Service {
	return &Service{queries: queries, embeddings: embeddings, rebuilder: rebuilder, logger: logger}
}

// Submit validates and applies one rating. Every step must succeed before
// the next runs, so a failure anywhere leaves the stored embeddings and the
// index untouched.
func (s *Service) Submit(ctx context.Context, lawID, queryID int64, rating domain.Rating) error {
	if lawID <= 0 {
		return fmt.Errorf("law id must be positive: %w", domain.ErrInvalidInput)
	}
	if queryID <= 0 {
		return fmt.Errorf("query id must be positive: %w", domain.ErrInvalidInput)
	}
	if !rating.Valid() {
		return fmt.Errorf("rating must be %q or %q: %w",
			domain.RatingPositive, domain.RatingNegative, domain.ErrInvalidInput)
	}

	queryVec, err := s.queries.GetEmbedding(ctx, queryID)
	if err != nil {
		return fmt.Errorf("lookup query %d: %w", queryID, err)
	}

	lawVec, err := s.embeddings.GetOptimized(ctx, lawID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("law %d has no embedding: %w", lawID, err)
		}
		return fmt.Errorf("lookup law embedding %d: %w", lawID, err)
	}
	if len(lawVec) != len(queryVec) {
		return fmt.Errorf("law %d: embedding has %d dimensions, query has %d: %w",
			lawID, len(lawVec), len(queryVec), domain.ErrDimensionMismatch)
	}

	factor := domain.Clamp(rating.Score(), -1, 1) / adjustmentStep
	adjusted := domain.Lerp(lawVec, queryVec, factor)

	if err := s.embeddings.SetOptimized(ctx, lawID, adjusted); err != nil {
		return fmt.Errorf("persist adjusted embedding: %w", err)
	}

	s.logger.Info("law embedding adjusted",
		zap.Int64("law_id", lawID),
		zap.Int64("query_id", queryID),
		zap.String("rating", string(rating)),
		zap.Float64("factor", factor))

	if err := s.rebuilder.Rebuild(ctx); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}
	return nil
}
