// Package keywords turns a free-text query into the keyword list the lexical
// scorer runs on. The assisted strategy asks the completion provider and
// falls back to plain tokenization when the provider fails, so keyword
// extraction never takes a search request down with it.
package keywords

import (
	"context"

	"go.uber.org/zap"

	"github.com/normtext/lawdex/internal/textproc"
)

// Service extracts search keywords from a query.
type Service struct {
	completer Completer
	assisted  bool
	logger    *zap.Logger
}

// New creates a keyword extraction service. When assisted is false or
// completer is nil, extraction is pure tokenization.
func New(completer Completer, assisted bool, logger *zap.Logger) *Service {
	return &Service{completer: completer, assisted: assisted, logger: logger}
}

// Extract returns the keywords of query. Never returns an error: the
// tokenizer fallback always produces an answer (possibly empty for a query
// with no word characters).
func (s *Service) Extract(ctx context.Context, query string) []string {
	if s.assisted && s.completer != nil {
		kws, err := s.completer.ExtractKeywords(ctx, query)
		if err == nil {
			return kws
		}
		s.logger.Warn("assisted keyword extraction failed, falling back to tokenizer",
			zap.Error(err))
	}
	return textproc.Keywords(query)
}
