// Package ingest loads a law corpus into the store: each provision gets a
// reduced text for lexical search and a base embedding computed from an
// enriched version of its text, then the vector index is rebuilt once.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/normtext/lawdex/internal/domain"
)

const (
	// IngestLockName guards against two concurrent corpus loads.
	IngestLockName = "law_ingest_lock"
	// IngestLeaseTTL bounds how long a crashed ingest blocks the next one.
	IngestLeaseTTL = 30 * time.Minute
)

// Params tunes the ingest pipeline.
type Params struct {
	// Workers is the size of the law-processing pool.
	Workers int
	// MaxRewrites is the number of perspective rewrites added to the
	// embedding text of each law.
	MaxRewrites int
	// MaxTokens is the embedding model's input budget; longer enriched
	// texts are embedded by recursive split-and-average.
	MaxTokens int
}

// Report summarizes one ingest run.
type Report struct {
	Total  int
	Stored int
	Failed int
}

// Service ingests law corpora.
type Service struct {
	laws       LawWriter
	embeddings EmbeddingWriter
	rewriter   Rewriter
	embedder   Embedder
	counter    TokenCounter
	leases     Leaser
	rebuilder  Rebuilder
	params     Params
	logger     *zap.Logger
}

// New creates an ingest service. rewriter may be nil to skip enrichment.
func New(
	laws LawWriter,
	embeddings EmbeddingWriter,
	rewriter Rewriter,
	embedder Embedder,
	counter TokenCounter,
	leases Leaser,
	rebuilder Rebuilder,
	params Params,
	logger *zap.Logger,
) *Service {
	if params.Workers <= 0 {
		params.Workers = 4
	}
	return &Service{
		laws:       laws,
		embeddings: embeddings,
		rewriter:   rewriter,
		embedder:   embedder,
		counter:    counter,
		leases:     leases,
		rebuilder:  rebuilder,
		params:     params,
		logger:     logger,
	}
}

// Ingest processes laws on a worker pool and rebuilds the index at the end.
// Per-law failures are logged and counted, they do not abort the run.
func (s *Service) Ingest(ctx context.Context, laws []domain.Law) (Report, error) {
	token, err := s.leases.TryAcquire(ctx, IngestLockName, IngestLeaseTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLeaseHeld) {
			return Report{}, domain.ErrIngestInProgress
		}
		return Report{}, fmt.Errorf("acquire ingest lease: %w", err)
	}
	defer func() {
		if err := s.leases.Release(context.WithoutCancel(ctx), IngestLockName, token); err != nil {
			s.logger.Warn("release ingest lease", zap.Error(err))
		}
	}()

	pool, err := ants.NewPool(s.params.Workers)
	if err != nil {
		return Report{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		report = Report{Total: len(laws)}
	)

	for _, law := range laws {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if err := s.processLaw(ctx, law); err != nil {
				s.logger.Error("law ingestion failed",
					zap.Int64("law_id", law.ID), zap.Error(err))
				mu.Lock()
				report.Failed++
				mu.Unlock()
				return
			}
			mu.Lock()
			report.Stored++
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			report.Failed++
			mu.Unlock()
		}
	}
	wg.Wait()

	s.logger.Info("corpus ingested",
		zap.Int("total", report.Total),
		zap.Int("stored", report.Stored),
		zap.Int("failed", report.Failed))

	if err := s.rebuilder.Rebuild(ctx); err != nil {
		return report, fmt.Errorf("rebuild index after ingest: %w", err)
	}
	return report, nil
}

func (s *Service) processLaw(ctx context.Context, law domain.Law) error {
	law.TextReduced = domain.ReduceText(law.Text)

	vec, err := s.embedRecursive(ctx, s.enrich(ctx, law))
	if err != nil {
		return fmt.Errorf("embed law %d: %w", law.ID, err)
	}

	if err := s.laws.Put(ctx, law); err != nil {
		if errors.Is(err, domain.ErrPersistence) {
			// Duplicate or integrity failure on one record is non-fatal.
			s.logger.Warn("law record not stored", zap.Int64("law_id", law.ID), zap.Error(err))
			return err
		}
		return fmt.Errorf("store law %d: %w", law.ID, err)
	}
	if err := s.embeddings.Put(ctx, law.ID, vec); err != nil {
		return fmt.Errorf("store embedding %d: %w", law.ID, err)
	}
	return nil
}

// enrich builds the text that gets embedded: the provision itself plus up to
// MaxRewrites perspective rewrites. A failed rewrite is skipped, the
// original text always remains.
func (s *Service) enrich(ctx context.Context, law domain.Law) string {
	parts := []string{law.BookCode + " " + law.Title + "\n" + law.Text}

	if s.rewriter != nil {
		for i := 0; i < s.params.MaxRewrites; i++ {
			out, err := s.rewriter.RewriteProvision(ctx, law.BookCode, law.Title, law.Text)
			if err != nil {
				s.logger.Warn("provision rewrite failed, skipping perspective",
					zap.Int64("law_id", law.ID), zap.Error(err))
				continue
			}
			parts = append(parts, out)
		}
	}
	return strings.Join(parts, "\n\n\n")
}

// embedRecursive embeds text within the token budget directly; oversized
// text is split at the midpoint line and the halves' embeddings averaged.
func (s *Service) embedRecursive(ctx context.Context, text string) ([]float32, error) {
	if s.params.MaxTokens > 0 && s.counter != nil && s.counter.Count(text) > s.params.MaxTokens {
		lines := strings.Split(text, "\n")
		if len(lines) >= 2 {
			mid := len(lines) / 2

			first, err := s.embedRecursive(ctx, strings.Join(lines[:mid], "\n"))
			if err != nil {
				return nil, err
			}
			second, err := s.embedRecursive(ctx, strings.Join(lines[mid:], "\n"))
			if err != nil {
				return nil, err
			}
			return meanVector(first, second)
		}
		// A single oversized line: the embedder clamps it.
	}

	result, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return result.Embedding, nil
}

func meanVector(a, b []float32) ([]float32, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("averaging vectors of length %d and %d: %w",
			len(a), len(b), domain.ErrDimensionMismatch)
	}
	out := make([]float32, len(a))
	for i := range a {
		out[i] = (a[i] + b[i]) / 2
	}
	return out, nil
}
