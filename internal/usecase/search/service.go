// Package search implements hybrid retrieval: a lexical keyword branch and a
// vector k-NN branch run concurrently, their ranked lists are statistically
// filtered, deduplicated and fused onto one score scale.
package search

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/normtext/lawdex/internal/domain"
	"github.com/normtext/lawdex/internal/index"
	"github.com/normtext/lawdex/internal/textproc"
)

// Params tunes the search pipeline.
type Params struct {
	MinQueryLength int
	MaxResults     int
	// Filter aggressiveness per branch, in [0,1]. Vector results are
	// filtered strictly (precision), lexical results more permissively.
	VectorAggressiveness  float64
	LexicalAggressiveness float64
	// MaxParaphrases > 0 enables query expansion via the paraphraser.
	MaxParaphrases int
}

// Service answers search queries.
type Service struct {
	laws        LawReader
	embeddings  EmbeddingReader
	queries     QueryEmbeddings
	keywords    KeywordExtractor
	idx         IndexSearcher
	paraphraser Paraphraser
	embedder    Embedder
	params      Params
	logger      *zap.Logger
}

// New creates a search service. paraphraser may be nil to disable query
// expansion regardless of params.MaxParaphrases.
func New(
	laws LawReader,
	embeddings EmbeddingReader,
	queries QueryEmbeddings,
	keywords KeywordExtractor,
	idx IndexSearcher,
	paraphraser Paraphraser,
	embedder Embedder,
	params Params,
	logger *zap.Logger,
) *Service {
	return &Service{
		laws:        laws,
		embeddings:  embeddings,
		queries:     queries,
		keywords:    keywords,
		idx:         idx,
		paraphraser: paraphraser,
		embedder:    embedder,
		params:      params,
		logger:      logger,
	}
}

// Search runs the full hybrid pipeline for queryText and returns up to
// 2×maxResults scored laws sorted by score descending, plus the id of the
// stored query record (needed to rate results later). An empty result list
// is a valid success, distinct from any error.
func (s *Service) Search(ctx context.Context, queryText string, maxResults int) (int64, []domain.SearchResult, error) {
	normalized := textproc.Normalize(queryText)
	if utf8.RuneCountInString(normalized) < s.params.MinQueryLength {
		return 0, nil, fmt.Errorf("query must have at least %d characters: %w",
			s.params.MinQueryLength, domain.ErrInvalidInput)
	}
	if maxResults <= 0 {
		maxResults = s.params.MaxResults
	}

	queryID, queryVec, err := s.queries.GetOrCreate(ctx, normalized)
	if err != nil {
		return 0, nil, err
	}

	// Lexical and vector branches are independent and read-only.
	var (
		wg        sync.WaitGroup
		lexRanked []domain.ScoredLaw
		lexErr    error
		vecRanked []domain.ScoredLaw
		vecErr    error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		lexRanked, lexErr = s.lexicalBranch(ctx, normalized)
	}()
	go func() {
		defer wg.Done()
		vecRanked, vecErr = s.vectorBranch(ctx, normalized, queryVec, 2*maxResults)
	}()
	wg.Wait()

	if lexErr != nil {
		return 0, nil, fmt.Errorf("lexical search: %w", lexErr)
	}
	if vecErr != nil {
		return 0, nil, fmt.Errorf("vector search: %w", vecErr)
	}

	fused, err := s.fuse(ctx, queryVec, vecRanked, lexRanked, maxResults)
	if err != nil {
		return 0, nil, err
	}

	results, err := s.assemble(ctx, fused)
	if err != nil {
		return 0, nil, err
	}

	s.logger.Debug("search completed",
		zap.Int64("query_id", queryID),
		zap.Int("lexical", len(lexRanked)),
		zap.Int("vector", len(vecRanked)),
		zap.Int("results", len(results)))

	return queryID, results, nil
}

// lexicalBranch scores the whole corpus against the extracted keywords.
func (s *Service) lexicalBranch(ctx context.Context, query string) ([]domain.ScoredLaw, error) {
	kws := s.keywords.Extract(ctx, query)
	if len(kws) == 0 {
		return nil, nil
	}
	laws, err := s.laws.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load laws: %w", err)
	}
	return lexicalRank(laws, kws), nil
}

// vectorBranch runs k-NN with the cached query vector, optionally expanded
// with paraphrased queries merged by minimum distance per law. A failing
// paraphrase degrades to the plain query, it never fails the search.
func (s *Service) vectorBranch(ctx context.Context, query string, queryVec []float32, k int) ([]domain.ScoredLaw, error) {
	best := make(map[int64]float64)

	neighbors, err := s.idx.Search(queryVec, k)
	if err != nil {
		return nil, err
	}
	for _, n := range neighbors {
		best[n.ID] = n.Distance
	}

	for _, vec := range s.paraphraseVectors(ctx, query) {
		extra, err := s.idx.Search(vec, k)
		if err != nil {
			return nil, err
		}
		for _, n := range extra {
			if d, ok := best[n.ID]; !ok || n.Distance < d {
				best[n.ID] = n.Distance
			}
		}
	}

	ranked := make([]domain.ScoredLaw, 0, len(best))
	for id, d := range best {
		ranked = append(ranked, domain.ScoredLaw{LawID: id, Score: domain.DistanceToScore(d)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].LawID < ranked[j].LawID
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked, nil
}

func (s *Service) paraphraseVectors(ctx context.Context, query string) [][]float32 {
	if s.paraphraser == nil || s.embedder == nil || s.params.MaxParaphrases <= 0 {
		return nil
	}

	phrasings, err := s.paraphraser.Paraphrase(ctx, query, s.params.MaxParaphrases)
	if err != nil {
		s.logger.Warn("paraphrase expansion failed, using plain query", zap.Error(err))
		return nil
	}

	vecs := make([][]float32, 0, len(phrasings))
	for _, p := range phrasings {
		res, err := s.embedder.Embed(ctx, p)
		if err != nil {
			s.logger.Warn("paraphrase embedding failed, skipping",
				zap.String("paraphrase", p), zap.Error(err))
			continue
		}
		vecs = append(vecs, res.Embedding)
	}
	return vecs
}

// fuse filters both branches, drops lexical hits already covered by vector
// results, and re-scores the lexical remainder against the query vector so
// the two branches share one score scale.
func (s *Service) fuse(ctx context.Context, queryVec []float32, vecRanked, lexRanked []domain.ScoredLaw, maxResults int) ([]domain.ScoredLaw, error) {
	vecKept := statisticalFilter(vecRanked, maxResults, s.params.VectorAggressiveness)
	lexKept := statisticalFilter(lexRanked, maxResults, s.params.LexicalAggressiveness)

	seen := make(map[int64]struct{}, len(vecKept))
	for _, v := range vecKept {
		seen[v.LawID] = struct{}{}
	}

	lexOnly := lexKept[:0]
	for _, l := range lexKept {
		if _, ok := seen[l.LawID]; !ok {
			lexOnly = append(lexOnly, l)
		}
	}

	rescored, err := s.rescoreLexical(ctx, queryVec, lexOnly)
	if err != nil {
		return nil, err
	}

	return append(vecKept, rescored...), nil
}

// rescoreLexical replaces keyword density scores with vector distances by
// building a throwaway index over the candidates' base embeddings.
func (s *Service) rescoreLexical(ctx context.Context, queryVec []float32, candidates []domain.ScoredLaw) ([]domain.ScoredLaw, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.LawID
	}

	baseVecs, err := s.embeddings.GetBaseMulti(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load base embeddings: %w", err)
	}

	entries := make([]index.Entry, 0, len(baseVecs))
	for id, vec := range baseVecs {
		entries = append(entries, index.Entry{ID: id, Vector: vec})
	}
	if len(entries) == 0 {
		return nil, nil
	}

	tmp, err := index.Build(len(queryVec), entries)
	if err != nil {
		return nil, fmt.Errorf("build rescoring index: %w", err)
	}
	neighbors, err := tmp.Search(queryVec, len(entries))
	if err != nil {
		return nil, fmt.Errorf("rescore lexical results: %w", err)
	}

	rescored := make([]domain.ScoredLaw, len(neighbors))
	for i, n := range neighbors {
		rescored[i] = domain.ScoredLaw{LawID: n.ID, Score: domain.DistanceToScore(n.Distance)}
	}
	return rescored, nil
}

// assemble loads the law records for the fused list and sorts the final
// output by score descending.
func (s *Service) assemble(ctx context.Context, fused []domain.ScoredLaw) ([]domain.SearchResult, error) {
	if len(fused) == 0 {
		return []domain.SearchResult{}, nil
	}

	scores := make(map[int64]float64, len(fused))
	ids := make([]int64, len(fused))
	for i, f := range fused {
		ids[i] = f.LawID
		scores[f.LawID] = f.Score
	}

	laws, err := s.laws.GetMulti(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load result laws: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(laws))
	for _, law := range laws {
		results = append(results, domain.SearchResult{
			ID:       law.ID,
			BookCode: law.BookCode,
			Title:    law.Title,
			Text:     law.Text,
			Score:    scores[law.ID],
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	return results, nil
}
