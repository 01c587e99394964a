// Package chi exposes the search and rating API over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/normtext/lawdex/internal/domain"
	"github.com/normtext/lawdex/internal/metrics"
	healthuc "github.com/normtext/lawdex/internal/usecase/health"
)

// Searcher answers search queries.
type Searcher interface {
	Search(ctx context.Context, queryText string, maxResults int) (int64, []domain.SearchResult, error)
}

// Rater processes rating submissions.
type Rater interface {
	Submit(ctx context.Context, lawID, queryID int64, rating domain.Rating) error
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Server is the HTTP API server.
type Server struct {
	search  Searcher
	ratings Rater
	health  HealthChecker
	apiKeys []string
	logger  *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(search Searcher, ratings Rater, health HealthChecker, apiKeys []string, logger *zap.Logger) *Server {
	return &Server{
		search:  search,
		ratings: ratings,
		health:  health,
		apiKeys: apiKeys,
		logger:  logger,
	}
}

// Router assembles the chi router with the full middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(s.apiKeys))
	r.Use(metrics.Middleware())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Get("/rating", s.handleRating)
	})
	r.Get("/healthz", s.handleHealthz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

type searchResponse struct {
	Query   string             `json:"query"`
	QueryID int64              `json:"query_id"`
	Results []searchResultItem `json:"results"`
}

type searchResultItem struct {
	ID       int64   `json:"id"`
	BookCode string  `json:"book_code"`
	Title    string  `json:"title"`
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
}

// handleSearch handles GET /api/v1/search?q=&n=.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	maxResults := 0
	if n := r.URL.Query().Get("n"); n != "" {
		parsed, err := strconv.Atoi(n)
		if err != nil || parsed <= 0 {
			metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
			writeError(w, http.StatusBadRequest, codeInvalidInput, "n must be a positive integer")
			return
		}
		maxResults = parsed
	}

	queryID, results, err := s.search.Search(r.Context(), query, maxResults)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		s.handleDomainError(w, err)
		return
	}
	metrics.SearchRequestsTotal.WithLabelValues("success").Inc()

	items := make([]searchResultItem, len(results))
	for i, res := range results {
		items[i] = searchResultItem{
			ID:       res.ID,
			BookCode: res.BookCode,
			Title:    res.Title,
			Text:     res.Text,
			Score:    res.Score,
		}
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: query, QueryID: queryID, Results: items})
}

// handleRating handles GET /api/v1/rating?id=&qid=&r=.
func (s *Server) handleRating(w http.ResponseWriter, r *http.Request) {
	rating := domain.Rating(r.URL.Query().Get("r"))
	// Arbitrary r values must not become metric labels.
	label := "invalid"
	if rating.Valid() {
		label = string(rating)
	}

	lawID, err1 := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	queryID, err2 := strconv.ParseInt(r.URL.Query().Get("qid"), 10, 64)
	if err1 != nil || err2 != nil {
		metrics.RatingsTotal.WithLabelValues(label, "error").Inc()
		writeError(w, http.StatusBadRequest, codeInvalidInput, "id and qid must be integers")
		return
	}

	if err := s.ratings.Submit(r.Context(), lawID, queryID, rating); err != nil {
		metrics.RatingsTotal.WithLabelValues(label, "error").Inc()
		s.handleDomainError(w, err)
		return
	}
	metrics.RatingsTotal.WithLabelValues(label, "success").Inc()

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleHealthz handles GET /healthz.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status":     report.Status,
		"checks":     report.Checks,
		"index_size": report.IndexSize,
	})
}

type errorCode string

const (
	codeInvalidInput        errorCode = "invalid_input"
	codeNotFound            errorCode = "not_found"
	codeQueryNotFound       errorCode = "query_not_found"
	codeOperationInProgress errorCode = "operation_in_progress"
	codeProviderError       errorCode = "provider_error"
	codeInternalError       errorCode = "internal_error"
	codeUnauthorized        errorCode = "unauthorized"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

// statusMappings translate domain sentinels to HTTP responses, checked in
// order (most specific first).
var statusMappings = []struct {
	sentinel error
	status   int
	code     errorCode
}{
	{domain.ErrInvalidInput, http.StatusBadRequest, codeInvalidInput},
	{domain.ErrDimensionMismatch, http.StatusBadRequest, codeInvalidInput},
	{domain.ErrQueryNotFound, http.StatusNotFound, codeQueryNotFound},
	{domain.ErrNotFound, http.StatusNotFound, codeNotFound},
	{domain.ErrRebuildInProgress, http.StatusConflict, codeOperationInProgress},
	{domain.ErrIngestInProgress, http.StatusConflict, codeOperationInProgress},
	{domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeProviderError},
	{domain.ErrCompletionProviderError, http.StatusBadGateway, codeProviderError},
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	for _, m := range statusMappings {
		if errors.Is(err, m.sentinel) {
			s.logger.Warn("domain error", zap.Error(err))
			writeError(w, m.status, m.code, m.sentinel.Error())
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
